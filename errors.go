// Package guda structured error types and device status codes
package guda

import (
	"errors"
	"fmt"
	"runtime"
)

// Status is the numeric result code of a device operation. Non-zero values
// mirror the CUDA runtime codes so that exit statuses stay comparable.
type Status int

const (
	StatusSuccess                Status = 0
	StatusInvalidValue           Status = 1
	StatusMemoryAllocation       Status = 2
	StatusInvalidConfiguration   Status = 9
	StatusInvalidDevicePointer   Status = 17
	StatusInvalidMemcpyDirection Status = 21
	StatusInvalidDevice          Status = 101
	StatusLaunchFailure          Status = 719
	StatusUnknown                Status = 999
)

// Name returns the symbolic name of the status.
func (s Status) Name() string {
	switch s {
	case StatusSuccess:
		return "gudaSuccess"
	case StatusInvalidValue:
		return "gudaErrorInvalidValue"
	case StatusMemoryAllocation:
		return "gudaErrorMemoryAllocation"
	case StatusInvalidConfiguration:
		return "gudaErrorInvalidConfiguration"
	case StatusInvalidDevicePointer:
		return "gudaErrorInvalidDevicePointer"
	case StatusInvalidMemcpyDirection:
		return "gudaErrorInvalidMemcpyDirection"
	case StatusInvalidDevice:
		return "gudaErrorInvalidDevice"
	case StatusLaunchFailure:
		return "gudaErrorLaunchFailure"
	default:
		return "gudaErrorUnknown"
	}
}

// Description returns the human-readable explanation of the status.
func (s Status) Description() string {
	switch s {
	case StatusSuccess:
		return "no error"
	case StatusInvalidValue:
		return "invalid argument"
	case StatusMemoryAllocation:
		return "out of memory"
	case StatusInvalidConfiguration:
		return "invalid configuration argument"
	case StatusInvalidDevicePointer:
		return "invalid device pointer"
	case StatusInvalidMemcpyDirection:
		return "invalid copy direction for memcpy"
	case StatusInvalidDevice:
		return "invalid device ordinal"
	case StatusLaunchFailure:
		return "unspecified launch failure"
	default:
		return "unknown error"
	}
}

func (s Status) String() string {
	return s.Name()
}

// ErrorType represents categories of errors
type ErrorType int

const (
	// Memory errors
	ErrTypeMemory ErrorType = iota
	// Invalid argument errors
	ErrTypeInvalidArg
	// Execution errors
	ErrTypeExecution
	// Device errors
	ErrTypeDevice
)

// GUDAError represents a structured error with context
type GUDAError struct {
	Type    ErrorType
	Status  Status
	Op      string // Operation that failed
	Message string // Human-readable message
	Err     error  // Underlying error if any
}

// Error implements the error interface
func (e *GUDAError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("GUDA %s error in %s: %s (caused by: %v)",
			e.Type.String(), e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("GUDA %s error in %s: %s",
		e.Type.String(), e.Op, e.Message)
}

// Unwrap allows error chain inspection
func (e *GUDAError) Unwrap() error {
	return e.Err
}

// String returns the error type as a string
func (t ErrorType) String() string {
	switch t {
	case ErrTypeMemory:
		return "Memory"
	case ErrTypeInvalidArg:
		return "InvalidArgument"
	case ErrTypeExecution:
		return "Execution"
	case ErrTypeDevice:
		return "Device"
	default:
		return "Unknown"
	}
}

// Common error constructors

// NewMemoryError creates a memory-related error
func NewMemoryError(op string, message string, err error) error {
	return &GUDAError{
		Type:    ErrTypeMemory,
		Status:  StatusMemoryAllocation,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewInvalidArgError creates an invalid argument error
func NewInvalidArgError(op string, message string) error {
	return &GUDAError{
		Type:    ErrTypeInvalidArg,
		Status:  StatusInvalidValue,
		Op:      op,
		Message: message,
	}
}

// NewConfigurationError reports launch parameters the device cannot honor.
func NewConfigurationError(op string, message string) error {
	return &GUDAError{
		Type:    ErrTypeInvalidArg,
		Status:  StatusInvalidConfiguration,
		Op:      op,
		Message: message,
	}
}

// NewExecutionError creates an execution error
func NewExecutionError(op string, message string, err error) error {
	return &GUDAError{
		Type:    ErrTypeExecution,
		Status:  StatusLaunchFailure,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewDeviceError creates an error with an explicit status
func NewDeviceError(op string, status Status, message string) error {
	return &GUDAError{
		Type:    ErrTypeDevice,
		Status:  status,
		Op:      op,
		Message: message,
	}
}

// Common pre-defined errors

var (
	// ErrOutOfMemory indicates memory allocation failure
	ErrOutOfMemory = NewMemoryError("Malloc", "out of memory", nil)

	// ErrInvalidSize indicates invalid size parameter
	ErrInvalidSize = NewInvalidArgError("Malloc", "size must be positive")

	// ErrNullPointer indicates null pointer access
	ErrNullPointer = NewDeviceError("Memory", StatusInvalidDevicePointer, "null pointer")

	// ErrDoubleFree indicates double free attempt
	ErrDoubleFree = NewDeviceError("Free", StatusInvalidDevicePointer, "double free detected")

	// ErrInvalidDevice indicates invalid device ID
	ErrInvalidDevice = NewDeviceError("SetDevice", StatusInvalidDevice, "invalid device ID")

	// ErrBarrierBroken is returned by Barrier.Wait once a party has faulted
	ErrBarrierBroken = errors.New("barrier broken")
)

// StatusOf extracts the device status carried by err. A nil error is
// StatusSuccess; errors from outside the runtime are StatusUnknown.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var ge *GUDAError
	if errors.As(err, &ge) {
		return ge.Status
	}
	return StatusUnknown
}

// IsMemoryError checks if an error is a memory error
func IsMemoryError(err error) bool {
	var ge *GUDAError
	return errors.As(err, &ge) && ge.Type == ErrTypeMemory
}

// IsInvalidArgError checks if an error is an invalid argument error
func IsInvalidArgError(err error) bool {
	var ge *GUDAError
	return errors.As(err, &ge) && ge.Type == ErrTypeInvalidArg
}

// IsExecutionError checks if an error came from a faulted kernel
func IsExecutionError(err error) bool {
	var ge *GUDAError
	return errors.As(err, &ge) && ge.Type == ErrTypeExecution
}

// LocatedError records the call site of a failed device operation.
type LocatedError struct {
	File string
	Line int
	Err  error
}

func (e *LocatedError) Error() string {
	s := StatusOf(e.Err)
	return fmt.Sprintf("Line %d (%s): %s: %s (%v)",
		e.Line, e.File, s.Name(), s.Description(), e.Err)
}

func (e *LocatedError) Unwrap() error {
	return e.Err
}

// Check annotates a non-nil device error with the file and line of the
// caller. It returns nil for a nil error, so it can wrap every call:
//
//	if err := guda.Check(ctx.Synchronize()); err != nil {
//	    return err
//	}
func Check(err error) error {
	if err == nil {
		return nil
	}
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file = "unknown"
	}
	return &LocatedError{File: file, Line: line, Err: err}
}
