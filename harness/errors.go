package harness

import (
	"fmt"
)

// ConfigError is a run that could not start because of its configuration.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// VerificationError is a device result that diverged from the reference.
type VerificationError struct {
	Diff      float64
	Tolerance float64
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("mean relative difference %g exceeds tolerance %g", e.Diff, e.Tolerance)
}

// StageError records the stage a run stopped in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
