// Package guda provides a CUDA-compatible API for CPU execution.
// It runs grid/block kernels on goroutines, with per-block shared memory
// and a block-wide barrier, so cooperative kernels such as tiled matrix
// multiplication behave as they would on an accelerator.
//
// Example usage:
//
//	ctx := guda.NewContext()
//	defer ctx.Destroy()
//
//	// Allocate device memory
//	d_a, _ := ctx.Malloc(n * 8) // n float64s
//
//	// Copy data to device
//	ctx.Memcpy(d_a, h_a, n*8, guda.MemcpyHostToDevice)
//
//	// Launch kernel
//	grid := guda.Dim3{X: (n + 255) / 256}
//	block := guda.Dim3{X: 256}
//	ctx.Launch(myKernel, grid, block, args...)
//	err := ctx.Synchronize()
package guda

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Device represents a compute device. In GUDA, this is the CPU with its
// cores and available memory.
type Device struct {
	ID                 int    // Unique device identifier
	Name               string // Human-readable device name
	TotalMem           uint64 // Total available memory in bytes
	NumCores           int    // Number of CPU cores
	MaxThreads         int    // Maximum concurrent threads
	MaxThreadsPerBlock int
	SharedMemPerBlock  int
}

// Context represents an execution context for GUDA operations.
// It manages device resources, memory allocation, and stream execution.
// A Context must be created before any GUDA operations and should be
// destroyed when no longer needed.
type Context struct {
	device        *Device
	mu            sync.Mutex
	streams       map[int]*Stream
	streamID      int32
	memory        *MemoryPool
	defaultStream *Stream
	workers       int

	errMu   sync.Mutex
	lastErr error // sticky launch failure
}

// Option configures a Context.
type Option func(*Context)

// WithMemoryLimit caps the bytes the context may have allocated at once.
func WithMemoryLimit(bytes int64) Option {
	return func(ctx *Context) {
		ctx.memory.limit = bytes
		ctx.device.TotalMem = uint64(bytes)
	}
}

// WithWorkers sets how many blocks may execute concurrently.
func WithWorkers(n int) Option {
	return func(ctx *Context) {
		if n > 0 {
			ctx.workers = n
		}
	}
}

// Stream represents an ordered sequence of operations that execute
// asynchronously. Operations within a stream execute in order, but
// operations in different streams may execute concurrently.
type Stream struct {
	id    int
	tasks chan func()
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// Dim3 represents 3D dimensions for grid and block configurations.
// A zero Y or Z is treated as 1.
type Dim3 struct {
	X, Y, Z int
}

// ThreadID identifies a thread's position within the execution hierarchy.
// It provides the same indexing semantics as CUDA's built-in variables:
// blockIdx, threadIdx, blockDim, and gridDim.
type ThreadID struct {
	BlockIdx  Dim3 // Block index within the grid
	ThreadIdx Dim3 // Thread index within the block
	BlockDim  Dim3 // Dimensions of the block
	GridDim   Dim3 // Dimensions of the grid

	block *blockState
}

// Kernel represents a compute kernel that can be executed in parallel.
// Implementations must be safe for concurrent use: Execute is called once
// per thread, and all threads of a block run at the same time.
type Kernel interface {
	Execute(tid ThreadID, args ...interface{})
}

// KernelFunc is a function that can be launched as a kernel.
// It receives thread identification and variadic arguments.
type KernelFunc func(tid ThreadID, args ...interface{})

// DevicePtr represents a pointer to device memory. Use the view methods
// (Float64, Float32, Byte) to access the underlying data.
type DevicePtr struct {
	ptr    unsafe.Pointer
	size   int
	offset int
}

// Global runtime state
var (
	defaultContext *Context
	initOnce       sync.Once
)

// Initialize GUDA runtime
func init() {
	initOnce.Do(func() {
		defaultContext = NewContext()
	})
}

// NewContext creates a context on the CPU device with its default stream.
func NewContext(opts ...Option) *Context {
	ctx := &Context{
		device: &Device{
			ID:                 0,
			Name:               deviceName(),
			TotalMem:           DefaultMemoryLimit,
			NumCores:           runtime.NumCPU(),
			MaxThreads:         runtime.NumCPU() * 2, // Hyperthreading
			MaxThreadsPerBlock: MaxThreadsPerBlock,
			SharedMemPerBlock:  MaxSharedMemoryPerBlock,
		},
		streams: make(map[int]*Stream),
		memory:  NewMemoryPool(DefaultMemoryLimit),
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(ctx)
	}

	// Create default stream
	ctx.defaultStream = ctx.CreateStream()
	return ctx
}

// Malloc allocates device memory of the specified size in bytes.
//
// Example:
//
//	d_data, err := guda.Malloc(1024 * 8) // Allocate 1024 float64s
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer guda.Free(d_data)
func Malloc(size int) (DevicePtr, error) {
	return defaultContext.Malloc(size)
}

// Free releases device memory allocated by Malloc.
func Free(ptr DevicePtr) error {
	return defaultContext.Free(ptr)
}

// Memcpy copies memory between host and device on the default context.
func Memcpy(dst, src interface{}, size int, kind MemcpyKind) error {
	return defaultContext.Memcpy(dst, src, size, kind)
}

// Launch executes a kernel on the default stream.
func Launch(kernel Kernel, grid, block Dim3, args ...interface{}) error {
	return defaultContext.Launch(kernel, grid, block, args...)
}

// LaunchShared executes a kernel on the default stream with sharedBytes of
// shared memory per block.
func LaunchShared(kernel Kernel, grid, block Dim3, sharedBytes int, args ...interface{}) error {
	return defaultContext.LaunchShared(kernel, grid, block, sharedBytes, args...)
}

// Synchronize waits for all operations on all streams to complete and
// reports any launch failure recorded in the meantime.
func Synchronize() error {
	return defaultContext.Synchronize()
}

// PeekAtLastError returns the sticky launch failure of the default context.
func PeekAtLastError() error {
	return defaultContext.PeekAtLastError()
}

// GetDevice returns the current device information.
func GetDevice() *Device {
	return defaultContext.device
}

// SetDevice sets the active device (no-op for CPU)
func SetDevice(id int) error {
	if id != 0 {
		return ErrInvalidDevice
	}
	return nil
}

// GetDeviceCount returns the number of available devices.
// GUDA always returns 1 as it only supports CPU execution.
func GetDeviceCount() int {
	return 1 // Only CPU
}

// GetDeviceProperties returns device properties
func GetDeviceProperties(id int) (*Device, error) {
	if id != 0 {
		return nil, NewDeviceError("GetDeviceProperties", StatusInvalidDevice, fmt.Sprintf("invalid device ID: %d", id))
	}
	return defaultContext.device, nil
}

// Context methods

// Device returns the device the context runs on.
func (ctx *Context) Device() *Device {
	return ctx.device
}

// CreateStream creates a new execution stream
func (ctx *Context) CreateStream() *Stream {
	id := int(atomic.AddInt32(&ctx.streamID, 1))
	stream := &Stream{
		id:    id,
		tasks: make(chan func(), StreamQueueDepth),
		done:  make(chan struct{}),
	}

	// Start worker goroutine for stream
	go stream.worker()

	ctx.mu.Lock()
	ctx.streams[id] = stream
	ctx.mu.Unlock()
	return stream
}

// Launch executes a kernel on the default stream
func (ctx *Context) Launch(kernel Kernel, grid, block Dim3, args ...interface{}) error {
	return ctx.launchInternal(kernel.Execute, grid, block, 0, ctx.defaultStream, args...)
}

// LaunchFunc executes a kernel function on the default stream
func (ctx *Context) LaunchFunc(fn KernelFunc, grid, block Dim3, args ...interface{}) error {
	return ctx.launchInternal(fn, grid, block, 0, ctx.defaultStream, args...)
}

// LaunchShared executes a kernel on the default stream, giving every block
// its own sharedBytes of shared memory.
func (ctx *Context) LaunchShared(kernel Kernel, grid, block Dim3, sharedBytes int, args ...interface{}) error {
	return ctx.launchInternal(kernel.Execute, grid, block, sharedBytes, ctx.defaultStream, args...)
}

// LaunchStream executes a kernel on a specific stream
func (ctx *Context) LaunchStream(kernel Kernel, grid, block Dim3, sharedBytes int, stream *Stream, args ...interface{}) error {
	return ctx.launchInternal(kernel.Execute, grid, block, sharedBytes, stream, args...)
}

// Synchronize waits for all streams to complete
func (ctx *Context) Synchronize() error {
	ctx.mu.Lock()
	streams := make([]*Stream, 0, len(ctx.streams))
	for _, stream := range ctx.streams {
		streams = append(streams, stream)
	}
	ctx.mu.Unlock()

	for _, stream := range streams {
		stream.Synchronize()
	}
	return ctx.PeekAtLastError()
}

// PeekAtLastError returns the first launch failure recorded by the context
// without clearing it. Launch failures are sticky: once set, every later
// launch, copy and synchronize reports the same error.
func (ctx *Context) PeekAtLastError() error {
	ctx.errMu.Lock()
	defer ctx.errMu.Unlock()
	return ctx.lastErr
}

func (ctx *Context) recordError(err error) {
	ctx.errMu.Lock()
	defer ctx.errMu.Unlock()
	if ctx.lastErr == nil {
		ctx.lastErr = err
	}
}

// Destroy waits for outstanding work and stops every stream worker.
func (ctx *Context) Destroy() {
	ctx.Synchronize()

	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	for id, stream := range ctx.streams {
		stream.close()
		delete(ctx.streams, id)
	}
}

// Stream methods

// worker processes tasks for a stream
func (s *Stream) worker() {
	for task := range s.tasks {
		task()
		s.wg.Done()
	}
	close(s.done)
}

// Synchronize waits for all tasks in the stream to complete
func (s *Stream) Synchronize() {
	s.wg.Wait()
}

// Submit adds a task to the stream
func (s *Stream) Submit(task func()) {
	s.wg.Add(1)
	s.tasks <- task
}

func (s *Stream) close() {
	s.once.Do(func() {
		close(s.tasks)
	})
	<-s.done
}

// Helper functions

// Global returns the global thread index
func (tid ThreadID) Global() int {
	return tid.BlockIdx.X*tid.BlockDim.X + tid.ThreadIdx.X
}

// GlobalX returns the global X index
func (tid ThreadID) GlobalX() int {
	return tid.BlockIdx.X*tid.BlockDim.X + tid.ThreadIdx.X
}

// GlobalY returns the global Y index
func (tid ThreadID) GlobalY() int {
	return tid.BlockIdx.Y*tid.BlockDim.Y + tid.ThreadIdx.Y
}

// SyncThreads blocks until every thread of the block has reached it, the
// equivalent of __syncthreads(). It must be reached by all threads of the
// block the same number of times.
func (tid ThreadID) SyncThreads() {
	if tid.block == nil {
		panic(errNoBlock)
	}
	if err := tid.block.barrier.Wait(); err != nil {
		panic(errBlockAborted)
	}
}

// SharedFloat64 returns the block's shared memory as float64s. All threads
// of a block see the same slice; it is nil when the launch requested none.
func (tid ThreadID) SharedFloat64() []float64 {
	if tid.block == nil {
		return nil
	}
	return tid.block.shared
}

// Size returns the total number of elements
func (d Dim3) Size() int {
	d = d.normalize()
	return d.X * d.Y * d.Z
}

func (d Dim3) normalize() Dim3 {
	if d.Y == 0 {
		d.Y = 1
	}
	if d.Z == 0 {
		d.Z = 1
	}
	return d
}

func (d Dim3) String() string {
	return fmt.Sprintf("(%d, %d, %d)", d.X, d.Y, d.Z)
}

// Implement KernelFunc as Kernel
func (fn KernelFunc) Execute(tid ThreadID, args ...interface{}) {
	fn(tid, args...)
}
