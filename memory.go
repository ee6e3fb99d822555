package guda

import (
	"fmt"
	"sync"
	"unsafe"
)

// MemcpyKind specifies the direction of memory transfer.
// In GUDA's unified memory model every direction is a plain copy, but the
// direction is still checked against the argument types.
type MemcpyKind int

const (
	MemcpyHostToHost     MemcpyKind = iota // Host to host transfer
	MemcpyHostToDevice                     // Host to device transfer
	MemcpyDeviceToHost                     // Device to host transfer
	MemcpyDeviceToDevice                   // Device to device transfer
	MemcpyDefault                          // Default transfer (infer direction)
)

func (k MemcpyKind) String() string {
	switch k {
	case MemcpyHostToHost:
		return "HostToHost"
	case MemcpyHostToDevice:
		return "HostToDevice"
	case MemcpyDeviceToHost:
		return "DeviceToHost"
	case MemcpyDeviceToDevice:
		return "DeviceToDevice"
	case MemcpyDefault:
		return "Default"
	default:
		return fmt.Sprintf("MemcpyKind(%d)", int(k))
	}
}

// MemoryPool manages device memory allocation with efficient reuse.
// It maintains a free list of previously allocated blocks to reduce
// allocation overhead, and refuses allocations past its limit.
type MemoryPool struct {
	mu         sync.Mutex
	allocated  map[uintptr]*allocation
	freeList   []*allocation
	totalAlloc int64
	peakAlloc  int64
	limit      int64
}

type allocation struct {
	buf  []uint64 // keeps the backing array alive and 8-byte aligned
	ptr  unsafe.Pointer
	size int
	used bool
}

// NewMemoryPool creates a memory pool that serves at most limit bytes at a
// time. A limit of zero or less disables the check.
func NewMemoryPool(limit int64) *MemoryPool {
	return &MemoryPool{
		allocated: make(map[uintptr]*allocation),
		limit:     limit,
	}
}

// Malloc allocates device memory of the specified size in bytes.
//
// Example:
//
//	ptr, err := ctx.Malloc(1024 * 8) // Allocate 1024 float64s
//	if err != nil {
//	    return err
//	}
//	defer ctx.Free(ptr)
func (ctx *Context) Malloc(size int) (DevicePtr, error) {
	return ctx.memory.Allocate(size)
}

// Free releases device memory allocated by Malloc.
// It is safe to call Free with a zero DevicePtr.
// The memory may be retained in the pool for future allocations.
func (ctx *Context) Free(ptr DevicePtr) error {
	if ptr.ptr == nil {
		return nil
	}
	return ctx.memory.Free(ptr)
}

// MemoryStats returns the bytes currently allocated and the peak.
func (ctx *Context) MemoryStats() (allocated, peak int64) {
	return ctx.memory.GetStats()
}

// Memcpy copies memory between host and device. It waits for queued work
// on the context first, as a blocking copy on the default stream does, so
// a copy back to the host observes every earlier launch.
//
// Parameters:
//   - dst: Destination (DevicePtr or Go slice)
//   - src: Source (DevicePtr or Go slice)
//   - size: Number of bytes to copy
//   - kind: Transfer direction, checked against dst and src
//
// Example:
//
//	h_data := make([]float64, 1024)
//	d_data, _ := ctx.Malloc(1024 * 8)
//	ctx.Memcpy(d_data, h_data, 1024*8, guda.MemcpyHostToDevice)
func (ctx *Context) Memcpy(dst, src interface{}, size int, kind MemcpyKind) error {
	if err := ctx.Synchronize(); err != nil {
		return err
	}
	if size < 0 {
		return NewInvalidArgError("Memcpy", fmt.Sprintf("negative size %d", size))
	}

	dstPtr, dstLen, dstDev, err := resolveBuffer("dst", dst)
	if err != nil {
		return err
	}
	srcPtr, srcLen, srcDev, err := resolveBuffer("src", src)
	if err != nil {
		return err
	}

	if err := checkDirection(kind, dstDev, srcDev); err != nil {
		return err
	}

	if size > dstLen || size > srcLen {
		return NewInvalidArgError("Memcpy",
			fmt.Sprintf("copy of %d bytes exceeds buffer (dst %d, src %d)", size, dstLen, srcLen))
	}

	// Perform the copy
	if size > 0 {
		copy(unsafe.Slice((*byte)(dstPtr), size), unsafe.Slice((*byte)(srcPtr), size))
	}

	return nil
}

// resolveBuffer returns the base address and byte length of a copy operand,
// and whether it lives on the device.
func resolveBuffer(role string, v interface{}) (unsafe.Pointer, int, bool, error) {
	switch b := v.(type) {
	case DevicePtr:
		if b.ptr == nil {
			return nil, 0, true, ErrNullPointer
		}
		return b.ptr, b.size, true, nil
	case []byte:
		return sliceBase(b), len(b), false, nil
	case []float32:
		return sliceBase(b), len(b) * 4, false, nil
	case []float64:
		return sliceBase(b), len(b) * 8, false, nil
	case []int32:
		return sliceBase(b), len(b) * 4, false, nil
	default:
		return nil, 0, false, NewInvalidArgError("Memcpy", fmt.Sprintf("unsupported %s type: %T", role, v))
	}
}

func sliceBase[T any](s []T) unsafe.Pointer {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Pointer(&s[0])
}

func checkDirection(kind MemcpyKind, dstDev, srcDev bool) error {
	var ok bool
	switch kind {
	case MemcpyHostToHost:
		ok = !dstDev && !srcDev
	case MemcpyHostToDevice:
		ok = dstDev && !srcDev
	case MemcpyDeviceToHost:
		ok = !dstDev && srcDev
	case MemcpyDeviceToDevice:
		ok = dstDev && srcDev
	case MemcpyDefault:
		ok = true
	}
	if !ok {
		return NewDeviceError("Memcpy", StatusInvalidMemcpyDirection,
			fmt.Sprintf("%v does not match operands (dst on device: %t, src on device: %t)", kind, dstDev, srcDev))
	}
	return nil
}

// MemoryPool methods

// Allocate allocates memory from the pool
func (mp *MemoryPool) Allocate(size int) (DevicePtr, error) {
	if size <= 0 {
		return DevicePtr{}, ErrInvalidSize
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	// Round up to alignment
	alignedSize := (size + MemoryAlignment - 1) &^ (MemoryAlignment - 1)

	// Try to reuse from free list
	for i, alloc := range mp.freeList {
		if alloc.size >= alignedSize {
			if err := mp.reserve(alloc.size); err != nil {
				return DevicePtr{}, err
			}
			// Remove from free list
			mp.freeList = append(mp.freeList[:i], mp.freeList[i+1:]...)
			alloc.used = true

			return DevicePtr{
				ptr:  alloc.ptr,
				size: size,
			}, nil
		}
	}

	if err := mp.reserve(alignedSize); err != nil {
		return DevicePtr{}, err
	}

	buf := make([]uint64, alignedSize/8)
	alloc := &allocation{
		buf:  buf,
		ptr:  unsafe.Pointer(&buf[0]),
		size: alignedSize,
		used: true,
	}
	mp.allocated[uintptr(alloc.ptr)] = alloc

	return DevicePtr{
		ptr:  alloc.ptr,
		size: size,
	}, nil
}

// reserve accounts for n more bytes. mp.mu must be held.
func (mp *MemoryPool) reserve(n int) error {
	if mp.limit > 0 && mp.totalAlloc+int64(n) > mp.limit {
		return NewMemoryError("Malloc",
			fmt.Sprintf("out of memory: %d bytes requested, %d of %d in use", n, mp.totalAlloc, mp.limit), nil)
	}
	mp.totalAlloc += int64(n)
	if mp.totalAlloc > mp.peakAlloc {
		mp.peakAlloc = mp.totalAlloc
	}
	return nil
}

// Free returns memory to the pool
func (mp *MemoryPool) Free(ptr DevicePtr) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	alloc, ok := mp.allocated[uintptr(ptr.ptr)]
	if !ok {
		return NewDeviceError("Free", StatusInvalidDevicePointer, "pointer not found in allocation pool")
	}

	if !alloc.used {
		return ErrDoubleFree
	}

	// Mark as free and add to free list
	alloc.used = false
	mp.freeList = append(mp.freeList, alloc)
	mp.totalAlloc -= int64(alloc.size)

	return nil
}

// GetStats returns memory pool statistics
func (mp *MemoryPool) GetStats() (allocated, peak int64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.totalAlloc, mp.peakAlloc
}

// DevicePtr methods for convenience

// Float64 returns a float64 view of the device memory. Kernels index it
// directly; an index past the allocation panics inside the kernel and is
// reported as a launch failure.
//
// Example:
//
//	d_data, _ := guda.Malloc(1024 * 8) // Allocate for 1024 float64s
//	data := d_data.Float64()
//	data[0] = 3.14159 // Direct access
func (d DevicePtr) Float64() []float64 {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*float64)(d.ptr), d.size/8)
}

// Float32 returns a float32 view of the device memory.
func (d DevicePtr) Float32() []float32 {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*float32)(d.ptr), d.size/4)
}

// Byte returns a byte view of the device memory.
func (d DevicePtr) Byte() []byte {
	if d.ptr == nil {
		return nil
	}
	return unsafe.Slice((*byte)(d.ptr), d.size)
}

// Offset returns a new DevicePtr offset by the given number of bytes.
// The returned DevicePtr shares the same underlying memory.
func (d DevicePtr) Offset(bytes int) DevicePtr {
	return DevicePtr{
		ptr:    unsafe.Add(d.ptr, bytes),
		size:   d.size - bytes,
		offset: d.offset + bytes,
	}
}

// Size returns the size in bytes of the memory region
func (d DevicePtr) Size() int {
	return d.size
}

// IsNil reports whether d points at no memory.
func (d DevicePtr) IsNil() bool {
	return d.ptr == nil
}
