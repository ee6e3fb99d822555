package guda

import (
	"testing"
)

// MallocOrFail allocates device memory and fails the test if unsuccessful
func MallocOrFail(t testing.TB, ctx *Context, size int) DevicePtr {
	t.Helper()
	ptr, err := ctx.Malloc(size)
	if err != nil {
		t.Fatalf("Failed to allocate %d bytes: %v", size, err)
	}
	t.Cleanup(func() { ctx.Free(ptr) })
	return ptr
}

// UploadFloat64OrFail allocates device memory for host and copies it over
func UploadFloat64OrFail(t testing.TB, ctx *Context, host []float64) DevicePtr {
	t.Helper()
	ptr := MallocOrFail(t, ctx, len(host)*8)
	if err := ctx.Memcpy(ptr, host, len(host)*8, MemcpyHostToDevice); err != nil {
		t.Fatalf("Memcpy failed: %v", err)
	}
	return ptr
}

// DownloadFloat64OrFail copies n float64s from the device into a new slice
func DownloadFloat64OrFail(t testing.TB, ctx *Context, ptr DevicePtr, n int) []float64 {
	t.Helper()
	host := make([]float64, n)
	if err := ctx.Memcpy(host, ptr, n*8, MemcpyDeviceToHost); err != nil {
		t.Fatalf("Memcpy failed: %v", err)
	}
	return host
}

// SynchronizeOrFail synchronizes and fails the test if unsuccessful
func SynchronizeOrFail(t testing.TB, ctx *Context) {
	t.Helper()
	if err := ctx.Synchronize(); err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}
}
