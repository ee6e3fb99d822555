// Package guda configuration constants
package guda

// Thread and block dimensions
const (
	// Maximum threads per block (CUDA compatibility)
	MaxThreadsPerBlock = 1024

	// Maximum shared memory a single block may request, in bytes
	MaxSharedMemoryPerBlock = 48 * 1024
)

// Memory pool parameters
const (
	// Memory alignment for allocations
	MemoryAlignment = 64

	// Default device memory budget when no limit is given
	DefaultMemoryLimit = 16 * 1024 * 1024 * 1024
)

// Stream parameters
const (
	// Launches that may be queued on a stream before Launch blocks
	StreamQueueDepth = 1000
)
