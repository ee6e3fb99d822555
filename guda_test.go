package guda

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test basic memory allocation and deallocation
func TestMemoryAllocation(t *testing.T) {
	ctx := NewContext()
	defer ctx.Destroy()

	sizes := []int{100, 1000, 10000, 1000000}

	for _, size := range sizes {
		ptr, err := ctx.Malloc(size * 8)
		require.NoError(t, err, "allocate %d bytes", size*8)

		slice := ptr.Float64()
		require.Len(t, slice, size)

		// Write and read test
		for i := 0; i < min(100, size); i++ {
			slice[i] = float64(i)
		}
		for i := 0; i < min(100, size); i++ {
			assert.Equal(t, float64(i), slice[i], "memory corruption at index %d", i)
		}

		require.NoError(t, ctx.Free(ptr))
	}
}

func TestMemoryPoolReuse(t *testing.T) {
	pool := NewMemoryPool(0)

	first, err := pool.Allocate(1000)
	require.NoError(t, err)
	require.NoError(t, pool.Free(first))

	second, err := pool.Allocate(900)
	require.NoError(t, err)
	assert.Equal(t, first.ptr, second.ptr, "freed block should be reused")
	assert.Equal(t, 900, second.Size())

	allocated, peak := pool.GetStats()
	assert.Equal(t, int64(1024), allocated)
	assert.Equal(t, int64(1024), peak)
}

func TestMemoryPoolErrors(t *testing.T) {
	pool := NewMemoryPool(4096)

	_, err := pool.Allocate(0)
	assert.Equal(t, StatusInvalidValue, StatusOf(err))

	_, err = pool.Allocate(8192)
	assert.Equal(t, StatusMemoryAllocation, StatusOf(err))
	assert.True(t, IsMemoryError(err))

	p, err := pool.Allocate(64)
	require.NoError(t, err)
	require.NoError(t, pool.Free(p))
	assert.ErrorIs(t, pool.Free(p), ErrDoubleFree)

	err = pool.Free(p.Offset(8))
	assert.Equal(t, StatusInvalidDevicePointer, StatusOf(err))
}

func TestWithMemoryLimit(t *testing.T) {
	ctx := NewContext(WithMemoryLimit(1 << 10))
	defer ctx.Destroy()

	assert.Equal(t, uint64(1<<10), ctx.Device().TotalMem)

	a, err := ctx.Malloc(512)
	require.NoError(t, err)
	_, err = ctx.Malloc(1024)
	assert.Equal(t, StatusMemoryAllocation, StatusOf(err))
	require.NoError(t, ctx.Free(a))
	_, err = ctx.Malloc(1024)
	assert.NoError(t, err)

	allocated, peak := ctx.MemoryStats()
	assert.Equal(t, int64(1024), allocated)
	assert.Equal(t, int64(1024), peak)
}

// Test memory copy operations
func TestMemcpy(t *testing.T) {
	ctx := NewContext()
	defer ctx.Destroy()

	const N = 1000

	src := make([]float64, N)
	dst := make([]float64, N)
	for i := range src {
		src[i] = rand.Float64()
	}

	d_src := MallocOrFail(t, ctx, N*8)
	d_dst := MallocOrFail(t, ctx, N*8)

	require.NoError(t, ctx.Memcpy(d_src, src, N*8, MemcpyHostToDevice))
	require.NoError(t, ctx.Memcpy(d_dst, d_src, N*8, MemcpyDeviceToDevice))
	require.NoError(t, ctx.Memcpy(dst, d_dst, N*8, MemcpyDeviceToHost))

	assert.Equal(t, src, dst)
}

func TestMemcpyErrors(t *testing.T) {
	ctx := NewContext()
	defer ctx.Destroy()

	dev := MallocOrFail(t, ctx, 16*8)
	host := make([]float64, 16)

	tests := []struct {
		name   string
		dst    interface{}
		src    interface{}
		size   int
		kind   MemcpyKind
		status Status
	}{
		{"wrong direction", dev, host, 16 * 8, MemcpyDeviceToHost, StatusInvalidMemcpyDirection},
		{"host to host with device", dev, host, 16 * 8, MemcpyHostToHost, StatusInvalidMemcpyDirection},
		{"too large", dev, host, 17 * 8, MemcpyHostToDevice, StatusInvalidValue},
		{"negative size", dev, host, -1, MemcpyHostToDevice, StatusInvalidValue},
		{"null device pointer", DevicePtr{}, host, 8, MemcpyHostToDevice, StatusInvalidDevicePointer},
		{"unsupported type", dev, []string{"x"}, 8, MemcpyHostToDevice, StatusInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ctx.Memcpy(tt.dst, tt.src, tt.size, tt.kind)
			require.Error(t, err)
			assert.Equal(t, tt.status, StatusOf(err))
		})
	}

	assert.NoError(t, ctx.Memcpy(dev, host, 16*8, MemcpyDefault))
}

func TestDeviceQueries(t *testing.T) {
	assert.Equal(t, 1, GetDeviceCount())
	assert.NoError(t, SetDevice(0))
	assert.Equal(t, StatusInvalidDevice, StatusOf(SetDevice(1)))

	dev, err := GetDeviceProperties(0)
	require.NoError(t, err)
	assert.Equal(t, MaxThreadsPerBlock, dev.MaxThreadsPerBlock)
	assert.Contains(t, dev.Name, "CPU")
	assert.Contains(t, dev.Name, GetCPUInfo())

	_, err = GetDeviceProperties(3)
	assert.Equal(t, StatusInvalidDevice, StatusOf(err))
}

func TestDim3(t *testing.T) {
	assert.Equal(t, 8, Dim3{X: 8}.Size())
	assert.Equal(t, 24, Dim3{X: 2, Y: 3, Z: 4}.Size())
	assert.Equal(t, 0, Dim3{}.Size())
	assert.Equal(t, Dim3{X: 2, Y: 1, Z: 0}, linearTo3D(5, Dim3{X: 3, Y: 2, Z: 1}))
}
