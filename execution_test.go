package guda

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaunchCoversGrid(t *testing.T) {
	ctx := NewContext(WithWorkers(3))
	defer ctx.Destroy()

	grid := Dim3{X: 4, Y: 3}
	block := Dim3{X: 8, Y: 2}
	n := grid.Size() * block.Size()
	out := MallocOrFail(t, ctx, n*8)

	kernel := KernelFunc(func(tid ThreadID, args ...interface{}) {
		data := args[0].(DevicePtr).Float64()
		blockLinear := tid.BlockIdx.Y*tid.GridDim.X + tid.BlockIdx.X
		threadLinear := tid.ThreadIdx.Y*tid.BlockDim.X + tid.ThreadIdx.X
		data[blockLinear*tid.BlockDim.Size()+threadLinear] += 1
	})

	require.NoError(t, ctx.Launch(kernel, grid, block, out))
	SynchronizeOrFail(t, ctx)

	for i, v := range DownloadFloat64OrFail(t, ctx, out, n) {
		assert.Equal(t, 1.0, v, "element %d", i)
	}
}

// Threads stage values in shared memory and read a neighbour's value after
// the barrier, which only works if the whole block runs concurrently.
func TestSharedMemoryAndSyncThreads(t *testing.T) {
	ctx := NewContext()
	defer ctx.Destroy()

	const threads = 256
	out := MallocOrFail(t, ctx, threads*8)

	kernel := KernelFunc(func(tid ThreadID, args ...interface{}) {
		shared := tid.SharedFloat64()
		i := tid.ThreadIdx.X
		for round := 0; round < 4; round++ {
			shared[i] = float64(i * (round + 1))
			tid.SyncThreads()
			neighbour := shared[(i+1)%threads]
			tid.SyncThreads()
			if round == 3 {
				out.Float64()[i] = neighbour
			}
		}
	})

	require.NoError(t, ctx.LaunchShared(kernel, Dim3{X: 1}, Dim3{X: threads}, threads*8))
	SynchronizeOrFail(t, ctx)

	got := DownloadFloat64OrFail(t, ctx, out, threads)
	for i := range got {
		assert.Equal(t, float64(((i+1)%threads)*4), got[i])
	}
}

func TestSharedMemoryIsPerBlock(t *testing.T) {
	ctx := NewContext()
	defer ctx.Destroy()

	const blocks = 8
	out := MallocOrFail(t, ctx, blocks*8)

	kernel := KernelFunc(func(tid ThreadID, args ...interface{}) {
		shared := tid.SharedFloat64()
		if tid.ThreadIdx.X == 0 {
			shared[0] = float64(tid.BlockIdx.X)
		}
		tid.SyncThreads()
		if tid.ThreadIdx.X == 1 {
			out.Float64()[tid.BlockIdx.X] = shared[0]
		}
	})

	require.NoError(t, ctx.LaunchShared(kernel, Dim3{X: blocks}, Dim3{X: 32}, 8))
	SynchronizeOrFail(t, ctx)

	for i, v := range DownloadFloat64OrFail(t, ctx, out, blocks) {
		assert.Equal(t, float64(i), v)
	}
}

func TestLaunchesRunInIssueOrder(t *testing.T) {
	ctx := NewContext()
	defer ctx.Destroy()

	out := MallocOrFail(t, ctx, 8)
	for i := 0; i < 20; i++ {
		step := float64(i)
		kernel := KernelFunc(func(tid ThreadID, _ ...interface{}) {
			v := out.Float64()
			v[0] = v[0]*2 + step
		})
		require.NoError(t, ctx.Launch(kernel, Dim3{X: 1}, Dim3{X: 1}))
	}
	SynchronizeOrFail(t, ctx)

	want := 0.0
	for i := 0; i < 20; i++ {
		want = want*2 + float64(i)
	}
	assert.Equal(t, want, DownloadFloat64OrFail(t, ctx, out, 1)[0])
}

func TestLaunchIsAsynchronous(t *testing.T) {
	ctx := NewContext()
	defer ctx.Destroy()

	release := make(chan struct{})
	var ran atomic.Bool
	kernel := KernelFunc(func(tid ThreadID, _ ...interface{}) {
		<-release
		ran.Store(true)
	})

	require.NoError(t, ctx.Launch(kernel, Dim3{X: 1}, Dim3{X: 1}))
	assert.False(t, ran.Load(), "Launch must not wait for the kernel")

	close(release)
	SynchronizeOrFail(t, ctx)
	assert.True(t, ran.Load())
}

func TestLaunchValidation(t *testing.T) {
	ctx := NewContext()
	defer ctx.Destroy()

	noop := KernelFunc(func(ThreadID, ...interface{}) {})
	tests := []struct {
		name   string
		grid   Dim3
		block  Dim3
		shared int
	}{
		{"too many threads", Dim3{X: 1}, Dim3{X: 64, Y: 32}, 0},
		{"empty block", Dim3{X: 1}, Dim3{}, 0},
		{"negative grid", Dim3{X: -1}, Dim3{X: 1}, 0},
		{"too much shared memory", Dim3{X: 1}, Dim3{X: 1}, MaxSharedMemoryPerBlock + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ctx.LaunchShared(noop, tt.grid, tt.block, tt.shared)
			assert.Equal(t, StatusInvalidConfiguration, StatusOf(err))
		})
	}

	// an empty grid is a valid no-op
	require.NoError(t, ctx.Launch(noop, Dim3{}, Dim3{X: 1}))
	SynchronizeOrFail(t, ctx)
}

func TestKernelFaultIsSticky(t *testing.T) {
	ctx := NewContext()
	defer ctx.Destroy()

	small := MallocOrFail(t, ctx, 4*8)

	// thread 7 indexes past the buffer while its siblings wait on the barrier
	kernel := KernelFunc(func(tid ThreadID, _ ...interface{}) {
		data := small.Float64()
		if tid.ThreadIdx.X == 7 {
			data[tid.ThreadIdx.X] = 1
		}
		tid.SyncThreads()
	})

	require.NoError(t, ctx.Launch(kernel, Dim3{X: 2}, Dim3{X: 8}))

	done := make(chan error, 1)
	go func() { done <- ctx.Synchronize() }()

	var err error
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("faulted block deadlocked")
	}

	require.Error(t, err)
	assert.Equal(t, StatusLaunchFailure, StatusOf(err))
	assert.True(t, IsExecutionError(err))

	assert.Equal(t, err, ctx.PeekAtLastError())
	assert.Equal(t, StatusLaunchFailure, StatusOf(ctx.Launch(kernel, Dim3{X: 1}, Dim3{X: 1})))
	assert.Equal(t, StatusLaunchFailure, StatusOf(ctx.Memcpy(make([]float64, 4), small, 32, MemcpyDeviceToHost)))
}

func TestSyncThreadsOutsideLaunch(t *testing.T) {
	assert.PanicsWithValue(t, errNoBlock, func() {
		ThreadID{}.SyncThreads()
	})
	assert.Nil(t, ThreadID{}.SharedFloat64())
}

func TestLaunchOnSecondStream(t *testing.T) {
	ctx := NewContext()
	defer ctx.Destroy()

	out := MallocOrFail(t, ctx, 2*8)
	stream := ctx.CreateStream()

	setter := func(i int, v float64) KernelFunc {
		return func(tid ThreadID, _ ...interface{}) { out.Float64()[i] = v }
	}

	require.NoError(t, ctx.LaunchFunc(setter(0, 3), Dim3{X: 1}, Dim3{X: 1}))
	require.NoError(t, ctx.LaunchStream(setter(1, 4), Dim3{X: 1}, Dim3{X: 1}, 0, stream))
	SynchronizeOrFail(t, ctx)

	assert.Equal(t, []float64{3, 4}, DownloadFloat64OrFail(t, ctx, out, 2))
}

func TestDefaultContextFunctions(t *testing.T) {
	host := []float64{1, 2, 3, 4}
	d, err := Malloc(len(host) * 8)
	require.NoError(t, err)
	defer Free(d)

	require.NoError(t, Memcpy(d, host, len(host)*8, MemcpyHostToDevice))

	double := KernelFunc(func(tid ThreadID, _ ...interface{}) {
		v := d.Float64()
		v[tid.Global()] *= 2
	})
	require.NoError(t, LaunchShared(double, Dim3{X: 1}, Dim3{X: len(host)}, 0))
	require.NoError(t, Synchronize())
	require.NoError(t, PeekAtLastError())

	got := make([]float64, len(host))
	require.NoError(t, Memcpy(got, d, len(got)*8, MemcpyDeviceToHost))
	assert.Equal(t, []float64{2, 4, 6, 8}, got)
}
