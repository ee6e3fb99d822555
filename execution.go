package guda

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

var (
	// errBlockAborted unwinds threads waiting on a barrier whose block has
	// already faulted. It is never reported.
	errBlockAborted = errors.New("block aborted")

	errNoBlock = errors.New("SyncThreads called outside a kernel launch")
)

// blockState is what the threads of one block share.
type blockState struct {
	barrier *Barrier
	shared  []float64
}

// launchInternal validates the launch and queues it on the stream. It
// returns as soon as the launch is queued; faults inside the kernel are
// recorded on the context and surface from Synchronize.
func (ctx *Context) launchInternal(
	kernelFunc func(ThreadID, ...interface{}),
	grid, block Dim3,
	sharedBytes int,
	stream *Stream,
	args ...interface{},
) error {
	if err := ctx.PeekAtLastError(); err != nil {
		return err
	}
	if err := ctx.validateLaunch(grid, block, sharedBytes); err != nil {
		return err
	}

	grid = grid.normalize()
	block = block.normalize()
	gridSize := grid.Size()

	// Handle edge case where grid size is zero
	if gridSize == 0 {
		// Submit an empty task to maintain stream ordering
		stream.Submit(func() {})
		return nil
	}

	numWorkers := ctx.workers
	if gridSize < numWorkers {
		numWorkers = gridSize
	}

	stream.Submit(func() {
		var g errgroup.Group
		g.SetLimit(numWorkers)

		// Blocks are independent; no ordering between them is implied.
		for blockID := 0; blockID < gridSize; blockID++ {
			blockIdx := linearTo3D(blockID, grid)
			g.Go(func() error {
				return runBlock(kernelFunc, blockIdx, grid, block, sharedBytes, args)
			})
		}

		if err := g.Wait(); err != nil {
			ctx.recordError(err)
		}
	})

	return nil
}

func (ctx *Context) validateLaunch(grid, block Dim3, sharedBytes int) error {
	if grid.X < 0 || grid.Y < 0 || grid.Z < 0 {
		return NewConfigurationError("Launch", fmt.Sprintf("invalid grid dimensions %v", grid))
	}
	if block.X <= 0 || block.Y < 0 || block.Z < 0 {
		return NewConfigurationError("Launch", fmt.Sprintf("invalid block dimensions %v", block))
	}
	if n := block.Size(); n > ctx.device.MaxThreadsPerBlock {
		return NewConfigurationError("Launch",
			fmt.Sprintf("%d threads per block exceeds limit of %d", n, ctx.device.MaxThreadsPerBlock))
	}
	if sharedBytes < 0 || sharedBytes > ctx.device.SharedMemPerBlock {
		return NewConfigurationError("Launch",
			fmt.Sprintf("%d bytes of shared memory exceeds limit of %d", sharedBytes, ctx.device.SharedMemPerBlock))
	}
	return nil
}

// runBlock executes every thread of one block concurrently. Threads share
// the block's memory and barrier; a panicking thread breaks the barrier so
// its siblings unwind, and the first fault is returned.
func runBlock(
	kernelFunc func(ThreadID, ...interface{}),
	blockIdx, grid, block Dim3,
	sharedBytes int,
	args []interface{},
) error {
	blockSize := block.Size()
	state := &blockState{barrier: NewBarrier(blockSize)}
	if sharedBytes > 0 {
		state.shared = make([]float64, (sharedBytes+7)/8)
	}

	var (
		wg    sync.WaitGroup
		once  sync.Once
		fault error
	)
	wg.Add(blockSize)

	for threadID := 0; threadID < blockSize; threadID++ {
		tid := ThreadID{
			BlockIdx:  blockIdx,
			ThreadIdx: linearTo3D(threadID, block),
			BlockDim:  block,
			GridDim:   grid,
			block:     state,
		}

		go func() {
			defer wg.Done()
			defer func() {
				r := recover()
				if r == nil || r == errBlockAborted {
					return
				}
				once.Do(func() {
					fault = NewExecutionError("Kernel",
						fmt.Sprintf("thread %v of block %v faulted", tid.ThreadIdx, tid.BlockIdx),
						fmt.Errorf("%v", r))
				})
				state.barrier.Break()
			}()

			kernelFunc(tid, args...)
		}()
	}

	wg.Wait()
	return fault
}

// linearTo3D converts a linear index to 3D coordinates
func linearTo3D(linear int, dim Dim3) Dim3 {
	z := linear / (dim.X * dim.Y)
	y := (linear % (dim.X * dim.Y)) / dim.X
	x := linear % dim.X
	return Dim3{X: x, Y: y, Z: z}
}
