// Package compute holds the tiled double-precision GEMM kernel, its launch
// planner and the reference multiplies it is checked against.
package compute

import (
	guda "github.com/LynnColeArt/guda-dgemm"
)

// TiledDGEMM computes C += A·B on the device, with A K×N, B N×M and C K×M,
// all row-major float64.
//
// C is an accumulator: the kernel adds the product to whatever C already
// holds and never clears it. Launching it r times adds r products.
//
// Each block computes one Tile×Tile tile of C and each of its threads one
// element. Launch it with the geometry from PlanLaunch. K, M and N must be
// multiples of Tile; there is no partial-tile handling.
type TiledDGEMM struct {
	A, B, C guda.DevicePtr
	Dims
	Tile int
}

// Execute runs one thread of the kernel.
func (k TiledDGEMM) Execute(tid guda.ThreadID, _ ...interface{}) {
	t := k.Tile
	a := k.A.Float64()
	b := k.B.Float64()
	c := k.C.Float64()

	shared := tid.SharedFloat64()
	tileA := shared[:t*t]
	tileB := shared[t*t : 2*t*t]

	tx, ty := tid.ThreadIdx.X, tid.ThreadIdx.Y
	row := tid.BlockIdx.Y*t + ty
	col := tid.BlockIdx.X*t + tx

	sum := 0.0
	for chunk := 0; chunk < k.N; chunk += t {
		tileA[ty*t+tx] = a[row*k.N+chunk+tx]
		tileB[ty*t+tx] = b[(chunk+ty)*k.M+col]

		// Both halves of the chunk are staged before anyone reads them.
		tid.SyncThreads()

		for l := 0; l < t; l++ {
			sum += tileA[ty*t+l] * tileB[l*t+tx]
		}

		// Nobody overwrites the chunk while a sibling is still reading it.
		tid.SyncThreads()
	}

	c[row*k.M+col] += sum
}

// Launcher queues kernels with per-block shared memory. *guda.Context
// implements it.
type Launcher interface {
	LaunchShared(kernel guda.Kernel, grid, block guda.Dim3, sharedBytes int, args ...interface{}) error
}

// Launch queues the kernel with the planned geometry. It returns once the
// launch is queued.
func (k TiledDGEMM) Launch(l Launcher, g LaunchGeometry) error {
	return l.LaunchShared(k, g.Grid, g.Block, g.SharedBytes)
}
