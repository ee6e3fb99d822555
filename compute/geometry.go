package compute

import (
	"fmt"

	guda "github.com/LynnColeArt/guda-dgemm"
)

// Dims holds the sizes of C = A·B with A K×N, B N×M and C K×M.
type Dims struct {
	K, M, N int
}

func (d Dims) String() string {
	return fmt.Sprintf("K=%d M=%d N=%d", d.K, d.M, d.N)
}

// Validate rejects non-positive sizes.
func (d Dims) Validate() error {
	if d.K <= 0 || d.M <= 0 || d.N <= 0 {
		return guda.NewInvalidArgError("Dims", fmt.Sprintf("dimensions must be positive, got %v", d))
	}
	return nil
}

// MisalignedError reports dimensions that are not multiples of the tile.
// The tiled kernel has no partial-tile path, so such a launch reads and
// writes past the matrices.
type MisalignedError struct {
	Dims Dims
	Tile int
}

func (e *MisalignedError) Error() string {
	return fmt.Sprintf("All dimensions should be a multiple of %d.", e.Tile)
}

// CheckTileMultiple returns a *MisalignedError unless K, M and N are all
// exact multiples of tile.
func (d Dims) CheckTileMultiple(tile int) error {
	if d.K%tile != 0 || d.M%tile != 0 || d.N%tile != 0 {
		return &MisalignedError{Dims: d, Tile: tile}
	}
	return nil
}

// LaunchGeometry is the grid and block shape of one tiled launch.
type LaunchGeometry struct {
	Grid        guda.Dim3
	Block       guda.Dim3
	SharedBytes int
}

// SharedBytesForTile is the shared memory one block stages: a T×T block of
// A and a T×T block of B.
func SharedBytesForTile(tile int) int {
	return 2 * tile * tile * 8
}

// PlanLaunch derives the launch geometry for the tiled kernel: one T×T
// block per output tile and a grid of ⌈M/T⌉×⌈K/T⌉ blocks. It validates the
// tile against the device limits but not divisibility; see
// Dims.CheckTileMultiple.
func PlanLaunch(d Dims, tile int) (LaunchGeometry, error) {
	if tile <= 0 {
		return LaunchGeometry{}, guda.NewInvalidArgError("PlanLaunch", fmt.Sprintf("tile size must be positive, got %d", tile))
	}
	if tile*tile > guda.MaxThreadsPerBlock {
		return LaunchGeometry{}, guda.NewConfigurationError("PlanLaunch",
			fmt.Sprintf("tile %d needs %d threads per block, limit is %d", tile, tile*tile, guda.MaxThreadsPerBlock))
	}
	if shared := SharedBytesForTile(tile); shared > guda.MaxSharedMemoryPerBlock {
		return LaunchGeometry{}, guda.NewConfigurationError("PlanLaunch",
			fmt.Sprintf("tile %d needs %d bytes of shared memory, limit is %d", tile, shared, guda.MaxSharedMemoryPerBlock))
	}
	if err := d.Validate(); err != nil {
		return LaunchGeometry{}, err
	}

	return LaunchGeometry{
		Grid: guda.Dim3{
			X: ceilDiv(d.M, tile),
			Y: ceilDiv(d.K, tile),
			Z: 1,
		},
		Block:       guda.Dim3{X: tile, Y: tile, Z: 1},
		SharedBytes: SharedBytesForTile(tile),
	}, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
