package harness

import (
	"errors"
	"fmt"
	"strings"

	"github.com/LynnColeArt/guda-dgemm/compute"
)

// Compiled-in defaults for one verification run.
const (
	DefaultSize      = 32
	DefaultTile      = 32
	DefaultSeed      = 1039
	DefaultTrials    = 10
	DefaultTolerance = 1e-7
)

// GeometryPolicy decides what happens when the sizes are not multiples of
// the tile. The warning is always printed.
type GeometryPolicy int

const (
	// GeometryFailFast stops the run with a configuration error.
	GeometryFailFast GeometryPolicy = iota
	// GeometryWarn launches anyway; the result is undefined.
	GeometryWarn
)

func (p GeometryPolicy) String() string {
	switch p {
	case GeometryFailFast:
		return "fail"
	case GeometryWarn:
		return "warn"
	default:
		return fmt.Sprintf("GeometryPolicy(%d)", int(p))
	}
}

// Set parses "fail" or "warn", so a policy can be bound to a command-line flag.
func (p *GeometryPolicy) Set(s string) error {
	switch strings.ToLower(s) {
	case "fail", "fail-fast":
		*p = GeometryFailFast
	case "warn":
		*p = GeometryWarn
	default:
		return fmt.Errorf("unknown geometry policy %q (want fail or warn)", s)
	}
	return nil
}

// Type names the flag value type.
func (p *GeometryPolicy) Type() string {
	return "policy"
}

// Config is everything a run depends on.
type Config struct {
	Dims      compute.Dims
	Tile      int
	Seed      uint64
	Trials    int
	Tolerance float64
	Geometry  GeometryPolicy
}

// DefaultConfig returns the K=M=N=32, seed 1039, 10 trial configuration.
func DefaultConfig() Config {
	return Config{
		Dims:      compute.Dims{K: DefaultSize, M: DefaultSize, N: DefaultSize},
		Tile:      DefaultTile,
		Seed:      DefaultSeed,
		Trials:    DefaultTrials,
		Tolerance: DefaultTolerance,
		Geometry:  GeometryFailFast,
	}
}

// Validate checks the values a run cannot start without. Divisibility by
// the tile is checked later, when the launch is planned.
func (c Config) Validate() error {
	var errs []error
	if err := c.Dims.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Tile <= 0 {
		errs = append(errs, fmt.Errorf("tile size must be positive, got %d", c.Tile))
	}
	if c.Trials <= 0 {
		errs = append(errs, fmt.Errorf("trial count must be positive, got %d", c.Trials))
	}
	if !(c.Tolerance > 0) {
		errs = append(errs, fmt.Errorf("tolerance must be positive, got %g", c.Tolerance))
	}
	if c.Geometry != GeometryFailFast && c.Geometry != GeometryWarn {
		errs = append(errs, fmt.Errorf("invalid geometry policy %v", c.Geometry))
	}
	if len(errs) > 0 {
		return &ConfigError{Err: errors.Join(errs...)}
	}
	return nil
}
