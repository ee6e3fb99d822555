// Package harness drives the tiled DGEMM kernel end to end: it generates
// seeded inputs, runs the reference and the kernel the same number of
// times into identical accumulators, times the kernel batch, and compares
// the two results under a mean relative tolerance.
package harness

import (
	"errors"
	"fmt"
	"io"
	"time"

	guda "github.com/LynnColeArt/guda-dgemm"
	"github.com/LynnColeArt/guda-dgemm/compute"
)

// Device is the transfer and launch surface a run needs. *guda.Context
// implements it.
type Device interface {
	Malloc(size int) (guda.DevicePtr, error)
	Free(ptr guda.DevicePtr) error
	Memcpy(dst, src interface{}, size int, kind guda.MemcpyKind) error
	LaunchShared(kernel guda.Kernel, grid, block guda.Dim3, sharedBytes int, args ...interface{}) error
	Synchronize() error
	PeekAtLastError() error
}

// Stage is a step of a run, in the order they execute.
type Stage int

const (
	StageAllocate Stage = iota
	StageGenerate
	StageTransferIn
	StageOracle
	StagePlan
	StageKernel
	StageTransferOut
	StageCompare
	StageReport
)

var stageNames = [...]string{
	StageAllocate:    "allocate",
	StageGenerate:    "generate",
	StageTransferIn:  "transfer-in",
	StageOracle:      "oracle",
	StagePlan:        "plan",
	StageKernel:      "kernel",
	StageTransferOut: "transfer-out",
	StageCompare:     "compare",
	StageReport:      "report",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Report is the outcome of a run that reached the comparison.
type Report struct {
	Config   Config
	Geometry compute.LaunchGeometry
	Diff     float64
	Passed   bool
	Elapsed  time.Duration // whole kernel batch, launch to synchronize
	C        []float64     // device result
	CRef     []float64     // reference result
}

// AvgLatency is the elapsed time per trial.
func (r *Report) AvgLatency() time.Duration {
	if r.Config.Trials == 0 {
		return 0
	}
	return r.Elapsed / time.Duration(r.Config.Trials)
}

// AvgLatencyMicros is AvgLatency in fractional microseconds.
func (r *Report) AvgLatencyMicros() float64 {
	if r.Config.Trials == 0 {
		return 0
	}
	return r.Elapsed.Seconds() * 1e6 / float64(r.Config.Trials)
}

// Harness runs verification passes on one device.
type Harness struct {
	dev Device
	out io.Writer
	now func() time.Time
}

// New returns a harness that reports to out.
func New(dev Device, out io.Writer) *Harness {
	return &Harness{dev: dev, out: out, now: time.Now}
}

// Run performs one verification pass. Any device failure stops the run at
// once and is returned wrapped in a *StageError around a *guda.LocatedError.
// A result outside the tolerance returns the report together with a
// *VerificationError, after dumping both matrices.
func (h *Harness) Run(cfg Config) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := cfg.Dims
	sizeA, sizeB, sizeC := d.K*d.N*8, d.N*d.M*8, d.K*d.M*8

	// Allocate
	var bufs [3]guda.DevicePtr
	defer func() {
		for _, p := range bufs {
			if !p.IsNil() {
				h.dev.Free(p)
			}
		}
	}()
	for i, size := range [3]int{sizeA, sizeB, sizeC} {
		p, err := h.dev.Malloc(size)
		if err := guda.Check(err); err != nil {
			return nil, &StageError{Stage: StageAllocate, Err: err}
		}
		bufs[i] = p
	}
	aD, bD, cD := bufs[0], bufs[1], bufs[2]

	// Seed/Generate
	in := GenerateInputs(cfg)

	// Transfer-In
	for _, t := range []struct {
		dst guda.DevicePtr
		src []float64
	}{{aD, in.A}, {bD, in.B}, {cD, in.C}} {
		if err := guda.Check(h.dev.Memcpy(t.dst, t.src, len(t.src)*8, guda.MemcpyHostToDevice)); err != nil {
			return nil, &StageError{Stage: StageTransferIn, Err: err}
		}
	}

	// Oracle, accumulating into CTest once per trial like the kernel does
	for i := 0; i < cfg.Trials; i++ {
		if err := compute.ReferenceDGEMM(in.A, in.B, in.CTest, d, 1, 1); err != nil {
			return nil, &StageError{Stage: StageOracle, Err: err}
		}
	}

	// Plan
	geom, err := compute.PlanLaunch(d, cfg.Tile)
	if err != nil {
		return nil, &StageError{Stage: StagePlan, Err: &ConfigError{Err: err}}
	}
	if err := d.CheckTileMultiple(cfg.Tile); err != nil {
		fmt.Fprintln(h.out, err)
		if cfg.Geometry == GeometryFailFast {
			return nil, &StageError{Stage: StagePlan, Err: &ConfigError{Err: err}}
		}
	}

	// Kernel: queue every trial, then synchronize once
	kernel := compute.TiledDGEMM{A: aD, B: bD, C: cD, Dims: d, Tile: cfg.Tile}
	start := h.now()
	for i := 0; i < cfg.Trials; i++ {
		if err := guda.Check(kernel.Launch(h.dev, geom)); err != nil {
			return nil, &StageError{Stage: StageKernel, Err: err}
		}
	}
	if err := guda.Check(h.dev.Synchronize()); err != nil {
		return nil, &StageError{Stage: StageKernel, Err: err}
	}
	elapsed := h.now().Sub(start)
	if err := guda.Check(h.dev.PeekAtLastError()); err != nil {
		return nil, &StageError{Stage: StageKernel, Err: err}
	}

	// Transfer-Out
	if err := guda.Check(h.dev.Memcpy(in.C, cD, sizeC, guda.MemcpyDeviceToHost)); err != nil {
		return nil, &StageError{Stage: StageTransferOut, Err: err}
	}

	// Compare
	diff, ok := Within(in.CTest, in.C, cfg.Tolerance)
	rep := &Report{
		Config:   cfg,
		Geometry: geom,
		Diff:     diff,
		Passed:   ok,
		Elapsed:  elapsed,
		C:        in.C,
		CRef:     in.CTest,
	}

	// Report
	if !ok {
		fmt.Fprintln(h.out, "Failed! ")
		fmt.Fprintln(h.out, "C ")
		PrintMatrix(h.out, rep.C, d.K, d.M)
		fmt.Fprintln(h.out, "C ref.")
		PrintMatrix(h.out, rep.CRef, d.K, d.M)
		return rep, &VerificationError{Diff: diff, Tolerance: cfg.Tolerance}
	}

	fmt.Fprintln(h.out, "Success!")
	fmt.Fprintf(h.out, "Time per replica( micros ): %g\n", rep.AvgLatencyMicros())
	return rep, nil
}

// Exit codes of a run.
const (
	ExitSuccess       = 0
	ExitVerification  = 1
	ExitConfiguration = 2
)

// ExitCode maps the error returned by Run to a process exit status: the
// device status for device failures, ExitVerification for a diverged
// result and ExitConfiguration for an unusable configuration.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var verr *VerificationError
	if errors.As(err, &verr) {
		return ExitVerification
	}
	var cerr *ConfigError
	if errors.As(err, &cerr) {
		return ExitConfiguration
	}
	return int(guda.StatusOf(err))
}
