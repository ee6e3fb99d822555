// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command dgemm-verify runs the tiled DGEMM kernel against the BLAS
// reference and reports whether they agree and how long a launch takes.
//
// It exits 0 on success, 1 when the results diverge, 2 on a bad
// configuration, and with the device status code on a device failure.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	guda "github.com/LynnColeArt/guda-dgemm"
	"github.com/LynnColeArt/guda-dgemm/harness"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is the single place errors become exit codes.
func run(args []string, stdout, stderr io.Writer) int {
	if args == nil {
		// cobra falls back to os.Args for a nil slice
		args = []string{}
	}

	var runErr error
	cmd := newRootCmd(stdout, &runErr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil && runErr == nil {
		// flag parsing and other usage errors
		fmt.Fprintln(stderr, err)
		return harness.ExitConfiguration
	}
	if runErr != nil {
		reportError(stderr, runErr)
	}
	return harness.ExitCode(runErr)
}

func newRootCmd(stdout io.Writer, runErr *error) *cobra.Command {
	cfg := harness.DefaultConfig()
	var logDir string

	version, _ := guda.Version()
	if version == "" {
		version = "devel"
	}

	cmd := &cobra.Command{
		Use:           "dgemm-verify",
		Short:         "Validate and time the tiled DGEMM kernel",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := guda.NewContext()
			defer ctx.Destroy()

			rep, err := harness.New(ctx, stdout).Run(cfg)
			*runErr = err

			if logDir != "" {
				if lerr := logRun(logDir, ctx, cfg, rep, err); lerr != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "run log: %v\n", lerr)
				}
			}
			return err
		},
	}

	f := cmd.Flags()
	f.IntVar(&cfg.Dims.K, "k", cfg.Dims.K, "rows of A and C")
	f.IntVar(&cfg.Dims.M, "m", cfg.Dims.M, "columns of B and C")
	f.IntVar(&cfg.Dims.N, "n", cfg.Dims.N, "columns of A, rows of B")
	f.IntVar(&cfg.Tile, "tile", cfg.Tile, "tile side; every dimension should be a multiple of it")
	f.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "seed for the input matrices")
	f.IntVar(&cfg.Trials, "trials", cfg.Trials, "kernel launches and reference multiplies per run")
	f.Float64Var(&cfg.Tolerance, "tol", cfg.Tolerance, "maximum mean relative difference")
	f.Var(&cfg.Geometry, "geometry", "on sizes that are not tile multiples: fail or warn")
	f.StringVar(&logDir, "log-dir", "", "directory for the JSON run log (disabled when empty)")

	return cmd
}

func logRun(dir string, ctx *guda.Context, cfg harness.Config, rep *harness.Report, err error) error {
	l, lerr := harness.NewRunLogger(dir, "dgemm_verify")
	if lerr != nil {
		return lerr
	}
	rec := harness.NewRunRecord("tiled_dgemm", cfg, rep, err)
	rec.Device = ctx.Device().Name
	return l.Log(rec)
}

func reportError(w io.Writer, err error) {
	var located *guda.LocatedError
	var verr *harness.VerificationError
	switch {
	case errors.As(err, &located):
		fmt.Fprintln(w, located)
	case errors.As(err, &verr):
		// the harness already dumped both matrices
		fmt.Fprintln(w, verr)
	default:
		fmt.Fprintln(w, err)
	}
}
