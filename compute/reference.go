package compute

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// ReferenceDGEMM computes c = alpha·a·b + beta·c on the host through
// gonum's BLAS, with a K×N, b N×M and c K×M in row-major order.
func ReferenceDGEMM(a, b, c []float64, d Dims, alpha, beta float64) error {
	if err := checkHostShapes(a, b, c, d); err != nil {
		return err
	}
	blas64.Gemm(blas.NoTrans, blas.NoTrans, alpha,
		blas64.General{Rows: d.K, Cols: d.N, Stride: d.N, Data: a},
		blas64.General{Rows: d.N, Cols: d.M, Stride: d.M, Data: b},
		beta,
		blas64.General{Rows: d.K, Cols: d.M, Stride: d.M, Data: c},
	)
	return nil
}

// NaiveDGEMM computes c += a·b with a plain triple loop. Each element's
// dot product is summed in increasing l, the order the tiled kernel uses.
func NaiveDGEMM(a, b, c []float64, d Dims) error {
	if err := checkHostShapes(a, b, c, d); err != nil {
		return err
	}
	for i := 0; i < d.K; i++ {
		for j := 0; j < d.M; j++ {
			sum := 0.0
			for l := 0; l < d.N; l++ {
				sum += a[i*d.N+l] * b[l*d.M+j]
			}
			c[i*d.M+j] += sum
		}
	}
	return nil
}

func checkHostShapes(a, b, c []float64, d Dims) error {
	if err := d.Validate(); err != nil {
		return err
	}
	switch {
	case len(a) < d.K*d.N:
		return fmt.Errorf("a has %d elements, want %d", len(a), d.K*d.N)
	case len(b) < d.N*d.M:
		return fmt.Errorf("b has %d elements, want %d", len(b), d.N*d.M)
	case len(c) < d.K*d.M:
		return fmt.Errorf("c has %d elements, want %d", len(c), d.K*d.M)
	}
	return nil
}
