package harness

import (
	"gonum.org/v1/gonum/mathext/prng"
)

// MatrixSource produces the uniform [0, 1) doubles the inputs are filled
// with. It draws from a 32-bit MT19937 and combines two draws per value,
// so a seed yields the same matrices as std::mt19937 feeding
// std::uniform_real_distribution<double>(0, 1).
type MatrixSource struct {
	mt *prng.MT19937
}

// NewMatrixSource returns a source seeded with seed.
func NewMatrixSource(seed uint64) *MatrixSource {
	mt := prng.NewMT19937()
	mt.Seed(seed)
	return &MatrixSource{mt: mt}
}

// Float64 returns the next value in [0, 1).
func (s *MatrixSource) Float64() float64 {
	const r = 1 << 32
	lo := float64(s.mt.Uint32())
	hi := float64(s.mt.Uint32())
	u := (lo + hi*r) / (r * r)
	if u >= 1 {
		u = 1 - 0x1p-53
	}
	return u
}

// Fill overwrites dst, a rows×cols row-major matrix, with the next values
// of the stream.
func (s *MatrixSource) Fill(dst []float64) {
	for i := range dst {
		dst[i] = s.Float64()
	}
}

// Inputs are the host matrices of one run.
type Inputs struct {
	A, B  []float64
	C     []float64 // accumulated by the device kernel
	CTest []float64 // accumulated by the reference
}

// GenerateInputs builds the host matrices of cfg from its seed. C and CTest come
// from two sources with the same seed and so start identical. A and then B
// continue the second stream without reseeding.
func GenerateInputs(cfg Config) Inputs {
	d := cfg.Dims
	in := Inputs{
		A:     make([]float64, d.K*d.N),
		B:     make([]float64, d.N*d.M),
		C:     make([]float64, d.K*d.M),
		CTest: make([]float64, d.K*d.M),
	}

	NewMatrixSource(cfg.Seed).Fill(in.C)

	src := NewMatrixSource(cfg.Seed)
	src.Fill(in.CTest)
	src.Fill(in.A)
	src.Fill(in.B)

	return in
}
