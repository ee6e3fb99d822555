package harness

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// MeanRelativeDiff returns the mean over all elements of
// |ref[i]-got[i]| / |ref[i]|. An element whose reference is zero
// contributes its absolute difference instead. It panics if the lengths
// differ.
func MeanRelativeDiff(ref, got []float64) float64 {
	if len(ref) != len(got) {
		panic(fmt.Sprintf("harness: length mismatch %d != %d", len(ref), len(got)))
	}
	if len(ref) == 0 {
		return 0
	}

	var sum float64
	for i, r := range ref {
		d := math.Abs(r - got[i])
		if r != 0 {
			d /= math.Abs(r)
		}
		sum += d
	}
	return sum / float64(len(ref))
}

// Within reports whether got matches ref within tol. A diff exactly at the
// tolerance passes.
func Within(ref, got []float64, tol float64) (diff float64, ok bool) {
	diff = MeanRelativeDiff(ref, got)
	return diff, diff <= tol
}

// PrintMatrix writes a rows×cols row-major matrix, one row per line.
func PrintMatrix(w io.Writer, m []float64, rows, cols int) {
	var sb strings.Builder
	for i := 0; i < rows; i++ {
		sb.Reset()
		for j := 0; j < cols; j++ {
			sb.WriteString(strconv.FormatFloat(m[i*cols+j], 'g', 6, 64))
			sb.WriteByte(' ')
		}
		fmt.Fprintln(w, sb.String())
	}
}
