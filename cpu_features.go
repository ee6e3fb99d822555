package guda

import (
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"
)

// CPUFeatures tracks the instruction set extensions relevant to float64
// multiply-accumulate throughput.
type CPUFeatures struct {
	HasAVX     bool
	HasAVX2    bool
	HasAVX512F bool // Foundation
	HasFMA     bool
	HasSSE4    bool
	HasASIMD   bool // arm64 Advanced SIMD
	HasSVE     bool
}

// Global CPU feature detection, resolved before any init function runs
var cpuFeatures = detectCPUFeatures()

// detectCPUFeatures probes the running CPU
func detectCPUFeatures() CPUFeatures {
	return CPUFeatures{
		HasSSE4:    cpu.X86.HasSSE41 || cpu.X86.HasSSE42,
		HasAVX:     cpu.X86.HasAVX,
		HasAVX2:    cpu.X86.HasAVX2,
		HasAVX512F: cpu.X86.HasAVX512F,
		HasFMA:     cpu.X86.HasFMA || runtime.GOARCH == "arm64",
		HasASIMD:   cpu.ARM64.HasASIMD,
		HasSVE:     cpu.ARM64.HasSVE,
	}
}

// GetCPUInfo returns a string describing available CPU features
func GetCPUInfo() string {
	features := []string{}

	if cpuFeatures.HasSSE4 {
		features = append(features, "SSE4")
	}
	if cpuFeatures.HasAVX {
		features = append(features, "AVX")
	}
	if cpuFeatures.HasAVX2 {
		features = append(features, "AVX2")
	}
	if cpuFeatures.HasAVX512F {
		features = append(features, "AVX512F")
	}
	if cpuFeatures.HasFMA {
		features = append(features, "FMA")
	}
	if cpuFeatures.HasASIMD {
		features = append(features, "ASIMD")
	}
	if cpuFeatures.HasSVE {
		features = append(features, "SVE")
	}

	if len(features) == 0 {
		return "none"
	}
	return strings.Join(features, ", ")
}

// deviceName describes the CPU the runtime executes on.
func deviceName() string {
	return "CPU " + runtime.GOARCH + " (" + GetCPUInfo() + ")"
}
