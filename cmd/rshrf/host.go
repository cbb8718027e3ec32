package main

import (
	"runtime"

	"github.com/klauspost/cpuid"
	"github.com/pbnjay/memory"
)

// hostInfo describes the machine a run executed on.
type hostInfo struct {
	CPU          string `yaml:"cpu"`
	LogicalCores int    `yaml:"logical-cores"`
	AVX2         bool   `yaml:"avx2"`
	MemoryMiB    uint64 `yaml:"memory-mib"`
	GOMAXPROCS   int    `yaml:"gomaxprocs"`
}

func detectHost() hostInfo {
	return hostInfo{
		CPU:          cpuid.CPU.BrandName,
		LogicalCores: cpuid.CPU.LogicalCores,
		AVX2:         cpuid.CPU.AVX2(),
		MemoryMiB:    memory.TotalMemory() / 1024 / 1024,
		GOMAXPROCS:   runtime.GOMAXPROCS(0),
	}
}

func (h hostInfo) keysAndValues() []any {
	return []any{
		"cpu", h.CPU,
		"logicalCores", h.LogicalCores,
		"avx2", h.AVX2,
		"memoryMiB", h.MemoryMiB,
		"gomaxprocs", h.GOMAXPROCS,
	}
}
