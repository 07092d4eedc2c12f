package capability

import (
	"os"
	"runtime"
	"strconv"
	"strings"
)

// DetectHost snapshots the local process environment. A command-line host has
// no screen or touch input, so those signals stay unknown.
func DetectHost() Environment {
	return Environment{
		UserAgent:   "alphareel/" + runtime.GOOS,
		CPUCount:    runtime.NumCPU(),
		MemoryBytes: hostMemoryBytes(),
	}
}

// memoryOverride lets operators pin the memory signal, e.g. inside containers
// whose cgroup limit is below the host's physical memory.
func memoryOverride() (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(os.Getenv("ALPHAREEL_MEMORY_BYTES")), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, n > 0
}
