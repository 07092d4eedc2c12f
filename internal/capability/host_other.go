//go:build !linux

package capability

func hostMemoryBytes() int64 {
	if n, ok := memoryOverride(); ok {
		return n
	}
	return 0
}
