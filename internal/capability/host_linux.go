//go:build linux

package capability

import "golang.org/x/sys/unix"

func hostMemoryBytes() int64 {
	if n, ok := memoryOverride(); ok {
		return n
	}
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}
	return int64(info.Totalram) * int64(info.Unit)
}
