//go:build linux

package bufferpool

import "golang.org/x/sys/unix"

// totalPhysicalMemory reads total RAM via sysinfo(2), matching
// original_source's sysconf(_SC_PHYS_PAGES) * sysconf(_SC_PAGE_SIZE)
// branch for Linux.
func totalPhysicalMemory() (uint64, bool) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, false
	}
	return uint64(info.Totalram) * uint64(info.Unit), true
}
