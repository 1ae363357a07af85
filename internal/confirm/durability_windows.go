//go:build windows

package confirm

import "golang.org/x/sys/windows"

// fdatasync flushes fd's data on Windows via FlushFileBuffers, the
// equivalent durability primitive to unix.Fdatasync (spec.md §4.F),
// mirroring the teacher's hive/dirty flush_windows.go.
func fdatasync(fd int) error {
	return windows.FlushFileBuffers(windows.Handle(fd))
}
