//go:build darwin

package confirm

import "golang.org/x/sys/unix"

// fdatasync flushes fd's data so a persist-token record survives a crash
// between write and the next confirm/timeout (spec.md §4.F). macOS has no
// fdatasync syscall; F_FULLFSYNC is the durability-over-power-loss
// equivalent, mirroring the teacher's hive/dirty flush_darwin.go choice.
func fdatasync(fd int) error {
	_, err := unix.FcntlInt(uintptr(fd), unix.F_FULLFSYNC, 0)
	return err
}
