//go:build linux || freebsd

package confirm

import "golang.org/x/sys/unix"

// fdatasync flushes fd's data so a persist-token record survives a crash
// between write and the next confirm/timeout (spec.md §4.F). Mirrors the
// teacher's hive/dirty flush_unix.go fdatasync helper.
func fdatasync(fd int) error {
	return unix.Fdatasync(fd)
}
