//go:build linux
// +build linux

package storage

import (
	"os"

	"golang.org/x/sys/unix"
)

// adviseSequential hints the kernel that the log will be scanned
// front to back during replay.
func adviseSequential(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}
