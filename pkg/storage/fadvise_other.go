//go:build !linux
// +build !linux

package storage

import "os"

func adviseSequential(_ *os.File) {}
