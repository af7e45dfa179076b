//go:build !windows

// Package ui reads answers from the controlling terminal, even when stdin and stdout are
// redirected.
package ui

import (
	"io"
	"os"
)

func OpenTTY() (io.ReadWriteCloser, error) {
	return os.OpenFile("/dev/tty", os.O_RDWR, 0)
}
