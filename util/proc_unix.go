//go:build unix

package util

import (
	"errors"
	"syscall"
)

// IsProcessAlive reports whether a process with pid exists. Signal 0
// performs the existence and permission checks without delivering a
// signal; EPERM still means the process exists.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	err := syscall.Kill(pid, syscall.Signal(0))

	return err == nil || errors.Is(err, syscall.EPERM)
}
