package util

import "os"

// IsProcessAlive reports whether a process with pid exists.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	process.Release()

	return true
}
