package process

import (
	"os"
	"os/exec"
	"syscall"
)

func initCmd(cmd *exec.Cmd) {
	// No-op on Windows.
}

// sendKillSignal kills the process, Windows has no SIGTERM.
func (p *proc) sendKillSignal(_ syscall.Signal) error {
	process, err := os.FindProcess(p.pid)
	if err != nil {
		return err
	}

	return process.Kill()
}
