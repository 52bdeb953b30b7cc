//go:build unix

package process

import (
	"os/exec"
	"syscall"
)

// initCmd runs the child in its own process group, so a stop request
// reaches its children as well.
func initCmd(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func (p *proc) sendKillSignal(signal syscall.Signal) error {
	if pgid, err := syscall.Getpgid(p.pid); err == nil {
		// Negative pid sends signal to all in process group
		return syscall.Kill(-pgid, signal)
	}

	return syscall.Kill(p.pid, signal)
}
