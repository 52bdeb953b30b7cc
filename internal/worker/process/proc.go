package process

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/lambda-feedback/imapvisor/util"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type proc struct {
	pid         int
	termination chan struct{}
	err         error

	stderr *tailBuffer
	pipes  sync.WaitGroup

	log *zap.Logger
}

func startProc(config Config, log *zap.Logger) (*proc, error) {
	cmd := exec.Command(config.Command, config.Args...)

	cmd.Env = os.Environ()
	for k, v := range config.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	if config.Cwd != "" {
		cmd.Dir = config.Cwd
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	initCmd(cmd)

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	log = log.Named("proc").With(zap.Int("pid", cmd.Process.Pid))

	process := &proc{
		pid:         cmd.Process.Pid,
		termination: make(chan struct{}),
		stderr:      newTailBuffer(stderrTail),
		log:         log,
	}

	process.pipes.Add(2)
	go process.forward(stdout, nil, zap.InfoLevel)
	go process.forward(stderr, process.stderr, zap.WarnLevel)

	go func() {
		// pipes must be drained before calling wait
		process.pipes.Wait()

		// block until the process exits
		process.err = cmd.Wait()

		close(process.termination)
	}()

	return process, nil
}

// forward logs every line of r and keeps a copy in tail, if set.
func (p *proc) forward(r io.Reader, tail *tailBuffer, level zapcore.Level) {
	defer p.pipes.Done()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		if tail != nil {
			tail.WriteLine(line)
		}

		if ce := p.log.Check(level, line); ce != nil {
			ce.Write()
		}
	}

	if err := scanner.Err(); err != nil {
		p.log.Debug("error reading output", zap.Error(err))
	}
}

// Terminate sends SIGTERM to the process group without waiting for
// the process to exit. It is a no-op once the process terminated.
func (p *proc) Terminate() {
	select {
	case <-p.termination:
		p.log.Debug("process already terminated")
		return
	default:
	}

	// the process exited but was not reaped yet, or is gone for good
	if !util.IsProcessAlive(p.pid) {
		p.log.Debug("process not alive, skipping signal")
		return
	}

	p.kill(syscall.SIGTERM)
}

// Done is closed once the process exited.
func (p *proc) Done() <-chan struct{} {
	return p.termination
}

// Wait blocks until the process exits and returns its exit error.
func (p *proc) Wait() error {
	<-p.termination
	return p.err
}

func (p *proc) Pid() int {
	return p.pid
}

func (p *proc) kill(signal syscall.Signal) {
	log := p.log.With(zap.Stringer("signal", signal))

	log.Info("sending signal")

	// best effort, ignore errors
	if err := p.sendKillSignal(signal); err != nil {
		log.Error("stop failed", zap.Error(err))
	}
}
