package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrNoCommand     = errors.New("no command")
	ErrProcessExited = errors.New("process exited")
)

// Worker runs an external command as a worker. The process is asked
// to stop with SIGTERM once the worker context is cancelled.
type Worker struct {
	config Config

	mu      sync.Mutex
	process *proc

	log *zap.Logger
}

func New(config Config, log *zap.Logger) (*Worker, error) {
	if config.Command == "" {
		return nil, ErrNoCommand
	}

	if _, err := exec.LookPath(config.Command); err != nil {
		return nil, fmt.Errorf("command %q: %w", config.Command, err)
	}

	return &Worker{
		config: config,
		log:    log.Named("exec"),
	}, nil
}

// Run starts the process and blocks until it exits. An exit after a
// stop request is not an error.
func (w *Worker) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}

	w.log.With(
		zap.String("command", w.config.Command),
		zap.Strings("args", w.config.Args),
		zap.String("cwd", w.config.Cwd),
	).Debug("starting worker process")

	process, err := startProc(w.config, w.log)
	if err != nil {
		return fmt.Errorf("failed to start process: %w", err)
	}

	w.mu.Lock()
	w.process = process
	w.mu.Unlock()

	select {
	case <-process.Done():
	case <-ctx.Done():
		process.Terminate()
		// stop is cooperative, the process decides when to exit
		<-process.Done()
		return nil
	}

	err = process.Wait()
	if err == nil {
		err = ErrProcessExited
	}

	if stderr := process.stderr.String(); stderr != "" {
		return fmt.Errorf("%w\n%s", err, stderr)
	}

	return err
}

// Pid returns the pid of the running process, or 0 before it started.
func (w *Worker) Pid() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.process == nil {
		return 0
	}

	return w.process.Pid()
}
