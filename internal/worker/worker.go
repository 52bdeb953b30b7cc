package worker

import (
	"context"
	"fmt"

	"github.com/lambda-feedback/imapvisor/internal/worker/bridge"
	"github.com/lambda-feedback/imapvisor/internal/worker/process"
	"go.uber.org/zap"
)

// Worker is an independently running unit of work.
type Worker interface {
	// Run runs the worker until it fails or ctx is cancelled. A
	// cancelled ctx asks the worker to finish its current unit of
	// work and return.
	Run(ctx context.Context) error
}

// Factory creates a worker from the configuration file at path.
type Factory func(path string, log *zap.Logger) (Worker, error)

var (
	_ Worker  = (*bridge.Bridge)(nil)
	_ Worker  = (*process.Worker)(nil)
	_ Factory = New
)

// New loads the worker configuration at path and creates the worker
// of the configured kind.
func New(path string, log *zap.Logger) (Worker, error) {
	config, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	switch config.Kind {
	case KindBridge:
		return bridge.New(config.Bridge, log)
	case KindProcess:
		return process.New(config.Process, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, config.Kind)
	}
}
