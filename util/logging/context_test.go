package logging_test

import (
	"context"
	"testing"

	"github.com/lambda-feedback/imapvisor/util/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoggerFromContext(t *testing.T) {
	log := zap.NewNop()

	ctx := logging.ContextWithLogger(context.Background(), log)

	actual, err := logging.LoggerFromContext(ctx)
	require.NoError(t, err)
	assert.Same(t, log, actual)
}

func TestLoggerFromContext_Missing(t *testing.T) {
	_, err := logging.LoggerFromContext(context.Background())
	assert.ErrorIs(t, err, logging.ErrNoLoggerInContext)
}

func TestNamedLogger(t *testing.T) {
	named := logging.NamedLogger("supervisor")(zap.NewExample())
	assert.Equal(t, "supervisor", named.Name())
}
