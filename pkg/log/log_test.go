package log

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelControl(t *testing.T) {
	t.Cleanup(func() { SetDebug(false) })

	logger := WithModule("router")
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))

	// Level changes apply to child loggers already handed out.
	SetDebug(true)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	SetLevel(slog.LevelWarn)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
}
