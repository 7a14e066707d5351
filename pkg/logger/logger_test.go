package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewFromZapWritesKeyValues(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewFromZap(zap.New(core))

	log.With("origin", "abc").Warn("listener failed", "event_type", "bid-placed")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "listener failed", entries[0].Message)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
		fields := entries[0].ContextMap()
		assert.Equal(t, "abc", fields["origin"])
		assert.Equal(t, "bid-placed", fields["event_type"])
	}
}

func TestNewWithConfigUnknownLevel(t *testing.T) {
	log := NewWithConfig("loud")
	zl, ok := log.(*ZapLogger)
	if assert.True(t, ok) {
		assert.True(t, zl.logger.Desugar().Core().Enabled(zapcore.InfoLevel))
		assert.False(t, zl.logger.Desugar().Core().Enabled(zapcore.DebugLevel))
	}
}

func TestNopDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		NewNop().Error("ignored", "k", "v")
	})
}
