package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trezcool/shulebus/core"
)

func TestRollbarLogger(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	logger := NewRollbarLogger(zap.New(obs), core.NewTestConfig())

	err := errors.New("socket closed")
	logger.Warn("could not broadcast", err, map[string]interface{}{"tripId": "t1"}, 42)
	logger.Debug("scan")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	warn := entries[0]
	assert.Equal(t, zapcore.WarnLevel, warn.Level)
	assert.Equal(t, "could not broadcast", warn.Message)
	fields := warn.ContextMap()
	assert.Equal(t, "socket closed", fields["error"])
	assert.Equal(t, "t1", fields["tripId"])
	assert.EqualValues(t, 42, fields["arg2"])

	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
}

func TestRollbarLogger_Prepare(t *testing.T) {
	logger := RollbarLogger{zap: zap.NewNop()}
	err := errors.New("boom")

	rbArgs, fields := logger.prepare("msg", []interface{}{nil, err, map[string]interface{}{"k": "v"}})
	assert.Equal(t, []interface{}{"msg", err, map[string]interface{}{"k": "v"}}, rbArgs)
	assert.Len(t, fields, 2)
}
