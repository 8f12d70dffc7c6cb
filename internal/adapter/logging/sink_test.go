package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/site-auditor/internal/entity"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSinkLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewSink(zap.New(core))
	ctx := context.Background()

	require.NoError(t, s.Emit(ctx, entity.ReportEvent{Check: entity.CheckStatus, Status: entity.StatusFail, Target: "https://example.com/x", Message: "broken: HTTP 404"}))
	require.NoError(t, s.Emit(ctx, entity.ReportEvent{Check: entity.CheckFact, Status: entity.StatusWarning, Target: "address", Page: "https://example.com/"}))
	require.NoError(t, s.Emit(ctx, entity.ReportEvent{Check: entity.CheckCTA, Status: entity.StatusPass, Target: "Call"}))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "broken: HTTP 404", entries[0].Message)
	assert.Equal(t, "status", entries[0].ContextMap()["check"])
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, "https://example.com/", entries[1].ContextMap()["page"])
}
