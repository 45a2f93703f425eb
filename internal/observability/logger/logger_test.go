package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	obscontext "github.com/smallbiznis/netbill/internal/observability/context"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestBuildWritesServiceFields(t *testing.T) {
	var buf bytes.Buffer
	log, err := Build(Config{Environment: "test", Version: "1.2.0", Level: "debug"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	log.Debug("bill generated", zap.String("bill_number", "BILL-2026-10-0001"))
	require.NoError(t, log.Sync())

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "netbill", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, "1.2.0", line["version"])
	require.Equal(t, "BILL-2026-10-0001", line["bill_number"])
	require.Contains(t, line, "ts")
}

func TestBuildRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := Build(Config{Level: "warn"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	log.Info("dropped")
	require.Zero(t, buf.Len())

	_, err = Build(Config{Level: "loud"}, zapcore.AddSync(&buf))
	require.Error(t, err)
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-7")
	ctx = obscontext.WithActor(ctx, "user", "kasir-1")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{2},
		TraceFlags: trace.FlagsSampled,
	})
	ctx = trace.ContextWithSpanContext(ctx, sc)

	WithBill(WithContext(ctx, base), "42", "BILL-2026-10-0001").Info("payment recorded")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "req-7", fields["request_id"])
	require.Equal(t, "user", fields["actor_type"])
	require.Equal(t, "kasir-1", fields["actor_id"])
	require.Equal(t, sc.TraceID().String(), fields["trace_id"])
	require.Equal(t, "42", fields["bill_id"])
}

func TestWithContextWithoutFieldsReturnsBase(t *testing.T) {
	base := zap.NewNop()
	require.Same(t, base, WithContext(context.Background(), base))
	require.Nil(t, WithBill(nil, "1", "x"))
}
