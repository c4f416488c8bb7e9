package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

// captureLogs направляет глобальный логгер в буфер до конца теста.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := Logger()
	buf := &bytes.Buffer{}
	SetGlobalLogger(New(Config{Level: "debug", Output: buf, Service: "bank-test"}))
	t.Cleanup(func() { SetGlobalLogger(prev) })
	return buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestFromContext_Fields(t *testing.T) {
	buf := captureLogs(t)

	ctx := NewContextWithIDs(context.Background(), "trace-1", "corr-1")
	ctx = WithPaymentID(ctx, "payment-1")

	log := FromContext(ctx)
	log.Info().Msg("Холд размещён")

	entry := lastEntry(t, buf)
	assert.Equal(t, "trace-1", entry["trace_id"])
	assert.Equal(t, "corr-1", entry["correlation_id"])
	assert.Equal(t, "payment-1", entry["payment_id"])
	assert.Equal(t, "bank-test", entry["service"])
}

func TestFromContext_Empty(t *testing.T) {
	buf := captureLogs(t)

	Ctx(context.Background()).Info().Msg("без полей")

	entry := lastEntry(t, buf)
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "payment_id")
}

func TestTraceIDFromContext_Span(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", TraceIDFromContext(ctx))
	// явный trace_id важнее спана
	assert.Equal(t, "explicit", TraceIDFromContext(WithTraceID(ctx, "explicit")))
}

func TestWithFields_DoNotLeakToParent(t *testing.T) {
	parent := WithTraceID(context.Background(), "trace-1")
	child := WithPaymentID(parent, "payment-1")

	assert.Empty(t, PaymentIDFromContext(parent))
	assert.Equal(t, "payment-1", PaymentIDFromContext(child))
	assert.Equal(t, "trace-1", TraceIDFromContext(child))
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(Config{Level: "warn", Output: buf})

	l.Info().Msg("скрыто")
	assert.Zero(t, buf.Len())

	l.Warn().Msg("видно")
	assert.NotZero(t, buf.Len())
}
