package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry), buf.String())
	return entry
}

func TestErrorCarriesScopedFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{ServiceName: "api", Level: "debug", Output: &buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithCashierID(ctx, "cashier-9")
	log.Error(ctx, "checkout failed", errors.New("tender short"))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "api", entry["service"])
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "cashier-9", entry["cashier_id"])
	assert.Equal(t, "tender short", entry["error"])
	assert.NotEmpty(t, entry["stack"])
}

func TestScopedFieldsDoNotLeakToParent(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{ServiceName: "api", Output: &buf})

	parent := log.WithField(context.Background(), "register", "front")
	_ = log.WithSaleID(parent, "sale-1")
	log.Info(parent, "opened")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "front", entry["register"])
	assert.NotContains(t, entry, "sale_id")
}

func TestWarnStackToggle(t *testing.T) {
	var buf bytes.Buffer
	New(Options{ServiceName: "t", Output: &buf, WarnStack: true}).Warn(context.Background(), "low stock")
	assert.Contains(t, decodeLine(t, &buf), "stack")

	buf.Reset()
	New(Options{ServiceName: "t", Output: &buf}).Warn(context.Background(), "low stock")
	assert.NotContains(t, decodeLine(t, &buf), "stack")
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	New(Options{ServiceName: "t", Output: &buf}).Debug(context.Background(), "noise")
	assert.Zero(t, buf.Len())
}

func TestLevelNameRaisesThreshold(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{ServiceName: "t", Level: "warn", Output: &buf})
	log.Info(context.Background(), "quiet")
	assert.Zero(t, buf.Len())
	log.Warn(context.Background(), "loud")
	assert.Contains(t, buf.String(), `"message":"loud"`)
}

func TestNopIgnoresEverything(t *testing.T) {
	log := Nop()
	ctx := log.WithFields(context.Background(), map[string]any{"a": 1})
	assert.NotPanics(t, func() {
		log.Error(ctx, "ignored", nil)
		log.Info(nil, "ignored") //nolint:staticcheck
	})
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"invalid": zerolog.InfoLevel,
		" WARN ":  zerolog.WarnLevel,
		"debug":   zerolog.DebugLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}
