// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuestForge Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestSetup_ServiceIdentity(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("questforge", "1.2.3", "json", &buf)

	logger.Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "questforge", entry["service"])
	assert.Equal(t, "1.2.3", entry["version"])
	assert.Equal(t, "hello", entry["msg"])
	assert.NotContains(t, entry, "trace_id", "no trace context without a span")
}

func TestSetup_TraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("questforge", "dev", "json", &buf)

	traceID := trace.TraceID{0x01, 0x02, 0x03, 0x04}
	spanID := trace.SpanID{0x0a, 0x0b}
	ctx := trace.ContextWithSpanContext(context.Background(),
		trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: traceID,
			SpanID:  spanID,
		}))

	logger.InfoContext(ctx, "with trace")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, traceID.String(), entry["trace_id"])
	assert.Equal(t, spanID.String(), entry["span_id"])
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("questforge", "dev", "text", &buf)

	logger.Info("hello")

	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "service=questforge")
}

func TestSetup_WithAttrsKeepsIdentity(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("questforge", "dev", "json", &buf).With("component", "auth")

	logger.Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "auth", entry["component"])
	assert.Equal(t, "questforge", entry["service"])
}
