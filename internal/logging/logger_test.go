// Playwarden - Unattended Media Playback Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/playwarden

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValidLevel(t *testing.T) {
	if !ValidLevel("debug") || !ValidLevel("") {
		t.Error("expected debug and empty to be valid")
	}
	if ValidLevel("verbose") {
		t.Error("expected verbose to be invalid")
	}
}

func TestInitWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })

	Info().Str("channel", "control").Msg("connected")

	out := buf.String()
	if !strings.Contains(out, `"message":"connected"`) {
		t.Errorf("missing message in %s", out)
	}
	if !strings.Contains(out, `"channel":"control"`) {
		t.Errorf("missing field in %s", out)
	}
}

func TestCtxAddsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { Init(DefaultConfig()) })

	ctx := ContextWithCorrelationID(context.Background(), "c1")
	Ctx(ctx).Info().Msg("dispatch")

	if !strings.Contains(buf.String(), `"correlation_id":"c1"`) {
		t.Errorf("expected correlation id in %s", buf.String())
	}
	if CorrelationIDFromContext(context.Background()) != "" {
		t.Error("expected empty correlation id for bare context")
	}
	if len(GenerateCorrelationID()) != 8 {
		t.Error("expected 8 character correlation id")
	}
}

func TestSlogLoggerBridgesToZerolog(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { Init(DefaultConfig()) })

	logger := NewSlogLogger().WithGroup("tree").With("service", "playback")
	logger.Warn("service failed", "restarts", 3)

	out := buf.String()
	for _, want := range []string{`"level":"warn"`, `"tree.service":"playback"`, `"tree.restarts":3`, `"message":"service failed"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
}
