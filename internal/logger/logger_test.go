package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelGating(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, LevelWarn, "text")

	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") {
		t.Error("debug message should be suppressed at warn level")
	}
	if strings.Contains(out, "info message") {
		t.Error("info message should be suppressed at warn level")
	}
	if !strings.Contains(out, "warn message") {
		t.Error("warn message missing")
	}
	if !strings.Contains(out, "error message") {
		t.Error("error message missing")
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, LevelError, "text")

	Info("before")
	SetLevel("debug")
	Info("after")

	out := buf.String()
	if strings.Contains(out, "before") {
		t.Error("info should be suppressed before SetLevel")
	}
	if !strings.Contains(out, "after") {
		t.Error("info should pass after SetLevel(debug)")
	}
	if CurrentLevel() != LevelDebug {
		t.Errorf("CurrentLevel = %v, want %v", CurrentLevel(), LevelDebug)
	}
}

func TestSetLevelInvalidIgnored(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, LevelInfo, "text")

	SetLevel("bogus")
	if CurrentLevel() != LevelInfo {
		t.Errorf("invalid level changed CurrentLevel to %v", CurrentLevel())
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, LevelInfo, "json")

	Info("structured", "unit", "qlearning", "bytes", 1024)

	line := strings.TrimSpace(buf.String())
	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, line)
	}
	if rec["msg"] != "structured" {
		t.Errorf("msg = %v, want structured", rec["msg"])
	}
	if rec["unit"] != "qlearning" {
		t.Errorf("unit = %v, want qlearning", rec["unit"])
	}
	if rec["bytes"] != float64(1024) {
		t.Errorf("bytes = %v, want 1024", rec["bytes"])
	}
}

func TestTextFormatAttrs(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, LevelInfo, "text")

	Info("flushed", "unit", "alphazero", "key", "policy weights")

	out := buf.String()
	if !strings.Contains(out, "unit=alphazero") {
		t.Errorf("missing unit attr in %q", out)
	}
	// values with spaces are quoted
	if !strings.Contains(out, `key="policy weights"`) {
		t.Errorf("missing quoted key attr in %q", out)
	}
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, LevelInfo, "json")

	lc := NewLogContext("save").WithArtifact("dqn", "replay")
	ctx := WithContext(context.Background(), lc)

	InfoCtx(ctx, "saved")

	var rec map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &rec); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if rec[KeyOperation] != "save" {
		t.Errorf("operation = %v, want save", rec[KeyOperation])
	}
	if rec[KeyUnit] != "dqn" {
		t.Errorf("unit = %v, want dqn", rec[KeyUnit])
	}
	if rec[KeyKey] != "replay" {
		t.Errorf("key = %v, want replay", rec[KeyKey])
	}
}

func TestContextClone(t *testing.T) {
	lc := NewLogContext("load")
	child := lc.WithArtifact("genetic", "population")
	if lc.Unit != "" {
		t.Error("WithArtifact mutated the parent context")
	}
	if child.Unit != "genetic" || child.Key != "population" {
		t.Errorf("child = %+v", child)
	}
	if child.Operation != "load" {
		t.Error("clone dropped operation")
	}
}

func TestFromContextMissing(t *testing.T) {
	if lc := FromContext(context.Background()); lc != nil {
		t.Errorf("expected nil LogContext, got %+v", lc)
	}
	if lc := FromContext(nil); lc != nil { //nolint:staticcheck
		t.Errorf("expected nil LogContext for nil ctx, got %+v", lc)
	}
}
