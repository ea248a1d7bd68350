package logx

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"
)

// capture redirects a logger's output into a buffer.
func capture(l *Logger) *bytes.Buffer {
	var buf bytes.Buffer
	l.logger = log.New(&buf, "", 0)
	return &buf
}

func resetDebug(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		SetDebugConfig(false, false, "")
		SetDebugDomains(nil)
	})
}

func TestLoggerLevels(t *testing.T) {
	l := NewLogger("test-scope")
	buf := capture(l)

	l.Info("hello %s", "world")
	l.Warn("watch out")
	l.Error("broke: %d", 42)

	out := buf.String()
	for _, want := range []string{
		"[test-scope] INFO: hello world",
		"[test-scope] WARN: watch out",
		"[test-scope] ERROR: broke: 42",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDebugGating(t *testing.T) {
	resetDebug(t)

	l := NewLogger("gate")
	buf := capture(l)

	SetDebugConfig(false, false, "")
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug emitted while disabled: %q", buf.String())
	}

	SetDebugConfig(true, false, "")
	l.Debug("visible")
	if !strings.Contains(buf.String(), "DEBUG: visible") {
		t.Errorf("debug line missing: %q", buf.String())
	}
}

func TestDomainFiltering(t *testing.T) {
	resetDebug(t)

	SetDebugConfig(true, false, "")
	SetDebugDomains([]string{"writer"})

	if !IsDebugEnabledForDomain("writer") {
		t.Error("writer domain should be enabled")
	}
	if IsDebugEnabledForDomain("author") {
		t.Error("author domain should be filtered out")
	}

	SetDebugDomains(nil)
	if !IsDebugEnabledForDomain("author") {
		t.Error("clearing domains should enable all")
	}
}

func TestWithScope(t *testing.T) {
	l := NewLogger("outer")
	buf := capture(l)

	inner := l.WithScope("inner")
	inner.Info("scoped")

	if inner.Scope() != "inner" {
		t.Errorf("Scope() = %q, want %q", inner.Scope(), "inner")
	}
	if !strings.Contains(buf.String(), "[inner] INFO: scoped") {
		t.Errorf("inner scope not applied: %q", buf.String())
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "noop") != nil {
		t.Error("Wrap(nil) should be nil")
	}

	base := errors.New("connection refused")
	wrapped := Wrap(base, "db connect")
	if !errors.Is(wrapped, base) {
		t.Error("wrapped error should unwrap to base")
	}
	if wrapped.Error() != "db connect: connection refused" {
		t.Errorf("unexpected message: %q", wrapped.Error())
	}
}

func TestErrorf(t *testing.T) {
	base := errors.New("boom")
	err := Errorf("stage failed: %w", base)
	if !errors.Is(err, base) {
		t.Error("Errorf should preserve the wrapped error")
	}
}
