package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew_DefaultsBadLevelToInfo(t *testing.T) {
	l := New("not-a-level")
	if l.entry.Logger.Level != logrus.InfoLevel {
		t.Fatalf("expected info level fallback, got %v", l.entry.Logger.Level)
	}
}

func TestLogrusLogger_Infof_WritesMessage(t *testing.T) {
	var buf bytes.Buffer
	l := New("info")
	l.entry.Logger.SetOutput(&buf)
	l.entry.Logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	l.Infof("hello %s", "world")

	if !strings.Contains(buf.String(), "hello world") {
		t.Fatalf("expected log output to contain formatted message, got %q", buf.String())
	}
}

func TestLogrusLogger_WithField_IncludesKey(t *testing.T) {
	var buf bytes.Buffer
	l := New("debug")
	l.entry.Logger.SetOutput(&buf)
	l.entry.Logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	l.WithField("device_id", "abc123").Warnf("peer lost")

	out := buf.String()
	if !strings.Contains(out, "device_id=abc123") {
		t.Fatalf("expected field in output, got %q", out)
	}
	if !strings.Contains(out, "peer lost") {
		t.Fatalf("expected message in output, got %q", out)
	}
}
