package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	if got := New(false).GetLevel(); got != zerolog.WarnLevel {
		t.Errorf("New(false).GetLevel() = %v, want %v", got, zerolog.WarnLevel)
	}
	if got := New(true).GetLevel(); got != zerolog.DebugLevel {
		t.Errorf("New(true).GetLevel() = %v, want %v", got, zerolog.DebugLevel)
	}
}

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf, zerolog.InfoLevel)

	log.Debug().Msg("hidden")
	log.Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", output)
	}
	if strings.Contains(output, "hidden") {
		t.Errorf("Expected debug message to be filtered, got: %s", output)
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := WithContext(context.Background(), NewWithWriter(buf, zerolog.DebugLevel))

	retrieved := FromContext(ctx)
	retrieved.Info().Msg("test")

	if buf.Len() == 0 {
		t.Error("Expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())
	if log.GetLevel() != zerolog.Disabled {
		t.Errorf("Expected disabled default logger, got level %v", log.GetLevel())
	}
}

func TestWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := WithFields(NewWithWriter(buf, zerolog.DebugLevel), map[string]interface{}{
		"run_id":  "abc",
		"account": "ally-checking",
	})
	log.Info().Msg("test message")

	output := buf.String()
	for _, want := range []string{`"run_id":"abc"`, `"account":"ally-checking"`} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected output to contain %s, got: %s", want, output)
		}
	}
}
