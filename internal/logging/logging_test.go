package logging

import (
	"testing"

	"tradewire/internal/config"
)

func TestNew(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "warn", Format: "json"}, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if logger.Core().Enabled(0) { // 0 = InfoLevel
		t.Error("info should be disabled at warn level")
	}

	logger, err = New(config.LoggingConfig{Level: "warn"}, true)
	if err != nil {
		t.Fatalf("New verbose: %v", err)
	}
	if !logger.Core().Enabled(-1) { // -1 = DebugLevel
		t.Error("verbose should force debug level")
	}
}

func TestNew_Rejects(t *testing.T) {
	if _, err := New(config.LoggingConfig{Format: "xml"}, false); err == nil {
		t.Error("unknown format accepted")
	}
	if _, err := New(config.LoggingConfig{Level: "loud"}, false); err == nil {
		t.Error("unknown level accepted")
	}
}
