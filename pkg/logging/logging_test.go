package logging

import "testing"

func TestNew(t *testing.T) {
	log, err := New("debug", "console")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !log.Core().Enabled(-1) {
		t.Error("expected debug level to be enabled")
	}

	log, err = New("warn", "json")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if log.Core().Enabled(0) {
		t.Error("expected info level to be disabled at warn")
	}

	if _, err := New("loud", "json"); err == nil {
		t.Error("expected error for unknown level")
	}
}
