package vajrastream

import "testing"

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "error"} {
		if _, err := NewLogger(LogConfig{Level: level}); err != nil {
			t.Errorf("level %q rejected: %v", level, err)
		}
	}
	if _, err := NewLogger(LogConfig{Level: "loud"}); err == nil {
		t.Errorf("invalid level accepted")
	}
	if _, err := NewLogger(LogConfig{Level: "debug", Development: true}); err != nil {
		t.Errorf("development config: %v", err)
	}
}

func TestNewDefaultLogger(t *testing.T) {
	if NewDefaultLogger() == nil {
		t.Fatalf("default logger is nil")
	}
}
