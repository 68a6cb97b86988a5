package logger

import "testing"

func TestInitAcceptsKnownLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		if err := Init(level); err != nil {
			t.Fatalf("init with level %s: %v", level, err)
		}
		if Logger() == nil {
			t.Fatalf("expected logger after init with level %s", level)
		}
	}
}

func TestInitFallsBackOnUnknownLevel(t *testing.T) {
	if err := Init("verbose"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if Logger() == nil {
		t.Fatal("expected usable logger")
	}
}

func TestWithModuleReturnsChild(t *testing.T) {
	if WithModule("sharing") == nil {
		t.Fatal("expected module logger")
	}
}
