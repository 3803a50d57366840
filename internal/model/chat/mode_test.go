package chat

import "testing"

func TestParseMode(t *testing.T) {
	for _, mode := range Modes() {
		got, err := ParseMode(string(mode))
		if err != nil {
			t.Fatalf("ParseMode(%q) err: %v", mode, err)
		}
		if got != mode {
			t.Fatalf("ParseMode(%q) = %q", mode, got)
		}
	}

	if _, err := ParseMode("dreamMode"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestModeMetadataComplete(t *testing.T) {
	for _, mode := range Modes() {
		if mode.DisplayName() == "" || mode.ShortName() == "" {
			t.Fatalf("mode %s missing names", mode)
		}
		if mode.WelcomeMessage() == "" {
			t.Fatalf("mode %s missing welcome message", mode)
		}
		if mode.AccentColor()[0] != '#' {
			t.Fatalf("mode %s accent color %q is not hex", mode, mode.AccentColor())
		}
	}
}
