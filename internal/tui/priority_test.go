package tui

import (
	"strings"
	"testing"
)

func TestPriorityIconKnown(t *testing.T) {
	tests := []struct {
		name     string
		wantIcon string
	}{
		{"Immediate", "⊘"},
		{"Urgent", "↑↑"},
		{"High", "↑"},
		{"Normal", "≡"},
		{"Medium", "≡"},
		{"Low", "↓"},
	}

	for _, tt := range tests {
		got := priorityIcon(tt.name)
		// priorityIcon returns plain text (no ANSI codes) for the selection cursor
		if got != tt.wantIcon {
			t.Errorf("priorityIcon(%q) = %q, want %q", tt.name, got, tt.wantIcon)
		}
	}
}

func TestPriorityIconUnknown(t *testing.T) {
	if got := priorityIcon("SuperCustom"); got != "" {
		t.Errorf("priorityIcon(unknown) = %q, want blank", got)
	}
}

func TestPriorityLabelKnown(t *testing.T) {
	got := priorityLabel("Urgent")
	// Should contain both the icon and the text name
	if !strings.Contains(got, "↑↑") {
		t.Errorf("priorityLabel(Urgent) missing icon, got: %q", got)
	}
	if !strings.Contains(got, "Urgent") {
		t.Errorf("priorityLabel(Urgent) missing name, got: %q", got)
	}
}

func TestPriorityLabelUnknown(t *testing.T) {
	got := priorityLabel("Whatever")
	if got != "Whatever" {
		t.Errorf("priorityLabel(unknown) = %q, want %q", got, "Whatever")
	}
}

func TestPriorityMapCoversAllEntries(t *testing.T) {
	// Ensure every entry in priorityMap has both an icon and a color
	for name, def := range priorityMap {
		if def.icon == "" {
			t.Errorf("priorityMap[%q] has empty icon", name)
		}
		if def.color == "" {
			t.Errorf("priorityMap[%q] has empty color", name)
		}
	}
}
