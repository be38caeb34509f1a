package codec

import (
	"testing"
	"time"
)

func TestParseDisplayDate(t *testing.T) {
	now := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		in   string
		want string
	}{
		{"2024/03/05", "2024-03-05"},
		{"2024/3/5", "2024-03-05"},
		{"3/5", "2025-03-05"},
		{"12/31", "2025-12-31"},
		{"2024-03-05", "2024-03-05"},
		{"  2024/11/20 ", "2024-11-20"},
		{"-", ""},
		{"", ""},
		{"tomorrow", ""},
		{"2024/13/40", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseDisplayDate(tt.in, now); got != tt.want {
				t.Errorf("ParseDisplayDate(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in     string
		packed bool
		want   float64
		ok     bool
	}{
		{"40:30", true, 40.5, true},
		{"40:30 h", false, 40.5, true},
		{"0:45 h", true, 0.75, true},
		{"300", true, 300, true},
		{"3000", true, 30, true},
		{"3000", false, 3000, true},
		{"1030", true, 10.5, true},
		{"1075", true, 1075, true},
		{"2.5", true, 2.5, true},
		{"1000.5", true, 1000.5, true},
		{"-", true, 0, false},
		{"", true, 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseDuration(tt.in, tt.packed)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseDuration(%q, %v) = %v, %v; want %v, %v", tt.in, tt.packed, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"45%", 45, true},
		{" 100 % ", 100, true},
		{"12.5%", 12.5, true},
		{"%", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParsePercent(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParsePercent(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[float64]string{
		40.5: "40.5",
		30:   "30",
		0:    "0",
		0.75: "0.75",
	}
	for in, want := range tests {
		if got := FormatNumber(in); got != want {
			t.Errorf("FormatNumber(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		encode  func(string) (any, error)
		in      string
		want    any
		wantErr bool
	}{
		{"selection id", EncodeSelection, "5", 5, false},
		{"selection empty", EncodeSelection, "", nil, false},
		{"selection junk", EncodeSelection, "abc", nil, true},
		{"number", EncodeNumber, "40.5", 40.5, false},
		{"number empty", EncodeNumber, "", nil, false},
		{"number junk", EncodeNumber, "4x", nil, true},
		{"date", EncodeDate, "2024-03-05", "2024-03-05", false},
		{"date empty", EncodeDate, "", nil, false},
		{"date display form", EncodeDate, "2024/03/05", nil, true},
		{"text", EncodeText, " keep spaces ", " keep spaces ", false},
		{"text empty", EncodeText, "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.encode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error state: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}
