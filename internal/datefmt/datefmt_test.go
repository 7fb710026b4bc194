package datefmt

import (
	"errors"
	"testing"
	"time"

	"github.com/upstream-pm/upstream/internal/host"
)

func TestNormalize(t *testing.T) {
	f := NewFormatter(time.UTC, "")
	midnight := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC).Unix()

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"canonical", "2024-03-05", "2024-03-05"},
		{"mysql datetime", "2024-03-05 14:30:00", "2024-03-05"},
		{"padded", "  2024-03-05 ", "2024-03-05"},
		{"epoch int64", midnight, "2024-03-05"},
		{"epoch int", int(midnight + 3600), "2024-03-05"},
		{"epoch string", "1709596800", "2024-03-05"},
		{"free form", "March 5, 2024", "2024-03-05"},
		{"slashes", "03/05/2024", "2024-03-05"},
		{"time value", time.Date(2024, 3, 5, 23, 0, 0, 0, time.UTC), "2024-03-05"},
		{"empty", "", ""},
		{"nil", nil, ""},
		{"zero epoch", 0, ""},
		{"zero time", time.Time{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Normalize(tt.in)
			if err != nil {
				t.Fatalf("Normalize(%v) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Invalid(t *testing.T) {
	f := NewFormatter(nil, "")
	for _, in := range []any{"not a date", 3.14, []int{1}, "2024-13-45", "2024-02-30", "due 2023-02-29"} {
		_, err := f.Normalize(in)
		if !errors.Is(err, host.ErrValidation) {
			t.Errorf("Normalize(%v) error = %v, want ErrValidation", in, err)
		}
	}
}

func TestNormalize_DatePatternWins(t *testing.T) {
	// A string carrying a date pattern is taken as canonical even if the
	// surrounding text would parse to something else.
	f := NewFormatter(time.UTC, "")
	got, err := f.Normalize("ref 20240305 due 2024-01-02")
	if err != nil {
		t.Fatal(err)
	}
	if got != "2024-01-02" {
		t.Errorf("Normalize = %q, want 2024-01-02", got)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	f := NewFormatter(time.UTC, "")
	inputs := []any{"2023-12-31", "December 31, 2023", int64(1704067199), "1704067199"}
	for _, in := range inputs {
		first, err := f.Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%v): %v", in, err)
		}
		second, err := f.Normalize(first)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", first, err)
		}
		if first != second {
			t.Errorf("Normalize not idempotent for %v: %q then %q", in, first, second)
		}
	}
}

func TestNormalize_UsesSiteTimezone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	f := NewFormatter(tokyo, "")
	// 2024-03-05 20:00 UTC is already the 6th in Tokyo.
	epoch := time.Date(2024, 3, 5, 20, 0, 0, 0, time.UTC).Unix()
	got, err := f.Normalize(epoch)
	if err != nil {
		t.Fatal(err)
	}
	if got != "2024-03-06" {
		t.Errorf("Normalize = %q, want 2024-03-06", got)
	}
}

func TestValue_Formats(t *testing.T) {
	f := NewFormatter(time.UTC, "January 2, 2006")
	v := f.Value("2024-03-05")

	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC).Unix()
	if v.Unix() != want {
		t.Errorf("Unix() = %d, want %d", v.Unix(), want)
	}
	if v.MySQL() != "2024-03-05" {
		t.Errorf("MySQL() = %q", v.MySQL())
	}
	if v.Display() != "March 5, 2024" {
		t.Errorf("Display() = %q", v.Display())
	}
	if v.Format(Unix) != "1709596800" {
		t.Errorf("Format(Unix) = %q", v.Format(Unix))
	}
	if v.Format(Upstream) != "March 5, 2024" {
		t.Errorf("Format(Upstream) = %q", v.Format(Upstream))
	}
	if v.Format(MySQL) != "2024-03-05" {
		t.Errorf("Format(MySQL) = %q", v.Format(MySQL))
	}
}

func TestValue_UnixIsMidnightInSiteTimezone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	v := NewFormatter(ny, "").Value("2024-07-01")
	want := time.Date(2024, 7, 1, 0, 0, 0, 0, ny).Unix()
	if v.Unix() != want {
		t.Errorf("Unix() = %d, want %d", v.Unix(), want)
	}
}

func TestValue_Empty(t *testing.T) {
	v := NewFormatter(nil, "").Value("")
	if !v.IsZero() {
		t.Error("IsZero() = false for empty value")
	}
	if v.Unix() != 0 || v.Display() != "" || v.Format(Unix) != "" {
		t.Errorf("empty value rendered as %d / %q / %q", v.Unix(), v.Display(), v.Format(Unix))
	}
}

func TestValue_LegacyEpochString(t *testing.T) {
	v := NewFormatter(time.UTC, "2006/01/02").Value("1709596800")
	if v.Display() != "2024/03/05" {
		t.Errorf("Display() = %q", v.Display())
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", MySQL, false},
		{"mysql", MySQL, false},
		{"UNIX", Unix, false},
		{"upstream", Upstream, false},
		{"iso", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
