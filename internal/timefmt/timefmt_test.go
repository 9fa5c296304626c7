package timefmt

import (
	"math"
	"testing"
)

func TestParseDisplayTime(t *testing.T) {
	if got := ParseDisplayTime("05:30"); got != 330 {
		t.Errorf("ParseDisplayTime(05:30) = %v, want 330", got)
	}
	if got := ParseDisplayTime("00:00"); got != 0 {
		t.Errorf("ParseDisplayTime(00:00) = %v, want 0", got)
	}
	if got := ParseDisplayTime("1:02:03"); got != 3723 {
		t.Errorf("ParseDisplayTime(1:02:03) = %v, want 3723", got)
	}
	if got := ParseDisplayTime("45"); got != 45 {
		t.Errorf("ParseDisplayTime(45) = %v, want 45", got)
	}
	if got := ParseDisplayTime("01:02.5"); got != 62.5 {
		t.Errorf("ParseDisplayTime(01:02.5) = %v, want 62.5", got)
	}
}

func TestParseDisplayTime_empty(t *testing.T) {
	if got := ParseDisplayTime(""); got != 0 {
		t.Errorf("empty input should parse as 0, got %v", got)
	}
	if got := ParseDisplayTime("   "); got != 0 {
		t.Errorf("blank input should parse as 0, got %v", got)
	}
}

func TestParseDisplayTime_malformed_is_best_effort(t *testing.T) {
	if got := ParseDisplayTime("xx:30"); got != 30 {
		t.Errorf("non-numeric minutes should count as 0, got %v", got)
	}
	if got := ParseDisplayTime("02:??"); got != 120 {
		t.Errorf("non-numeric seconds should count as 0, got %v", got)
	}
	if got := ParseDisplayTime("-1:10"); got != 10 {
		t.Errorf("negative component should count as 0, got %v", got)
	}
	if got := ParseDisplayTime("::"); got != 0 {
		t.Errorf("separators only should parse as 0, got %v", got)
	}
}

func TestFormatSeconds(t *testing.T) {
	if got := FormatSeconds(0); got != "00:00" {
		t.Errorf("FormatSeconds(0) = %q", got)
	}
	if got := FormatSeconds(330.9); got != "05:30" {
		t.Errorf("FormatSeconds(330.9) = %q, want 05:30", got)
	}
	if got := FormatSeconds(4503); got != "75:03" {
		t.Errorf("FormatSeconds(4503) = %q, want 75:03", got)
	}
}

func TestFormatSeconds_clamps_negative(t *testing.T) {
	if got := FormatSeconds(-12); got != "00:00" {
		t.Errorf("negative input should clamp to 00:00, got %q", got)
	}
	if got := FormatSeconds(math.NaN()); got != "00:00" {
		t.Errorf("NaN should render as 00:00, got %q", got)
	}
}

func TestFormatSeconds_round_trips_display_time(t *testing.T) {
	for _, s := range []string{"00:07", "05:30", "59:59"} {
		if got := FormatSeconds(ParseDisplayTime(s)); got != s {
			t.Errorf("round trip %q -> %q", s, got)
		}
	}
}
