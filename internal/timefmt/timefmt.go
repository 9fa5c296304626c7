package timefmt

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseDisplayTime converts a displayed timestamp ("MM:SS", also "HH:MM:SS" or
// plain seconds) into elapsed seconds. It never fails: empty input yields 0 and
// any component that is not a non-negative number counts as 0, so a single bad
// timestamp cannot block rendering of the rest of a transcript.
func ParseDisplayTime(text string) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	total := 0.0
	for _, part := range strings.Split(text, ":") {
		total = total*60 + component(part)
	}
	return total
}

func component(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// FormatSeconds renders seconds as a zero-padded "MM:SS" playback clock.
// Negative and NaN inputs render as "00:00"; minutes are not wrapped at 60.
func FormatSeconds(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	whole := int64(math.Floor(seconds))
	return fmt.Sprintf("%02d:%02d", whole/60, whole%60)
}
