package packet

import (
	"fmt"
	"time"

	"github.com/leozzy13/Health-Benchmark/internal/domain/record"
)

const minutesPerDay = 24 * 60

// Minutes returns the whole minutes from admit to t, rounded toward negative
// infinity, or nil when t is nil.
func Minutes(admit time.Time, t *record.Timestamp) *int64 {
	if t == nil {
		return nil
	}
	secs := int64(t.Time.Sub(admit) / time.Second)
	m := secs / 60
	if secs%60 != 0 && secs < 0 {
		m--
	}
	return &m
}

// FirstMinutes is Minutes for the first non-nil candidate.
func FirstMinutes(admit time.Time, candidates ...*record.Timestamp) *int64 {
	for _, c := range candidates {
		if m := Minutes(admit, c); m != nil {
			return m
		}
	}
	return nil
}

// FormatRelative renders a minute offset as H+hh:mm. Offsets before admission
// carry a leading minus sign.
func FormatRelative(minutes int64) string {
	sign := ""
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	return fmt.Sprintf("%sH+%02d:%02d", sign, minutes/60, minutes%60)
}

// HospitalDayLabel renders a non-negative offset as "HospitalDayN hh:mm",
// where day 1 starts at admission. It reports false for negative offsets.
func HospitalDayLabel(minutes int64) (string, bool) {
	if minutes < 0 {
		return "", false
	}
	day := minutes/minutesPerDay + 1
	rem := minutes % minutesPerDay
	return fmt.Sprintf("HospitalDay%d %02d:%02d", day, rem/60, rem%60), true
}
