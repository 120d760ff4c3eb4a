package retrain

import (
	"fmt"
	"time"
)

// #region schedule
// Schedule is a weekly retraining slot.
type Schedule struct {
	Day      uint8 `json:"day" yaml:"day" toml:"day"` // 0 = Sunday
	Hour     uint8 `json:"hour" yaml:"hour" toml:"hour"`
	Minute   uint8 `json:"minute" yaml:"minute" toml:"minute"`
	TZOffset int8  `json:"tz_offset" yaml:"tz_offset" toml:"tz_offset"` // hours east of UTC
}

// DefaultSchedule is Sunday at 02:00 UTC.
func DefaultSchedule() Schedule {
	return Schedule{Day: 0, Hour: 2}
}

// NewSchedule clamps day, hour and minute into range.
func NewSchedule(day, hour, minute uint8) Schedule {
	return Schedule{Day: min(day, 6), Hour: min(hour, 23), Minute: min(minute, 59)}
}

func (s Schedule) WithTimezone(offset int8) Schedule {
	s.TZOffset = offset
	return s
}

func (s Schedule) location() *time.Location {
	return time.FixedZone(s.zoneName(), int(s.TZOffset)*3600)
}

func (s Schedule) zoneName() string {
	if s.TZOffset >= 0 {
		return fmt.Sprintf("UTC+%d", s.TZOffset)
	}
	return fmt.Sprintf("UTC%d", s.TZOffset)
}

// ShouldRun reports whether t falls in the scheduled minute.
func (s Schedule) ShouldRun(t time.Time) bool {
	local := t.In(s.location())
	return uint8(local.Weekday()) == s.Day && uint8(local.Hour()) == s.Hour && uint8(local.Minute()) == s.Minute
}

// Description renders e.g. "Sunday at 02:00 UTC+0".
func (s Schedule) Description() string {
	day := "Unknown"
	if s.Day <= 6 {
		day = time.Weekday(s.Day).String()
	}
	return fmt.Sprintf("%s at %02d:%02d %s", day, s.Hour, s.Minute, s.zoneName())
}

// Next returns the first scheduled slot strictly after t.
func (s Schedule) Next(t time.Time) time.Time {
	loc := s.location()
	local := t.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), int(s.Hour), int(s.Minute), 0, 0, loc)
	delta := (int(s.Day) - int(local.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, delta)
	if !candidate.After(t) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

// #endregion schedule
