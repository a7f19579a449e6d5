package window

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vcscsvcscs/arogyasahay-backend/pkg/model"
)

// Tolerance is the half-width of the visibility window around a scheduled dose
const Tolerance = 30 * time.Minute

// Status is the evaluation of a dose at a given instant
type Status string

const (
	// StatusInactive means the dose is not actionable: before its window,
	// outside its course dates, or already taken
	StatusInactive Status = "inactive"
	// StatusDue means the dose is visible and a take action is accepted. There
	// is no separate upcoming state: a dose becomes visible when its window opens.
	StatusDue Status = "due"
	// StatusMissed means the window closed without confirmation
	StatusMissed Status = "missed"
)

// ParseTimeOfDay parses an "HH:MM" 24h time into hours and minutes
func ParseTimeOfDay(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid time of day %q: hour must be 00-23", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("invalid time of day %q: minute must be 00-59", s)
	}
	return h, m, nil
}

// Scheduled combines the calendar day of now with the medication's time of day
func Scheduled(now time.Time, med *model.Medication) (time.Time, error) {
	h, m, err := ParseTimeOfDay(med.Time)
	if err != nil {
		return time.Time{}, err
	}
	y, mo, d := now.Date()
	return time.Date(y, mo, d, h, m, 0, 0, now.Location()), nil
}

// Bounds returns the visibility window [opens, closes] for today's dose
func Bounds(now time.Time, med *model.Medication) (opens, closes time.Time, err error) {
	scheduled, err := Scheduled(now, med)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return scheduled.Add(-Tolerance), scheduled.Add(Tolerance), nil
}

// InCourse reports whether now falls within a non-chronic medication's
// [start, end] date range. Chronic medications are always in course.
func InCourse(now time.Time, med *model.Medication) bool {
	if med.Chronic {
		return true
	}
	today := dayOf(now, now.Location())
	if med.StartDate != nil && today.Before(dayOf(*med.StartDate, now.Location())) {
		return false
	}
	if med.EndDate != nil && today.After(dayOf(*med.EndDate, now.Location())) {
		return false
	}
	return true
}

// Evaluate classifies the medication's dose at instant now. It is pure and
// deterministic; the only error is a malformed time of day.
func Evaluate(now time.Time, med *model.Medication) (Status, error) {
	opens, closes, err := Bounds(now, med)
	if err != nil {
		return "", err
	}
	if med.Missed {
		return StatusMissed, nil
	}
	if med.Taken || !InCourse(now, med) {
		return StatusInactive, nil
	}
	switch {
	case now.Before(opens):
		return StatusInactive, nil
	case now.After(closes):
		return StatusMissed, nil
	default:
		return StatusDue, nil
	}
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
