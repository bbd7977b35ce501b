package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type clockTime struct {
	hour   int
	minute int
}

// parseClock parses a 24-hour "HH:MM" wall time.
func parseClock(raw string) (clockTime, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return clockTime{}, fmt.Errorf("invalid time %q, want HH:MM", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return clockTime{}, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return clockTime{}, fmt.Errorf("invalid minute in %q", raw)
	}
	return clockTime{hour: hour, minute: minute}, nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// parseWeekdays maps day names to a weekday set. An empty list means
// Monday through Friday.
func parseWeekdays(names []string) (map[time.Weekday]bool, error) {
	days := make(map[time.Weekday]bool)
	if len(names) == 0 {
		for d := time.Monday; d <= time.Friday; d++ {
			days[d] = true
		}
		return days, nil
	}

	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		day, ok := weekdayNames[key]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		days[day] = true
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("no weekdays configured")
	}
	return days, nil
}
