package alerts

import (
	"log"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Schedule restricts a rule to days of week and a time-of-day window,
// interpreted in its own timezone. A nil schedule always matches.
type Schedule struct {
	Days      []string `json:"days,omitempty" yaml:"days"`
	StartTime string   `json:"start_time,omitempty" yaml:"start_time"`
	EndTime   string   `json:"end_time,omitempty" yaml:"end_time"`
	Timezone  string   `json:"timezone,omitempty" yaml:"timezone"`
}

// Timezone lookups hit the filesystem on most platforms, so resolved
// locations are cached across evaluations.
var tzCache, _ = lru.New[string, *time.Location](64)

func loadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	if loc, ok := tzCache.Get(name); ok {
		return loc
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("Schedule: unknown timezone %q, falling back to UTC", name)
		loc = time.UTC
	}
	tzCache.Add(name, loc)
	return loc
}

// scheduleMatches evaluates a schedule against a UTC timestamp.
// Parse failures on the time strings fail open (the window matches) so a
// config typo degrades to over-alerting instead of silently disabling the rule.
func scheduleMatches(s *Schedule, now time.Time) bool {
	if s == nil {
		return true
	}

	local := now.UTC().In(loadLocation(s.Timezone))

	if len(s.Days) > 0 {
		day := strings.ToLower(local.Weekday().String())
		found := false
		for _, d := range s.Days {
			if strings.ToLower(strings.TrimSpace(d)) == day {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if s.StartTime == "" || s.EndTime == "" {
		return true
	}

	start, err := parseClock(s.StartTime)
	if err != nil {
		log.Printf("Schedule: bad start_time %q (%v), treating window as matched", s.StartTime, err)
		return true
	}
	end, err := parseClock(s.EndTime)
	if err != nil {
		log.Printf("Schedule: bad end_time %q (%v), treating window as matched", s.EndTime, err)
		return true
	}

	current := local.Hour()*60 + local.Minute()

	if start <= end {
		return current >= start && current <= end
	}
	// Overnight span, e.g. 22:00-06:00
	return current >= start || current <= end
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
