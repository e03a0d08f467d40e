package textparse

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
	"2-1-2006",
	"2/1/2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"02-Jan-2006",
	time.RFC3339,
}

var clockLayouts = []string{
	"15:04:05",
	"15:04",
	"3:04 PM",
	"3:04PM",
	"3:04:05 PM",
}

// ParseDate accepts ISO dates and the day-first layouts common on Indian and
// UK statements. Ambiguous numeric dates are read day first.
func ParseDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseClock accepts 24-hour and 12-hour clock times.
func ParseClock(s string) (civil.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.TimeOf(t), nil
		}
	}
	return civil.Time{}, fmt.Errorf("unrecognized time %q", s)
}
