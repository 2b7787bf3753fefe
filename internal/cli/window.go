package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

var errWindowArgs = errors.New("want <days-back> or <start-date> <end-date> (YYYY-MM-DD)")

// window is the publication range of one scrape.
type window struct {
	From  time.Time
	Until time.Time
}

// Cursor is the feed upper bound as POSIX seconds.
func (w window) Cursor() string {
	return strconv.FormatInt(w.Until.Unix(), 10)
}

// parseWindow reads either a number of days back, meaning local midnight
// that many days ago until now, or an inclusive pair of local dates.
func parseWindow(args []string, now time.Time, loc *time.Location) (window, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch len(args) {
	case 1:
		days, err := strconv.Atoi(args[0])
		if err != nil || days < 0 {
			return window{}, fmt.Errorf("invalid days back %q: %w", args[0], errWindowArgs)
		}
		local := now.In(loc)
		midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		return window{From: midnight.AddDate(0, 0, -days), Until: now}, nil

	case 2:
		start, err := time.ParseInLocation(dateLayout, args[0], loc)
		if err != nil {
			return window{}, fmt.Errorf("invalid start date %q: %w", args[0], errWindowArgs)
		}
		end, err := time.ParseInLocation(dateLayout, args[1], loc)
		if err != nil {
			return window{}, fmt.Errorf("invalid end date %q: %w", args[1], errWindowArgs)
		}
		if start.After(end) {
			return window{}, fmt.Errorf("start date %s is after end date %s", args[0], args[1])
		}
		return window{From: start, Until: end.AddDate(0, 0, 1)}, nil

	default:
		return window{}, errWindowArgs
	}
}
