package tracker

import (
	"fmt"
	"strconv"
	"time"

	"github.com/coresight/coresight/internal/apperror"
)

// Window is a lookback period for uptime reports.
type Window struct {
	Label    string
	Duration time.Duration
}

var windows = map[string]time.Duration{
	"24h":  24 * time.Hour,
	"7d":   7 * 24 * time.Hour,
	"30d":  30 * 24 * time.Hour,
	"365d": 365 * 24 * time.Hour,
}

// ParseWindow accepts a named range (24h, 7d, 30d, 365d) or a number of
// hours. Both empty means 24h.
func ParseWindow(rangeParam, hoursParam string) (Window, error) {
	const op = "tracker.ParseWindow"
	if hoursParam != "" {
		h, err := strconv.Atoi(hoursParam)
		if err != nil || h <= 0 || h > 24*365 {
			return Window{}, apperror.New(apperror.InvalidInput, op, fmt.Errorf("invalid hours %q", hoursParam)).
				WithMessage("hours must be between 1 and 8760")
		}
		return Window{Label: fmt.Sprintf("%dh", h), Duration: time.Duration(h) * time.Hour}, nil
	}
	if rangeParam == "" {
		rangeParam = "24h"
	}
	d, ok := windows[rangeParam]
	if !ok {
		return Window{}, apperror.New(apperror.InvalidInput, op, fmt.Errorf("invalid range %q", rangeParam)).
			WithMessage("range must be one of 24h, 7d, 30d, 365d")
	}
	return Window{Label: rangeParam, Duration: d}, nil
}
