package limiter

import (
	"math"
	"time"
)

// Path tells which decision path produced a Decision.
type Path string

const (
	PathAnonymous     Path = "anonymous"
	PathAuthenticated Path = "authenticated"
)

// Decision is the outcome of one quota check. ResetInSeconds is nil only when the
// request was allowed and the client had no prior usage in the window.
type Decision struct {
	Allowed        bool   `json:"allowed"`
	Remaining      int    `json:"remaining"`
	ResetInSeconds *int64 `json:"reset_in_seconds"`
	Limit          int    `json:"limit"`
}

func allow(limit, remaining int, reset *time.Duration) Decision {
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{Allowed: true, Remaining: remaining, Limit: limit}
	if reset != nil {
		secs := resetSeconds(*reset)
		d.ResetInSeconds = &secs
	}
	return d
}

func deny(limit int, reset time.Duration) Decision {
	secs := resetSeconds(reset)
	return Decision{Allowed: false, Remaining: 0, ResetInSeconds: &secs, Limit: limit}
}

// resetSeconds rounds up to whole seconds and never reports less than one.
func resetSeconds(d time.Duration) int64 {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
