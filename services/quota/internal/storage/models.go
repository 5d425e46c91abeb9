// Package storage persists rolling hit windows keyed by (record key, request class).
package storage

import (
	"errors"
	"time"
)

var (
	ErrInvalidWindow = errors.New("lookback window must be positive")
	ErrNotFound      = errors.New("not found")
)

// Window is one persisted hit record. Hits are read as a set and are not kept sorted.
type Window struct {
	Key       string
	Class     string
	Hits      []time.Time
	UpdatedAt time.Time
}

// Prune drops every hit at or before now-lookback.
func Prune(hits []time.Time, now time.Time, lookback time.Duration) []time.Time {
	cutoff := now.Add(-lookback)
	out := hits[:0:0]
	for _, h := range hits {
		if h.After(cutoff) {
			out = append(out, h)
		}
	}
	return out
}

// Oldest returns the earliest hit, or false for an empty window.
func Oldest(hits []time.Time) (time.Time, bool) {
	if len(hits) == 0 {
		return time.Time{}, false
	}
	oldest := hits[0]
	for _, h := range hits[1:] {
		if h.Before(oldest) {
			oldest = h
		}
	}
	return oldest, true
}

// ResetIn is the time until the oldest surviving hit ages out of the window.
func ResetIn(hits []time.Time, now time.Time, lookback time.Duration) (time.Duration, bool) {
	oldest, ok := Oldest(hits)
	if !ok {
		return 0, false
	}
	return oldest.Add(lookback).Sub(now), true
}
