// Package limiter decides whether a throttled request may proceed.
package limiter

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUnknownClass   = errors.New("unknown request class")
	ErrInvalidPolicy  = errors.New("invalid quota policy")
	ErrMissingAccount = errors.New("account id is required")
)

// Class is a category of throttled operation. Each class has its own quota pair.
type Class string

const (
	JobMatching       Class = "job_matching"
	Chat              Class = "chat"
	ContentGeneration Class = "content_generation"
)

var Classes = []Class{JobMatching, Chat, ContentGeneration}

func ParseClass(s string) (Class, error) {
	c := Class(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownClass, s)
	}
	return c, nil
}

func (c Class) Valid() bool {
	for _, known := range Classes {
		if c == known {
			return true
		}
	}
	return false
}

type Limits struct {
	Anonymous     int
	Authenticated int
}

// Policy holds the per-class limits and the shared rolling lookback.
type Policy struct {
	Limits   map[Class]Limits
	Lookback time.Duration
}

func (p Policy) Validate() error {
	if p.Lookback <= 0 {
		return fmt.Errorf("%w: lookback must be positive", ErrInvalidPolicy)
	}
	for _, c := range Classes {
		l, ok := p.Limits[c]
		if !ok {
			return fmt.Errorf("%w: no limits for %s", ErrInvalidPolicy, c)
		}
		if l.Anonymous <= 0 || l.Authenticated <= 0 {
			return fmt.Errorf("%w: limits for %s must be positive", ErrInvalidPolicy, c)
		}
	}
	for c := range p.Limits {
		if !c.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownClass, c)
		}
	}
	return nil
}

func (p Policy) limits(c Class) (Limits, error) {
	l, ok := p.Limits[c]
	if !ok {
		return Limits{}, fmt.Errorf("%w: %q", ErrUnknownClass, c)
	}
	return l, nil
}
