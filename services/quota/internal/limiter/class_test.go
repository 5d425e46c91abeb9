package limiter

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Usama125/ResumeAgentAI-sub000/services/quota/internal/storage"
)

func TestParseClass(t *testing.T) {
	for _, in := range []string{"job_matching", " Chat ", "CONTENT_GENERATION"} {
		if _, err := ParseClass(in); err != nil {
			t.Fatalf("ParseClass(%q): %v", in, err)
		}
	}
	if _, err := ParseClass("resume_parsing"); !errors.Is(err, ErrUnknownClass) {
		t.Fatalf("expected ErrUnknownClass, got %v", err)
	}
}

func TestPolicyValidate(t *testing.T) {
	if err := testPolicy(3, 10).Validate(); err != nil {
		t.Fatalf("expected valid policy: %v", err)
	}

	cases := map[string]func(*Policy){
		"zero lookback":       func(p *Policy) { p.Lookback = 0 },
		"zero anonymous":      func(p *Policy) { p.Limits[Chat] = Limits{Anonymous: 0, Authenticated: 1} },
		"negative authed":     func(p *Policy) { p.Limits[Chat] = Limits{Anonymous: 1, Authenticated: -1} },
		"missing class":       func(p *Policy) { delete(p.Limits, JobMatching) },
		"unknown extra class": func(p *Policy) { p.Limits[Class("resume_parsing")] = Limits{1, 1} },
	}
	for name, mutate := range cases {
		p := testPolicy(3, 10)
		mutate(&p)
		if err := p.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestNewEngineRejectsInvalidPolicy(t *testing.T) {
	if _, err := NewEngine(nil, testPolicy(3, 10), nil); err == nil {
		t.Fatalf("expected error without store")
	}

	p := testPolicy(3, 10)
	p.Lookback = -time.Hour
	if _, err := NewEngine(storage.NewMemory(), p, nil); !errors.Is(err, ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestDecisionJSON(t *testing.T) {
	raw, err := json.Marshal(allow(3, 2, nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"allowed":true,"remaining":2,"reset_in_seconds":null,"limit":3}` {
		t.Fatalf("unexpected payload %s", raw)
	}

	raw, _ = json.Marshal(deny(3, 1500*time.Millisecond))
	if string(raw) != `{"allowed":false,"remaining":0,"reset_in_seconds":2,"limit":3}` {
		t.Fatalf("unexpected payload %s", raw)
	}
}

func TestResetSecondsClamp(t *testing.T) {
	cases := map[time.Duration]int64{
		-time.Second:            1,
		0:                       1,
		time.Millisecond:        1,
		time.Second:             1,
		1001 * time.Millisecond: 2,
		time.Hour:               3600,
	}
	for in, want := range cases {
		if got := resetSeconds(in); got != want {
			t.Fatalf("resetSeconds(%v) = %d, want %d", in, got, want)
		}
	}
}
