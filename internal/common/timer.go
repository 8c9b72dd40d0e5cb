// Package common provides shared timing utilities.
package common

import (
	"fmt"
	"strings"
	"time"
)

// Timer measures one named interval.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// NewNamedTimer creates a new timer with the given name.
func NewNamedTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now()}
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration { return t.duration }

// Name returns the timer name (empty string if unnamed).
func (t *Timer) Name() string { return t.name }

func (t *Timer) String() string {
	if t.name != "" {
		return fmt.Sprintf("%s: %v", t.name, t.duration)
	}
	return t.duration.String()
}

// Stages records the duration of consecutive named steps of one call.
type Stages struct {
	names []string
	durs  []time.Duration
	last  time.Time
	start time.Time
}

// NewStages starts the clock.
func NewStages() *Stages {
	now := time.Now()
	return &Stages{last: now, start: now}
}

// Mark closes the current stage under name and starts the next one.
func (s *Stages) Mark(name string) {
	now := time.Now()
	s.names = append(s.names, name)
	s.durs = append(s.durs, now.Sub(s.last))
	s.last = now
}

// Total returns the time since NewStages.
func (s *Stages) Total() time.Duration { return s.last.Sub(s.start) }

// Nanos returns the stage durations in nanoseconds keyed by name.
func (s *Stages) Nanos() map[string]int64 {
	out := make(map[string]int64, len(s.names))
	for i, n := range s.names {
		out[n] += s.durs[i].Nanoseconds()
	}
	return out
}

func (s *Stages) String() string {
	parts := make([]string, len(s.names))
	for i, n := range s.names {
		parts[i] = fmt.Sprintf("%s=%v", n, s.durs[i])
	}
	return strings.Join(parts, " ")
}
