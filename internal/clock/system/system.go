// Package system provides the wall clock used to stamp runs and events.
package system

import "time"

// Clock implements studio.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Since reports the elapsed time from start.
func (c Clock) Since(start time.Time) time.Duration {
	return c.Now().Sub(start)
}
