// Package system provides the wall-clock implementation of crawler.Clock.
package system

import "time"

// Clock implements crawler.Clock using time.Now. Page timestamps go through
// this interface so tests can pin FetchedAt.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
