// Package clock provides an injectable time source so that expiry and
// issue-date rules are deterministic under test.
package clock

import "time"

// Clock is the time source contract consumed by the domain services.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// System returns a Clock backed by the wall clock in UTC.
func System() Clock { return systemClock{} }

// Fixed returns a Clock frozen at t. Intended for tests.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time { return f.T }
