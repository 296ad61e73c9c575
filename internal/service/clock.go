package service

import "time"

// Clock provides the current time for receipts.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system time.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// TestClock implements Clock with a fixed time.
type TestClock struct {
	FixedTime time.Time
}

// Now returns the fixed time.
func (t TestClock) Now() time.Time {
	return t.FixedTime
}
