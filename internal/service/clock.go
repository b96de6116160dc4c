package service

import "time"

// Clock supplies the current time.  Services never call time.Now
// directly so tests can move time forward.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
