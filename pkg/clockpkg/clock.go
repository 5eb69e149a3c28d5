// Package clockpkg provides the time source used by services.
package clockpkg

import "time"

// Clock supplies the current time so that date-sensitive logic can be
// tested with a fixed time source.
type Clock interface {
	Now() time.Time
	Today() time.Time
}

// Real reads the system clock.
type Real struct{}

// Now returns the current UTC time.
func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Today returns the current UTC date truncated to midnight.
func (Real) Today() time.Time {
	return Midnight(time.Now().UTC())
}

// Frozen always returns the same instant.
type Frozen struct {
	Time time.Time
}

// Now returns the frozen instant.
func (f Frozen) Now() time.Time {
	return f.Time
}

// Today returns the frozen instant truncated to midnight UTC.
func (f Frozen) Today() time.Time {
	return Midnight(f.Time)
}

// Midnight truncates t to midnight UTC.
func Midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
