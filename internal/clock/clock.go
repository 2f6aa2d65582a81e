package clock

import "time"

// Clock provides the current time. All persisted timestamps go through it
// so tests can move time forward without sleeping.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

func New() Clock {
	return RealClock{}
}
