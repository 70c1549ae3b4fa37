package assessment

import "time"

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

func clockOrSystem(clock Clock) Clock {
	if clock == nil {
		return SystemClock{}
	}
	return clock
}
