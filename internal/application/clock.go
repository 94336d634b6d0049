package application

import (
	"time"

	"github.com/joacominatel/cadence/internal/domain"
)

// TimeProvider abstracts time acquisition for testability.
// inject a custom implementation to control time in tests.
type TimeProvider func() time.Time

// RealTime returns the current UTC time.
// use this in production.
func RealTime() time.Time {
	return time.Now().UTC()
}

// today returns the epoch day of the provider's current time.
func (tp TimeProvider) today() domain.EpochDay {
	return domain.EpochDayFromTime(tp())
}

// untilMidnight returns the time left in the provider's current UTC day.
func (tp TimeProvider) untilMidnight() time.Duration {
	now := tp()
	return tp.today().AddDays(1).Time().Sub(now)
}
