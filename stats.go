package respool

import "time"

// Stats is a point-in-time snapshot of a Pool's internal counters.
type Stats struct {
	MaxOpenCount int
	MaxLifetime  time.Duration
	MaxIdleTime  time.Duration
	MaxIdleCount int

	Count        int           // |active| + |idle|
	InUseCount   int           // |active|
	IdleCount    int           // |idle|
	WaitCount    int           // |waitQueue|
	WaitDuration time.Duration // cumulative across completed waits

	MaxIdleClosed     int64
	MaxIdleTimeClosed int64
	MaxLifetimeClosed int64
}
