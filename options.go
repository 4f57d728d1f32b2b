package respool

import "time"

// Options configures a Pool. Negative numeric values denote "unlimited" for
// all four caps; zero is only valid for MaxIdleCount.
type Options struct {
	// MaxLifetime destroys an element once now - createdAt exceeds it. Zero
	// is disallowed (use a negative value for "no limit"); see OptionsPatch.
	MaxLifetime time.Duration

	// MaxIdleTime destroys a pooled element once now - idledAt exceeds it.
	// Zero is disallowed, same as MaxLifetime.
	MaxIdleTime time.Duration

	// MaxOpenCount ceilings |active| + |idle|. Zero is disallowed.
	MaxOpenCount int

	// MaxIdleCount ceilings |idle|. Zero is allowed and, like a negative
	// value, leaves the idle stack uncapped.
	MaxIdleCount int

	// ParallelCreate, when false, serialises grow's factory.Create calls: at
	// most one create is in flight at a time. Defaults to true.
	ParallelCreate bool
}

// DefaultOptions returns the zero-friction configuration: no lifetime/idle
// expiry, no open/idle ceiling, and parallel creation.
func DefaultOptions() Options {
	return Options{
		MaxLifetime:    -1,
		MaxIdleTime:    -1,
		MaxOpenCount:   -1,
		MaxIdleCount:   -1,
		ParallelCreate: true,
	}
}

func (o Options) check() error {
	if o.MaxLifetime == 0 {
		return ErrOptionInvalid
	}
	if o.MaxIdleTime == 0 {
		return ErrOptionInvalid
	}
	if o.MaxOpenCount == 0 {
		return ErrOptionInvalid
	}
	return nil
}

// OptionsPatch is a partial update to Options for SetOptions. A nil field is
// left unchanged.
type OptionsPatch struct {
	MaxLifetime    *time.Duration
	MaxIdleTime    *time.Duration
	MaxOpenCount   *int
	MaxIdleCount   *int
	ParallelCreate *bool
}

func (o Options) apply(patch OptionsPatch) (Options, error) {
	next := o
	if patch.MaxLifetime != nil {
		next.MaxLifetime = *patch.MaxLifetime
	}
	if patch.MaxIdleTime != nil {
		next.MaxIdleTime = *patch.MaxIdleTime
	}
	if patch.MaxOpenCount != nil {
		next.MaxOpenCount = *patch.MaxOpenCount
	}
	if patch.MaxIdleCount != nil {
		next.MaxIdleCount = *patch.MaxIdleCount
	}
	if patch.ParallelCreate != nil {
		next.ParallelCreate = *patch.ParallelCreate
	}
	if err := next.check(); err != nil {
		return o, err
	}
	return next, nil
}

func positive(d time.Duration) bool { return d > 0 }
