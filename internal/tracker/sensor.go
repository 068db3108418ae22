package tracker

import (
	"context"
	"errors"
	"time"
)

// Sensor errors. Permission denial is handled exactly like unavailability.
var (
	ErrSensorUnavailable = errors.New("step sensor unavailable")
	ErrSensorDenied      = errors.New("step sensor permission denied")
	ErrQueryUnsupported  = errors.New("step sensor cannot answer cumulative queries")
)

// IsSensorError reports whether err belongs to the sensor error family.
func IsSensorError(err error) bool {
	return errors.Is(err, ErrSensorUnavailable) ||
		errors.Is(err, ErrSensorDenied) ||
		errors.Is(err, ErrQueryUnsupported)
}

// Sensor is a pedometer. Counts are monotonically non-decreasing.
type Sensor interface {
	IsAvailable(ctx context.Context) bool
	// QueryCumulative returns the steps counted in [since, until].
	QueryCumulative(ctx context.Context, since, until time.Time) (int, error)
	// Subscribe delivers step increments to onIncrement until the returned
	// Subscription is cancelled. onIncrement must not be called from within
	// Subscribe itself.
	Subscribe(onIncrement func(delta int)) (Subscription, error)
}

type Subscription interface {
	Cancel()
}
