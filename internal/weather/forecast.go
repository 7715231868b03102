package weather

import (
	"time"
)

// maxDistance is how far the requested time may be from the closest series
// entry before the lookup is considered out of range.
const maxDistance = 12 * time.Hour

// NearestPoint selects the series entry whose timestamp is closest to at.
// Ties are broken in favor of the earlier timestamp. When the closest entry
// is still more than twelve hours away, ErrOutOfRange is returned.
func NearestPoint(series TimeSeries, at time.Time) (Point, error) {
	if len(series) == 0 {
		return Point{}, ErrOutOfRange
	}

	best := series[0]
	bestDiff := absDuration(series[0].Time.Sub(at))

	for _, p := range series[1:] {
		diff := absDuration(p.Time.Sub(at))
		if diff < bestDiff || (diff == bestDiff && p.Time.Before(best.Time)) {
			best = p
			bestDiff = diff
		}
	}

	if bestDiff > maxDistance {
		return Point{}, ErrOutOfRange
	}
	return best, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
