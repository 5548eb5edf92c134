package monitor

import (
	"context"
	"fmt"
	"time"
)

// Timeline series names. Counter keys are "stats:<series>:<period>".
const (
	SeriesSucceeded = "succeeded"
	SeriesFailed    = "failed"
)

// Point is one timeline sample.
type Point struct {
	At    time.Time `json:"at"`
	Value int64     `json:"value"`
}

// Daily returns the counter values of series for today and the seven days
// before it, newest first.
func (m *Monitor) Daily(ctx context.Context, series string) ([]Point, error) {
	end := m.now().UTC().Truncate(24 * time.Hour)
	points := make([]Point, 0, 8)
	for i := 0; i <= 7; i++ {
		day := end.AddDate(0, 0, -i)
		points = append(points, Point{At: day})
	}
	return m.fill(ctx, series, "2006-01-02", points)
}

// Hourly returns the counter values of series for the last 24 hours,
// newest first.
func (m *Monitor) Hourly(ctx context.Context, series string) ([]Point, error) {
	end := m.now().UTC().Truncate(time.Hour)
	points := make([]Point, 0, 24)
	for i := 0; i < 24; i++ {
		points = append(points, Point{At: end.Add(-time.Duration(i) * time.Hour)})
	}
	return m.fill(ctx, series, "2006-01-02-15", points)
}

func (m *Monitor) fill(ctx context.Context, series, layout string, points []Point) ([]Point, error) {
	for i := range points {
		key := fmt.Sprintf("stats:%s:%s", series, points[i].At.Format(layout))
		v, err := m.store.CounterValue(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("monitor: counter %s: %w", key, err)
		}
		points[i].Value = v
	}
	return points, nil
}
