package watch

import (
	"context"
	"time"

	"github.com/i474232898/road-watch/internal/roadcond"
)

// RoadSource abstracts the road traffic service (Digitraffic).
type RoadSource interface {
	RoadConditions(ctx context.Context, city City) ([]roadcond.Record, error)
	TrafficMessages(ctx context.Context, city City, situationType string) ([]TrafficMessage, error)
	Maintenance(ctx context.Context, city City, from, to time.Time, taskID string) ([]MaintenanceTask, error)
	CameraImage(ctx context.Context, city City) (CameraImage, error)
}

// WeatherSource abstracts the weather service (FMI open data).
type WeatherSource interface {
	Observations(ctx context.Context, city City, from, to time.Time, timestep time.Duration) (WeatherSeries, error)
	DailyObservations(ctx context.Context, city City, from, to time.Time) (WeatherSeries, error)
	Forecast(ctx context.Context, city City, from, to time.Time, timestep time.Duration) (WeatherSeries, error)
}

// SnapshotStore keeps recent snapshots per city key.
type SnapshotStore interface {
	SaveSnapshot(city string, snapshot Snapshot)
	GetLatest(city string) (Snapshot, error)
	GetRange(city string, from, to time.Time) ([]Snapshot, error)
}

// Repository persists favourites, timelines and camera images.
type Repository interface {
	ListFavourites() (map[string]Selection, error)
	LoadFavourite(name string) (Selection, error)
	SaveFavourite(name string, sel Selection) error
	DeleteFavourite(name string) error

	ListTimelines() ([]string, error)
	LoadTimeline(title string) (Timeline, error)
	SaveTimeline(t Timeline) error

	SaveCameraImage(city string, data []byte) error
	CameraImage(city string) ([]byte, error)
}
