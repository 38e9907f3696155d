package watch

import (
	"time"

	"github.com/i474232898/road-watch/internal/roadcond"
)

// Section names a part of a Snapshot that can be fetched independently.
type Section string

const (
	SectionWeather         Section = "weatherData"
	SectionRoadCondition   Section = "roadCondition"
	SectionTrafficMessages Section = "trafficMessages"
	SectionRoadMaintenance Section = "roadMaintenance"
	SectionRoadCamera      Section = "roadCamera"
)

// WeatherKind tells which FMI query produced a series.
type WeatherKind string

const (
	WeatherObservations WeatherKind = "observations"
	WeatherDaily        WeatherKind = "daily"
	WeatherForecast     WeatherKind = "forecast"
)

// WeatherPoint is one station (or grid point) reading at a point in time.
// Parameters that were missing upstream are absent from Values.
type WeatherPoint struct {
	Time   time.Time          `json:"time"`
	Lat    float64            `json:"lat"`
	Lon    float64            `json:"lon"`
	Values map[string]float64 `json:"values"`
}

// WeatherSeries is a time-ordered set of weather readings for a city.
type WeatherSeries struct {
	City       string         `json:"city"`
	Kind       WeatherKind    `json:"kind"`
	Parameters []string       `json:"parameters"`
	Points     []WeatherPoint `json:"points"`
}

// TrafficMessage is a traffic announcement located inside a city's area.
type TrafficMessage struct {
	SituationID   string `json:"situationId,omitempty"`
	SituationType string `json:"situationType"`
	Name          string `json:"name"`
	Comment       string `json:"comment"`
}

// MaintenanceTask is one tracked maintenance route.
type MaintenanceTask struct {
	Tasks     []string  `json:"tasks"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// CameraImage is the latest image of a city's weather camera.
type CameraImage struct {
	StationID   string `json:"stationId"`
	URL         string `json:"imageUrl"`
	ContentType string `json:"contentType,omitempty"`
	Data        []byte `json:"-"`
}

// CameraInfo is what a snapshot records about the camera image.
type CameraInfo struct {
	Available bool   `json:"available"`
	StationID string `json:"stationId,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

// Snapshot is the result of one search. Sections not enabled by the
// selection are nil.
type Snapshot struct {
	City            string             `json:"city"`
	Settings        Selection          `json:"settings"`
	FetchedAt       time.Time          `json:"fetchedAt"` // always UTC
	From            *time.Time         `json:"from,omitempty"`
	To              *time.Time         `json:"to,omitempty"`
	Weather         *WeatherSeries     `json:"weatherData,omitempty"`
	RoadCondition   *roadcond.Report   `json:"roadCondition,omitempty"`
	TrafficMessages []TrafficMessage   `json:"trafficMessages"`
	Maintenance     []MaintenanceTask  `json:"roadMaintenance"`
	Camera          *CameraInfo        `json:"roadCamera,omitempty"`
	Errors          map[Section]string `json:"errors,omitempty"`
}

// Timeline is a named, saved snapshot of a date-ranged search.
type Timeline struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	SavedAt  time.Time `json:"savedAt"`
	Settings Selection `json:"settings"`
	Data     *Snapshot `json:"data"`
}
