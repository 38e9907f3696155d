package roadcond

import "fmt"

// Horizon is a forecast lead-time bucket reported by the road-condition service.
type Horizon string

const (
	Horizon0h  Horizon = "0h"
	Horizon2h  Horizon = "2h"
	Horizon4h  Horizon = "4h"
	Horizon6h  Horizon = "6h"
	Horizon12h Horizon = "12h"
)

// Horizons lists every bucket in display order.
var Horizons = []Horizon{Horizon0h, Horizon2h, Horizon4h, Horizon6h, Horizon12h}

// ParseHorizon maps an upstream forecastName label to a Horizon.
func ParseHorizon(label string) (Horizon, error) {
	for _, h := range Horizons {
		if string(h) == label {
			return h, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownHorizon, label)
}

// IsForecast reports whether the horizon carries the forecast reason fields.
func (h Horizon) IsForecast() bool {
	return h != Horizon0h
}

// Reason is the nested forecastConditionReason block of an upstream record.
type Reason struct {
	PrecipitationCondition string `json:"precipitationCondition"`
	RoadCondition          string `json:"roadCondition"`
}

// Record is one raw road-condition reading as parsed from the upstream payload.
// RoadTemperature is nil when the payload had no value. TemperatureInvalid is
// set when a value was present but could not be read as a number.
type Record struct {
	ForecastName         string   `json:"forecastName"`
	Daylight             string   `json:"daylight"`
	RoadTemperature      *float64 `json:"roadTemperature"`
	TemperatureInvalid   bool     `json:"-"`
	OverallRoadCondition string   `json:"overallRoadCondition"`
	Reason               *Reason  `json:"forecastConditionReason,omitempty"`
}

// Reading holds the fields shared by every horizon.
type Reading struct {
	Daylight             string
	RoadTemperature      float64
	OverallRoadCondition string
}

// Observation is a validated Record. It is either a CurrentObservation (0h)
// or a ForecastObservation (2h, 4h, 6h, 12h).
type Observation interface {
	Horizon() Horizon
	reading() Reading
}

// CurrentObservation is a 0h reading. It has no forecast reason fields.
type CurrentObservation struct {
	Reading
}

func (CurrentObservation) Horizon() Horizon    { return Horizon0h }
func (o CurrentObservation) reading() Reading { return o.Reading }

// ForecastObservation is a reading for one of the forecast horizons.
// Build it with NewForecastObservation.
type ForecastObservation struct {
	at Horizon
	Reading
	PrecipitationCondition string
	RoadCondition          string
}

// NewForecastObservation pins a reading to a forecast horizon. The 0h horizon
// is rejected since it has no reason fields.
func NewForecastObservation(h Horizon, r Reading, precipitation, road string) (ForecastObservation, error) {
	if _, err := ParseHorizon(string(h)); err != nil {
		return ForecastObservation{}, err
	}
	if !h.IsForecast() {
		return ForecastObservation{}, fmt.Errorf("%w: %s is not a forecast horizon", ErrUnexpectedField, h)
	}
	return ForecastObservation{
		at:                     h,
		Reading:                r,
		PrecipitationCondition: precipitation,
		RoadCondition:          road,
	}, nil
}

func (o ForecastObservation) Horizon() Horizon { return o.at }
func (o ForecastObservation) reading() Reading { return o.Reading }

// Bucket is the reduced value of one horizon: a CurrentBucket for 0h,
// a ForecastBucket otherwise.
type Bucket interface {
	Horizon() Horizon
	Temperature() float64
}

// CurrentBucket is the summary of all 0h readings.
type CurrentBucket struct {
	Daylight             string  `json:"daylight"`
	RoadTemperature      float64 `json:"roadTemperature"`
	OverallRoadCondition string  `json:"overallRoadCondition"`
}

func (CurrentBucket) Horizon() Horizon       { return Horizon0h }
func (b CurrentBucket) Temperature() float64 { return b.RoadTemperature }

// ForecastBucket is the summary of one forecast horizon.
type ForecastBucket struct {
	At                     Horizon `json:"-"`
	Daylight               string  `json:"daylight"`
	RoadTemperature        float64 `json:"roadTemperature"`
	OverallRoadCondition   string  `json:"overallRoadCondition"`
	PrecipitationCondition string  `json:"precipitationCondition"`
	RoadCondition          string  `json:"roadCondition"`
}

func (b ForecastBucket) Horizon() Horizon     { return b.At }
func (b ForecastBucket) Temperature() float64 { return b.RoadTemperature }
