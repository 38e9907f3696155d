package roadcond

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Result maps a location name to its aggregated report.
type Result map[string]Report

// Report holds one reduced bucket per horizon for a single location.
// Horizons without any usable reading are listed in Insufficient and are
// absent from Buckets. Records that failed schema validation are listed in
// Rejected and did not contribute to any bucket.
type Report struct {
	Location     string
	Buckets      map[Horizon]Bucket
	Insufficient []Horizon
	Rejected     []*RecordError
}

// Bucket returns the reduced bucket for h, or an *EmptyBucketError when the
// horizon had no usable readings.
func (r Report) Bucket(h Horizon) (Bucket, error) {
	if b, ok := r.Buckets[h]; ok {
		return b, nil
	}
	return nil, &EmptyBucketError{Horizon: h}
}

// NewObservation validates a raw record against the schema of its horizon.
// The returned error is always a *RecordError.
func NewObservation(rec Record) (Observation, error) {
	h, err := ParseHorizon(rec.ForecastName)
	if err != nil {
		return nil, &RecordError{ForecastName: rec.ForecastName, Err: ErrUnknownHorizon}
	}

	fail := func(cause error, field string) (Observation, error) {
		return nil, &RecordError{ForecastName: rec.ForecastName, Field: field, Err: cause}
	}

	switch {
	case rec.Daylight == "":
		return fail(ErrMissingField, "daylight")
	case rec.OverallRoadCondition == "":
		return fail(ErrMissingField, "overallRoadCondition")
	case rec.TemperatureInvalid:
		return fail(ErrInvalidTemperature, "roadTemperature")
	case rec.RoadTemperature == nil:
		return fail(ErrMissingField, "roadTemperature")
	case math.IsNaN(*rec.RoadTemperature) || math.IsInf(*rec.RoadTemperature, 0):
		return fail(ErrInvalidTemperature, "roadTemperature")
	}

	reading := Reading{
		Daylight:             rec.Daylight,
		RoadTemperature:      *rec.RoadTemperature,
		OverallRoadCondition: rec.OverallRoadCondition,
	}

	if !h.IsForecast() {
		if rec.Reason != nil {
			return fail(ErrUnexpectedField, "forecastConditionReason")
		}
		return CurrentObservation{Reading: reading}, nil
	}

	switch {
	case rec.Reason == nil:
		return fail(ErrMissingField, "forecastConditionReason")
	case rec.Reason.PrecipitationCondition == "":
		return fail(ErrMissingField, "forecastConditionReason.precipitationCondition")
	case rec.Reason.RoadCondition == "":
		return fail(ErrMissingField, "forecastConditionReason.roadCondition")
	}

	obs, err := NewForecastObservation(h, reading, rec.Reason.PrecipitationCondition, rec.Reason.RoadCondition)
	if err != nil {
		return fail(err, "forecastName")
	}
	return obs, nil
}

// Reduce collapses the observations of one horizon into a single bucket.
// Categorical fields take the most frequent value; ties go to the value whose
// running count reaches the maximum first in input order. Road temperature is
// the arithmetic mean.
func Reduce(h Horizon, observations []Observation) (Bucket, error) {
	if _, err := ParseHorizon(string(h)); err != nil {
		return nil, err
	}
	if len(observations) == 0 {
		return nil, &EmptyBucketError{Horizon: h}
	}

	n := len(observations)
	daylight := make([]string, 0, n)
	overall := make([]string, 0, n)
	precip := make([]string, 0, n)
	road := make([]string, 0, n)
	var sumTemp float64

	for _, o := range observations {
		if o.Horizon() != h {
			return nil, fmt.Errorf("reduce %s: observation belongs to %s", h, o.Horizon())
		}
		r := o.reading()
		daylight = append(daylight, r.Daylight)
		overall = append(overall, r.OverallRoadCondition)
		sumTemp += r.RoadTemperature

		if fo, ok := o.(ForecastObservation); ok {
			if !h.IsForecast() {
				return nil, fmt.Errorf("reduce %s: %w: forecast observation", h, ErrUnexpectedField)
			}
			precip = append(precip, fo.PrecipitationCondition)
			road = append(road, fo.RoadCondition)
		}
	}

	meanTemp := sumTemp / float64(n)

	if !h.IsForecast() {
		return CurrentBucket{
			Daylight:             mode(daylight),
			RoadTemperature:      meanTemp,
			OverallRoadCondition: mode(overall),
		}, nil
	}

	return ForecastBucket{
		At:                     h,
		Daylight:               mode(daylight),
		RoadTemperature:        meanTemp,
		OverallRoadCondition:   mode(overall),
		PrecipitationCondition: mode(precip),
		RoadCondition:          mode(road),
	}, nil
}

// Aggregate validates and groups raw records by horizon and reduces each
// horizon to one bucket. Malformed records are dropped individually and
// reported in Report.Rejected; they never invalidate the rest of a bucket.
func Aggregate(location string, records []Record) (Result, error) {
	if strings.TrimSpace(location) == "" {
		return nil, ErrNoLocation
	}

	report := Report{
		Location: location,
		Buckets:  make(map[Horizon]Bucket, len(Horizons)),
	}

	grouped := make(map[Horizon][]Observation, len(Horizons))
	for i, rec := range records {
		obs, err := NewObservation(rec)
		if err != nil {
			var recErr *RecordError
			if !errors.As(err, &recErr) {
				return nil, err
			}
			recErr.Index = i
			report.Rejected = append(report.Rejected, recErr)
			continue
		}
		grouped[obs.Horizon()] = append(grouped[obs.Horizon()], obs)
	}

	for _, h := range Horizons {
		b, err := Reduce(h, grouped[h])
		if errors.Is(err, ErrEmptyBucket) {
			report.Insufficient = append(report.Insufficient, h)
			continue
		}
		if err != nil {
			return nil, err
		}
		report.Buckets[h] = b
	}

	return Result{location: report}, nil
}

// mode returns the most frequent value. Among equally frequent values it picks
// the one whose running count hits the maximum earliest.
func mode(values []string) string {
	counts := make(map[string]int, len(values))
	best := 0
	for _, v := range values {
		counts[v]++
		if counts[v] > best {
			best = counts[v]
		}
	}

	running := make(map[string]int, len(counts))
	for _, v := range values {
		running[v]++
		if running[v] == best {
			return v
		}
	}
	return ""
}
