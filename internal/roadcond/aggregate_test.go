package roadcond

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"
)

func temp(v float64) *float64 { return &v }

func forecastRecord(h, overall string, t float64) Record {
	return Record{
		ForecastName:         h,
		Daylight:             "DAYLIGHT",
		RoadTemperature:      temp(t),
		OverallRoadCondition: overall,
		Reason: &Reason{
			PrecipitationCondition: "NO_RAIN_DRY_WEATHER",
			RoadCondition:          "DRY",
		},
	}
}

// TestAggregateModeAndMean covers the three-record 2h scenario.
func TestAggregateModeAndMean(t *testing.T) {
	records := []Record{
		forecastRecord("2h", "DRY", 1.0),
		forecastRecord("2h", "DRY", 2.0),
		forecastRecord("2h", "WET", 6.0),
	}

	res, err := Aggregate("TAMPERE", records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, err := res["TAMPERE"].Bucket(Horizon2h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fb, ok := b.(ForecastBucket)
	if !ok {
		t.Fatalf("expected ForecastBucket, got %T", b)
	}
	if fb.OverallRoadCondition != "DRY" {
		t.Fatalf("expected overallRoadCondition DRY, got %q", fb.OverallRoadCondition)
	}
	if math.Abs(fb.RoadTemperature-3.0) > 1e-9 {
		t.Fatalf("expected roadTemperature 3.0, got %v", fb.RoadTemperature)
	}
}

// TestAggregateSingleCurrentRecord checks a lone 0h record passes through verbatim.
func TestAggregateSingleCurrentRecord(t *testing.T) {
	records := []Record{{
		ForecastName:         "0h",
		Daylight:             "DAYLIGHT",
		RoadTemperature:      temp(-1.5),
		OverallRoadCondition: "NORMAL",
	}}

	res, err := Aggregate("OULU", records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, err := res["OULU"].Bucket(Horizon0h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := CurrentBucket{Daylight: "DAYLIGHT", RoadTemperature: -1.5, OverallRoadCondition: "NORMAL"}
	if b != want {
		t.Fatalf("expected %+v, got %+v", want, b)
	}

	raw, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"precipitationCondition", "roadCondition"} {
		if _, ok := fields[k]; ok {
			t.Fatalf("0h bucket must not carry %s: %s", k, raw)
		}
	}
}

func TestAggregateEmptyBuckets(t *testing.T) {
	res, err := Aggregate("TURKU", []Record{forecastRecord("4h", "NORMAL_CONDITION", 0.5)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	report := res["TURKU"]
	want := []Horizon{Horizon0h, Horizon2h, Horizon6h, Horizon12h}
	if !reflect.DeepEqual(report.Insufficient, want) {
		t.Fatalf("expected insufficient %v, got %v", want, report.Insufficient)
	}

	_, err = report.Bucket(Horizon12h)
	if !errors.Is(err, ErrEmptyBucket) {
		t.Fatalf("expected ErrEmptyBucket, got %v", err)
	}
	var emptyErr *EmptyBucketError
	if !errors.As(err, &emptyErr) || emptyErr.Horizon != Horizon12h {
		t.Fatalf("expected EmptyBucketError for 12h, got %v", err)
	}

	for h, b := range report.Buckets {
		if math.IsNaN(b.Temperature()) || math.IsInf(b.Temperature(), 0) {
			t.Fatalf("bucket %s has non-finite temperature", h)
		}
	}
}

func TestReduceEmpty(t *testing.T) {
	_, err := Reduce(Horizon6h, nil)
	if !errors.Is(err, ErrEmptyBucket) {
		t.Fatalf("expected ErrEmptyBucket, got %v", err)
	}
}

func TestReduceUnknownHorizon(t *testing.T) {
	_, err := Reduce(Horizon("bogus"), nil)
	if !errors.Is(err, ErrUnknownHorizon) {
		t.Fatalf("expected ErrUnknownHorizon, got %v", err)
	}
	if errors.Is(err, ErrEmptyBucket) {
		t.Fatalf("unknown horizon must not look like an empty bucket: %v", err)
	}
}

func TestForecastObservationHorizon(t *testing.T) {
	r := Reading{Daylight: "DAYLIGHT", RoadTemperature: 1, OverallRoadCondition: "NORMAL"}

	if _, err := NewForecastObservation(Horizon0h, r, "RAIN", "WET"); !errors.Is(err, ErrUnexpectedField) {
		t.Fatalf("expected ErrUnexpectedField for 0h, got %v", err)
	}
	if _, err := NewForecastObservation(Horizon("5h"), r, "RAIN", "WET"); !errors.Is(err, ErrUnknownHorizon) {
		t.Fatalf("expected ErrUnknownHorizon, got %v", err)
	}

	obs, err := NewForecastObservation(Horizon6h, r, "RAIN", "WET")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obs.Horizon() != Horizon6h {
		t.Fatalf("expected 6h, got %s", obs.Horizon())
	}

	// A forecast observation never reduces into the 0h bucket.
	if _, err := Reduce(Horizon0h, []Observation{obs}); err == nil {
		t.Fatal("expected horizon mismatch error")
	}
	if _, err := Reduce(Horizon0h, []Observation{ForecastObservation{}}); err == nil {
		t.Fatal("expected error for zero forecast observation")
	}
}

func TestModeTieBreak(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"single", []string{"WET"}, "WET"},
		{"clear winner", []string{"WET", "DRY", "DRY"}, "DRY"},
		{"tie first reaches max", []string{"A", "B", "B", "A"}, "B"},
		{"tie in order", []string{"A", "B", "A", "B"}, "A"},
		{"all distinct", []string{"X", "Y", "Z"}, "X"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 20; i++ {
				if got := mode(tt.values); got != tt.want {
					t.Fatalf("expected %q, got %q", tt.want, got)
				}
			}
		})
	}
}

func TestAggregateDeterministic(t *testing.T) {
	records := []Record{
		forecastRecord("6h", "POOR_CONDITION", 1),
		forecastRecord("6h", "NORMAL_CONDITION", 2),
		forecastRecord("6h", "NORMAL_CONDITION", 3),
		forecastRecord("6h", "POOR_CONDITION", 4),
		forecastRecord("12h", "NORMAL_CONDITION", -2),
	}
	records[1].Daylight = "DARK"
	records[2].Daylight = "DARK"

	first, err := Aggregate("HELSINKI", records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, err := Aggregate("HELSINKI", records)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %+v vs %+v", i, first, again)
		}
	}

	b, _ := first["HELSINKI"].Bucket(Horizon6h)
	fb := b.(ForecastBucket)
	if fb.OverallRoadCondition != "NORMAL_CONDITION" {
		t.Fatalf("expected NORMAL_CONDITION, got %q", fb.OverallRoadCondition)
	}
	if fb.Daylight != "DARK" {
		t.Fatalf("expected DARK, got %q", fb.Daylight)
	}
	if fb.RoadTemperature != 2.5 {
		t.Fatalf("expected 2.5, got %v", fb.RoadTemperature)
	}
}

func TestAggregateModeIsPresentValue(t *testing.T) {
	records := []Record{
		forecastRecord("2h", "A", 0),
		forecastRecord("2h", "B", 0),
		forecastRecord("2h", "C", 0),
	}
	res, _ := Aggregate("X", records)
	b, _ := res["X"].Bucket(Horizon2h)
	got := b.(ForecastBucket).OverallRoadCondition
	if got != "A" && got != "B" && got != "C" {
		t.Fatalf("mode %q is not an input value", got)
	}
}

func TestAggregateRejectsMalformedRecords(t *testing.T) {
	withReason := Record{
		ForecastName:         "0h",
		Daylight:             "DAYLIGHT",
		RoadTemperature:      temp(1),
		OverallRoadCondition: "NORMAL",
		Reason:               &Reason{PrecipitationCondition: "RAIN", RoadCondition: "WET"},
	}
	noReason := forecastRecord("2h", "DRY", 5)
	noReason.Reason = nil
	noTemp := forecastRecord("2h", "DRY", 0)
	noTemp.RoadTemperature = nil
	nanTemp := forecastRecord("4h", "DRY", math.NaN())
	badHorizon := forecastRecord("3h", "DRY", 0)
	unreadableTemp := forecastRecord("6h", "DRY", 0)
	unreadableTemp.RoadTemperature = nil
	unreadableTemp.TemperatureInvalid = true

	records := []Record{
		withReason,
		noReason,
		forecastRecord("2h", "WET", 4),
		noTemp,
		nanTemp,
		badHorizon,
		unreadableTemp,
	}

	res, err := Aggregate("LAPPEENRANTA", records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	report := res["LAPPEENRANTA"]

	wantCauses := []struct {
		index int
		cause error
	}{
		{0, ErrUnexpectedField},
		{1, ErrMissingField},
		{3, ErrMissingField},
		{4, ErrInvalidTemperature},
		{5, ErrUnknownHorizon},
		{6, ErrInvalidTemperature},
	}
	if len(report.Rejected) != len(wantCauses) {
		t.Fatalf("expected %d rejected records, got %d: %v", len(wantCauses), len(report.Rejected), report.Rejected)
	}
	for i, w := range wantCauses {
		got := report.Rejected[i]
		if got.Index != w.index || !errors.Is(got, w.cause) {
			t.Fatalf("rejected[%d]: expected index %d cause %v, got %v", i, w.index, w.cause, got)
		}
	}

	// The valid 2h record survives on its own.
	b, err := report.Bucket(Horizon2h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Temperature() != 4 {
		t.Fatalf("expected 4, got %v", b.Temperature())
	}

	// 0h lost its only record, so it is insufficient rather than an error.
	if _, err := report.Bucket(Horizon0h); !errors.Is(err, ErrEmptyBucket) {
		t.Fatalf("expected empty 0h bucket, got %v", err)
	}
}

func TestAggregateRequiresLocation(t *testing.T) {
	if _, err := Aggregate("  ", nil); !errors.Is(err, ErrNoLocation) {
		t.Fatalf("expected ErrNoLocation, got %v", err)
	}
}

func TestReportJSONRoundTrip(t *testing.T) {
	records := []Record{
		{ForecastName: "0h", Daylight: "DAYLIGHT", RoadTemperature: temp(-3), OverallRoadCondition: "NORMAL"},
		forecastRecord("2h", "DRY", 1),
		forecastRecord("12h", "WET", 2),
		forecastRecord("bogus", "WET", 2),
	}
	res, err := Aggregate("TAMPERE", records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Result
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	orig, got := res["TAMPERE"], back["TAMPERE"]
	if !reflect.DeepEqual(orig.Buckets, got.Buckets) {
		t.Fatalf("buckets differ: %+v vs %+v", orig.Buckets, got.Buckets)
	}
	if !reflect.DeepEqual(orig.Insufficient, got.Insufficient) {
		t.Fatalf("insufficient differ: %v vs %v", orig.Insufficient, got.Insufficient)
	}
	if len(got.Rejected) != 1 || !errors.Is(got.Rejected[0], ErrUnknownHorizon) {
		t.Fatalf("expected one unknown-horizon rejection, got %v", got.Rejected)
	}
}
