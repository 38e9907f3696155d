package roadcond

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownHorizon     = errors.New("unknown forecast horizon")
	ErrMissingField       = errors.New("missing required field")
	ErrUnexpectedField    = errors.New("field not allowed for horizon")
	ErrInvalidTemperature = errors.New("invalid road temperature")
	ErrEmptyBucket        = errors.New("insufficient data for bucket")
	ErrNoLocation         = errors.New("location is required")
)

var recordSentinels = []error{ErrUnknownHorizon, ErrMissingField, ErrUnexpectedField, ErrInvalidTemperature}

// RecordError describes why a single record was rejected.
// Index is the position of the record in the input slice.
type RecordError struct {
	Index        int
	ForecastName string
	Field        string
	Err          error
}

func (e *RecordError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("record %d (%s): %v: %s", e.Index, e.ForecastName, e.Err, e.Field)
	}
	return fmt.Sprintf("record %d (%s): %v", e.Index, e.ForecastName, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

type recordErrorJSON struct {
	Index        int    `json:"index"`
	ForecastName string `json:"forecastName"`
	Field        string `json:"field,omitempty"`
	Reason       string `json:"reason"`
}

func (e *RecordError) MarshalJSON() ([]byte, error) {
	out := recordErrorJSON{Index: e.Index, ForecastName: e.ForecastName, Field: e.Field}
	if e.Err != nil {
		out.Reason = e.Err.Error()
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the sentinel cause so errors.Is keeps working on
// reports read back from disk.
func (e *RecordError) UnmarshalJSON(data []byte) error {
	var in recordErrorJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	e.Index, e.ForecastName, e.Field = in.Index, in.ForecastName, in.Field
	e.Err = errors.New(in.Reason)
	for _, s := range recordSentinels {
		if s.Error() == in.Reason {
			e.Err = s
			break
		}
	}
	return nil
}

// EmptyBucketError reports a horizon that had no usable readings.
type EmptyBucketError struct {
	Horizon Horizon
}

func (e *EmptyBucketError) Error() string {
	return fmt.Sprintf("%v %s", ErrEmptyBucket, e.Horizon)
}

func (e *EmptyBucketError) Is(target error) bool { return target == ErrEmptyBucket }
