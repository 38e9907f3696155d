package roadcond

import (
	"encoding/json"
	"fmt"
)

// reportJSON is the wire form of a Report. Every horizon is present; an
// insufficient horizon is rendered as null.
type reportJSON struct {
	Location string                      `json:"location"`
	Horizons map[Horizon]json.RawMessage `json:"horizons"`
	Rejected []*RecordError              `json:"rejected,omitempty"`
}

func (r Report) MarshalJSON() ([]byte, error) {
	out := reportJSON{
		Location: r.Location,
		Horizons: make(map[Horizon]json.RawMessage, len(Horizons)),
		Rejected: r.Rejected,
	}
	for _, h := range Horizons {
		b, ok := r.Buckets[h]
		if !ok {
			out.Horizons[h] = json.RawMessage("null")
			continue
		}
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, err
		}
		out.Horizons[h] = raw
	}
	return json.Marshal(out)
}

func (r *Report) UnmarshalJSON(data []byte) error {
	var in reportJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	r.Location = in.Location
	r.Rejected = in.Rejected
	r.Buckets = make(map[Horizon]Bucket, len(Horizons))
	r.Insufficient = nil

	for _, h := range Horizons {
		raw, ok := in.Horizons[h]
		if !ok || string(raw) == "null" {
			r.Insufficient = append(r.Insufficient, h)
			continue
		}
		if !h.IsForecast() {
			var b CurrentBucket
			if err := json.Unmarshal(raw, &b); err != nil {
				return fmt.Errorf("decode %s bucket: %w", h, err)
			}
			r.Buckets[h] = b
			continue
		}
		b := ForecastBucket{At: h}
		if err := json.Unmarshal(raw, &b); err != nil {
			return fmt.Errorf("decode %s bucket: %w", h, err)
		}
		r.Buckets[h] = b
	}
	return nil
}
