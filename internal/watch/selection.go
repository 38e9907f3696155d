package watch

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const dateLayout = "2006-01-02"

var (
	ErrInvalidSelection = errors.New("invalid selection")
	ErrRangeRequired    = errors.New("selection has no date range")
)

var validate = validator.New()

// RoadInfoState mirrors the tri-state "road info" toggle.
type RoadInfoState string

const (
	RoadInfoNone    RoadInfoState = "none"
	RoadInfoPartial RoadInfoState = "partial"
	RoadInfoAll     RoadInfoState = "all"
)

// RoadInfo selects which road data sections to fetch.
type RoadInfo struct {
	RoadCamera      bool `json:"roadCamera"`
	TrafficMessages bool `json:"trafficMessages"`
	RoadMaintenance bool `json:"roadMaintenance"`
	RoadCondition   bool `json:"roadCondition"`
}

func (r RoadInfo) count() int {
	n := 0
	for _, on := range []bool{r.RoadCamera, r.TrafficMessages, r.RoadMaintenance, r.RoadCondition} {
		if on {
			n++
		}
	}
	return n
}

// State reports whether none, some or all road sections are selected.
func (r RoadInfo) State() RoadInfoState {
	switch r.count() {
	case 0:
		return RoadInfoNone
	case 4:
		return RoadInfoAll
	default:
		return RoadInfoPartial
	}
}

// SetAll switches every road section on or off.
func (r *RoadInfo) SetAll(on bool) {
	r.RoadCamera = on
	r.TrafficMessages = on
	r.RoadMaintenance = on
	r.RoadCondition = on
}

// Selection is a city plus the data types to show and an optional inclusive
// date range. Without a range, searches return current data and forecasts.
type Selection struct {
	City        string   `json:"city" validate:"required"`
	WeatherInfo bool     `json:"weatherInfo"`
	RoadInfo    RoadInfo `json:"roadInfo"`
	StartDate   *string  `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate     *string  `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
}

// FullSelection enables every section for a city, with no date range.
func FullSelection(city string) Selection {
	s := Selection{City: city, WeatherInfo: true}
	s.RoadInfo.SetAll(true)
	return s
}

// Sections lists the enabled sections in a fixed order.
func (s Selection) Sections() []Section {
	var out []Section
	if s.WeatherInfo {
		out = append(out, SectionWeather)
	}
	if s.RoadInfo.RoadCondition {
		out = append(out, SectionRoadCondition)
	}
	if s.RoadInfo.TrafficMessages {
		out = append(out, SectionTrafficMessages)
	}
	if s.RoadInfo.RoadMaintenance {
		out = append(out, SectionRoadMaintenance)
	}
	if s.RoadInfo.RoadCamera {
		out = append(out, SectionRoadCamera)
	}
	return out
}

// HasRange reports whether both range dates are set.
func (s Selection) HasRange() bool {
	return s.StartDate != nil && s.EndDate != nil
}

// Range returns the UTC interval covered by the selection dates. The end date
// is inclusive, so the interval stops at the following midnight, clamped to now.
func (s Selection) Range(now time.Time) (from, to time.Time, err error) {
	if !s.HasRange() {
		return time.Time{}, time.Time{}, ErrRangeRequired
	}
	from, err = time.ParseInLocation(dateLayout, *s.StartDate, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: startDate: %v", ErrInvalidSelection, err)
	}
	end, err := time.ParseInLocation(dateLayout, *s.EndDate, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: endDate: %v", ErrInvalidSelection, err)
	}
	to = end.AddDate(0, 0, 1)
	if now = now.UTC(); to.After(now) {
		to = now
	}
	return from, to, nil
}

// Validate checks field formats and that the range is ordered and not in
// the future. City membership is checked by the service.
func (s Selection) Validate(now time.Time) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSelection, err)
	}
	if (s.StartDate == nil) != (s.EndDate == nil) {
		return fmt.Errorf("%w: startDate and endDate must be set together", ErrInvalidSelection)
	}
	if !s.HasRange() {
		return nil
	}
	if *s.StartDate == "" || *s.EndDate == "" {
		return fmt.Errorf("%w: empty date", ErrInvalidSelection)
	}

	today := now.UTC().Format(dateLayout)
	start, end := *s.StartDate, *s.EndDate
	switch {
	case start > end:
		return fmt.Errorf("%w: startDate %s is after endDate %s", ErrInvalidSelection, start, end)
	case end > today:
		return fmt.Errorf("%w: endDate %s is in the future", ErrInvalidSelection, end)
	}
	return nil
}
