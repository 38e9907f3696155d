package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/road-watch/internal/common"
	"github.com/i474232898/road-watch/internal/roadcond"
	"github.com/i474232898/road-watch/internal/watch"
)

// DefaultDigitrafficURL is the public road traffic API root.
const DefaultDigitrafficURL = "https://tie.digitraffic.fi"

const maxImageBytes = 10 << 20

// DigitrafficClient implements watch.RoadSource for tie.digitraffic.fi.
type DigitrafficClient struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewDigitrafficClient(client *http.Client, baseURL string) *DigitrafficClient {
	if baseURL == "" {
		baseURL = DefaultDigitrafficURL
	}
	return &DigitrafficClient{
		name:    "digitraffic",
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: DefaultBackoff,
		},
		circuit: newCircuitBreaker("digitraffic"),
	}
}

// WithBackoff overrides the retry policy.
func (c *DigitrafficClient) WithBackoff(b BackoffConfig) *DigitrafficClient {
	c.httpCfg.Backoff = b
	return c
}

func (c *DigitrafficClient) Name() string {
	return c.name
}

func (c *DigitrafficClient) getJSON(ctx context.Context, rawURL string, out any) error {
	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode %s: %w", c.name, rawURL, err)
	}
	return nil
}

// flexLabel accepts either a JSON string or a boolean. Booleans are the
// daylight flag and map to DAYLIGHT / DARK. Any other token decodes to an
// empty label so the aggregator rejects only that record.
type flexLabel string

func (l *flexLabel) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true":
		*l = "DAYLIGHT"
		return nil
	case "false":
		*l = "DARK"
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		s = ""
	}
	*l = flexLabel(s)
	return nil
}

// flexFloat accepts a JSON number or a numeric string such as "+1.4".
// An unreadable value leaves v nil and sets invalid.
type flexFloat struct {
	v       *float64
	invalid bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	f.v, f.invalid = nil, false

	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			f.invalid = true
			return nil
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		f.invalid = true
		return nil
	}
	f.v = &v
	return nil
}

type roadConditionsPayload struct {
	WeatherData []struct {
		RoadConditions []struct {
			ForecastName            string    `json:"forecastName"`
			Daylight                flexLabel `json:"daylight"`
			RoadTemperature         flexFloat `json:"roadTemperature"`
			OverallRoadCondition    string    `json:"overallRoadCondition"`
			ForecastConditionReason *struct {
				PrecipitationCondition string `json:"precipitationCondition"`
				RoadCondition          string `json:"roadCondition"`
			} `json:"forecastConditionReason"`
		} `json:"roadConditions"`
	} `json:"weatherData"`
}

// RoadConditions returns the raw per-section road condition readings inside
// the city road area, flattened across all road sections.
func (c *DigitrafficClient) RoadConditions(ctx context.Context, city watch.City) ([]roadcond.Record, error) {
	b := city.RoadBBox
	u := fmt.Sprintf("%s/api/v3/data/road-conditions/%s/%s/%s/%s", c.baseURL,
		common.FormatCoord(b.MinLon), common.FormatCoord(b.MinLat),
		common.FormatCoord(b.MaxLon), common.FormatCoord(b.MaxLat))

	var payload roadConditionsPayload
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return nil, err
	}

	var records []roadcond.Record
	for _, wd := range payload.WeatherData {
		for _, rc := range wd.RoadConditions {
			rec := roadcond.Record{
				ForecastName:         rc.ForecastName,
				Daylight:             string(rc.Daylight),
				RoadTemperature:      rc.RoadTemperature.v,
				TemperatureInvalid:   rc.RoadTemperature.invalid,
				OverallRoadCondition: rc.OverallRoadCondition,
			}
			// An all-empty reason block is treated as absent.
			if r := rc.ForecastConditionReason; r != nil && (r.PrecipitationCondition != "" || r.RoadCondition != "") {
				rec.Reason = &roadcond.Reason{
					PrecipitationCondition: r.PrecipitationCondition,
					RoadCondition:          r.RoadCondition,
				}
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

type trafficPayload struct {
	Features []struct {
		Geometry *struct {
			Type        string          `json:"type"`
			Coordinates json.RawMessage `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			SituationID   string `json:"situationId"`
			SituationType string `json:"situationType"`
			Announcements []struct {
				Title    string `json:"title"`
				Comment  string `json:"comment"`
				Features []struct {
					Name string `json:"name"`
				} `json:"features"`
			} `json:"announcements"`
		} `json:"properties"`
	} `json:"features"`
}

// TrafficMessages returns active traffic messages with any geometry point
// inside the city road area.
func (c *DigitrafficClient) TrafficMessages(ctx context.Context, city watch.City, situationType string) ([]watch.TrafficMessage, error) {
	values := url.Values{}
	values.Set("inactiveHours", "0")
	values.Set("includeAreaGeometry", "false")
	values.Set("situationType", situationType)
	u := fmt.Sprintf("%s/api/traffic-message/v1/messages?%s", c.baseURL, values.Encode())

	var payload trafficPayload
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return nil, err
	}

	msgs := []watch.TrafficMessage{}
	for _, f := range payload.Features {
		if f.Geometry == nil || len(f.Geometry.Coordinates) == 0 {
			continue
		}
		var coords any
		if err := json.Unmarshal(f.Geometry.Coordinates, &coords); err != nil {
			continue
		}
		if !anyPointInside(coords, city.RoadBBox) {
			continue
		}

		msg := watch.TrafficMessage{
			SituationID:   f.Properties.SituationID,
			SituationType: f.Properties.SituationType,
		}
		if len(f.Properties.Announcements) > 0 {
			a := f.Properties.Announcements[0]
			msg.Comment = a.Comment
			msg.Name = a.Title
			if len(a.Features) > 0 {
				msg.Name = a.Features[0].Name
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// anyPointInside walks nested GeoJSON coordinate arrays looking for a
// [lon, lat] pair inside the box.
func anyPointInside(v any, box common.BBox) bool {
	arr, ok := v.([]any)
	if !ok {
		return false
	}
	if len(arr) >= 2 {
		lon, okLon := arr[0].(float64)
		lat, okLat := arr[1].(float64)
		if okLon && okLat {
			return box.Contains(lon, lat)
		}
	}
	for _, item := range arr {
		if anyPointInside(item, box) {
			return true
		}
	}
	return false
}

type maintenancePayload struct {
	Features []struct {
		Properties struct {
			Tasks     []string `json:"tasks"`
			StartTime string   `json:"startTime"`
			EndTime   string   `json:"endTime"`
		} `json:"properties"`
	} `json:"features"`
}

// Maintenance returns maintenance routes on state roads in the city area that
// ended between from and to. An empty taskID matches every task.
func (c *DigitrafficClient) Maintenance(ctx context.Context, city watch.City, from, to time.Time, taskID string) ([]watch.MaintenanceTask, error) {
	b := city.RoadBBox
	values := url.Values{}
	values.Set("endFrom", from.UTC().Format(time.RFC3339))
	values.Set("endBefore", to.UTC().Format(time.RFC3339))
	values.Set("xMin", common.FormatCoord(b.MinLon))
	values.Set("yMin", common.FormatCoord(b.MinLat))
	values.Set("xMax", common.FormatCoord(b.MaxLon))
	values.Set("yMax", common.FormatCoord(b.MaxLat))
	if taskID != "" {
		values.Set("taskId", taskID)
	}
	values.Set("domain", "state-roads")
	u := fmt.Sprintf("%s/api/maintenance/v1/tracking/routes?%s", c.baseURL, values.Encode())

	var payload maintenancePayload
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return nil, err
	}

	tasks := make([]watch.MaintenanceTask, 0, len(payload.Features))
	for _, f := range payload.Features {
		start, err := time.Parse(time.RFC3339, f.Properties.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%s: maintenance startTime: %w", c.name, err)
		}
		end, err := time.Parse(time.RFC3339, f.Properties.EndTime)
		if err != nil {
			return nil, fmt.Errorf("%s: maintenance endTime: %w", c.name, err)
		}
		tasks = append(tasks, watch.MaintenanceTask{
			Tasks:     f.Properties.Tasks,
			StartTime: start.UTC(),
			EndTime:   end.UTC(),
		})
	}
	return tasks, nil
}

type cameraHistoryPayload struct {
	ID      string `json:"id"`
	Presets []struct {
		ID      string `json:"id"`
		History []struct {
			LastModified string `json:"lastModified"`
			ImageURL     string `json:"imageUrl"`
		} `json:"history"`
	} `json:"presets"`
}

var errNoCameraImage = errors.New("no camera image available")

// CameraImage downloads the first image of the first preset of the city camera.
func (c *DigitrafficClient) CameraImage(ctx context.Context, city watch.City) (watch.CameraImage, error) {
	if city.CameraID == "" {
		return watch.CameraImage{}, fmt.Errorf("%s: %w: no camera configured for %s", c.name, errNoCameraImage, city.Key())
	}

	u := fmt.Sprintf("%s/api/weathercam/v1/stations/%s/history", c.baseURL, url.PathEscape(city.CameraID))
	var payload cameraHistoryPayload
	if err := c.getJSON(ctx, u, &payload); err != nil {
		return watch.CameraImage{}, err
	}
	if len(payload.Presets) == 0 || len(payload.Presets[0].History) == 0 || payload.Presets[0].History[0].ImageURL == "" {
		return watch.CameraImage{}, fmt.Errorf("%s: %w for %s", c.name, errNoCameraImage, city.CameraID)
	}
	imageURL := payload.Presets[0].History[0].ImageURL

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, imageURL, nil)
	})
	if err != nil {
		return watch.CameraImage{}, fmt.Errorf("%s: camera image: %w", c.name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return watch.CameraImage{}, fmt.Errorf("%s: read camera image: %w", c.name, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	return watch.CameraImage{
		StationID:   city.CameraID,
		URL:         imageURL,
		ContentType: contentType,
		Data:        data,
	}, nil
}
