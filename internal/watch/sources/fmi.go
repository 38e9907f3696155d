package sources

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/road-watch/internal/common"
	"github.com/i474232898/road-watch/internal/watch"
)

// DefaultFMIURL is the FMI open data WFS endpoint.
const DefaultFMIURL = "https://opendata.fmi.fi/wfs"

const (
	queryForecast     = "fmi::forecast::harmonie::surface::point::multipointcoverage"
	queryObservations = "fmi::observations::weather::multipointcoverage"
	queryDaily        = "fmi::observations::weather::daily::multipointcoverage"

	observationParams = "t2m,ws_10min,n_man"
	forecastParams    = "temperature,windspeedms"

	fmiTimeLayout = "2006-01-02T15:04:05Z"
)

// FMIClient implements watch.WeatherSource for the FMI WFS service.
type FMIClient struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewFMIClient(client *http.Client, baseURL string) *FMIClient {
	if baseURL == "" {
		baseURL = DefaultFMIURL
	}
	return &FMIClient{
		name:    "fmi",
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: DefaultBackoff,
		},
		circuit: newCircuitBreaker("fmi"),
	}
}

// WithBackoff overrides the retry policy.
func (c *FMIClient) WithBackoff(b BackoffConfig) *FMIClient {
	c.httpCfg.Backoff = b
	return c
}

func (c *FMIClient) Name() string {
	return c.name
}

// Observations returns measured weather inside the city station area.
func (c *FMIClient) Observations(ctx context.Context, city watch.City, from, to time.Time, timestep time.Duration) (watch.WeatherSeries, error) {
	args := url.Values{}
	args.Set("bbox", city.WeatherBBox.String())
	args.Set("timestep", minutes(timestep))
	args.Set("parameters", observationParams)
	return c.query(ctx, city, watch.WeatherObservations, queryObservations, from, to, args)
}

// DailyObservations returns daily averages inside the city station area.
func (c *FMIClient) DailyObservations(ctx context.Context, city watch.City, from, to time.Time) (watch.WeatherSeries, error) {
	args := url.Values{}
	args.Set("bbox", city.WeatherBBox.String())
	args.Set("timestep", "1440")
	args.Set("parameters", observationParams)
	return c.query(ctx, city, watch.WeatherDaily, queryDaily, from, to, args)
}

// Forecast returns the HARMONIE point forecast for the city centre.
func (c *FMIClient) Forecast(ctx context.Context, city watch.City, from, to time.Time, timestep time.Duration) (watch.WeatherSeries, error) {
	args := url.Values{}
	args.Set("latlon", common.FormatCoord(city.Lat)+","+common.FormatCoord(city.Lon))
	args.Set("timestep", minutes(timestep))
	args.Set("parameters", forecastParams)
	return c.query(ctx, city, watch.WeatherForecast, queryForecast, from, to, args)
}

func minutes(d time.Duration) string {
	m := int(d.Minutes())
	if m <= 0 {
		m = 60
	}
	return strconv.Itoa(m)
}

func (c *FMIClient) query(ctx context.Context, city watch.City, kind watch.WeatherKind, storedQuery string, from, to time.Time, args url.Values) (watch.WeatherSeries, error) {
	if !from.Before(to) {
		return watch.WeatherSeries{}, fmt.Errorf("%s: empty time range %s - %s", c.name, from, to)
	}

	args.Set("service", "WFS")
	args.Set("version", "2.0.0")
	args.Set("request", "getFeature")
	args.Set("storedquery_id", storedQuery)
	args.Set("starttime", from.UTC().Format(fmiTimeLayout))
	args.Set("endtime", to.UTC().Format(fmiTimeLayout))
	args.Set("timeseries", "true")
	u := c.baseURL + "?" + args.Encode()

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/xml, text/xml")
		return req, nil
	})
	if err != nil {
		return watch.WeatherSeries{}, fmt.Errorf("%s: %w", c.name, err)
	}
	defer resp.Body.Close()

	var doc featureCollection
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return watch.WeatherSeries{}, fmt.Errorf("%s: decode %s: %w", c.name, storedQuery, err)
	}

	series, err := doc.series()
	if err != nil {
		return watch.WeatherSeries{}, fmt.Errorf("%s: %s: %w", c.name, storedQuery, err)
	}
	series.City = city.Key()
	series.Kind = kind
	return series, nil
}

// featureCollection is the subset of a WFS multipoint coverage response we use.
// Element names are matched by local name, ignoring namespaces.
type featureCollection struct {
	XMLName xml.Name `xml:"FeatureCollection"`
	Members []struct {
		Coverage multiPointCoverage `xml:"GridSeriesObservation>result>MultiPointCoverage"`
	} `xml:"member"`
}

type multiPointCoverage struct {
	Positions string `xml:"domainSet>SimpleMultiPoint>positions"`
	Tuples    string `xml:"rangeSet>DataBlock>doubleOrNilReasonTupleList"`
	Fields    []struct {
		Name string `xml:"name,attr"`
	} `xml:"rangeType>DataRecord>field"`
}

var errCoverageShape = errors.New("coverage positions and values do not line up")

func (fc featureCollection) series() (watch.WeatherSeries, error) {
	var out watch.WeatherSeries

	for _, m := range fc.Members {
		cov := m.Coverage
		params := make([]string, len(cov.Fields))
		for i, f := range cov.Fields {
			params[i] = f.Name
		}
		if out.Parameters == nil {
			out.Parameters = params
		}

		points, err := cov.points(params)
		if err != nil {
			return watch.WeatherSeries{}, err
		}
		out.Points = append(out.Points, points...)
	}

	sort.SliceStable(out.Points, func(i, j int) bool {
		return out.Points[i].Time.Before(out.Points[j].Time)
	})
	if out.Points == nil {
		out.Points = []watch.WeatherPoint{}
	}
	return out, nil
}

// points zips "lat lon epoch" position triples with value rows.
func (cov multiPointCoverage) points(params []string) ([]watch.WeatherPoint, error) {
	pos := strings.Fields(cov.Positions)
	vals := strings.Fields(cov.Tuples)
	if len(pos)%3 != 0 {
		return nil, fmt.Errorf("%w: %d position tokens", errCoverageShape, len(pos))
	}
	n := len(pos) / 3
	if len(params) == 0 || len(vals) != n*len(params) {
		return nil, fmt.Errorf("%w: %d positions, %d params, %d values", errCoverageShape, n, len(params), len(vals))
	}

	points := make([]watch.WeatherPoint, 0, n)
	for i := 0; i < n; i++ {
		lat, err := strconv.ParseFloat(pos[3*i], 64)
		if err != nil {
			return nil, fmt.Errorf("position %d latitude: %w", i, err)
		}
		lon, err := strconv.ParseFloat(pos[3*i+1], 64)
		if err != nil {
			return nil, fmt.Errorf("position %d longitude: %w", i, err)
		}
		epoch, err := strconv.ParseInt(pos[3*i+2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("position %d time: %w", i, err)
		}

		values := make(map[string]float64, len(params))
		for j, p := range params {
			v, err := strconv.ParseFloat(vals[i*len(params)+j], 64)
			if err != nil {
				return nil, fmt.Errorf("position %d %s: %w", i, p, err)
			}
			if v != v { // NaN marks a missing measurement
				continue
			}
			values[p] = v
		}

		points = append(points, watch.WeatherPoint{
			Time:   time.Unix(epoch, 0).UTC(),
			Lat:    lat,
			Lon:    lon,
			Values: values,
		})
	}
	return points, nil
}
