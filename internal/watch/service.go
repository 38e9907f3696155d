package watch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/i474232898/road-watch/internal/roadcond"
)

// ErrUpstream marks failures of the road or weather services.
var ErrUpstream = errors.New("upstream request failed")

const (
	forecastSpan      = 24 * time.Hour
	forecastStep      = time.Hour
	observationStep   = time.Hour
	recentWindow      = 24 * time.Hour
	dailyHistoryWidth = 14 * 24 * time.Hour
)

// Service orchestrates the upstream sources, the road condition aggregator
// and persistence.
type Service struct {
	cities  *Cities
	road    RoadSource
	weather WeatherSource
	store   SnapshotStore
	repo    Repository
	now     func() time.Time
}

// NewService creates a new Service.
func NewService(cities *Cities, road RoadSource, weather WeatherSource, store SnapshotStore, repo Repository) *Service {
	return &Service{
		cities:  cities,
		road:    road,
		weather: weather,
		store:   store,
		repo:    repo,
		now:     time.Now,
	}
}

// Cities returns the registry in declaration order.
func (s *Service) Cities() []City {
	return s.cities.All()
}

// Search fetches every section enabled by the selection concurrently.
// A failing section is logged and recorded in Snapshot.Errors; the search
// only fails when every enabled section failed.
func (s *Service) Search(ctx context.Context, sel Selection) (Snapshot, error) {
	now := s.now().UTC()
	if err := sel.Validate(now); err != nil {
		return Snapshot{}, err
	}
	city, err := s.cities.Lookup(sel.City)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		City:      city.Key(),
		Settings:  sel,
		FetchedAt: now,
	}

	var from, to time.Time
	if sel.HasRange() {
		from, to, err = sel.Range(now)
		if err != nil {
			return Snapshot{}, err
		}
		snap.From, snap.To = &from, &to
	}

	sections := sel.Sections()
	log.WithFields(log.Fields{"city": city.Key(), "sections": len(sections), "ranged": sel.HasRange()}).
		Debug("search started")
	if len(sections) == 0 {
		return snap, nil
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)

	for _, sec := range sections {
		wg.Add(1)
		go func(sec Section) {
			defer wg.Done()

			apply, err := s.fetchSection(ctx, sec, city, sel.HasRange(), from, to, now)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Keep going; partial snapshots are still useful.
				log.WithFields(log.Fields{"city": city.Key(), "section": sec}).WithError(err).Warn("section fetch failed")
				if snap.Errors == nil {
					snap.Errors = make(map[Section]string)
				}
				snap.Errors[sec] = err.Error()
				failed++
				return
			}
			apply(&snap)
		}(sec)
	}

	wg.Wait()

	if failed == len(sections) {
		return snap, fmt.Errorf("%w: every selected section failed for %s", ErrUpstream, city.Key())
	}
	return snap, nil
}

// fetchSection returns a closure that writes the fetched section into a snapshot.
func (s *Service) fetchSection(ctx context.Context, sec Section, city City, ranged bool, from, to, now time.Time) (func(*Snapshot), error) {
	switch sec {
	case SectionWeather:
		var (
			series WeatherSeries
			err    error
		)
		if ranged {
			series, err = s.weather.DailyObservations(ctx, city, from, to)
		} else {
			series, err = s.weather.Forecast(ctx, city, now, now.Add(forecastSpan), forecastStep)
		}
		if err != nil {
			return nil, err
		}
		return func(snap *Snapshot) { snap.Weather = &series }, nil

	case SectionRoadCondition:
		report, err := s.roadReport(ctx, city)
		if err != nil {
			return nil, err
		}
		return func(snap *Snapshot) { snap.RoadCondition = &report }, nil

	case SectionTrafficMessages:
		msgs, err := s.road.TrafficMessages(ctx, city, "")
		if err != nil {
			return nil, err
		}
		if msgs == nil {
			msgs = []TrafficMessage{}
		}
		return func(snap *Snapshot) { snap.TrafficMessages = msgs }, nil

	case SectionRoadMaintenance:
		if !ranged {
			from, to = now.Add(-recentWindow), now
		}
		tasks, err := s.road.Maintenance(ctx, city, from, to, "")
		if err != nil {
			return nil, err
		}
		if tasks == nil {
			tasks = []MaintenanceTask{}
		}
		return func(snap *Snapshot) { snap.Maintenance = tasks }, nil

	case SectionRoadCamera:
		img, err := s.road.CameraImage(ctx, city)
		if err != nil {
			return nil, err
		}
		s.saveCameraImage(city, img)
		info := &CameraInfo{Available: len(img.Data) > 0, StationID: img.StationID, ImageURL: img.URL}
		return func(snap *Snapshot) { snap.Camera = info }, nil
	}

	return nil, fmt.Errorf("unknown section %q", sec)
}

func (s *Service) roadReport(ctx context.Context, city City) (roadcond.Report, error) {
	records, err := s.road.RoadConditions(ctx, city)
	if err != nil {
		return roadcond.Report{}, err
	}

	res, err := roadcond.Aggregate(city.Key(), records)
	if err != nil {
		return roadcond.Report{}, err
	}

	report := res[city.Key()]
	if len(report.Rejected) > 0 || len(report.Insufficient) > 0 {
		log.WithFields(log.Fields{
			"city":         city.Key(),
			"records":      len(records),
			"rejected":     len(report.Rejected),
			"insufficient": report.Insufficient,
		}).Info("road condition report is incomplete")
	}
	return report, nil
}

func (s *Service) saveCameraImage(city City, img CameraImage) {
	if s.repo == nil || len(img.Data) == 0 {
		return
	}
	if err := s.repo.SaveCameraImage(city.Key(), img.Data); err != nil {
		log.WithField("city", city.Key()).WithError(err).Warn("failed to save camera image")
	}
}

// RoadConditions fetches and aggregates the current road conditions of a city.
func (s *Service) RoadConditions(ctx context.Context, cityName string) (roadcond.Report, error) {
	city, err := s.cities.Lookup(cityName)
	if err != nil {
		return roadcond.Report{}, err
	}
	report, err := s.roadReport(ctx, city)
	if err != nil {
		return roadcond.Report{}, upstream(err)
	}
	return report, nil
}

// TrafficMessages returns the active traffic messages inside the city area.
func (s *Service) TrafficMessages(ctx context.Context, cityName, situationType string) ([]TrafficMessage, error) {
	city, err := s.cities.Lookup(cityName)
	if err != nil {
		return nil, err
	}
	msgs, err := s.road.TrafficMessages(ctx, city, situationType)
	if err != nil {
		return nil, upstream(err)
	}
	return msgs, nil
}

// Maintenance returns maintenance tasks that ended inside [from, to].
// Zero bounds default to the last 24 hours.
func (s *Service) Maintenance(ctx context.Context, cityName string, from, to time.Time, taskID string) ([]MaintenanceTask, error) {
	city, err := s.cities.Lookup(cityName)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = to.Add(-recentWindow)
	}
	if from.After(to) {
		return nil, fmt.Errorf("%w: from is after to", ErrInvalidSelection)
	}
	tasks, err := s.road.Maintenance(ctx, city, from, to, taskID)
	if err != nil {
		return nil, upstream(err)
	}
	return tasks, nil
}

// Weather fetches a weather series of the given kind. Zero bounds default to
// the next 24 hours for forecasts, the last 24 hours for observations and
// the last 14 days for daily observations.
func (s *Service) Weather(ctx context.Context, cityName string, kind WeatherKind, from, to time.Time) (WeatherSeries, error) {
	city, err := s.cities.Lookup(cityName)
	if err != nil {
		return WeatherSeries{}, err
	}

	now := s.now().UTC()
	var series WeatherSeries
	switch kind {
	case WeatherForecast, "":
		from, to = defaultWindow(from, to, now, now.Add(forecastSpan))
		series, err = s.weather.Forecast(ctx, city, from, to, forecastStep)
	case WeatherObservations:
		from, to = defaultWindow(from, to, now.Add(-recentWindow), now)
		series, err = s.weather.Observations(ctx, city, from, to, observationStep)
	case WeatherDaily:
		from, to = defaultWindow(from, to, now.Add(-dailyHistoryWidth), now)
		series, err = s.weather.DailyObservations(ctx, city, from, to)
	default:
		return WeatherSeries{}, fmt.Errorf("%w: unknown weather kind %q", ErrInvalidSelection, kind)
	}
	if err != nil {
		return WeatherSeries{}, upstream(err)
	}
	return series, nil
}

func defaultWindow(from, to, defFrom, defTo time.Time) (time.Time, time.Time) {
	if from.IsZero() {
		from = defFrom
	}
	if to.IsZero() {
		to = defTo
	}
	return from, to
}

// Camera fetches the latest camera image, falling back to the last saved
// image when the upstream is unavailable.
func (s *Service) Camera(ctx context.Context, cityName string) (CameraImage, error) {
	city, err := s.cities.Lookup(cityName)
	if err != nil {
		return CameraImage{}, err
	}

	img, err := s.road.CameraImage(ctx, city)
	if err == nil {
		s.saveCameraImage(city, img)
		return img, nil
	}

	if s.repo != nil {
		if cached, cacheErr := s.repo.CameraImage(city.Key()); cacheErr == nil {
			log.WithField("city", city.Key()).WithError(err).Info("serving saved camera image")
			return CameraImage{StationID: city.CameraID, ContentType: "image/jpeg", Data: cached}, nil
		}
	}
	return CameraImage{}, upstream(err)
}

// FetchAndStore runs a full search for a city and stores the snapshot.
func (s *Service) FetchAndStore(ctx context.Context, cityName string) error {
	snap, err := s.Search(ctx, FullSelection(cityName))
	if err != nil {
		// Do not overwrite the last good snapshot.
		return err
	}
	s.store.SaveSnapshot(snap.City, snap)
	return nil
}

// Latest returns the most recent stored snapshot for a city.
func (s *Service) Latest(cityName string) (Snapshot, error) {
	city, err := s.cities.Lookup(cityName)
	if err != nil {
		return Snapshot{}, err
	}
	return s.store.GetLatest(city.Key())
}

// History returns stored snapshots for a city between from and to.
func (s *Service) History(cityName string, from, to time.Time) ([]Snapshot, error) {
	city, err := s.cities.Lookup(cityName)
	if err != nil {
		return nil, err
	}
	return s.store.GetRange(city.Key(), from, to)
}

// Favourites returns every saved favourite keyed by name.
func (s *Service) Favourites() (map[string]Selection, error) {
	return s.repo.ListFavourites()
}

// Favourite loads one saved favourite.
func (s *Service) Favourite(name string) (Selection, error) {
	return s.repo.LoadFavourite(name)
}

// SaveFavourite validates and stores a selection. An empty name defaults to
// the city name, overwriting any favourite with that name.
func (s *Service) SaveFavourite(name string, sel Selection) (string, error) {
	if err := sel.Validate(s.now()); err != nil {
		return "", err
	}
	city, err := s.cities.Lookup(sel.City)
	if err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = city.Name
	}
	if err := s.repo.SaveFavourite(name, sel); err != nil {
		return "", err
	}
	return name, nil
}

// DeleteFavourite removes a saved favourite.
func (s *Service) DeleteFavourite(name string) error {
	return s.repo.DeleteFavourite(name)
}

// TimelineTitle names a timeline after its city and date range.
func (s *Service) TimelineTitle(sel Selection) (string, error) {
	if !sel.HasRange() {
		return "", ErrRangeRequired
	}
	city, err := s.cities.Lookup(sel.City)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s - %s", city.Name, *sel.StartDate, *sel.EndDate), nil
}

// SaveTimeline searches the selected range and saves the result as a timeline.
func (s *Service) SaveTimeline(ctx context.Context, sel Selection) (Timeline, error) {
	title, err := s.TimelineTitle(sel)
	if err != nil {
		return Timeline{}, err
	}

	snap, err := s.Search(ctx, sel)
	if err != nil {
		return Timeline{}, err
	}

	t := Timeline{
		ID:       uuid.NewString(),
		Title:    title,
		SavedAt:  s.now().UTC(),
		Settings: sel,
		Data:     &snap,
	}
	if err := s.repo.SaveTimeline(t); err != nil {
		return Timeline{}, err
	}
	log.WithFields(log.Fields{"title": title, "id": t.ID}).Info("timeline saved")
	return t, nil
}

// Timelines lists saved timeline titles in lexical order.
func (s *Service) Timelines() ([]string, error) {
	titles, err := s.repo.ListTimelines()
	if err != nil {
		return nil, err
	}
	sort.Strings(titles)
	return titles, nil
}

// Timeline loads one saved timeline.
func (s *Service) Timeline(title string) (Timeline, error) {
	return s.repo.LoadTimeline(title)
}

// CompareTimelines loads two saved timelines for side-by-side display.
func (s *Service) CompareTimelines(left, right string) (Timeline, Timeline, error) {
	l, err := s.repo.LoadTimeline(left)
	if err != nil {
		return Timeline{}, Timeline{}, fmt.Errorf("left timeline: %w", err)
	}
	r, err := s.repo.LoadTimeline(right)
	if err != nil {
		return Timeline{}, Timeline{}, fmt.Errorf("right timeline: %w", err)
	}
	return l, r, nil
}

func upstream(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}
