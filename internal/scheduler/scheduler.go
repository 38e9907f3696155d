package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	log "github.com/sirupsen/logrus"
)

const fetchTimeout = 30 * time.Second

// Fetcher refreshes and stores the snapshot of one city.
type Fetcher interface {
	FetchAndStore(ctx context.Context, city string) error
}

// Scheduler periodically refreshes the configured cities.
type Scheduler struct {
	scheduler *gocron.Scheduler
	fetcher   Fetcher
	cities    []string
	interval  time.Duration
}

// New creates a new Scheduler.
func New(cities []string, interval time.Duration, fetcher Fetcher) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		fetcher:   fetcher,
		cities:    cities,
		interval:  interval,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.cities) == 0 {
		log.Info("scheduler: no cities configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 15
	}

	_, err := s.scheduler.Every(minutes).Minutes().SingletonMode().Do(s.runOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// runOnce refreshes every city concurrently, each under its own timeout.
func (s *Scheduler) runOnce() {
	start := time.Now()
	log.WithField("cities", len(s.cities)).Debug("scheduler: running fetch job")

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, city := range s.cities {
		wg.Add(1)
		go func(city string) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
			defer cancel()

			if err := s.fetcher.FetchAndStore(ctx, city); err != nil {
				log.WithField("city", city).WithError(err).Warn("scheduler: fetch failed")
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(city)
	}
	wg.Wait()

	log.WithFields(log.Fields{
		"cities":   len(s.cities),
		"failed":   failed,
		"duration": time.Since(start),
	}).Info("scheduler: completed fetch job")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
