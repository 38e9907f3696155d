package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

type recordingFetcher struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *recordingFetcher) FetchAndStore(ctx context.Context, city string) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("expected a deadline")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, city)
	if f.fail[city] {
		return errors.New("upstream down")
	}
	return nil
}

func TestRunOnceFetchesEveryCity(t *testing.T) {
	f := &recordingFetcher{fail: map[string]bool{"OULU": true}}
	s := New([]string{"TAMPERE", "OULU", "TURKU"}, time.Minute, f)

	s.runOnce()

	sort.Strings(f.calls)
	if len(f.calls) != 3 || f.calls[0] != "OULU" || f.calls[2] != "TURKU" {
		t.Fatalf("unexpected calls %v", f.calls)
	}
}

func TestStartWithoutCities(t *testing.T) {
	s := New(nil, time.Minute, &recordingFetcher{})
	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Stop()
}

func TestStartRunsImmediately(t *testing.T) {
	f := &recordingFetcher{}
	s := New([]string{"HELSINKI"}, time.Hour, f)
	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		n := len(f.calls)
		f.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected the first fetch to run right after Start")
}
