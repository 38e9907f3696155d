package store

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/road-watch/internal/watch"
)

var (
	// ErrNotFound is returned when nothing is stored under the requested key.
	ErrNotFound = errors.New("not found")
)

// snapshotHistory holds a time-ordered list of snapshots for one city.
type snapshotHistory struct {
	snapshots []watch.Snapshot
}

// MemoryStore is a concurrency-safe in-memory snapshot store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: city key, value: history
	data map[string]*snapshotHistory

	maxHistory int           // max number of snapshots per city
	maxAge     time.Duration // optional max age for snapshots
	now        func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*snapshotHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

func key(city string) string {
	return strings.ToUpper(strings.TrimSpace(city))
}

// SaveSnapshot appends a snapshot for a city and enforces retention.
// Snapshots are kept ordered by FetchedAt.
func (s *MemoryStore) SaveSnapshot(city string, snapshot watch.Snapshot) {
	k := key(city)

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[k]
	if !ok {
		history = &snapshotHistory{}
		s.data[k] = history
	}

	i := len(history.snapshots)
	for i > 0 && history.snapshots[i-1].FetchedAt.After(snapshot.FetchedAt) {
		i--
	}
	history.snapshots = append(history.snapshots, watch.Snapshot{})
	copy(history.snapshots[i+1:], history.snapshots[i:])
	history.snapshots[i] = snapshot

	if s.maxHistory > 0 && len(history.snapshots) > s.maxHistory {
		over := len(history.snapshots) - s.maxHistory
		history.snapshots = history.snapshots[over:]
	}

	// Age retention never drops the newest snapshot.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.snapshots)-1; i++ {
			if !history.snapshots[i].FetchedAt.Before(cutoff) {
				break
			}
		}
		history.snapshots = history.snapshots[i:]
	}
}

// GetLatest returns the most recent snapshot for a city.
func (s *MemoryStore) GetLatest(city string) (watch.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key(city)]
	if !ok || len(history.snapshots) == 0 {
		return watch.Snapshot{}, ErrNotFound
	}
	return history.snapshots[len(history.snapshots)-1], nil
}

// GetRange returns all snapshots for a city fetched between from and to (inclusive).
// A zero bound is open.
func (s *MemoryStore) GetRange(city string, from, to time.Time) ([]watch.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key(city)]
	if !ok || len(history.snapshots) == 0 {
		return nil, ErrNotFound
	}

	var result []watch.Snapshot
	for _, snap := range history.snapshots {
		if !from.IsZero() && snap.FetchedAt.Before(from) {
			continue
		}
		if !to.IsZero() && snap.FetchedAt.After(to) {
			continue
		}
		result = append(result, snap)
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}
