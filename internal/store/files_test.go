package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/i474232898/road-watch/internal/roadcond"
	"github.com/i474232898/road-watch/internal/watch"
)

func newRepo(t *testing.T) (*FileRepository, string) {
	t.Helper()
	root := t.TempDir()
	r, err := NewFileRepository(root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return r, root
}

func TestFavourites(t *testing.T) {
	r, root := newRepo(t)

	favs, err := r.ListFavourites()
	if err != nil {
		t.Fatalf("expected missing file to read as empty, got %v", err)
	}
	if len(favs) != 0 {
		t.Fatalf("expected no favourites, got %v", favs)
	}

	sel := watch.FullSelection("Tampere")
	if err := r.SaveFavourite("Tampere", sel); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "selections", "settings.json")); err != nil {
		t.Fatalf("expected settings file, got %v", err)
	}

	sel.WeatherInfo = false
	if err := r.SaveFavourite("Tampere", sel); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.SaveFavourite("Oulu", watch.Selection{City: "Oulu"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := r.LoadFavourite("Tampere")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.WeatherInfo || !got.RoadInfo.RoadCamera {
		t.Fatalf("expected overwritten favourite, got %+v", got)
	}

	if err := r.DeleteFavourite("Oulu"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.LoadFavourite("Oulu"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := r.DeleteFavourite("Oulu"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	favs, _ = r.ListFavourites()
	if len(favs) != 1 {
		t.Fatalf("expected 1 favourite, got %d", len(favs))
	}
}

func TestTimelines(t *testing.T) {
	r, _ := newRepo(t)

	start, end := "2024-03-01", "2024-03-03"
	temp := 1.5
	snap := &watch.Snapshot{
		City:      "TAMPERE",
		FetchedAt: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
		RoadCondition: &roadcond.Report{
			Location: "TAMPERE",
			Buckets: map[roadcond.Horizon]roadcond.Bucket{
				roadcond.Horizon0h: roadcond.CurrentBucket{Daylight: "DAYLIGHT", RoadTemperature: temp, OverallRoadCondition: "NORMAL_CONDITION"},
			},
			Insufficient: []roadcond.Horizon{roadcond.Horizon2h, roadcond.Horizon4h, roadcond.Horizon6h, roadcond.Horizon12h},
		},
	}
	tl := watch.Timeline{
		ID:       "id-1",
		Title:    "Tampere 2024-03-01 - 2024-03-03",
		SavedAt:  snap.FetchedAt,
		Settings: watch.Selection{City: "Tampere", StartDate: &start, EndDate: &end},
		Data:     snap,
	}
	if err := r.SaveTimeline(tl); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	titles, err := r.ListTimelines()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(titles) != 1 || titles[0] != tl.Title {
		t.Fatalf("unexpected titles %v", titles)
	}

	got, err := r.LoadTimeline(tl.Title)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "id-1" || got.Data == nil || got.Data.RoadCondition == nil {
		t.Fatalf("unexpected timeline %+v", got)
	}
	b, err := got.Data.RoadCondition.Bucket(roadcond.Horizon0h)
	if err != nil {
		t.Fatalf("expected 0h bucket, got %v", err)
	}
	if b.Temperature() != temp {
		t.Fatalf("expected temperature %v, got %v", temp, b.Temperature())
	}

	if _, err := r.LoadTimeline("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.LoadTimeline("../etc/passwd"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestCameraImages(t *testing.T) {
	r, root := newRepo(t)

	if _, err := r.CameraImage("TAMPERE"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := r.SaveCameraImage("TAMPERE", []byte("jpeg")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "images", "weather_cam_tampere.jpg")); err != nil {
		t.Fatalf("expected image file, got %v", err)
	}
	data, err := r.CameraImage("TAMPERE")
	if err != nil || string(data) != "jpeg" {
		t.Fatalf("unexpected image %q (%v)", data, err)
	}
}
