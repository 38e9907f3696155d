package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/i474232898/road-watch/internal/watch"
)

const (
	selectionsDir  = "selections"
	favouritesFile = "settings.json"
	timelinesDir   = "timelines"
	imagesDir      = "images"
)

// ErrInvalidName is returned for names that cannot be used as file names.
var ErrInvalidName = errors.New("invalid name")

// FileRepository persists favourites, timelines and camera images as plain
// files under a root directory.
type FileRepository struct {
	root string
	mu   sync.Mutex
}

// NewFileRepository creates the directory layout under root.
func NewFileRepository(root string) (*FileRepository, error) {
	for _, dir := range []string{selectionsDir, timelinesDir, imagesDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &FileRepository{root: root}, nil
}

// writeFile replaces path atomically via a temp file in the same directory.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, out)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// fileName checks that a user supplied name is a single path element.
func fileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`+"\x00") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return name, nil
}

func (r *FileRepository) favouritesPath() string {
	return filepath.Join(r.root, selectionsDir, favouritesFile)
}

func (r *FileRepository) loadFavourites() (map[string]watch.Selection, error) {
	favs := map[string]watch.Selection{}
	err := readJSON(r.favouritesPath(), &favs)
	if errors.Is(err, ErrNotFound) {
		return map[string]watch.Selection{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read favourites: %w", err)
	}
	return favs, nil
}

// ListFavourites returns every favourite. A missing file reads as empty.
func (r *FileRepository) ListFavourites() (map[string]watch.Selection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadFavourites()
}

func (r *FileRepository) LoadFavourite(name string) (watch.Selection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	favs, err := r.loadFavourites()
	if err != nil {
		return watch.Selection{}, err
	}
	sel, ok := favs[name]
	if !ok {
		return watch.Selection{}, fmt.Errorf("favourite %q: %w", name, ErrNotFound)
	}
	return sel, nil
}

// SaveFavourite stores sel under name, replacing any previous entry.
func (r *FileRepository) SaveFavourite(name string, sel watch.Selection) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty favourite name", ErrInvalidName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	favs, err := r.loadFavourites()
	if err != nil {
		return err
	}
	favs[name] = sel
	if err := writeJSON(r.favouritesPath(), favs); err != nil {
		return fmt.Errorf("write favourites: %w", err)
	}
	return nil
}

func (r *FileRepository) DeleteFavourite(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	favs, err := r.loadFavourites()
	if err != nil {
		return err
	}
	if _, ok := favs[name]; !ok {
		return fmt.Errorf("favourite %q: %w", name, ErrNotFound)
	}
	delete(favs, name)
	if err := writeJSON(r.favouritesPath(), favs); err != nil {
		return fmt.Errorf("write favourites: %w", err)
	}
	return nil
}

func (r *FileRepository) timelinePath(title string) (string, error) {
	name, err := fileName(title)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.root, timelinesDir, name+".json"), nil
}

// ListTimelines returns the titles of all saved timelines.
func (r *FileRepository) ListTimelines() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(r.root, timelinesDir))
	if err != nil {
		return nil, fmt.Errorf("list timelines: %w", err)
	}
	titles := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		titles = append(titles, strings.TrimSuffix(name, ".json"))
	}
	return titles, nil
}

func (r *FileRepository) LoadTimeline(title string) (watch.Timeline, error) {
	path, err := r.timelinePath(title)
	if err != nil {
		return watch.Timeline{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var t watch.Timeline
	if err := readJSON(path, &t); err != nil {
		return watch.Timeline{}, fmt.Errorf("timeline %q: %w", title, err)
	}
	return t, nil
}

// SaveTimeline writes t under its title, replacing an existing file.
func (r *FileRepository) SaveTimeline(t watch.Timeline) error {
	path, err := r.timelinePath(t.Title)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := writeJSON(path, t); err != nil {
		return fmt.Errorf("write timeline %q: %w", t.Title, err)
	}
	return nil
}

func (r *FileRepository) imagePath(city string) (string, error) {
	name, err := fileName(city)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.root, imagesDir, "weather_cam_"+strings.ToLower(name)+".jpg"), nil
}

// SaveCameraImage overwrites the saved camera image of a city.
func (r *FileRepository) SaveCameraImage(city string, data []byte) error {
	path, err := r.imagePath(city)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return writeFile(path, data)
}

func (r *FileRepository) CameraImage(city string) ([]byte, error) {
	path, err := r.imagePath(city)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("camera image for %s: %w", city, ErrNotFound)
	}
	return data, err
}
