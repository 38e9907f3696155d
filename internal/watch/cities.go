package watch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/i474232898/road-watch/internal/common"
)

// ErrUnknownCity is returned when a city is not in the registry.
var ErrUnknownCity = errors.New("unknown city")

// City describes where to query each upstream for one location.
// Lat/Lon is the forecast point, WeatherBBox the observation station area and
// RoadBBox the road network area.
type City struct {
	Name        string      `yaml:"name" json:"name"`
	Lat         float64     `yaml:"lat" json:"lat"`
	Lon         float64     `yaml:"lon" json:"lon"`
	WeatherBBox common.BBox `yaml:"weatherBBox" json:"weatherBBox"`
	RoadBBox    common.BBox `yaml:"roadBBox" json:"roadBBox"`
	CameraID    string      `yaml:"cameraId" json:"cameraId"`
}

// Key returns the canonical upper-case name used in stores and reports.
func (c City) Key() string {
	return strings.ToUpper(c.Name)
}

// Cities is an ordered, read-only city registry.
type Cities struct {
	list  []City
	index map[string]int
}

// NewCities builds a registry. Names must be unique (case-insensitive).
func NewCities(list []City) (*Cities, error) {
	if len(list) == 0 {
		return nil, errors.New("city registry is empty")
	}
	c := &Cities{
		list:  make([]City, 0, len(list)),
		index: make(map[string]int, len(list)),
	}
	for _, city := range list {
		if strings.TrimSpace(city.Name) == "" {
			return nil, errors.New("city name is required")
		}
		if _, dup := c.index[city.Key()]; dup {
			return nil, fmt.Errorf("duplicate city %q", city.Name)
		}
		c.index[city.Key()] = len(c.list)
		c.list = append(c.list, city)
	}
	return c, nil
}

// DefaultCities returns the built-in Finnish city registry.
func DefaultCities() *Cities {
	c, err := NewCities(defaultCities)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup finds a city by name, ignoring case and surrounding space.
func (c *Cities) Lookup(name string) (City, error) {
	i, ok := c.index[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return City{}, fmt.Errorf("%w: %q", ErrUnknownCity, name)
	}
	return c.list[i], nil
}

// All returns the registry in declaration order.
func (c *Cities) All() []City {
	out := make([]City, len(c.list))
	copy(out, c.list)
	return out
}

var defaultCities = []City{
	{
		Name: "Tampere", Lat: 61.49911, Lon: 23.78712,
		WeatherBBox: common.BBox{MinLon: 23.570322, MinLat: 61.404103, MaxLon: 23.634971, MaxLat: 61.422669},
		RoadBBox:    common.BBox{MinLon: 23.652361, MinLat: 61.435179, MaxLon: 23.865908, MaxLat: 61.520098},
		CameraID:    "C04507",
	},
	{
		Name: "Helsinki", Lat: 60.192059, Lon: 24.945831,
		WeatherBBox: common.BBox{MinLon: 24.936695, MinLat: 60.166345, MaxLon: 24.956425, MaxLat: 60.177754},
		RoadBBox:    common.BBox{MinLon: 24.785044, MinLat: 60.134141, MaxLon: 25.172312, MaxLat: 60.286969},
		CameraID:    "C01675",
	},
	{
		Name: "Oulu", Lat: 65.01236, Lon: 25.46816,
		WeatherBBox: common.BBox{MinLon: 25.317255, MinLat: 64.919717, MaxLon: 25.354000, MaxLat: 64.941000},
		RoadBBox:    common.BBox{MinLon: 25.398253, MinLat: 64.987359, MaxLon: 25.562361, MaxLat: 65.037538},
		CameraID:    "C12503",
	},
	{
		Name: "Turku", Lat: 60.45451, Lon: 22.26482,
		WeatherBBox: common.BBox{MinLon: 22.095707, MinLat: 60.383664, MaxLon: 22.367245, MaxLat: 60.486811},
		RoadBBox:    common.BBox{MinLon: 22.197470, MinLat: 60.422136, MaxLon: 22.344069, MaxLat: 60.474289},
		CameraID:    "C02520",
	},
	{
		Name: "Lappeenranta", Lat: 61.05871, Lon: 28.18871,
		WeatherBBox: common.BBox{MinLon: 28.106238, MinLat: 61.025745, MaxLon: 28.166769, MaxLat: 61.049718},
		RoadBBox:    common.BBox{MinLon: 28.106238, MinLat: 61.025745, MaxLon: 28.272406, MaxLat: 61.071282},
		CameraID:    "C03558",
	},
}
