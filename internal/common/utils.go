package common

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// BBox is a lon/lat bounding box in the order used by the upstream APIs:
// minLon, minLat, maxLon, maxLat.
type BBox struct {
	MinLon float64 `yaml:"minLon" json:"minLon"`
	MinLat float64 `yaml:"minLat" json:"minLat"`
	MaxLon float64 `yaml:"maxLon" json:"maxLon"`
	MaxLat float64 `yaml:"maxLat" json:"maxLat"`
}

// ParseBBox parses "minLon,minLat,maxLon,maxLat".
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("bbox %q: expected 4 comma separated values", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		v[i] = f
	}
	b := BBox{MinLon: v[0], MinLat: v[1], MaxLon: v[2], MaxLat: v[3]}
	if b.MinLon > b.MaxLon || b.MinLat > b.MaxLat {
		return BBox{}, fmt.Errorf("bbox %q: min exceeds max", s)
	}
	return b, nil
}

// UnmarshalYAML accepts either a mapping with minLon/minLat/maxLon/maxLat
// keys or a "minLon,minLat,maxLon,maxLat" string.
func (b *BBox) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		parsed, err := ParseBBox(value.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		*b = parsed
		return nil
	}

	type plain BBox
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*b = BBox(p)
	return nil
}

// Contains reports whether the lon/lat point lies strictly inside the box.
func (b BBox) Contains(lon, lat float64) bool {
	return lon > b.MinLon && lon < b.MaxLon && lat > b.MinLat && lat < b.MaxLat
}

// String renders the box in upstream query order.
func (b BBox) String() string {
	return strings.Join([]string{
		FormatCoord(b.MinLon), FormatCoord(b.MinLat), FormatCoord(b.MaxLon), FormatCoord(b.MaxLat),
	}, ",")
}

// FormatCoord prints a coordinate without trailing zeros.
func FormatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
