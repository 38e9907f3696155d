package common

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParseBBox(t *testing.T) {
	b, err := ParseBBox("23.652361,61.435179,23.865908,61.520098")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.MinLon != 23.652361 || b.MaxLat != 61.520098 {
		t.Fatalf("unexpected bbox %+v", b)
	}
	if got := b.String(); got != "23.652361,61.435179,23.865908,61.520098" {
		t.Fatalf("unexpected string %q", got)
	}

	for _, bad := range []string{"", "1,2,3", "a,b,c,d", "5,5,1,1"} {
		if _, err := ParseBBox(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestBBoxContains(t *testing.T) {
	b := BBox{MinLon: 24.7, MinLat: 60.1, MaxLon: 25.2, MaxLat: 60.3}
	if !b.Contains(24.9, 60.2) {
		t.Fatal("expected point inside")
	}
	if b.Contains(24.9, 61.0) {
		t.Fatal("expected latitude outside")
	}
	if b.Contains(24.7, 60.2) {
		t.Fatal("edge is not inside")
	}
}

func TestBBoxYAML(t *testing.T) {
	var doc struct {
		Road    BBox `yaml:"road"`
		Weather BBox `yaml:"weather"`
	}
	in := `road: "23.65,61.43,23.86,61.52"
weather: {minLon: 23.57, minLat: 61.40, maxLon: 23.63, maxLat: 61.42}
`
	if err := yaml.Unmarshal([]byte(in), &doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Road.MinLon != 23.65 || doc.Road.MaxLat != 61.52 {
		t.Fatalf("unexpected road bbox %+v", doc.Road)
	}
	if doc.Weather.MinLat != 61.40 || doc.Weather.MaxLon != 23.63 {
		t.Fatalf("unexpected weather bbox %+v", doc.Weather)
	}

	if err := yaml.Unmarshal([]byte(`road: "1,2,3"`), &doc); err == nil {
		t.Fatal("expected error for short bbox string")
	}
}
