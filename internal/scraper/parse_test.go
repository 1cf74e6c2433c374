package scraper

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	pacific := time.FixedZone("PDT", -7*3600)

	page, err := Parse(strings.NewReader(statusPage), pacific)
	require.NoError(t, err)

	require.Len(t, page.Garages, 3, "block without an address must be skipped")

	assert.Equal(t, Garage{
		GarageID:           "south-garage",
		GarageName:         "South Garage",
		Address:            "377 S. 7th St., San Jose, CA 95112",
		OccupiedPercentage: 45,
		MapURL:             "https://maps.example.com/?q=south",
	}, page.Garages[0])
	assert.Equal(t, "west-garage", page.Garages[1].GarageID)
	assert.Equal(t, 100.0, page.Garages[1].OccupiedPercentage)
	assert.Equal(t, 0.0, page.Garages[2].OccupiedPercentage)
	assert.Empty(t, page.Garages[2].MapURL)

	require.NotNil(t, page.LastUpdated)
	assert.Equal(t, time.Date(2025, 8, 18, 4, 1, 0, 0, time.UTC), *page.LastUpdated)
}

func TestParse_NoGarages(t *testing.T) {
	page, err := Parse(strings.NewReader("<html><body><p>maintenance</p></body></html>"), nil)
	require.NoError(t, err)
	assert.Empty(t, page.Garages)
	assert.Nil(t, page.LastUpdated)
}

func TestParsePercentage(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"45 %", 45},
		{" 12.5% ", 12.5},
		{"FULL", 100},
		{"full ", 100},
		{"", 0},
		{"closed", 0},
		{"130 %", 100},
		{"-4", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePercentage(tt.in))
		})
	}
}

func TestSourceHash(t *testing.T) {
	a := []Garage{{GarageID: "south-garage", OccupiedPercentage: 45}, {GarageID: "north-garage", OccupiedPercentage: 10}}
	b := []Garage{{GarageID: "north-garage", OccupiedPercentage: 10}, {GarageID: "south-garage", OccupiedPercentage: 45}}

	assert.Equal(t, SourceHash(a), SourceHash(b), "order of garages must not matter")
	assert.Len(t, SourceHash(a), 32)

	// md5 of [{"id":"a","pct":1}]
	assert.Equal(t, "c62b0b9afa594dc1e38afc87c556a956", SourceHash([]Garage{{GarageID: "a", OccupiedPercentage: 1}}))

	changed := []Garage{{GarageID: "south-garage", OccupiedPercentage: 46}, {GarageID: "north-garage", OccupiedPercentage: 10}}
	assert.NotEqual(t, SourceHash(a), SourceHash(changed))
}

func TestToReadings(t *testing.T) {
	at := time.Date(2025, 8, 18, 10, 0, 42, 0, time.UTC)
	garages := []Garage{
		{GarageID: "south-garage", GarageName: "South Garage", Address: "377 S. 7th St.", OccupiedPercentage: 45},
		{GarageID: "west-garage", GarageName: "West Garage", Address: "350 S. 4th St.", OccupiedPercentage: 100},
	}

	readings := ToReadings(garages, at)
	require.Len(t, readings, 2)
	hash := SourceHash(garages)
	for i, r := range readings {
		assert.Equal(t, garages[i].GarageID, r.GarageID)
		assert.Equal(t, time.Date(2025, 8, 18, 10, 0, 0, 0, time.UTC), r.Timestamp)
		assert.Equal(t, hash, r.SourceHash)
	}
}
