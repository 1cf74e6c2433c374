package scraper

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"parkwatch/internal/types"
)

// Garage is one garage block of the status page.
type Garage struct {
	GarageID           string  `json:"garage_id"`
	GarageName         string  `json:"garage_name"`
	Address            string  `json:"address"`
	OccupiedPercentage float64 `json:"occupied_percentage"`
	MapURL             string  `json:"map_url,omitempty"`
}

// Info returns the static part of the garage.
func (g Garage) Info() types.GarageInfo {
	return types.GarageInfo{
		GarageID:   g.GarageID,
		GarageName: g.GarageName,
		Address:    g.Address,
		MapURL:     g.MapURL,
	}
}

// Page is the parsed status page.
type Page struct {
	Garages []Garage
	// LastUpdated is the page's own "Last updated" stamp, nil when absent or
	// unparsable.
	LastUpdated *time.Time
}

const lastUpdatedLayout = "2006-1-2 3:04:05 PM"

var lastUpdatedPattern = regexp.MustCompile(`(?i)last updated\s+(.+)$`)

// Parse extracts garages from the status page HTML. Blocks without a name or
// an address are skipped. The page stamp is interpreted in loc.
func Parse(r io.Reader, loc *time.Location) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Page{}, types.NewAppError(types.ErrCodeUpstreamParse, "failed to parse status page", err)
	}
	if loc == nil {
		loc = time.UTC
	}

	var page Page
	doc.Find(".garage").Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(s.Find(".garage__name").First().Text())
		addr := s.Find(".garage__address").First()
		address := strings.TrimSpace(addr.Text())
		if name == "" || address == "" {
			return
		}
		mapURL, _ := addr.Attr("href")
		page.Garages = append(page.Garages, Garage{
			GarageID:           types.DeriveGarageID(name),
			GarageName:         name,
			Address:            address,
			OccupiedPercentage: ParsePercentage(s.Find(".garage__fullness").First().Text()),
			MapURL:             strings.TrimSpace(mapURL),
		})
	})

	stamp := strings.Join(strings.Fields(doc.Find(".timestamp").First().Text()), " ")
	if m := lastUpdatedPattern.FindStringSubmatch(stamp); m != nil {
		if t, err := time.ParseInLocation(lastUpdatedLayout, strings.TrimSpace(m[1]), loc); err == nil {
			utc := t.UTC()
			page.LastUpdated = &utc
		}
	}
	return page, nil
}

// ParsePercentage reads a fullness cell such as "45 %" or "Full". Anything
// unreadable counts as 0.
func ParsePercentage(text string) float64 {
	text = strings.TrimSpace(strings.ReplaceAll(text, "%", ""))
	if strings.EqualFold(text, "full") {
		return 100
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return types.ClampPercentage(v)
}

// SourceHash fingerprints a scrape so unchanged pages can be detected: md5 of
// the JSON array of {id, pct} ordered by garage id.
func SourceHash(garages []Garage) string {
	type entry struct {
		ID  string  `json:"id"`
		Pct float64 `json:"pct"`
	}
	entries := make([]entry, len(garages))
	for i, g := range garages {
		entries[i] = entry{ID: g.GarageID, Pct: g.OccupiedPercentage}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	payload, _ := json.Marshal(entries)
	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:])
}

// ToReadings stamps every garage with the same batch timestamp and source
// hash.
func ToReadings(garages []Garage, at time.Time) []types.Reading {
	hash := SourceHash(garages)
	readings := make([]types.Reading, len(garages))
	for i, g := range garages {
		readings[i] = types.Reading{
			GarageID:           g.GarageID,
			GarageName:         g.GarageName,
			Address:            g.Address,
			OccupiedPercentage: g.OccupiedPercentage,
			Timestamp:          at,
			SourceHash:         hash,
		}.Normalize()
	}
	return readings
}
