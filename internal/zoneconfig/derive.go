package zoneconfig

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/paulmach/orb/geo"

	"github.com/JakeFAU/zone-scraper/internal/scraper"
)

const (
	// DefaultBaseMaxResults is the per-zone result target before scaling.
	DefaultBaseMaxResults = 200

	baseRequestDelay = 2 * time.Second
	baseConcurrency  = 3
	defaultRetries   = 3
	defaultTimeout   = 30 * time.Second
)

// defaultSearchTerms apply to zones that list no search terms of their own.
var defaultSearchTerms = []string{"restaurant"}

// broadeningTypes widen recall beyond the plain "restaurant" category.
var broadeningTypes = []string{"meal_takeaway", "meal_delivery", "cafe", "bar", "food"}

// Queries builds the ordered nearby-search query list for a zone.
func Queries(z scraper.Zone) []scraper.SearchQuery {
	terms := z.SearchTerms
	if len(terms) == 0 {
		terms = defaultSearchTerms
	}
	queries := make([]scraper.SearchQuery, 0, len(terms)+len(z.CuisineFocus)+len(broadeningTypes))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		queries = append(queries, scraper.SearchQuery{Keyword: term, Type: "restaurant"})
	}
	for _, cuisine := range z.CuisineFocus {
		cuisine = strings.TrimSpace(cuisine)
		if cuisine == "" {
			continue
		}
		queries = append(queries, scraper.SearchQuery{
			Keyword: fmt.Sprintf("%s restaurant", cuisine),
			Type:    "restaurant",
			Cuisine: cuisine,
		})
	}
	for _, t := range broadeningTypes {
		queries = append(queries, scraper.SearchQuery{Type: t})
	}
	return queries
}

// AreaKm2 is the area of the zone's search circle.
func AreaKm2(z scraper.Zone) float64 {
	r := float64(z.RadiusMeters) / 1000
	return math.Pi * r * r
}

// MaxResults scales base by priority, area and population density. Multipliers compose.
func MaxResults(z scraper.Zone, base int) int {
	if base <= 0 {
		base = DefaultBaseMaxResults
	}
	target := float64(base)
	switch z.Priority {
	case 1:
		target *= 1.5
	case 3:
		target *= 0.75
	}
	area := AreaKm2(z)
	switch {
	case area > 100:
		target *= 1.2
	case area < 10:
		target *= 0.8
	}
	if z.Population > 0 && area > 0 {
		density := float64(z.Population) / area
		switch {
		case density > 5000:
			target *= 1.3
		case density < 1000:
			target *= 0.7
		}
	}
	return int(math.Round(target))
}

var (
	upscaleKeywords = []string{"upscale", "luxury", "fine dining"}
	budgetKeywords  = []string{"budget", "affordable", "student"}
	touristKeywords = []string{"tourist", "business district"}
)

// PriceLevels narrows the allowed price levels using keywords in the zone notes.
func PriceLevels(z scraper.Zone) []int {
	notes := strings.ToLower(z.Notes)
	switch {
	case containsAny(notes, upscaleKeywords):
		return []int{2, 3, 4}
	case containsAny(notes, budgetKeywords):
		return []int{0, 1, 2}
	case containsAny(notes, touristKeywords):
		return []int{1, 2, 3, 4}
	default:
		return []int{0, 1, 2, 3, 4}
	}
}

// Pacing derives delay and concurrency from priority. Higher priority scrapes faster.
func Pacing(z scraper.Zone, userAgents []string) scraper.ScrapingConfig {
	cfg := scraper.ScrapingConfig{
		RequestDelay: baseRequestDelay,
		Concurrency:  baseConcurrency,
		MaxRetries:   defaultRetries,
		Timeout:      defaultTimeout,
		UserAgents:   append([]string(nil), userAgents...),
	}
	switch z.Priority {
	case 1:
		cfg.RequestDelay = baseRequestDelay * 3 / 4
		cfg.Concurrency = 5
	case 3:
		cfg.RequestDelay = baseRequestDelay * 3 / 2
		cfg.Concurrency = 2
	}
	return cfg
}

// ScheduleFor maps priority to the rescrape cadence.
func ScheduleFor(z scraper.Zone) scraper.Schedule {
	switch z.Priority {
	case 1:
		return scraper.Schedule{Frequency: "daily", StartTime: "02:00", MaxDuration: 4 * time.Hour}
	case 3:
		return scraper.Schedule{Frequency: "monthly", StartTime: "04:00", MaxDuration: 8 * time.Hour}
	default:
		return scraper.Schedule{Frequency: "weekly", StartTime: "03:00", MaxDuration: 6 * time.Hour}
	}
}

// Derive computes the full SearchConfig for a validated zone.
func Derive(z scraper.Zone, opts Options, now time.Time) *scraper.SearchConfig {
	center := z.Point()
	return &scraper.SearchConfig{
		Zone:         z,
		Location:     center,
		RadiusMeters: z.RadiusMeters,
		Bound:        geo.NewBoundAroundPoint(center, float64(z.RadiusMeters)),
		AreaKm2:      AreaKm2(z),
		Queries:      Queries(z),
		MaxResults:   MaxResults(z, opts.BaseMaxResults),
		PriceLevels:  PriceLevels(z),
		Scraping:     Pacing(z, opts.UserAgents),
		Rules:        Rules(z, opts),
		Schedule:     ScheduleFor(z),
		ResolvedAt:   now,
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
