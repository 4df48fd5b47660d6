package zoneconfig

import (
	"regexp"
	"strings"

	"github.com/paulmach/orb/geo"

	"github.com/JakeFAU/zone-scraper/internal/scraper"
)

// withinZoneSlack pads the zone circle because the provider ranks by prominence and may return
// places slightly outside the requested radius.
const withinZoneSlack = 1.25

var (
	namePattern    = regexp.MustCompile(`^[a-zA-Z0-9\s\-'&.()]+$`)
	phonePattern   = regexp.MustCompile(`^\+?[\d\s\-().]{10,}$`)
	websitePattern = regexp.MustCompile(`^https?://.+`)
)

var kosherKeywords = []string{"kosher", "glatt", "hebrew", "jewish", "synagogue"}

var chainNames = []string{
	"mcdonalds", "mcdonald's", "burger king", "subway", "starbucks", "dunkin",
	"pizza hut", "dominos", "domino's", "kfc", "taco bell", "wendys", "wendy's",
}

// Rules builds the ordered validation gates for a zone: required fields, field patterns,
// then zone-specific custom predicates.
func Rules(z scraper.Zone, opts Options) []scraper.Rule {
	rules := []scraper.Rule{
		{Name: "required_name", Check: func(r scraper.RestaurantRecord) bool {
			return strings.TrimSpace(r.Name) != ""
		}},
		{Name: "required_address", Check: func(r scraper.RestaurantRecord) bool {
			return strings.TrimSpace(r.Address) != ""
		}},
		{Name: "name_format", Check: func(r scraper.RestaurantRecord) bool {
			n := len(r.Name)
			return n >= 2 && n <= 255 && namePattern.MatchString(r.Name)
		}},
		{Name: "phone_format", Check: func(r scraper.RestaurantRecord) bool {
			return r.Phone == "" || phonePattern.MatchString(r.Phone)
		}},
		{Name: "website_format", Check: func(r scraper.RestaurantRecord) bool {
			return r.Website == "" || websitePattern.MatchString(r.Website)
		}},
	}

	if hasCuisine(z, "kosher") {
		rules = append(rules, scraper.Rule{Name: "kosher", Check: isKosher})
	}
	rules = append(rules, scraper.Rule{Name: "chain_exclusion", Check: notChain})
	if opts.RequireBusinessHours {
		rules = append(rules, scraper.Rule{Name: "business_hours", Check: func(r scraper.RestaurantRecord) bool {
			return r.HasHours
		}})
	}

	padded := geo.NewBoundAroundPoint(z.Point(), float64(z.RadiusMeters)*withinZoneSlack)
	rules = append(rules, scraper.Rule{Name: "within_zone", Check: func(r scraper.RestaurantRecord) bool {
		return !r.HasLocation() || padded.Contains(r.Location)
	}})
	return rules
}

func isKosher(r scraper.RestaurantRecord) bool {
	name := strings.ToLower(r.Name)
	if containsAny(name, kosherKeywords) {
		return true
	}
	return strings.Contains(strings.ToLower(r.CuisineType), "kosher")
}

func notChain(r scraper.RestaurantRecord) bool {
	return !containsAny(strings.ToLower(r.Name), chainNames)
}

func hasCuisine(z scraper.Zone, cuisine string) bool {
	for _, c := range z.CuisineFocus {
		if strings.EqualFold(strings.TrimSpace(c), cuisine) {
			return true
		}
	}
	return false
}
