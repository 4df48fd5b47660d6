package zoneconfig

import (
	"fmt"

	"github.com/JakeFAU/zone-scraper/internal/scraper"
)

// Template holds quick-setup defaults for a kind of zone.
type Template struct {
	RadiusMeters int
	SearchTerms  []string
	CuisineFocus []string
	Priority     int
}

// Templates lists the built-in zone kinds.
var Templates = map[string]Template{
	"metropolitan": {
		RadiusMeters: 15000,
		SearchTerms:  []string{"restaurant", "food", "dining"},
		CuisineFocus: []string{"diverse", "international"},
		Priority:     1,
	},
	"suburban": {
		RadiusMeters: 7000,
		SearchTerms:  []string{"restaurant", "family restaurant"},
		CuisineFocus: []string{"american", "family-friendly"},
		Priority:     2,
	},
	"rural": {
		RadiusMeters: 12000,
		SearchTerms:  []string{"restaurant", "diner", "local restaurant"},
		CuisineFocus: []string{"american", "comfort food"},
		Priority:     3,
	},
	"tourist": {
		RadiusMeters: 8000,
		SearchTerms:  []string{"restaurant", "cafe", "fine dining"},
		CuisineFocus: []string{"fine dining", "local specialties"},
		Priority:     1,
	},
	"kosher": {
		RadiusMeters: 5000,
		SearchTerms:  []string{"kosher restaurant", "kosher", "restaurant"},
		CuisineFocus: []string{"kosher", "jewish", "middle eastern"},
		Priority:     2,
	},
}

// ApplyTemplate fills unset zone fields from its named template. Explicit values win.
func ApplyTemplate(z scraper.Zone) (scraper.Zone, error) {
	if z.Template == "" {
		return z, nil
	}
	tmpl, ok := Templates[z.Template]
	if !ok {
		return z, fmt.Errorf("%w: unknown zone template %q", scraper.ErrInvalidZone, z.Template)
	}
	if z.RadiusMeters == 0 {
		z.RadiusMeters = tmpl.RadiusMeters
	}
	if len(z.SearchTerms) == 0 {
		z.SearchTerms = append([]string(nil), tmpl.SearchTerms...)
	}
	if len(z.CuisineFocus) == 0 {
		z.CuisineFocus = append([]string(nil), tmpl.CuisineFocus...)
	}
	if z.Priority == 0 {
		z.Priority = tmpl.Priority
	}
	return z, nil
}
