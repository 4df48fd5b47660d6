package places

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/paulmach/orb"

	"github.com/JakeFAU/zone-scraper/internal/scraper"
)

const (
	maxPhotoRefs   = 3
	minPhoneDigits = 10
)

var stateZipPattern = regexp.MustCompile(`([A-Z]{2})\s+(\d{5})`)

// Address holds the components parsed from a formatted address.
type Address struct {
	City       string
	State      string
	PostalCode string
	Country    string
}

// ParseAddress splits a US-style formatted address ("street, city, ST 12345, USA").
// Non-US addresses yield an empty Address.
func ParseAddress(formatted string) Address {
	parts := strings.Split(formatted, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 3 {
		return Address{}
	}
	last := parts[len(parts)-1]
	if !strings.Contains(last, "USA") && !strings.Contains(last, "United States") {
		return Address{}
	}
	addr := Address{Country: "US", City: parts[len(parts)-3]}
	if m := stateZipPattern.FindStringSubmatch(parts[len(parts)-2]); m != nil {
		addr.State = m[1]
		addr.PostalCode = m[2]
	}
	return addr
}

// NormalizePhone returns the phone text unchanged when it carries at least 10 digits, otherwise "".
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	digits := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < minPhoneDigits {
		return ""
	}
	return phone
}

// NormalizeWebsite returns an absolute URL, retrying once with an https:// prefix.
func NormalizeWebsite(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if u, ok := absoluteURL(raw); ok {
		return u
	}
	if u, ok := absoluteURL("https://" + raw); ok {
		return u
	}
	return ""
}

func absoluteURL(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return u.String(), true
}

// TransformDetails builds a RestaurantRecord from a detail payload.
func TransformDetails(d scraper.PlaceDetails, zone scraper.Zone) scraper.RestaurantRecord {
	addr := ParseAddress(d.FormattedAddress)
	phone := NormalizePhone(d.FormattedPhoneNumber)
	if phone == "" {
		phone = NormalizePhone(d.InternationalPhoneNumber)
	}
	photos := d.PhotoRefs
	if len(photos) > maxPhotoRefs {
		photos = photos[:maxPhotoRefs]
	}
	return scraper.RestaurantRecord{
		PlaceID:       d.PlaceID,
		Name:          strings.TrimSpace(d.Name),
		Address:       strings.TrimSpace(d.FormattedAddress),
		City:          firstNonEmpty(addr.City, zone.City),
		State:         firstNonEmpty(addr.State, zone.State),
		Country:       firstNonEmpty(addr.Country, zone.Country),
		PostalCode:    addr.PostalCode,
		Phone:         phone,
		Website:       NormalizeWebsite(d.Website),
		CuisineType:   ClassifyCuisine(d.Types, d.Name, zone.CuisineFocus),
		Rating:        d.Rating,
		PriceLevel:    d.PriceLevel,
		Location:      orb.Point{d.Longitude, d.Latitude},
		ZoneID:        zone.ID,
		Source:        scraper.SourceGooglePlaces,
		BusinessHours: append([]string(nil), d.WeekdayText...),
		HasHours:      d.HasOpeningHours,
		PhotoRefs:     append([]string(nil), photos...),
	}
}

// TransformCandidate builds a coarse record from a search hit when details are unavailable.
func TransformCandidate(c scraper.CandidatePlace, zone scraper.Zone) scraper.RestaurantRecord {
	return scraper.RestaurantRecord{
		PlaceID:     c.PlaceID,
		Name:        strings.TrimSpace(c.Name),
		Address:     strings.TrimSpace(c.Vicinity),
		City:        zone.City,
		State:       zone.State,
		Country:     zone.Country,
		CuisineType: ClassifyCuisine(c.Types, c.Name, zone.CuisineFocus),
		Rating:      c.Rating,
		PriceLevel:  c.PriceLevel,
		Location:    c.Location,
		ZoneID:      zone.ID,
		Source:      scraper.SourceGooglePlaces,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
