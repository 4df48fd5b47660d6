package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/zone-scraper/internal/scraper"
)

const selectZone = `
SELECT
	id,
	zone_code,
	display_name,
	latitude,
	longitude,
	radius_meters,
	priority,
	search_terms,
	cuisine_focus,
	COALESCE(notes, ''),
	COALESCE(population, 0),
	is_active,
	COALESCE(city, ''),
	COALESCE(state, ''),
	COALESCE(country, ''),
	COALESCE(template, '')
FROM zones
WHERE id = $1`

// ZoneStore reads zones maintained by the administrative side.
type ZoneStore struct {
	db DB
}

// NewZoneStore wraps db.
func NewZoneStore(db DB) (*ZoneStore, error) {
	if db == nil {
		return nil, errors.New("pool is required")
	}
	return &ZoneStore{db: db}, nil
}

// GetZone loads one zone. A missing row wraps scraper.ErrZoneNotFound.
func (s *ZoneStore) GetZone(ctx context.Context, id string) (scraper.Zone, error) {
	var z scraper.Zone
	err := s.db.QueryRow(ctx, selectZone, id).Scan(
		&z.ID,
		&z.Code,
		&z.DisplayName,
		&z.Latitude,
		&z.Longitude,
		&z.RadiusMeters,
		&z.Priority,
		&z.SearchTerms,
		&z.CuisineFocus,
		&z.Notes,
		&z.Population,
		&z.Active,
		&z.City,
		&z.State,
		&z.Country,
		&z.Template,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return scraper.Zone{}, fmt.Errorf("zone %s: %w", id, scraper.ErrZoneNotFound)
	}
	if err != nil {
		return scraper.Zone{}, classify("get zone", err)
	}
	return z, nil
}
