package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/zone-scraper/internal/scraper"
)

// RestaurantStore upserts restaurants keyed by google_place_id.
type RestaurantStore struct {
	db    DB
	table string
}

// NewRestaurantStore wraps db. table defaults to "restaurants".
func NewRestaurantStore(db DB, table string) (*RestaurantStore, error) {
	if db == nil {
		return nil, errors.New("pool is required")
	}
	table, err := checkTable(table, "restaurants")
	if err != nil {
		return nil, err
	}
	return &RestaurantStore{db: db, table: table}, nil
}

// Close releases the pool.
func (s *RestaurantStore) Close() {
	if s == nil || s.db == nil {
		return
	}
	s.db.Close()
}

// UpsertByPlaceID inserts rec and ignores conflicts on the place id. It reports whether a new
// row was written. Connection failures wrap scraper.ErrStoreUnavailable.
func (s *RestaurantStore) UpsertByPlaceID(ctx context.Context, rec scraper.RestaurantRecord) (bool, error) {
	if rec.PlaceID == "" {
		return false, fmt.Errorf("upsert %q: empty place id", rec.Name)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	google_place_id,
	name,
	address,
	city,
	state,
	country,
	postal_code,
	phone,
	website,
	cuisine_type,
	rating,
	price_level,
	latitude,
	longitude,
	zone_id,
	source,
	business_hours,
	photo_refs,
	last_scraped
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,now()
)
ON CONFLICT (google_place_id) DO NOTHING`, s.table)

	args := []any{
		rec.PlaceID,
		rec.Name,
		rec.Address,
		rec.City,
		rec.State,
		rec.Country,
		rec.PostalCode,
		rec.Phone,
		rec.Website,
		rec.CuisineType,
		rec.Rating,
		rec.PriceLevel,
		rec.Location.Lat(),
		rec.Location.Lon(),
		rec.ZoneID,
		rec.Source,
		nonNil(rec.BusinessHours),
		nonNil(rec.PhotoRefs),
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return false, classify("upsert restaurant", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateEmail stores the discovered address on an existing restaurant.
func (s *RestaurantStore) UpdateEmail(ctx context.Context, placeID string, c scraper.EmailCandidate) error {
	query := fmt.Sprintf(`
UPDATE %s
SET email = $1, has_email = TRUE, email_source = $2, updated_at = now()
WHERE google_place_id = $3`, s.table)

	tag, err := s.db.Exec(ctx, query, c.Address, c.Strategy, placeID)
	if err != nil {
		return classify("update restaurant email", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update restaurant email: %s not found", placeID)
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
