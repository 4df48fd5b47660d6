package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/zone-scraper/internal/scraper"
)

// RestaurantStore keeps restaurants keyed by place id. Upserts never overwrite.
type RestaurantStore struct {
	mu      sync.RWMutex
	records map[string]scraper.RestaurantRecord
}

// NewRestaurantStore constructs an empty RestaurantStore.
func NewRestaurantStore() *RestaurantStore {
	return &RestaurantStore{records: make(map[string]scraper.RestaurantRecord)}
}

// UpsertByPlaceID inserts rec unless its place id is already stored.
func (s *RestaurantStore) UpsertByPlaceID(_ context.Context, rec scraper.RestaurantRecord) (bool, error) {
	if rec.PlaceID == "" {
		return false, fmt.Errorf("upsert %q: empty place id", rec.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.PlaceID]; exists {
		return false, nil
	}
	s.records[rec.PlaceID] = rec
	return true, nil
}

// UpdateEmail attaches a discovered address to a stored restaurant.
func (s *RestaurantStore) UpdateEmail(_ context.Context, placeID string, c scraper.EmailCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[placeID]
	if !ok {
		return fmt.Errorf("restaurant %s not found", placeID)
	}
	rec.Email = c.Address
	rec.EmailSource = c.Strategy
	s.records[placeID] = rec
	return nil
}

// Get returns the stored restaurant.
func (s *RestaurantStore) Get(placeID string) (scraper.RestaurantRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[placeID]
	return rec, ok
}

// ListByZone returns a zone's restaurants ordered by place id.
func (s *RestaurantStore) ListByZone(zoneID string) []scraper.RestaurantRecord {
	s.mu.RLock()
	out := make([]scraper.RestaurantRecord, 0)
	for _, rec := range s.records {
		if rec.ZoneID == zoneID {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].PlaceID < out[j].PlaceID })
	return out
}

// Len reports the number of stored restaurants.
func (s *RestaurantStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
