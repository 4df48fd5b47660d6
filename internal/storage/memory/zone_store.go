package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/zone-scraper/internal/scraper"
)

// ZoneStore serves zones seeded from configuration.
type ZoneStore struct {
	mu    sync.RWMutex
	zones map[string]scraper.Zone
}

// NewZoneStore seeds a ZoneStore.
func NewZoneStore(zones ...scraper.Zone) *ZoneStore {
	s := &ZoneStore{zones: make(map[string]scraper.Zone, len(zones))}
	for _, z := range zones {
		s.zones[z.ID] = z
	}
	return s
}

// GetZone returns the zone or wraps scraper.ErrZoneNotFound.
func (s *ZoneStore) GetZone(_ context.Context, id string) (scraper.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	z, ok := s.zones[id]
	if !ok {
		return scraper.Zone{}, fmt.Errorf("zone %s: %w", id, scraper.ErrZoneNotFound)
	}
	return z, nil
}

// Put inserts or replaces a zone.
func (s *ZoneStore) Put(z scraper.Zone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones[z.ID] = z
}
