package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type zoneCacheStatsDTO struct {
	Size       int      `json:"size"`
	Entries    []string `json:"entries"`
	TTLSeconds float64  `json:"ttl_seconds"`
}

func (s *Server) invalidateZoneConfig(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "zone_id")
	if zoneID == "" {
		writeError(w, http.StatusBadRequest, "zone_id is required")
		return
	}
	s.zones.Invalidate(zoneID)
	s.logger.Info("zone config invalidated", zap.String("zone_id", zoneID))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) invalidateAllZoneConfigs(w http.ResponseWriter, _ *http.Request) {
	s.zones.InvalidateAll()
	s.logger.Info("zone config cache cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) zoneConfigStats(w http.ResponseWriter, _ *http.Request) {
	stats := s.zones.Stats()
	entries := stats.Entries
	if entries == nil {
		entries = []string{}
	}
	writeJSON(w, http.StatusOK, zoneCacheStatsDTO{
		Size:       stats.Size,
		Entries:    entries,
		TTLSeconds: stats.TTL.Seconds(),
	})
}
