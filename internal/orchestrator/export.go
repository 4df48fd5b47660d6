package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/zone-scraper/internal/scraper"
)

const exportTimeFormat = "20060102T150405Z"

// ZoneExport is the JSON document written to the blob store after each zone pass.
type ZoneExport struct {
	JobID       string                     `json:"job_id"`
	ZoneID      string                     `json:"zone_id"`
	ZoneCode    string                     `json:"zone_code"`
	ZoneName    string                     `json:"zone_name"`
	ExportedAt  time.Time                  `json:"exported_at"`
	Count       int                        `json:"count"`
	Restaurants []scraper.RestaurantRecord `json:"restaurants"`
}

// ExportPath names a zone export: <zone_code>_restaurants_<timestamp>.json.
func ExportPath(zone scraper.Zone, at time.Time) string {
	code := zone.Code
	if code == "" {
		code = zone.ID
	}
	code = strings.NewReplacer("/", "-", "\\", "-", " ", "_").Replace(code)
	return fmt.Sprintf("%s_restaurants_%s.json", code, at.UTC().Format(exportTimeFormat))
}

// export writes the zone's persisted records. Failures are logged and never fail the job.
func (o *Orchestrator) export(
	ctx context.Context,
	job scraper.Job,
	zone scraper.Zone,
	records []scraper.RestaurantRecord,
	logger *zap.Logger,
) {
	if o.blobs == nil || len(records) == 0 {
		return
	}
	now := o.clock.Now()
	doc := ZoneExport{
		JobID:       job.ID,
		ZoneID:      zone.ID,
		ZoneCode:    zone.Code,
		ZoneName:    zone.Label(),
		ExportedAt:  now.UTC(),
		Count:       len(records),
		Restaurants: records,
	}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		logger.Warn("encode zone export failed", zap.Error(err))
		return
	}
	uri, err := o.blobs.PutObject(ctx, ExportPath(zone, now), "application/json", bytes.NewReader(body))
	if err != nil {
		logger.Warn("write zone export failed", zap.Error(err))
		return
	}
	logger.Info("zone exported", zap.String("uri", uri), zap.Int("restaurants", len(records)))
}
