package scraper

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

// JobStatus captures lifecycle state for a scraping job.
type JobStatus string

const (
	// JobStatusStarting indicates the job was accepted but zone iteration has not begun.
	JobStatusStarting JobStatus = "starting"
	// JobStatusRunning indicates zones are being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates every requested zone was processed.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a job-fatal error aborted the zone loop.
	JobStatusFailed JobStatus = "failed"
)

// Terminal reports whether the status ends the job lifecycle.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// SourceGooglePlaces tags records discovered through the places provider.
const SourceGooglePlaces = "google_places"

// Zone is an administrator-defined search area. It is read-only to the engine.
type Zone struct {
	ID           string   `json:"id" mapstructure:"id"`
	Code         string   `json:"code" mapstructure:"code"`
	DisplayName  string   `json:"display_name" mapstructure:"display_name"`
	Latitude     float64  `json:"latitude" mapstructure:"latitude"`
	Longitude    float64  `json:"longitude" mapstructure:"longitude"`
	RadiusMeters int      `json:"radius_meters" mapstructure:"radius_meters"`
	Priority     int      `json:"priority" mapstructure:"priority"`
	SearchTerms  []string `json:"search_terms" mapstructure:"search_terms"`
	CuisineFocus []string `json:"cuisine_focus" mapstructure:"cuisine_focus"`
	Notes        string   `json:"notes" mapstructure:"notes"`
	Population   int64    `json:"population" mapstructure:"population"`
	Active       bool     `json:"active" mapstructure:"active"`
	City         string   `json:"city" mapstructure:"city"`
	State        string   `json:"state" mapstructure:"state"`
	Country      string   `json:"country" mapstructure:"country"`
	Template     string   `json:"template,omitempty" mapstructure:"template"`
}

// Validate enforces the geographic invariants of a zone.
func (z Zone) Validate() error {
	if z.RadiusMeters <= 0 {
		return fmt.Errorf("%w: zone %s radius must be > 0", ErrInvalidZone, z.ID)
	}
	if z.Latitude < -90 || z.Latitude > 90 {
		return fmt.Errorf("%w: zone %s latitude %v out of range", ErrInvalidZone, z.ID, z.Latitude)
	}
	if z.Longitude < -180 || z.Longitude > 180 {
		return fmt.Errorf("%w: zone %s longitude %v out of range", ErrInvalidZone, z.ID, z.Longitude)
	}
	return nil
}

// Label returns the human-readable name used for job progress.
func (z Zone) Label() string {
	switch {
	case z.DisplayName != "":
		return z.DisplayName
	case z.Code != "":
		return z.Code
	default:
		return z.ID
	}
}

// Point returns the zone centre as an orb point (lon, lat).
func (z Zone) Point() orb.Point {
	return orb.Point{z.Longitude, z.Latitude}
}

// SearchQuery is one nearby-search call issued for a zone.
type SearchQuery struct {
	Keyword string `json:"keyword,omitempty"`
	Type    string `json:"type"`
	Cuisine string `json:"cuisine,omitempty"`
}

// ScrapingConfig holds the pacing knobs derived from zone priority.
type ScrapingConfig struct {
	RequestDelay time.Duration `json:"request_delay"`
	Concurrency  int           `json:"concurrency"`
	MaxRetries   int           `json:"max_retries"`
	Timeout      time.Duration `json:"timeout"`
	UserAgents   []string      `json:"user_agents"`
}

// Schedule describes when a zone should be rescraped.
type Schedule struct {
	Frequency   string        `json:"frequency"`
	StartTime   string        `json:"start_time"`
	MaxDuration time.Duration `json:"max_duration"`
}

// SearchConfig is the effective, derived configuration for one zone pass.
type SearchConfig struct {
	Zone         Zone           `json:"zone"`
	Location     orb.Point      `json:"location"`
	RadiusMeters int            `json:"radius_meters"`
	Bound        orb.Bound      `json:"bound"`
	AreaKm2      float64        `json:"area_km2"`
	Queries      []SearchQuery  `json:"queries"`
	MaxResults   int            `json:"max_results"`
	PriceLevels  []int          `json:"price_levels"`
	Scraping     ScrapingConfig `json:"scraping"`
	Rules        []Rule         `json:"-"`
	Schedule     Schedule       `json:"schedule"`
	ResolvedAt   time.Time      `json:"resolved_at"`
}

// AllowsPrice reports whether a price level passes the zone's filter. Level 0 means unknown and is kept.
func (c *SearchConfig) AllowsPrice(level int) bool {
	if level == 0 || len(c.PriceLevels) == 0 {
		return true
	}
	for _, allowed := range c.PriceLevels {
		if allowed == level {
			return true
		}
	}
	return false
}

// Rule is a named boolean gate applied to transformed records.
type Rule struct {
	Name  string
	Check func(RestaurantRecord) bool
}

// CandidatePlace is an unenriched search hit.
type CandidatePlace struct {
	PlaceID    string    `json:"place_id"`
	Name       string    `json:"name"`
	Vicinity   string    `json:"vicinity,omitempty"`
	Location   orb.Point `json:"location"`
	PriceLevel int       `json:"price_level"`
	Rating     float64   `json:"rating"`
	Types      []string  `json:"types"`
}

// RestaurantRecord is the normalized output persisted per place.
type RestaurantRecord struct {
	PlaceID       string    `json:"google_place_id"`
	Name          string    `json:"name"`
	Address       string    `json:"address"`
	City          string    `json:"city,omitempty"`
	State         string    `json:"state,omitempty"`
	Country       string    `json:"country,omitempty"`
	PostalCode    string    `json:"postal_code,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Website       string    `json:"website,omitempty"`
	CuisineType   string    `json:"cuisine_type,omitempty"`
	Rating        float64   `json:"rating"`
	PriceLevel    int       `json:"price_level"`
	Location      orb.Point `json:"location"`
	ZoneID        string    `json:"zone_id"`
	Source        string    `json:"source"`
	BusinessHours []string  `json:"business_hours,omitempty"`
	HasHours      bool      `json:"-"`
	PhotoRefs     []string  `json:"photo_refs,omitempty"`
	Email         string    `json:"email,omitempty"`
	EmailSource   string    `json:"email_source,omitempty"`
}

// HasLocation reports whether coordinates were supplied.
func (r RestaurantRecord) HasLocation() bool {
	return r.Location[0] != 0 || r.Location[1] != 0
}

// EmailCandidate is a discovered address with its provenance and score.
type EmailCandidate struct {
	Address   string `json:"address"`
	Strategy  string `json:"strategy"`
	Score     int    `json:"score"`
	SourceURL string `json:"source_url,omitempty"`
}

// JobOptions tunes a single scraping job.
type JobOptions struct {
	InterZoneDelay    time.Duration `json:"inter_zone_delay"`
	MaxResultsPerZone int           `json:"max_results_per_zone"`
	ExtractEmails     bool          `json:"extract_emails"`
}

// Job is one run of scraping across a list of zones.
type Job struct {
	ID          string     `json:"id"`
	ZoneIDs     []string   `json:"zones"`
	Options     JobOptions `json:"options"`
	Status      JobStatus  `json:"status"`
	Processed   int        `json:"processed"`
	Total       int        `json:"total"`
	Results     int        `json:"results"`
	CurrentZone string     `json:"current_zone,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Clone returns a deep copy safe to hand to readers.
func (j Job) Clone() Job {
	cp := j
	cp.ZoneIDs = append([]string(nil), j.ZoneIDs...)
	if j.EndedAt != nil {
		ended := *j.EndedAt
		cp.EndedAt = &ended
	}
	return cp
}

// EmailWork is the queue item asking workers to enrich a zone's restaurants with emails.
type EmailWork struct {
	JobID       string             `json:"job_id"`
	ZoneID      string             `json:"zone_id"`
	Scraping    ScrapingConfig     `json:"scraping"`
	Restaurants []RestaurantRecord `json:"restaurants"`
	Submitted   int64              `json:"submitted"`
}

// JobEvent is published on job lifecycle transitions.
type JobEvent struct {
	Type      string    `json:"type"`
	JobID     string    `json:"job_id"`
	ZoneID    string    `json:"zone_id,omitempty"`
	Status    JobStatus `json:"status"`
	Processed int       `json:"processed"`
	Total     int       `json:"total"`
	Results   int       `json:"results"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// EventType returns the event name, used as a message attribute by publishers.
func (e JobEvent) EventType() string { return e.Type }
