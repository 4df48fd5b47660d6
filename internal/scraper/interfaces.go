package scraper

import (
	"context"
	"io"
	"net/http"
	"time"
)

// ZoneStore reads zone records owned by the administrative side of the system.
type ZoneStore interface {
	GetZone(ctx context.Context, id string) (Zone, error)
}

// RestaurantStore persists restaurant records idempotently by place id.
type RestaurantStore interface {
	UpsertByPlaceID(ctx context.Context, record RestaurantRecord) (bool, error)
	UpdateEmail(ctx context.Context, placeID string, candidate EmailCandidate) error
}

// NearbyRequest is one page of a nearby search.
type NearbyRequest struct {
	Location     [2]float64
	RadiusMeters int
	Keyword      string
	Type         string
	PageToken    string
}

// NearbyResponse carries one page of candidates.
type NearbyResponse struct {
	Candidates    []CandidatePlace
	NextPageToken string
}

// PlaceDetails is the raw detail payload returned by the provider.
type PlaceDetails struct {
	PlaceID                  string
	Name                     string
	FormattedAddress         string
	Latitude                 float64
	Longitude                float64
	FormattedPhoneNumber     string
	InternationalPhoneNumber string
	Website                  string
	Rating                   float64
	PriceLevel               int
	Types                    []string
	WeekdayText              []string
	HasOpeningHours          bool
	PhotoRefs                []string
}

// PlacesProvider is the external nearby-search API.
type PlacesProvider interface {
	NearbySearch(ctx context.Context, req NearbyRequest) (NearbyResponse, error)
	PlaceDetails(ctx context.Context, placeID string, fields []string) (PlaceDetails, error)
}

// FetchRequest describes one outbound page fetch.
type FetchRequest struct {
	URL       string
	UserAgent string
	Headers   http.Header
}

// FetchResponse captures fetch metadata and body.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Rendered   bool
}

// Fetcher retrieves a page body, plain or browser-rendered.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error)
}

// Queue provides enqueue/dequeue semantics for email work.
type Queue interface {
	Enqueue(ctx context.Context, item EmailWork) error
	Dequeue(ctx context.Context) (EmailWork, error)
}

// Publisher emits job lifecycle notifications.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore persists zone exports.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Clock provides time and the engine's intentional pauses.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGenerator returns unique identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// JobRegistry holds active jobs and the bounded history of finished ones.
type JobRegistry interface {
	// Create registers a new active job. With exclusive set it fails with ErrZoneBusy when
	// another active job holds one of the job's zones.
	Create(ctx context.Context, job Job, exclusive bool) error
	// Update mutates an active job in place.
	Update(ctx context.Context, id string, fn func(*Job)) error
	// Finish moves a job from the active set into history.
	Finish(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (Job, error)
	ListActive(ctx context.Context) ([]Job, error)
	ListHistory(ctx context.Context, limit int) ([]Job, error)
}
