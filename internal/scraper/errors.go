package scraper

import "errors"

var (
	// ErrZoneNotFound is returned when a zone id has no stored record.
	ErrZoneNotFound = errors.New("zone not found")
	// ErrInvalidZone is returned when a zone violates its geographic invariants.
	ErrInvalidZone = errors.New("invalid zone")
	// ErrJobNotFound is returned when a job id is neither active nor in history.
	ErrJobNotFound = errors.New("job not found")
	// ErrZoneBusy is returned when a requested zone is already being scraped.
	ErrZoneBusy = errors.New("zone already being scraped")
	// ErrNoZones is returned when a job is requested without zones.
	ErrNoZones = errors.New("at least one zone required")
	// ErrStoreUnavailable marks persistence failures that should abort a job.
	ErrStoreUnavailable = errors.New("restaurant store unavailable")
	// ErrFetchBlocked is returned when a site answers 403 or 429.
	ErrFetchBlocked = errors.New("fetch blocked or rate limited")
	// ErrFetcherDisabled is returned by fetchers that are switched off in configuration.
	ErrFetcherDisabled = errors.New("fetcher disabled")
	// ErrQueueClosed is returned by queues that no longer accept or hold work.
	ErrQueueClosed = errors.New("queue closed")
	// ErrQueueFull is returned by non-blocking enqueues when the queue has no free slot.
	ErrQueueFull = errors.New("queue full")
)
