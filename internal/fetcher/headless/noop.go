package headless

import (
	"context"
	"fmt"

	"github.com/JakeFAU/zone-scraper/internal/scraper"
)

// Disabled stands in for the browser fetcher when headless rendering is switched off. The
// browser strategy then fails fast and discovery moves on to contact pages.
type Disabled struct{}

// NewDisabled creates a Disabled fetcher.
func NewDisabled() Disabled {
	return Disabled{}
}

// Fetch always fails with scraper.ErrFetcherDisabled.
func (Disabled) Fetch(_ context.Context, req scraper.FetchRequest) (scraper.FetchResponse, error) {
	return scraper.FetchResponse{}, fmt.Errorf("headless fetch %s: %w", req.URL, scraper.ErrFetcherDisabled)
}
