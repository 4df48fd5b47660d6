// Package googlemaps adapts the Google Maps Places web service to scraper.PlacesProvider.
package googlemaps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"googlemaps.github.io/maps"

	"github.com/JakeFAU/zone-scraper/internal/scraper"
)

const zeroResults = "ZERO_RESULTS"

// placesAPI is the subset of *maps.Client used here.
type placesAPI interface {
	NearbySearch(ctx context.Context, r *maps.NearbySearchRequest) (maps.PlacesSearchResponse, error)
	PlaceDetails(ctx context.Context, r *maps.PlaceDetailsRequest) (maps.PlaceDetailsResult, error)
}

// Provider calls the Places API.
type Provider struct {
	api    placesAPI
	logger *zap.Logger
}

// New builds a Provider authenticated with apiKey.
func New(apiKey string, logger *zap.Logger) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("googlemaps: api key is required")
	}
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("googlemaps: new client: %w", err)
	}
	return newProvider(client, logger), nil
}

func newProvider(api placesAPI, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{api: api, logger: logger}
}

// NearbySearch runs one page of a nearby search. A ZERO_RESULTS status is an empty page.
func (p *Provider) NearbySearch(ctx context.Context, req scraper.NearbyRequest) (scraper.NearbyResponse, error) {
	r := &maps.NearbySearchRequest{
		Location:  &maps.LatLng{Lat: req.Location[0], Lng: req.Location[1]},
		Radius:    uint(max(req.RadiusMeters, 0)),
		Keyword:   req.Keyword,
		Type:      maps.PlaceType(req.Type),
		PageToken: req.PageToken,
	}
	resp, err := p.api.NearbySearch(ctx, r)
	if err != nil {
		if isZeroResults(err) {
			return scraper.NearbyResponse{}, nil
		}
		return scraper.NearbyResponse{}, fmt.Errorf("googlemaps: nearby search: %w", err)
	}
	out := scraper.NearbyResponse{
		Candidates:    make([]scraper.CandidatePlace, 0, len(resp.Results)),
		NextPageToken: resp.NextPageToken,
	}
	for _, res := range resp.Results {
		out.Candidates = append(out.Candidates, toCandidate(res))
	}
	return out, nil
}

// PlaceDetails fetches the requested fields for one place. Unknown field names are skipped.
func (p *Provider) PlaceDetails(ctx context.Context, placeID string, fields []string) (scraper.PlaceDetails, error) {
	r := &maps.PlaceDetailsRequest{
		PlaceID: placeID,
		Fields:  p.fieldMasks(fields),
	}
	res, err := p.api.PlaceDetails(ctx, r)
	if err != nil {
		return scraper.PlaceDetails{}, fmt.Errorf("googlemaps: place details %s: %w", placeID, err)
	}
	return toDetails(res), nil
}

func (p *Provider) fieldMasks(fields []string) []maps.PlaceDetailsFieldMask {
	masks := make([]maps.PlaceDetailsFieldMask, 0, len(fields))
	for _, f := range fields {
		m, err := maps.ParsePlaceDetailsFieldMask(f)
		if err != nil {
			p.logger.Debug("skipping unknown detail field", zap.String("field", f))
			continue
		}
		masks = append(masks, m)
	}
	return masks
}

func isZeroResults(err error) bool {
	return strings.Contains(err.Error(), zeroResults)
}

func toCandidate(res maps.PlacesSearchResult) scraper.CandidatePlace {
	return scraper.CandidatePlace{
		PlaceID:    res.PlaceID,
		Name:       res.Name,
		Vicinity:   res.Vicinity,
		Location:   orb.Point{res.Geometry.Location.Lng, res.Geometry.Location.Lat},
		PriceLevel: res.PriceLevel,
		Rating:     float64(res.Rating),
		Types:      res.Types,
	}
}

func toDetails(res maps.PlaceDetailsResult) scraper.PlaceDetails {
	d := scraper.PlaceDetails{
		PlaceID:                  res.PlaceID,
		Name:                     res.Name,
		FormattedAddress:         res.FormattedAddress,
		Latitude:                 res.Geometry.Location.Lat,
		Longitude:                res.Geometry.Location.Lng,
		FormattedPhoneNumber:     res.FormattedPhoneNumber,
		InternationalPhoneNumber: res.InternationalPhoneNumber,
		Website:                  res.Website,
		Rating:                   float64(res.Rating),
		PriceLevel:               res.PriceLevel,
		Types:                    res.Types,
	}
	if res.OpeningHours != nil {
		d.HasOpeningHours = true
		d.WeekdayText = res.OpeningHours.WeekdayText
	}
	for _, photo := range res.Photos {
		if photo.PhotoReference != "" {
			d.PhotoRefs = append(d.PhotoRefs, photo.PhotoReference)
		}
	}
	return d
}
