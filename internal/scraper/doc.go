// Package scraper defines the domain types and collaborator interfaces shared by the zone scraping engine.
//
// Zones are read from a ZoneStore, resolved into a SearchConfig, searched through a PlacesProvider and
// persisted through a RestaurantStore. Jobs track one pass over a list of zones.
package scraper
