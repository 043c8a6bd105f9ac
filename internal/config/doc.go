// Package config holds the runtime configuration for restaurant-scraper.
//
// Configuration is assembled from CLI flags with documented defaults,
// optionally merged with a .restscrape YAML file for per-site overrides.
// Directory paths follow the XDG Base Directory Specification.
package config
