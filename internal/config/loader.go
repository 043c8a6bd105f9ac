package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".restscrape"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// SiteConfig holds per-site fetch overrides for a single host.
type SiteConfig struct {
	// UserAgents overrides the rotation pool for this site.
	UserAgents []string `yaml:"userAgents,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// DelayMinSeconds overrides the minimum politeness delay, in seconds.
	// Zero means the global value is used.
	DelayMinSeconds float64 `yaml:"delayMinSeconds,omitempty"`

	// DelayMaxSeconds overrides the maximum politeness delay, in seconds.
	// Zero means the global value is used.
	DelayMaxSeconds float64 `yaml:"delayMaxSeconds,omitempty"`

	// MaxPages overrides the per-area page cap for this site.
	// Zero means the global value is used.
	MaxPages int `yaml:"maxPages,omitempty"`
}

// File represents the structure of the .restscrape configuration file.
type File struct {
	// Sites maps hostnames to site-specific overrides.
	// Keys are bare hostnames, e.g. "tabelog.com".
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults is applied to all sites unless overridden per site.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a hostname, merging the
// site-specific entry over the defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults

	if sc, ok := cf.Sites[host]; ok {
		if len(sc.UserAgents) > 0 {
			result.UserAgents = sc.UserAgents
		}
		if len(sc.Headers) > 0 {
			if result.Headers == nil {
				result.Headers = make(map[string]string)
			}
			for k, v := range sc.Headers {
				result.Headers[k] = v
			}
		}
		if sc.DelayMinSeconds != 0 {
			result.DelayMinSeconds = sc.DelayMinSeconds
		}
		if sc.DelayMaxSeconds != 0 {
			result.DelayMaxSeconds = sc.DelayMaxSeconds
		}
		if sc.MaxPages != 0 {
			result.MaxPages = sc.MaxPages
		}
	}

	return result
}

// LoadConfigFile loads site configurations from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .restscrape in the current directory
// 3. Look for .restscrape in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
