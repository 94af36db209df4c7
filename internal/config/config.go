package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the base server configuration.
type Config struct {
	Host   string
	Port   string
	DBPath string

	// Streamer / media server / amplifier specifiers. A specifier is a URL,
	// hostname, or UPnP friendly name; empty means discover via SSDP.
	Streamer      string
	MediaServer   string
	Amplifier     string
	AmplifierType string // "hegel" or "streammagic"; empty disables the amplifier

	DiscoveryTimeoutSec  int
	DeviceProbeTimeoutMs int
	StreamerTimeoutMs    int

	// UPnP event subscription settings
	UPnPSubscriptionTimeoutSec int
	UPnPRenewalBufferSec       int

	// Content directory navigation roots (slash-separated title paths)
	AllAlbumsPath  string
	NewAlbumsPath  string
	AllArtistsPath string

	// External enrichment services; empty token disables the provider.
	DiscogsAccessToken string
	GeniusAccessToken  string
}

// fileValues holds values read from the optional YAML config file. The
// environment always wins over the file; the file wins over built-in
// defaults.
type fileValues struct {
	Host                string `yaml:"host"`
	Port                string `yaml:"port"`
	DBPath              string `yaml:"db_path"`
	Streamer            string `yaml:"streamer"`
	MediaServer         string `yaml:"media_server"`
	Amplifier           string `yaml:"amplifier"`
	AmplifierType       string `yaml:"amplifier_type"`
	AllAlbumsPath       string `yaml:"all_albums_path"`
	NewAlbumsPath       string `yaml:"new_albums_path"`
	AllArtistsPath      string `yaml:"all_artists_path"`
	DiscoveryTimeoutSec int    `yaml:"discovery_timeout_sec"`
}

// Load reads configuration from environment variables with defaults,
// optionally seeded from a YAML file named by VIBIN_CONFIG_PATH.
func Load() (Config, error) {
	var file fileValues
	if path := os.Getenv("VIBIN_CONFIG_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	discoveryTimeout := envInt("VIBIN_DISCOVERY_TIMEOUT_SEC", fallbackInt(file.DiscoveryTimeoutSec, 5))

	cfg := Config{
		Host:   envString("HOST", fallback(file.Host, "0.0.0.0")),
		Port:   envString("PORT", fallback(file.Port, "8080")),
		DBPath: envString("VIBIN_DB_PATH", fallback(file.DBPath, "./data/vibin.db")),

		Streamer:      envString("VIBIN_STREAMER", file.Streamer),
		MediaServer:   envString("VIBIN_MEDIA_SERVER", file.MediaServer),
		Amplifier:     envString("VIBIN_AMPLIFIER", file.Amplifier),
		AmplifierType: strings.ToLower(envString("VIBIN_AMPLIFIER_TYPE", file.AmplifierType)),

		DiscoveryTimeoutSec:  discoveryTimeout,
		DeviceProbeTimeoutMs: envInt("VIBIN_DEVICE_PROBE_TIMEOUT_MS", 10000),
		StreamerTimeoutMs:    envInt("VIBIN_STREAMER_TIMEOUT_MS", 5000),

		UPnPSubscriptionTimeoutSec: envInt("UPNP_SUBSCRIPTION_TIMEOUT", 300),
		UPnPRenewalBufferSec:       envInt("UPNP_RENEWAL_BUFFER_SEC", 10),

		AllAlbumsPath:  envString("VIBIN_ALL_ALBUMS_PATH", fallback(file.AllAlbumsPath, "Album/[All Albums]")),
		NewAlbumsPath:  envString("VIBIN_NEW_ALBUMS_PATH", fallback(file.NewAlbumsPath, "New Albums")),
		AllArtistsPath: envString("VIBIN_ALL_ARTISTS_PATH", fallback(file.AllArtistsPath, "Artist/[All Artists]")),

		DiscogsAccessToken: envString("DISCOGS_ACCESS_TOKEN", ""),
		GeniusAccessToken:  envString("GENIUS_ACCESS_TOKEN", ""),
	}

	switch cfg.AmplifierType {
	case "", "hegel", "streammagic":
	default:
		return Config{}, fmt.Errorf("unknown amplifier type: %s", cfg.AmplifierType)
	}

	// The renewal buffer keeps subscriptions alive across renewal latency;
	// anything under 10s risks silent expiry.
	if cfg.UPnPRenewalBufferSec < 10 {
		cfg.UPnPRenewalBufferSec = 10
	}

	return cfg, nil
}

func fallback(fileValue, def string) string {
	if fileValue != "" {
		return fileValue
	}
	return def
}

func fallbackInt(fileValue, def int) int {
	if fileValue != 0 {
		return fileValue
	}
	return def
}

func envString(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
