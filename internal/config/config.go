// file: internal/config/config.go
// version: 2.0.0
// guid: 7b8c9d0e-1f2a-3b4c-5d6e-7f8a9b0c1d2e

package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	LibraryDir   string
	Host         string
	Port         string
	PIN          string
	SettingsFile string

	TMDBAPIKey          string
	TMDBBaseURL         string
	TMDBImageBaseURL    string
	MetadataTimeout     time.Duration
	MetadataFallbackTTL time.Duration // 0 keeps fallback records forever
	MetadataRatePerSec  float64

	ArchiveWorkers    int
	ArchiveQueueSize  int
	ArchiveChunkBytes int
	ArchiveTempDir    string
	ArchiveResultTTL  time.Duration

	VisitorIdleTTL     time.Duration
	RateLimitPerMinute int
	SessionSecret      string

	LogLevel  string
	LogFormat string
}

var AppConfig Config

// Defaults for every key InitConfig reads.
const (
	DefaultHost              = "0.0.0.0"
	DefaultPort              = "8000"
	DefaultSettingsFile      = "settings.json"
	DefaultTMDBBaseURL       = "https://api.themoviedb.org/3"
	DefaultTMDBImageBaseURL  = "https://image.tmdb.org/t/p/w500"
	DefaultMetadataTimeout   = 5 * time.Second
	DefaultArchiveWorkers    = 2
	DefaultArchiveQueueSize  = 16
	DefaultArchiveChunkBytes = 10 * 1024 * 1024
	DefaultArchiveResultTTL  = time.Hour
	DefaultVisitorIdleTTL    = 24 * time.Hour
)

// SetDefaults registers default values with viper.
func SetDefaults() {
	viper.SetDefault("host", DefaultHost)
	viper.SetDefault("port", DefaultPort)
	viper.SetDefault("settings_file", DefaultSettingsFile)
	viper.SetDefault("tmdb_base_url", DefaultTMDBBaseURL)
	viper.SetDefault("tmdb_image_base_url", DefaultTMDBImageBaseURL)
	viper.SetDefault("metadata_timeout", DefaultMetadataTimeout)
	viper.SetDefault("metadata_fallback_ttl", time.Duration(0))
	viper.SetDefault("metadata_rate_per_sec", 4.0)
	viper.SetDefault("archive_workers", DefaultArchiveWorkers)
	viper.SetDefault("archive_queue_size", DefaultArchiveQueueSize)
	viper.SetDefault("archive_chunk_bytes", DefaultArchiveChunkBytes)
	viper.SetDefault("archive_temp_dir", "")
	viper.SetDefault("archive_result_ttl", DefaultArchiveResultTTL)
	viper.SetDefault("visitor_idle_ttl", DefaultVisitorIdleTTL)
	viper.SetDefault("rate_limit_per_minute", 600)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "")
}

// InitConfig initializes the application configuration
func InitConfig() {
	SetDefaults()

	AppConfig = Config{
		LibraryDir:   strings.TrimSpace(viper.GetString("library_dir")),
		Host:         viper.GetString("host"),
		Port:         viper.GetString("port"),
		PIN:          strings.TrimSpace(viper.GetString("pin")),
		SettingsFile: viper.GetString("settings_file"),

		TMDBAPIKey:          viper.GetString("tmdb_api_key"),
		TMDBBaseURL:         viper.GetString("tmdb_base_url"),
		TMDBImageBaseURL:    viper.GetString("tmdb_image_base_url"),
		MetadataTimeout:     viper.GetDuration("metadata_timeout"),
		MetadataFallbackTTL: viper.GetDuration("metadata_fallback_ttl"),
		MetadataRatePerSec:  viper.GetFloat64("metadata_rate_per_sec"),

		ArchiveWorkers:    viper.GetInt("archive_workers"),
		ArchiveQueueSize:  viper.GetInt("archive_queue_size"),
		ArchiveChunkBytes: viper.GetInt("archive_chunk_bytes"),
		ArchiveTempDir:    viper.GetString("archive_temp_dir"),
		ArchiveResultTTL:  viper.GetDuration("archive_result_ttl"),

		VisitorIdleTTL:     viper.GetDuration("visitor_idle_ttl"),
		RateLimitPerMinute: viper.GetInt("rate_limit_per_minute"),
		SessionSecret:      viper.GetString("session_secret"),

		LogLevel:  viper.GetString("log_level"),
		LogFormat: viper.GetString("log_format"),
	}

	normalize(&AppConfig)
}

func normalize(c *Config) {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == "" {
		c.Port = DefaultPort
	}
	if c.SettingsFile == "" {
		c.SettingsFile = DefaultSettingsFile
	}
	if c.MetadataTimeout <= 0 {
		c.MetadataTimeout = DefaultMetadataTimeout
	}
	if c.MetadataFallbackTTL < 0 {
		c.MetadataFallbackTTL = 0
	}
	if c.ArchiveWorkers <= 0 {
		c.ArchiveWorkers = DefaultArchiveWorkers
	}
	if c.ArchiveQueueSize <= 0 {
		c.ArchiveQueueSize = DefaultArchiveQueueSize
	}
	if c.ArchiveChunkBytes <= 0 {
		c.ArchiveChunkBytes = DefaultArchiveChunkBytes
	}
	if c.ArchiveTempDir == "" {
		c.ArchiveTempDir = os.TempDir()
	}
	if c.ArchiveResultTTL <= 0 {
		c.ArchiveResultTTL = DefaultArchiveResultTTL
	}
	if c.VisitorIdleTTL <= 0 {
		c.VisitorIdleTTL = DefaultVisitorIdleTTL
	}
	if c.SessionSecret == "" {
		c.SessionSecret = randomSecret()
	}
}

// randomSecret returns a per-process key; sessions do not survive restarts.
func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "mediashare-insecure-fallback-secret"
	}
	return hex.EncodeToString(buf)
}
