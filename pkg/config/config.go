package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/unklstewy/hilalscope/pkg/coordinates"
)

// EnvPrefix is prepended to every environment override, e.g.
// HILAL_SCAN_STEP_DEGREES=4 or HILAL_DATABASE_PASSWORD=secret.
const EnvPrefix = "HILAL"

// Config represents the complete application configuration.
type Config struct {
	Server    ServerConfig    `json:"server" mapstructure:"server"`
	Database  DatabaseConfig  `json:"database" mapstructure:"database"`
	Observer  ObserverConfig  `json:"observer" mapstructure:"observer"`
	Scan      ScanConfig      `json:"scan" mapstructure:"scan"`
	Ephemeris EphemerisConfig `json:"ephemeris" mapstructure:"ephemeris"`
	Geocode   GeocodeConfig   `json:"geocode" mapstructure:"geocode"`
	Display   DisplayConfig   `json:"display" mapstructure:"display"`
	Log       LogConfig       `json:"log" mapstructure:"log"`
	Tracing   TracingConfig   `json:"tracing" mapstructure:"tracing"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port string `json:"port" mapstructure:"port"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host" mapstructure:"host"`

	// TLSEnabled determines if HTTPS should be used
	TLSEnabled bool `json:"tls_enabled" mapstructure:"tls_enabled"`

	// TLSCertFile is the path to the TLS certificate
	TLSCertFile string `json:"tls_cert_file" mapstructure:"tls_cert_file"`

	// TLSKeyFile is the path to the TLS private key
	TLSKeyFile string `json:"tls_key_file" mapstructure:"tls_key_file"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig contains settings for the saved-places store.
type DatabaseConfig struct {
	// Enabled turns on saved places. Without a database the app still works.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Driver is the database driver (postgres)
	Driver string `json:"driver" mapstructure:"driver"`

	// Host is the database server hostname
	Host string `json:"host" mapstructure:"host"`

	// Port is the database server port
	Port int `json:"port" mapstructure:"port"`

	// Database is the database name
	Database string `json:"database" mapstructure:"database"`

	// Username for database authentication
	Username string `json:"username" mapstructure:"username"`

	// Password for database authentication (prefer HILAL_DATABASE_PASSWORD)
	Password string `json:"password" mapstructure:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode" mapstructure:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns" mapstructure:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns" mapstructure:"max_idle_conns"`
}

// ObserverConfig is the location selected at startup.
type ObserverConfig struct {
	// Name is shown as the marker label
	Name string `json:"name" mapstructure:"name"`

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64 `json:"latitude" mapstructure:"latitude"`

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64 `json:"longitude" mapstructure:"longitude"`

	// Elevation in meters above sea level
	Elevation float64 `json:"elevation" mapstructure:"elevation"`
}

// ScanConfig controls the global visibility sweep.
type ScanConfig struct {
	// StepDegrees is the grid spacing in both latitude and longitude
	StepDegrees float64 `json:"step_degrees" mapstructure:"step_degrees"`

	// LatMax is the northernmost scanned latitude
	LatMax float64 `json:"lat_max" mapstructure:"lat_max"`

	// LatMin is the southernmost scanned latitude
	LatMin float64 `json:"lat_min" mapstructure:"lat_min"`

	// SliceBudgetMS is how long one scan slice may run before yielding
	SliceBudgetMS int `json:"slice_budget_ms" mapstructure:"slice_budget_ms"`
}

// SliceBudget returns the slice budget as a duration.
func (s ScanConfig) SliceBudget() time.Duration {
	return time.Duration(s.SliceBudgetMS) * time.Millisecond
}

// EphemerisConfig configures the ephemeris adapter.
type EphemerisConfig struct {
	// Refraction applies atmospheric refraction to horizontal coordinates
	Refraction bool `json:"refraction" mapstructure:"refraction"`

	// SearchWindowDays bounds every rise/set search
	SearchWindowDays float64 `json:"search_window_days" mapstructure:"search_window_days"`
}

// GeocodeConfig configures place search.
type GeocodeConfig struct {
	// BaseURL is the Nominatim endpoint
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// UserAgent identifies this application to the geocoder
	UserAgent string `json:"user_agent" mapstructure:"user_agent"`

	// RequestsPerSecond limits the request rate (Nominatim policy: 1)
	RequestsPerSecond float64 `json:"requests_per_second" mapstructure:"requests_per_second"`

	// TimeoutSeconds is the per-request HTTP timeout
	TimeoutSeconds int `json:"timeout_seconds" mapstructure:"timeout_seconds"`

	// MaxRetries is how often rate-limited or failed requests are retried
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`
}

// Timeout returns the HTTP timeout as a duration.
func (g GeocodeConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// DisplayConfig controls number and time formatting.
type DisplayConfig struct {
	// Locale is a BCP 47 tag used for number formatting
	Locale string `json:"locale" mapstructure:"locale"`

	// TimeZone is the IANA zone used to display instants
	TimeZone string `json:"timezone" mapstructure:"timezone"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `json:"level" mapstructure:"level"`

	// Format is "json" or "console"
	Format string `json:"format" mapstructure:"format"`

	// File redirects log output, used by the TUI to keep the screen clean
	File string `json:"file" mapstructure:"file"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	Exporter    string  `json:"exporter" mapstructure:"exporter"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// Load reads configuration from a JSON file, layered over DefaultConfig and
// under HILAL_* environment variables. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := setDefaults(v, DefaultConfig()); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, eris.Wrapf(err, "failed to read config file %s", path)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "failed to parse config")
	}
	return &cfg, nil
}

// setDefaults registers every field of def so viper knows each key, which
// AutomaticEnv needs to resolve environment overrides during Unmarshal.
func setDefaults(v *viper.Viper, def *Config) error {
	data, err := json.Marshal(def)
	if err != nil {
		return eris.Wrap(err, "failed to encode defaults")
	}
	var tree map[string]interface{}
	if err := json.Unmarshal(data, &tree); err != nil {
		return eris.Wrap(err, "failed to decode defaults")
	}
	var walk func(prefix string, m map[string]interface{})
	walk = func(prefix string, m map[string]interface{}) {
		for k, val := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if sub, ok := val.(map[string]interface{}); ok {
				walk(key, sub)
				continue
			}
			v.SetDefault(key, val)
		}
	}
	walk("", tree)
	return nil
}

// Save writes the configuration to a JSON file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return eris.Wrap(err, "failed to create config directory")
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return eris.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return eris.Wrap(err, "failed to write config file")
	}
	return nil
}

// Validate checks the values the core relies on.
func (c *Config) Validate() error {
	if err := coordinates.ValidateLatLon(c.Observer.Latitude, c.Observer.Longitude); err != nil {
		return eris.Wrap(err, "invalid observer location")
	}
	if c.Scan.StepDegrees <= 0 {
		return eris.Errorf("scan.step_degrees must be positive, got %v", c.Scan.StepDegrees)
	}
	if c.Scan.LatMax < c.Scan.LatMin {
		return eris.Errorf("scan.lat_max %v is below scan.lat_min %v", c.Scan.LatMax, c.Scan.LatMin)
	}
	if c.Scan.SliceBudgetMS <= 0 {
		return eris.Errorf("scan.slice_budget_ms must be positive, got %d", c.Scan.SliceBudgetMS)
	}
	if c.Ephemeris.SearchWindowDays <= 0 {
		return eris.Errorf("ephemeris.search_window_days must be positive, got %v", c.Ephemeris.SearchWindowDays)
	}
	if _, err := time.LoadLocation(c.Display.TimeZone); err != nil {
		return eris.Wrapf(err, "invalid display.timezone %q", c.Display.TimeZone)
	}
	return nil
}

// DefaultConfig returns a configuration with sensible defaults. The
// initial location is Mecca.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:       "8080",
			Host:       "0.0.0.0",
			TLSEnabled: false,
		},
		Database: DatabaseConfig{
			Enabled:      false,
			Driver:       "postgres",
			Host:         "localhost",
			Port:         5432,
			Database:     "hilalscope",
			Username:     "hilalscope",
			SSLMode:      "disable",
			MaxOpenConns: 10,
			MaxIdleConns: 2,
		},
		Observer: ObserverConfig{
			Name:      "Mecca",
			Latitude:  21.4225,
			Longitude: 39.8262,
			Elevation: 277,
		},
		Scan: ScanConfig{
			StepDegrees:   2,
			LatMax:        60,
			LatMin:        -60,
			SliceBudgetMS: 20,
		},
		Ephemeris: EphemerisConfig{
			Refraction:       true,
			SearchWindowDays: 1,
		},
		Geocode: GeocodeConfig{
			BaseURL:           "https://nominatim.openstreetmap.org",
			UserAgent:         "hilalscope/1.0",
			RequestsPerSecond: 1,
			TimeoutSeconds:    30,
			MaxRetries:        3,
		},
		Display: DisplayConfig{
			Locale:   "en",
			TimeZone: "UTC",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "hilalscope",
			Exporter:    "stdout",
			SampleRatio: 1.0,
		},
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	if cfg.File != "" {
		zapCfg.OutputPaths = []string{cfg.File}
		zapCfg.ErrorOutputPaths = []string{cfg.File}
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
