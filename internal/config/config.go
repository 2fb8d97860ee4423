package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apierrors "noisereports/internal/errors"
)

// EnvPrefix namespaces every environment variable, e.g. NR_SERVER_PORT
const EnvPrefix = "NR"

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server" envconfig:"SERVER"`
	Security      SecurityConfig      `yaml:"security" envconfig:"SECURITY"`
	Logging       LoggingConfig       `yaml:"logging" envconfig:"LOGGING"`
	Drive         DriveConfig         `yaml:"drive" envconfig:"DRIVE"`
	Cache         CacheConfig         `yaml:"cache" envconfig:"CACHE"`
	Archive       ArchiveConfig       `yaml:"archive" envconfig:"ARCHIVE"`
	Observability ObservabilityConfig `yaml:"observability" envconfig:"OBSERVABILITY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	// RequestTimeout bounds a whole API request, archive builds included
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level     string `yaml:"level" envconfig:"LEVEL"`
	Format    string `yaml:"format" envconfig:"FORMAT"`
	Output    string `yaml:"output" envconfig:"OUTPUT"`
	FilePath  string `yaml:"file_path" envconfig:"FILE_PATH"`
	AddSource bool   `yaml:"add_source" envconfig:"ADD_SOURCE"`
}

// DriveConfig configures access to the Google Drive folder holding the reports
type DriveConfig struct {
	CredentialsFile        string        `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
	ParentFolderID         string        `yaml:"parent_folder_id" envconfig:"PARENT_FOLDER_ID"`
	RequestTimeout         time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	PageSize               int           `yaml:"page_size" envconfig:"PAGE_SIZE"`
	MaxConcurrentDownloads int           `yaml:"max_concurrent_downloads" envconfig:"MAX_CONCURRENT_DOWNLOADS"`
}

// CacheConfig configures the byte and table-set caches
type CacheConfig struct {
	RemoteTimeout time.Duration `yaml:"remote_timeout" envconfig:"REMOTE_TIMEOUT"`
}

// ArchiveConfig configures download archives
type ArchiveConfig struct {
	MaxFiles       int      `yaml:"max_files" envconfig:"MAX_FILES"`
	DefaultOptions []string `yaml:"default_options" envconfig:"DEFAULT_OPTIONS"`
	FileName       string   `yaml:"file_name" envconfig:"FILE_NAME"`
}

// ObservabilityConfig configures tracing and metrics export
type ObservabilityConfig struct {
	EnableMetrics  bool    `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
	EnableTracing  bool    `yaml:"enable_tracing" envconfig:"ENABLE_TRACING"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
}

// Load builds the configuration from defaults, then the YAML config file if
// one is found, then NR_* environment variables, and validates the result.
func Load() (*Config, error) {
	return LoadFile(getConfigFilePath())
}

// LoadFile is Load with an explicit config file path. An empty path skips the file.
func LoadFile(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, apierrors.NewConfigError("config validation failed", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg; keys absent from the file keep their value
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}
	if c.Security.RateLimit.Enabled && (c.Security.RateLimit.RPS <= 0 || c.Security.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive")
	}
	if c.Drive.PageSize <= 0 || c.Drive.PageSize > 1000 {
		return fmt.Errorf("drive page size must be between 1 and 1000, got %d", c.Drive.PageSize)
	}
	if c.Drive.MaxConcurrentDownloads < 0 {
		return fmt.Errorf("drive max concurrent downloads cannot be negative")
	}
	if c.Cache.RemoteTimeout < 0 {
		return fmt.Errorf("cache remote timeout cannot be negative")
	}
	if c.Archive.MaxFiles <= 0 {
		return fmt.Errorf("archive max files must be positive")
	}
	for _, opt := range c.Archive.DefaultOptions {
		if !validArchiveOption(opt) {
			return fmt.Errorf("unknown archive option %q", opt)
		}
	}

	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}
	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/noisereports.log"
	}

	return nil
}

func validArchiveOption(opt string) bool {
	for _, known := range ArchiveOptions {
		if strings.EqualFold(opt, known) {
			return true
		}
	}
	return false
}

// getConfigFilePath returns NR_CONFIG_FILE or the first config file found
func getConfigFilePath() string {
	if path := os.Getenv(EnvPrefix + "_CONFIG_FILE"); path != "" {
		return path
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    5 * time.Minute,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  4 * time.Minute,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/noisereports.log",
		},
		Drive: DriveConfig{
			RequestTimeout:         DefaultDriveTimeout,
			PageSize:               DefaultDrivePageSize,
			MaxConcurrentDownloads: DefaultMaxConcurrentDownloads,
		},
		Cache: CacheConfig{
			RemoteTimeout: DefaultCacheRemoteTimeout,
		},
		Archive: ArchiveConfig{
			MaxFiles:       DefaultArchiveMaxFiles,
			DefaultOptions: []string{ArchiveOptionOriginal},
			FileName:       DefaultArchiveFileName,
		},
		Observability: ObservabilityConfig{
			EnableMetrics:  true,
			MetricExporter: "prometheus",
			TraceExporter:  "none",
			SampleRatio:    1.0,
			Environment:    "development",
		},
	}
}
