package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable read by Load
const EnvPrefix = "LICENSING"

// Config represents the complete application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server" envconfig:"SERVER"`
	Security     SecurityConfig     `yaml:"security" envconfig:"SECURITY"`
	Logging      LoggingConfig      `yaml:"logging" envconfig:"LOGGING"`
	Storage      StorageConfig      `yaml:"storage" envconfig:"STORAGE"`
	Locking      LockingConfig      `yaml:"locking" envconfig:"LOCKING"`
	Events       EventsConfig       `yaml:"events" envconfig:"EVENTS"`
	Commerce     CommerceConfig     `yaml:"commerce" envconfig:"COMMERCE"`
	Certificates CertificatesConfig `yaml:"certificates" envconfig:"CERTIFICATES"`
	Catalog      CatalogConfig      `yaml:"catalog" envconfig:"CATALOG"`
	Telemetry    TelemetryConfig    `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port             int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout      time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout     time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout      time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes   int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	OperationTimeout time.Duration `yaml:"operation_timeout" envconfig:"OPERATION_TIMEOUT"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	AdminAPIKeys   []string        `yaml:"admin_api_keys" envconfig:"ADMIN_API_KEYS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig limits public endpoints per client address
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64       `yaml:"rps" envconfig:"RPS"`
	Burst   int           `yaml:"burst" envconfig:"BURST"`
	TTL     time.Duration `yaml:"ttl" envconfig:"TTL"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// StorageConfig selects the backend for the catalog and certificate records
type StorageConfig struct {
	Driver          string        `yaml:"driver" envconfig:"DRIVER"` // memory|file|postgres
	DataDir         string        `yaml:"data_dir" envconfig:"DATA_DIR"`
	PostgresDSN     string        `yaml:"postgres_dsn" envconfig:"POSTGRES_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" envconfig:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME"`
	RunMigrations   bool          `yaml:"run_migrations" envconfig:"RUN_MIGRATIONS"`
}

// LockingConfig selects the keyed lock implementation
type LockingConfig struct {
	Driver   string        `yaml:"driver" envconfig:"DRIVER"` // memory|redis
	RedisURL string        `yaml:"redis_url" envconfig:"REDIS_URL"`
	Expiry   time.Duration `yaml:"expiry" envconfig:"EXPIRY"`
	Tries    int           `yaml:"tries" envconfig:"TRIES"`
	Prefix   string        `yaml:"prefix" envconfig:"PREFIX"`
}

// EventsConfig selects where engine events are published
type EventsConfig struct {
	Driver  string   `yaml:"driver" envconfig:"DRIVER"` // log|kafka
	Brokers []string `yaml:"brokers" envconfig:"BROKERS"`
	Topic   string   `yaml:"topic" envconfig:"TOPIC"`
}

// CommerceConfig configures the commerce collaborators
type CommerceConfig struct {
	Driver            string        `yaml:"driver" envconfig:"DRIVER"` // memory|woo
	BaseURL           string        `yaml:"base_url" envconfig:"BASE_URL"`
	ConsumerKey       string        `yaml:"consumer_key" envconfig:"CONSUMER_KEY"`
	ConsumerSecret    string        `yaml:"consumer_secret" envconfig:"CONSUMER_SECRET"`
	RequestTimeout    time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	RetryMax          int           `yaml:"retry_max" envconfig:"RETRY_MAX"`
	SeedFile          string        `yaml:"seed_file" envconfig:"SEED_FILE"`
	ResyncConcurrency int           `yaml:"resync_concurrency" envconfig:"RESYNC_CONCURRENCY"`
	AutoResync        bool          `yaml:"auto_resync" envconfig:"AUTO_RESYNC"`
}

// CertificatesConfig configures certificate issuance and verification links
type CertificatesConfig struct {
	Root          string `yaml:"root" envconfig:"ROOT"`
	PublicBaseURL string `yaml:"public_base_url" envconfig:"PUBLIC_BASE_URL"`
	SigningKey    string `yaml:"signing_key" envconfig:"SIGNING_KEY"`
	VerifyBaseURL string `yaml:"verify_base_url" envconfig:"VERIFY_BASE_URL"`
	SerialPrefix  string `yaml:"serial_prefix" envconfig:"SERIAL_PREFIX"`
	Brand         string `yaml:"brand" envconfig:"BRAND"`
	QRSize        int    `yaml:"qr_size" envconfig:"QR_SIZE"`
}

// CatalogConfig identifies the catalog record
type CatalogConfig struct {
	ID string `yaml:"id" envconfig:"ID"`
}

// TelemetryConfig configures OpenTelemetry providers
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" envconfig:"ENABLED"`
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	TraceStdout bool   `yaml:"trace_stdout" envconfig:"TRACE_STDOUT"`
}

// Load loads configuration from defaults, the first config file found and
// environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file path. An empty path skips the file.
func LoadFrom(configFile string) (*Config, error) {
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
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays YAML values onto cfg; keys absent from the file keep their value
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

	switch c.Storage.Driver {
	case "memory", "file":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage driver postgres requires postgres_dsn")
		}
	default:
		return fmt.Errorf("unknown storage driver: %q", c.Storage.Driver)
	}

	switch c.Locking.Driver {
	case "memory":
	case "redis":
		if c.Locking.RedisURL == "" {
			return fmt.Errorf("locking driver redis requires redis_url")
		}
	default:
		return fmt.Errorf("unknown locking driver: %q", c.Locking.Driver)
	}

	switch c.Events.Driver {
	case "log":
	case "kafka":
		if len(c.Events.Brokers) == 0 {
			return fmt.Errorf("events driver kafka requires at least one broker")
		}
	default:
		return fmt.Errorf("unknown events driver: %q", c.Events.Driver)
	}

	switch c.Commerce.Driver {
	case "memory":
	case "woo":
		if c.Commerce.BaseURL == "" {
			return fmt.Errorf("commerce driver woo requires base_url")
		}
	default:
		return fmt.Errorf("unknown commerce driver: %q", c.Commerce.Driver)
	}

	prefix := c.Certificates.SerialPrefix
	if prefix == "" || strings.ContainsAny(prefix, "- ") {
		return fmt.Errorf("serial prefix must be non-empty and contain no dashes or spaces")
	}
	if k := c.Certificates.SigningKey; k != "" && len(k) < 16 {
		return fmt.Errorf("certificate signing key must be at least 16 characters")
	}
	if c.Catalog.ID == "" {
		return fmt.Errorf("catalog id must not be empty")
	}
	if c.Commerce.ResyncConcurrency <= 0 {
		c.Commerce.ResyncConcurrency = 1
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG_FILE"); p != "" {
		return p
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
			Port:             8080,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     15 * time.Second,
			IdleTimeout:      60 * time.Second,
			MaxHeaderBytes:   1 << 20, // 1MB
			ShutdownTimeout:  30 * time.Second,
			OperationTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     5,
				Burst:   10,
				TTL:     10 * time.Minute,
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			Driver:          "memory",
			DataDir:         "data",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			RunMigrations:   true,
		},
		Locking: LockingConfig{
			Driver: "memory",
			Expiry: 30 * time.Second,
			Tries:  32,
			Prefix: "licensing:lock:",
		},
		Events: EventsConfig{
			Driver: "log",
			Topic:  "licensing.events",
		},
		Commerce: CommerceConfig{
			Driver:            "memory",
			RequestTimeout:    10 * time.Second,
			RetryMax:          3,
			ResyncConcurrency: 4,
			AutoResync:        true,
		},
		Certificates: CertificatesConfig{
			Root:          "data/certificates",
			PublicBaseURL: "http://localhost:8080/certificates",
			VerifyBaseURL: "http://localhost:8080/verify",
			SerialPrefix:  "PFX",
			QRSize:        256,
		},
		Catalog: CatalogConfig{
			ID: "default",
		},
		Telemetry: TelemetryConfig{
			Enabled:     true,
			ServiceName: "licensing-engine",
		},
	}
}
