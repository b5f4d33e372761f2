package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Target   TargetConfig
	Browser  BrowserConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

type TargetConfig struct {
	URL           string
	Selector      string
	Extractor     string
	OutputDir     string
	LegacyMarkers []string
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	ScrollStep     int
	ScrollInterval time.Duration
	SettleDelay    time.Duration
	UserAgent      string
}

type StorageConfig struct {
	Sinks     []string
	SQLiteDSN string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

type LoggingConfig struct {
	Level  string
	Format string
}

const (
	SinkFile     = "file"
	SinkSQLite   = "sqlite"
	SinkPostgres = "postgres"
)

// Load reads the configuration from the environment. When CONFIG_FILE names a
// YAML file of KEY: value pairs, those values are used for keys the
// environment leaves unset.
func Load() (*Config, error) {
	l := &loader{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		values, err := readFile(path)
		if err != nil {
			return nil, err
		}
		l.file = values
	}

	cfg := &Config{
		Target: TargetConfig{
			URL:           l.getEnvOrDefault("TARGET_URL", ""),
			Selector:      l.getEnvOrDefault("TARGET_SELECTOR", ""),
			Extractor:     l.getEnvOrDefault("EXTRACTOR_TYPE", ""),
			OutputDir:     l.getEnvOrDefault("OUTPUT_DIR", "."),
			LegacyMarkers: l.getStringSliceOrDefault("LEGACY_ARCHIVE_MARKERS", []string{"dell_outlets"}),
		},
		Browser: BrowserConfig{
			Headless:       l.getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        l.getDurationOrDefault("BROWSER_TIMEOUT", 60*time.Second),
			ViewportWidth:  l.getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1280),
			ViewportHeight: l.getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 800),
			ScrollStep:     l.getIntOrDefault("BROWSER_SCROLL_STEP", 400),
			ScrollInterval: l.getDurationOrDefault("BROWSER_SCROLL_INTERVAL", 200*time.Millisecond),
			SettleDelay:    l.getDurationOrDefault("BROWSER_SETTLE_DELAY", time.Second),
			UserAgent:      l.getEnvOrDefault("BROWSER_USER_AGENT", ""),
		},
		Storage: StorageConfig{
			Sinks:     l.getStringSliceOrDefault("SINK_TYPES", []string{SinkFile}),
			SQLiteDSN: l.getEnvOrDefault("SQLITE_DSN", "outlet.db"),
		},
		Database: DatabaseConfig{
			Host:     l.getEnvOrDefault("DB_HOST", "localhost"),
			Port:     l.getIntOrDefault("DB_PORT", 5432),
			User:     l.getEnvOrDefault("DB_USER", "postgres"),
			Password: l.getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   l.getEnvOrDefault("DB_NAME", "outlet_scraper"),
			SSLMode:  l.getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(l.getIntOrDefault("DB_MAX_CONNS", 4)),
		},
		Redis: RedisConfig{
			Addr:     l.getEnvOrDefault("REDIS_ADDR", ""),
			Password: l.getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       l.getIntOrDefault("REDIS_DB", 0),
			Stream:   l.getEnvOrDefault("REDIS_STREAM", "outlet:runs"),
		},
		Server: ServerConfig{
			Port:            l.getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            l.getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     l.getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    l.getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: l.getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxBodyBytes:    int64(l.getIntOrDefault("SERVER_MAX_BODY_BYTES", 16<<20)),
		},
		Logging: LoggingConfig{
			Level:  l.getEnvOrDefault("LOG_LEVEL", "info"),
			Format: l.getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Browser.ViewportWidth < 1 || c.Browser.ViewportHeight < 1 {
		return fmt.Errorf("BROWSER_VIEWPORT_WIDTH and BROWSER_VIEWPORT_HEIGHT must be positive")
	}

	if c.Browser.ScrollStep < 1 {
		return fmt.Errorf("BROWSER_SCROLL_STEP must be at least 1")
	}

	for _, sink := range c.Storage.Sinks {
		switch sink {
		case SinkFile:
		case SinkSQLite:
			if c.Storage.SQLiteDSN == "" {
				return fmt.Errorf("SQLITE_DSN is required for the sqlite sink")
			}
		case SinkPostgres:
			if c.Database.DBName == "" {
				return fmt.Errorf("DB_NAME is required for the postgres sink")
			}
		default:
			return fmt.Errorf("unknown sink type %q in SINK_TYPES", sink)
		}
	}

	if c.Server.MaxBodyBytes < 1 {
		return fmt.Errorf("SERVER_MAX_BODY_BYTES must be at least 1")
	}

	return nil
}

// HasSink reports whether name is among the configured sinks.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.Storage.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	raw := make(map[string]any)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
		case []any:
			parts := make([]string, 0, len(t))
			for _, p := range t {
				parts = append(parts, fmt.Sprint(p))
			}
			values[strings.ToUpper(k)] = strings.Join(parts, ",")
		default:
			values[strings.ToUpper(k)] = fmt.Sprint(t)
		}
	}
	return values, nil
}

type loader struct {
	file map[string]string
}

func (l *loader) lookup(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return l.file[key]
}

func (l *loader) getEnvOrDefault(key, defaultValue string) string {
	if value := l.lookup(key); value != "" {
		return value
	}
	return defaultValue
}

func (l *loader) getIntOrDefault(key string, defaultValue int) int {
	if value := l.lookup(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func (l *loader) getBoolOrDefault(key string, defaultValue bool) bool {
	if value := l.lookup(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func (l *loader) getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := l.lookup(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func (l *loader) getStringSliceOrDefault(key string, defaultValue []string) []string {
	value := l.lookup(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
