package config

import (
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"uninotes/pkg/errors"
)

// Storage drivers.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds application configuration
type Config struct {
	ListenAddr      string        `json:"listenAddr"`
	APIBaseURL      string        `json:"apiBaseURL"`
	HTTPTimeout     time.Duration `json:"httpTimeout"`
	DataDir         string        `json:"dataDir"`
	StorageDriver   string        `json:"storageDriver"`
	SQLitePath      string        `json:"sqlitePath"`
	PostgresDSN     string        `json:"postgresDSN"`
	StorageSecret   string        `json:"-"`
	CookieSecure    bool          `json:"cookieSecure"`
	SessionIdleTTL  time.Duration `json:"sessionIdleTTL"`
	JanitorInterval time.Duration `json:"janitorInterval"`
	LoginRate       float64       `json:"loginRate"`
	LoginBurst      int           `json:"loginBurst"`
	Kafka           KafkaConfig   `json:"kafka"`
	JaegerEndpoint  string        `json:"jaegerEndpoint"`
	LogLevel        string        `json:"logLevel"`
}

// KafkaConfig configures the optional cross-instance event relay.
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
	GroupID string   `json:"groupID"`
}

// Enabled reports whether a broker list was configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ListenAddr:      ":8080",
		APIBaseURL:      "http://localhost:4000",
		HTTPTimeout:     15 * time.Second,
		DataDir:         GetDefaultDataPath(),
		StorageDriver:   DriverFile,
		SessionIdleTTL:  30 * 24 * time.Hour,
		JanitorInterval: 10 * time.Minute,
		LoginRate:       2,
		LoginBurst:      20,
		Kafka: KafkaConfig{
			Topic:   "uninotes-events",
			GroupID: "uninotes-web",
		},
		LogLevel: "info",
	}
}

// GetDefaultDataPath returns the default directory for durable storage
func GetDefaultDataPath() string {
	currentUser, err := user.Current()
	if err != nil {
		return "./data"
	}
	return filepath.Join(currentUser.HomeDir, ".local", "share", "uninotes")
}

// GetConfigFilePath returns the path of the optional JSON config file
func GetConfigFilePath() string {
	if p := os.Getenv("UNINOTES_CONFIG"); p != "" {
		return p
	}

	currentUser, err := user.Current()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(currentUser.HomeDir, ".config", "uninotes", "config.json")
}

// Load builds the configuration from defaults, the optional JSON config
// file, a .env file and finally the process environment.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, errors.ErrConfigLoadFailed.Wrapping(err).WithContext("file", GetConfigFilePath())
	}
	return cfg, nil
}

func load() (*Config, error) {
	cfg := Default()

	configFile := GetConfigFilePath()
	if data, err := os.ReadFile(configFile); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", configFile, err)
		}
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.StorageDriver == DriverFile {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return cfg, nil
}

// Duration reads a duration from the config file either as a string such as
// "15s" or as integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*d = Duration(time.Duration(v))
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q", v)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", data)
	}
	return nil
}

// UnmarshalJSON decodes the config file, accepting durations as strings.
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	aux := struct {
		*plain
		HTTPTimeout     Duration `json:"httpTimeout"`
		SessionIdleTTL  Duration `json:"sessionIdleTTL"`
		JanitorInterval Duration `json:"janitorInterval"`
	}{
		plain:           (*plain)(c),
		HTTPTimeout:     Duration(c.HTTPTimeout),
		SessionIdleTTL:  Duration(c.SessionIdleTTL),
		JanitorInterval: Duration(c.JanitorInterval),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.HTTPTimeout = time.Duration(aux.HTTPTimeout)
	c.SessionIdleTTL = time.Duration(aux.SessionIdleTTL)
	c.JanitorInterval = time.Duration(aux.JanitorInterval)
	return nil
}

func (c *Config) applyEnv() error {
	c.ListenAddr = getEnv("LISTEN_ADDR", c.ListenAddr)
	c.APIBaseURL = strings.TrimRight(getEnv("API_BASE_URL", c.APIBaseURL), "/")
	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.StorageDriver = strings.ToLower(getEnv("STORAGE_DRIVER", c.StorageDriver))
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.PostgresDSN = getEnv("POSTGRES_DSN", c.PostgresDSN)
	c.StorageSecret = getEnv("STORAGE_SECRET", c.StorageSecret)
	c.JaegerEndpoint = getEnv("JAEGER_ENDPOINT", c.JaegerEndpoint)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)
	c.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", c.Kafka.GroupID)
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		c.Kafka.Brokers = splitList(brokers)
	}

	var err error
	if c.HTTPTimeout, err = getDuration("HTTP_TIMEOUT", c.HTTPTimeout); err != nil {
		return err
	}
	if c.SessionIdleTTL, err = getDuration("SESSION_IDLE_TTL", c.SessionIdleTTL); err != nil {
		return err
	}
	if c.JanitorInterval, err = getDuration("JANITOR_INTERVAL", c.JanitorInterval); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("COOKIE_SECURE"); ok {
		if c.CookieSecure, err = strconv.ParseBool(v); err != nil {
			return fmt.Errorf("COOKIE_SECURE: %w", err)
		}
	}
	if v, ok := os.LookupEnv("LOGIN_RATE"); ok {
		if c.LoginRate, err = strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("LOGIN_RATE: %w", err)
		}
	}
	if v, ok := os.LookupEnv("LOGIN_BURST"); ok {
		if c.LoginBurst, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("LOGIN_BURST: %w", err)
		}
	}
	return nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverFile:
		if c.DataDir == "" {
			return fmt.Errorf("DATA_DIR is required for the file storage driver")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			c.SQLitePath = filepath.Join(c.DataDir, "uninotes.db")
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres storage driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}

	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if c.LoginRate <= 0 || c.LoginBurst <= 0 {
		return fmt.Errorf("LOGIN_RATE and LOGIN_BURST must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, value)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
