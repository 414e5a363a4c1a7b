package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

// InfluxConfig locates the time-series store.
type InfluxConfig struct {
	URL    string `validate:"required,url"`
	Token  string `validate:"required"`
	Org    string `validate:"required"`
	Bucket string `validate:"required,printascii"`
}

// AuthConfig identifies the identity provider tokens are verified against.
type AuthConfig struct {
	Domain   string `validate:"required,hostname"`
	Audience string `validate:"required"`
}

// MQTTConfig enables the sensor ingest bridge when Broker is set.
type MQTTConfig struct {
	Broker   string `validate:"omitempty,hostname_port"`
	Topic    string `validate:"required_with=Broker"`
	ClientID string
	Username string
	Password string
}

// Enabled reports whether the ingest bridge should run.
func (m MQTTConfig) Enabled() bool {
	return m.Broker != ""
}

// Config holds process configuration.
type Config struct {
	Port           string   `validate:"required,numeric"`
	Backend        string   `validate:"oneof=influx badger memory"`
	DataDir        string   `validate:"required"`
	MaxStorageGB   int64    `validate:"gte=0"`
	MaxMemoryMB    int64    `validate:"gte=0"`
	AllowedOrigins []string `validate:"dive,url"`
	Timezone       *time.Location `validate:"required"`

	Influx InfluxConfig `validate:"-"`
	Auth   AuthConfig
	MQTT   MQTTConfig
}

// Load reads configuration from the environment, after merging an optional
// .env file, and validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg := &Config{
		Port:           getenvDefault("PORT", DefaultPort),
		Backend:        getenvDefault("STORE_BACKEND", DefaultBackend),
		DataDir:        getenvDefault("DATA_DIR", DefaultDataDir),
		MaxStorageGB:   getEnvInt64("THERMONEST_MAX_STORAGE_GB", DefaultMaxStorageGB),
		MaxMemoryMB:    getEnvInt64("THERMONEST_MAX_MEMORY_MB", DefaultMaxMemoryMB),
		AllowedOrigins: splitList(getenvDefault("ALLOWED_ORIGINS", DefaultOrigins)),
		Influx: InfluxConfig{
			URL:    os.Getenv("INFLUX_URL"),
			Token:  os.Getenv("INFLUX_TOKEN"),
			Org:    os.Getenv("INFLUX_ORG"),
			Bucket: os.Getenv("INFLUX_BUCKET"),
		},
		Auth: AuthConfig{
			Domain:   os.Getenv("AUTH0_DOMAIN"),
			Audience: os.Getenv("AUTH0_AUDIENCE"),
		},
		MQTT: MQTTConfig{
			Broker:   os.Getenv("MQTT_BROKER"),
			Topic:    getenvDefault("MQTT_TOPIC", DefaultMQTTTopic),
			ClientID: getenvDefault("MQTT_CLIENT_ID", DefaultMQTTClientID),
			Username: os.Getenv("MQTT_USERNAME"),
			Password: os.Getenv("MQTT_PASSWORD"),
		},
	}

	loc, err := time.LoadLocation(getenvDefault("DISPLAY_TIMEZONE", DefaultTimezone))
	if err != nil {
		return nil, fmt.Errorf("invalid DISPLAY_TIMEZONE: %w", err)
	}
	cfg.Timezone = loc

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints. Store settings are only checked for
// the backend that will actually be opened.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Backend == BackendInflux {
		if err := validate.Struct(c.Influx); err != nil {
			return fmt.Errorf("invalid influx configuration: %w", err)
		}
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt64 gets an int64 from environment variable or returns default.
func getEnvInt64(key string, defaultValue int64) int64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
		log.Printf("Invalid value for %s: %q, using default %d", key, val, defaultValue)
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
