package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/decoy-alerts/")
	v.AddConfigPath("$HOME/.decoy-alerts")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables, e.g. DECOY_SENDGRID_API_KEY
	v.AutomaticEnv()
	v.SetEnvPrefix("DECOY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromFile creates a configuration instance from an explicit config file
func NewFromFile(path string) (*Config, error) {
	v := NewEmptyViper()
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvPrefix("DECOY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.listen_address", "0.0.0.0:8000")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "20s")
	v.SetDefault("server.max_form_bytes", 32<<20)
	v.SetDefault("server.ip_header", "X-Mailgun-Incoming-IP")

	// Database defaults
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.sqlite_path", "./decoys.db")
	v.SetDefault("database.mysql_dsn", "user:password@tcp(localhost:3306)/decoys?parseTime=true")
	v.SetDefault("database.max_open_conns", 10)

	// Geo defaults
	v.SetDefault("geo.base_url", "https://ipinfo.io")
	v.SetDefault("geo.token", "")
	v.SetDefault("geo.timeout", "5s")

	// Mailgun defaults
	v.SetDefault("mailgun.api_key", "")
	v.SetDefault("mailgun.timeout", "10s")
	v.SetDefault("mailgun.small_message_threshold", 100)
	v.SetDefault("mailgun.max_message_bytes", 25<<20)
	v.SetDefault("mailgun.allowed_hosts", []string{
		"api.mailgun.net",
		"api.eu.mailgun.net",
		"*.api.mailgun.net",
		"*.api.eu.mailgun.net",
		"storage.mailgun.net",
	})
	v.SetDefault("mailgun.webhook_signing_key", "")
	v.SetDefault("mailgun.signature_max_age", "15m")

	// SendGrid defaults
	v.SetDefault("sendgrid.api_key", "")
	v.SetDefault("sendgrid.base_url", "https://api.sendgrid.com")

	// SMTP defaults
	v.SetDefault("smtp.address", "localhost:25")
	v.SetDefault("smtp.helo", "localhost")

	// Alert defaults
	v.SetDefault("alert.transport", "sendgrid")
	v.SetDefault("alert.sender_address", "canary@honeypotalerts.com")
	v.SetDefault("alert.sender_name", "Decoys Leak Monitor")
	v.SetDefault("alert.body_preview_limit", 5000)
	v.SetDefault("alert.timeout", "15s")

	// Dispatch defaults
	v.SetDefault("dispatch.workers", 4)
	v.SetDefault("dispatch.queue_size", 256)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetInt64 gets an int64 value from the configuration
func (c *Config) GetInt64(key string) int64 {
	return c.v.GetInt64(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration for %s must be positive, got %s", key, d)
	}
	return d, nil
}

// Set overrides a configuration value
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
