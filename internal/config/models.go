package config

import (
	"time"
)

// ServerConfig represents the configuration for the webhook HTTP server
type ServerConfig struct {
	ListenAddress   string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxFormBytes    int64
	IPHeader        string

	// SigningKey enables verification of the provider's webhook signature
	SigningKey      string
	SignatureMaxAge time.Duration
}

// DatabaseConfig represents the configuration for the decoy registry and event log
type DatabaseConfig struct {
	Type         string
	SQLitePath   string
	MySQLDSN     string
	MaxOpenConns int
}

// GeoConfig represents the configuration for the reverse-geo provider
type GeoConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// MailgunConfig represents the configuration for raw message retrieval
type MailgunConfig struct {
	APIKey                string
	Timeout               time.Duration
	SmallMessageThreshold int
	MaxMessageBytes       int64
	AllowedHosts          []string
}

// SendGridConfig represents the configuration for the SendGrid mail API
type SendGridConfig struct {
	APIKey  string
	BaseURL string
}

// SMTPConfig represents the configuration for the SMTP relay transport
type SMTPConfig struct {
	Address string
	Helo    string
}

// AlertConfig represents the configuration for alert composition and delivery
type AlertConfig struct {
	Transport        string
	SenderAddress    string
	SenderName       string
	BodyPreviewLimit int
	Timeout          time.Duration
}

// DispatchConfig represents the configuration for the alert worker pool
type DispatchConfig struct {
	Workers   int
	QueueSize int
}

// GetServer returns the server configuration
func (c *Config) GetServer() (ServerConfig, error) {
	read, err := c.GetDuration("server.read_timeout")
	if err != nil {
		return ServerConfig{}, err
	}
	write, err := c.GetDuration("server.write_timeout")
	if err != nil {
		return ServerConfig{}, err
	}
	shutdown, err := c.GetDuration("server.shutdown_timeout")
	if err != nil {
		return ServerConfig{}, err
	}
	maxAge, err := c.GetDuration("mailgun.signature_max_age")
	if err != nil {
		return ServerConfig{}, err
	}
	return ServerConfig{
		ListenAddress:   c.GetString("server.listen_address"),
		ReadTimeout:     read,
		WriteTimeout:    write,
		ShutdownTimeout: shutdown,
		MaxFormBytes:    c.GetInt64("server.max_form_bytes"),
		IPHeader:        c.GetString("server.ip_header"),
		SigningKey:      c.GetString("mailgun.webhook_signing_key"),
		SignatureMaxAge: maxAge,
	}, nil
}

// GetDatabase returns the database configuration
func (c *Config) GetDatabase() DatabaseConfig {
	return DatabaseConfig{
		Type:         c.GetString("database.type"),
		SQLitePath:   c.GetString("database.sqlite_path"),
		MySQLDSN:     c.GetString("database.mysql_dsn"),
		MaxOpenConns: c.GetInt("database.max_open_conns"),
	}
}

// GetGeo returns the reverse-geo configuration
func (c *Config) GetGeo() (GeoConfig, error) {
	timeout, err := c.GetDuration("geo.timeout")
	if err != nil {
		return GeoConfig{}, err
	}
	return GeoConfig{
		BaseURL: c.GetString("geo.base_url"),
		Token:   c.GetString("geo.token"),
		Timeout: timeout,
	}, nil
}

// GetMailgun returns the Mailgun configuration
func (c *Config) GetMailgun() (MailgunConfig, error) {
	timeout, err := c.GetDuration("mailgun.timeout")
	if err != nil {
		return MailgunConfig{}, err
	}
	return MailgunConfig{
		APIKey:                c.GetString("mailgun.api_key"),
		Timeout:               timeout,
		SmallMessageThreshold: c.GetInt("mailgun.small_message_threshold"),
		MaxMessageBytes:       c.GetInt64("mailgun.max_message_bytes"),
		AllowedHosts:          c.GetStringSlice("mailgun.allowed_hosts"),
	}, nil
}

// GetSendGrid returns the SendGrid configuration
func (c *Config) GetSendGrid() SendGridConfig {
	return SendGridConfig{
		APIKey:  c.GetString("sendgrid.api_key"),
		BaseURL: c.GetString("sendgrid.base_url"),
	}
}

// GetSMTP returns the SMTP relay configuration
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		Address: c.GetString("smtp.address"),
		Helo:    c.GetString("smtp.helo"),
	}
}

// GetAlert returns the alert configuration
func (c *Config) GetAlert() (AlertConfig, error) {
	timeout, err := c.GetDuration("alert.timeout")
	if err != nil {
		return AlertConfig{}, err
	}
	return AlertConfig{
		Transport:        c.GetString("alert.transport"),
		SenderAddress:    c.GetString("alert.sender_address"),
		SenderName:       c.GetString("alert.sender_name"),
		BodyPreviewLimit: c.GetInt("alert.body_preview_limit"),
		Timeout:          timeout,
	}, nil
}

// GetDispatch returns the dispatch configuration
func (c *Config) GetDispatch() DispatchConfig {
	return DispatchConfig{
		Workers:   c.GetInt("dispatch.workers"),
		QueueSize: c.GetInt("dispatch.queue_size"),
	}
}
