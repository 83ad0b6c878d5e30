package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Cache   CacheConfig   `yaml:"cache"`
	Login   LoginConfig   `yaml:"login"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port            int            `yaml:"port" validate:"min=1,max=65535"`
	Host            string         `yaml:"host"`
	BaseURL         string         `yaml:"base_url"` // Optional: public URL (e.g., https://btweet.example.com)
	ReadTimeout     time.Duration  `yaml:"read_timeout"`
	WriteTimeout    time.Duration  `yaml:"write_timeout"`
	IdleTimeout     time.Duration  `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration  `yaml:"shutdown_timeout"`
	RequestTimeout  time.Duration  `yaml:"request_timeout"`
	Security        SecurityConfig `yaml:"security"`
}

// SecurityConfig contains security-related settings
type SecurityConfig struct {
	CSRFEnabled     bool                  `yaml:"csrf_enabled"`
	CSRFFieldName   string                `yaml:"csrf_field_name"`
	MaxRequestBytes int64                 `yaml:"max_request_bytes" validate:"gte=0"`
	Headers         SecurityHeadersConfig `yaml:"headers"`
}

// SecurityHeadersConfig contains HTTP security header settings
type SecurityHeadersConfig struct {
	XFrameOptions           string `yaml:"x_frame_options"`
	XContentTypeOptions     string `yaml:"x_content_type_options"`
	ReferrerPolicy          string `yaml:"referrer_policy"`
	ContentSecurityPolicy   string `yaml:"content_security_policy"`
	StrictTransportSecurity string `yaml:"strict_transport_security"`
}

// APIConfig points at the B-Tweet API that owns authentication
type APIConfig struct {
	BaseURL string        `yaml:"base_url" validate:"required"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// SessionConfig contains cookie and session store settings
type SessionConfig struct {
	Secret         string `yaml:"secret" validate:"required,min=32"`
	MaxAge         int    `yaml:"max_age" validate:"gte=0"` // Seconds
	DBPath         string `yaml:"db_path" validate:"required"`
	CookieSecure   string `yaml:"cookie_secure" validate:"omitempty,oneof=auto true false"`
	CookieSameSite string `yaml:"cookie_samesite" validate:"omitempty,oneof=strict lax none"`
}

// CacheConfig contains query cache settings
type CacheConfig struct {
	Size         int           `yaml:"size" validate:"min=1"`
	TTL          time.Duration `yaml:"ttl" validate:"gte=0"`
	RedisAddr    string        `yaml:"redis_addr"` // Optional: share invalidations between replicas
	RedisChannel string        `yaml:"redis_channel"`
}

// LoginConfig contains login page lifetime settings
type LoginConfig struct {
	PageTTL  time.Duration `yaml:"page_ttl" validate:"gt=0"`
	MaxPages int           `yaml:"max_pages" validate:"min=1"`
}

// LogConfig contains logger settings
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
}

// Default returns a configuration with every optional field set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "localhost",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  30 * time.Second,
			Security: SecurityConfig{
				CSRFEnabled:     true,
				CSRFFieldName:   "csrf_token",
				MaxRequestBytes: 1 << 20,
				Headers: SecurityHeadersConfig{
					XFrameOptions:           "DENY",
					XContentTypeOptions:     "nosniff",
					ReferrerPolicy:          "strict-origin-when-cross-origin",
					ContentSecurityPolicy:   "default-src 'self'; script-src 'self' https://unpkg.com",
					StrictTransportSecurity: "max-age=31536000; includeSubDomains",
				},
			},
		},
		API: APIConfig{
			BaseURL: "http://localhost:5000",
			Timeout: 10 * time.Second,
		},
		Session: SessionConfig{
			MaxAge:         7 * 24 * 60 * 60,
			DBPath:         "./data/btweet.db",
			CookieSecure:   "auto",
			CookieSameSite: "lax",
		},
		Cache: CacheConfig{
			Size:         1024,
			TTL:          5 * time.Minute,
			RedisChannel: "btweet:querycache:invalidate",
		},
		Login: LoginConfig{
			PageTTL:  15 * time.Minute,
			MaxPages: 10000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from the specified file path on top of Default
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${ENV} references first
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables if set
	if baseURL := os.Getenv("BASE_URL"); baseURL != "" {
		cfg.Server.BaseURL = baseURL
	}
	if apiURL := os.Getenv("BTWEET_API_URL"); apiURL != "" {
		cfg.API.BaseURL = apiURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set
func (c *Config) Validate() error {
	if strings.Contains(c.Session.Secret, "${") {
		return fmt.Errorf("session.secret is required (set SESSION_SECRET environment variable)")
	}

	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") && strings.Contains(c.API.BaseURL, "://") {
		return fmt.Errorf("api.base_url must use http or https")
	}

	if c.Session.CookieSameSite == "none" && !c.CookieSecure() {
		return fmt.Errorf("session.cookie_samesite=none requires secure cookies")
	}

	return nil
}

// GetAddr returns the full server address (host:port)
func (c *Config) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetBaseURL returns the public base URL
// Uses base_url if set, otherwise constructs from host:port
func (c *Config) GetBaseURL() string {
	if c.Server.BaseURL != "" {
		return c.Server.BaseURL
	}
	return fmt.Sprintf("http://%s", c.GetAddr())
}

// IsHTTPS returns true if the base URL uses HTTPS
func (c *Config) IsHTTPS() bool {
	return strings.HasPrefix(strings.ToLower(c.GetBaseURL()), "https://")
}

// CookieSecure resolves cookie_secure, where "auto" follows the base URL scheme
func (c *Config) CookieSecure() bool {
	switch c.Session.CookieSecure {
	case "true":
		return true
	case "false":
		return false
	default:
		return c.IsHTTPS()
	}
}
