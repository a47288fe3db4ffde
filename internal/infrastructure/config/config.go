package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the PON bike bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Account   AccountConfig   `yaml:"account"`
	Vendor    VendorConfig    `yaml:"vendor"`
	OAuth     OAuthConfig     `yaml:"oauth"`
	Polling   PollingConfig   `yaml:"polling"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// AccountConfig identifies the single linked vendor account.
type AccountConfig struct {
	// EntryID prefixes every entity unique ID (e.g. "default_A1_odometer").
	EntryID string `yaml:"entry_id"`
	Name    string `yaml:"name"`
}

// VendorConfig contains the PON connected-bike API settings.
type VendorConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"` // seconds, per HTTP request
}

// OAuthConfig contains the bearer-token settings for the vendor API.
//
// The authorization-code/PKCE flow happens outside this process; only the
// resulting tokens are configured here. When a refresh token is present the
// access token is refreshed transparently against TokenURL.
type OAuthConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	AuthorizeURL string   `yaml:"authorize_url"`
	TokenURL     string   `yaml:"token_url"`
	Audience     string   `yaml:"audience"`
	Scopes       []string `yaml:"scopes"`
	AccessToken  string   `yaml:"access_token"`
	RefreshToken string   `yaml:"refresh_token"`
}

// PollingConfig contains the refresh loop settings.
type PollingConfig struct {
	Interval     int `yaml:"interval"`      // seconds between cycles
	CycleTimeout int `yaml:"cycle_timeout"` // seconds, bounds both fetches of one cycle
	Jitter       int `yaml:"jitter"`        // seconds, max random delay added per tick (0 disables)
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings for the local API.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT bearer token settings.
// An empty secret leaves the read API unauthenticated (local deployments).
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PONBIKE_SECTION_KEY
// For example: PONBIKE_OAUTH_REFRESH_TOKEN, PONBIKE_MQTT_PASSWORD
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Account: AccountConfig{
			EntryID: "default",
			Name:    "PON Bike account",
		},
		Vendor: VendorConfig{
			BaseURL: "https://data-act.connected.pon.bike/api",
			Timeout: 30,
		},
		OAuth: OAuthConfig{
			AuthorizeURL: "https://consumer.login.pon.bike/authorize",
			TokenURL:     "https://consumer.login.pon.bike/oauth/token",
			Audience:     "https://data-act.connected.pon.bike/",
			Scopes:       []string{"openid", "offline_access", "authorization:read"},
		},
		Polling: PollingConfig{
			Interval:     300,
			CycleTimeout: 60,
		},
		Database: DatabaseConfig{
			Path:        "./data/ponbike.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "ponbike-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PONBIKE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Vendor API
	if v := os.Getenv("PONBIKE_VENDOR_BASE_URL"); v != "" {
		cfg.Vendor.BaseURL = v
	}

	// OAuth - tokens should never live in the config file
	if v := os.Getenv("PONBIKE_OAUTH_CLIENT_ID"); v != "" {
		cfg.OAuth.ClientID = v
	}
	if v := os.Getenv("PONBIKE_OAUTH_CLIENT_SECRET"); v != "" {
		cfg.OAuth.ClientSecret = v
	}
	if v := os.Getenv("PONBIKE_OAUTH_ACCESS_TOKEN"); v != "" {
		cfg.OAuth.AccessToken = v
	}
	if v := os.Getenv("PONBIKE_OAUTH_REFRESH_TOKEN"); v != "" {
		cfg.OAuth.RefreshToken = v
	}

	// Database
	if v := os.Getenv("PONBIKE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("PONBIKE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PONBIKE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PONBIKE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("PONBIKE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("PONBIKE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors.
//
// All problems are collected and reported together so an operator can fix
// the file in one pass.
func (c *Config) Validate() error {
	var errs []string

	if c.Account.EntryID == "" {
		errs = append(errs, "account.entry_id is required")
	}

	if u, err := url.Parse(c.Vendor.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "vendor.base_url must be an absolute URL")
	}
	if c.Vendor.Timeout < 1 {
		errs = append(errs, "vendor.timeout must be at least 1 second")
	}

	if c.OAuth.AccessToken == "" && c.OAuth.RefreshToken == "" {
		errs = append(errs, "oauth.access_token or oauth.refresh_token is required (set PONBIKE_OAUTH_REFRESH_TOKEN)")
	}
	if c.OAuth.RefreshToken != "" {
		if c.OAuth.ClientID == "" {
			errs = append(errs, "oauth.client_id is required to refresh tokens")
		}
		if c.OAuth.TokenURL == "" {
			errs = append(errs, "oauth.token_url is required to refresh tokens")
		}
	}

	if c.Polling.Interval < 1 {
		errs = append(errs, "polling.interval must be at least 1 second")
	}
	if c.Polling.CycleTimeout < 1 {
		errs = append(errs, "polling.cycle_timeout must be at least 1 second")
	}
	if c.Polling.Jitter < 0 {
		errs = append(errs, "polling.jitter cannot be negative")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	const minJWTSecretLength = 32
	if c.Security.JWT.Secret != "" && len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetPollInterval returns the refresh interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Polling.Interval) * time.Second
}

// GetCycleTimeout returns the per-cycle timeout as a Duration.
func (c *Config) GetCycleTimeout() time.Duration {
	return time.Duration(c.Polling.CycleTimeout) * time.Second
}

// GetJitter returns the maximum per-tick jitter as a Duration.
func (c *Config) GetJitter() time.Duration {
	return time.Duration(c.Polling.Jitter) * time.Second
}

// GetVendorTimeout returns the vendor HTTP request timeout as a Duration.
func (c *Config) GetVendorTimeout() time.Duration {
	return time.Duration(c.Vendor.Timeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
