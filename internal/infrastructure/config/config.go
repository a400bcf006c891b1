package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for IRHub Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	OAuth     OAuthConfig     `yaml:"oauth"`
	IR        IRConfig        `yaml:"ir"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	HomeGraph HomeGraphConfig `yaml:"homegraph"`
}

// AgentConfig identifies this hub towards the smart-home action protocol.
type AgentConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
// The broker carries the command-event queue between the intent handlers
// and the execution pipeline.
type MQTTConfig struct {
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
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
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains settings for the live state event stream.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for execution metrics.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// OAuthConfig contains the single trusted client identity and token policy.
// There is exactly one client (the assistant platform); this is not a
// multi-client registry.
type OAuthConfig struct {
	Client          OAuthClientConfig `yaml:"client"`
	IdentitySecret  string            `yaml:"identity_secret"`
	AuthCodeTTL     int               `yaml:"auth_code_ttl"`     // seconds
	AccessTokenTTL  int               `yaml:"access_token_ttl"`  // seconds
	RefreshTokenTTL int               `yaml:"refresh_token_ttl"` // seconds
}

// OAuthClientConfig describes the static OAuth client.
type OAuthClientConfig struct {
	ID           string   `yaml:"id"`
	Secret       string   `yaml:"secret"`
	RedirectURIs []string `yaml:"redirect_uris"`
	Grants       []string `yaml:"grants"`
}

// IRConfig contains IR transceiver gateway settings.
type IRConfig struct {
	// BindAddress is the local host the driver binds to, without a port.
	BindAddress string `yaml:"bind_address"`

	// BroadcastAddress is the address discovery probes are broadcast to.
	BroadcastAddress string `yaml:"broadcast_address"`

	// Port is the UDP port the transceiver gateways listen on.
	Port int `yaml:"port"`

	// PollInterval is the delay between discovery attempts.
	PollInterval time.Duration `yaml:"poll_interval"`

	// DiscoveryTimeout bounds how long a pipeline run waits for the
	// addressed transceiver to appear before the run fails.
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout"`
}

// PipelineConfig contains command pipeline settings.
type PipelineConfig struct {
	// Workers is the size of the bounded worker pool consuming command events.
	Workers int `yaml:"workers"`

	// RunTimeout bounds a single command-event run end to end.
	RunTimeout time.Duration `yaml:"run_timeout"`
}

// HomeGraphConfig contains settings for the HomeGraph request-sync and
// report-state endpoints.
type HomeGraphConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: IRHUB_SECTION_KEY
// For example: IRHUB_DATABASE_PATH, IRHUB_OAUTH_CLIENT_SECRET
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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

// Default token TTLs, in seconds. The refresh token is deliberately
// long-lived: the assistant platform re-links accounts rarely and an expired
// refresh token forces the user back through the consent flow.
const (
	defaultAuthCodeTTL     = 600
	defaultAccessTokenTTL  = 3600
	defaultRefreshTokenTTL = 86400 * 3650 // ~10 years
)

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			ID:   "irhub-001",
			Name: "IRHub",
		},
		Database: DatabaseConfig{
			Path:        "./data/irhub.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "irhub-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		OAuth: OAuthConfig{
			AuthCodeTTL:     defaultAuthCodeTTL,
			AccessTokenTTL:  defaultAccessTokenTTL,
			RefreshTokenTTL: defaultRefreshTokenTTL,
			Client: OAuthClientConfig{
				Grants: []string{"authorization_code", "refresh_token"},
			},
		},
		IR: IRConfig{
			BindAddress:      "0.0.0.0",
			BroadcastAddress: "255.255.255.255",
			Port:             7700,
			PollInterval:     100 * time.Millisecond,
			DiscoveryTimeout: 30 * time.Second,
		},
		Pipeline: PipelineConfig{
			Workers:    4,
			RunTimeout: 60 * time.Second,
		},
		HomeGraph: HomeGraphConfig{
			BaseURL: "https://homegraph.googleapis.com",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: IRHUB_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("IRHUB_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("IRHUB_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("IRHUB_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("IRHUB_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("IRHUB_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("IRHUB_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// OAuth secrets (always override these in production)
	if v := os.Getenv("IRHUB_OAUTH_CLIENT_SECRET"); v != "" {
		cfg.OAuth.Client.Secret = v
	}
	if v := os.Getenv("IRHUB_OAUTH_IDENTITY_SECRET"); v != "" {
		cfg.OAuth.IdentitySecret = v
	}

	// HomeGraph
	if v := os.Getenv("IRHUB_HOMEGRAPH_API_KEY"); v != "" {
		cfg.HomeGraph.APIKey = v
	}
}

// minIdentitySecretLength is the minimum length for the identity-token secret.
// The identity verifier gates authorization-code issuance; a guessable secret
// would let an attacker mint codes for arbitrary users.
const minIdentitySecretLength = 32

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Agent.ID == "" {
		errs = append(errs, "agent.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.OAuth.Client.ID == "" {
		errs = append(errs, "oauth.client.id is required")
	}
	if c.OAuth.Client.Secret == "" {
		errs = append(errs, "oauth.client.secret is required (set IRHUB_OAUTH_CLIENT_SECRET environment variable)")
	}
	if c.OAuth.IdentitySecret == "" {
		errs = append(errs, "oauth.identity_secret is required (set IRHUB_OAUTH_IDENTITY_SECRET environment variable)")
	} else if len(c.OAuth.IdentitySecret) < minIdentitySecretLength {
		errs = append(errs, "oauth.identity_secret must be at least 32 characters for adequate security")
	}

	// The UDP driver appends its own ephemeral port.
	if strings.Contains(c.IR.BindAddress, ":") {
		errs = append(errs, "ir.bind_address must be a host without a port")
	}
	if c.IR.PollInterval <= 0 {
		errs = append(errs, "ir.poll_interval must be positive")
	}
	if c.IR.DiscoveryTimeout <= 0 {
		errs = append(errs, "ir.discovery_timeout must be positive")
	}

	if c.Pipeline.Workers < 1 {
		errs = append(errs, "pipeline.workers must be at least 1")
	}

	if c.HomeGraph.Enabled && c.HomeGraph.APIKey == "" {
		errs = append(errs, "homegraph.api_key is required when homegraph is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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
