package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Cuckoo Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site        SiteConfig        `yaml:"site"`
	Database    DatabaseConfig    `yaml:"database"`
	API         APIConfig         `yaml:"api"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Sounds      SoundsConfig      `yaml:"sounds"`
	Poller      PollerConfig      `yaml:"poller"`
	Permissions PermissionsConfig `yaml:"permissions"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// SiteConfig contains deployment-wide settings.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// MQTTConfig contains MQTT broker connection settings.
// When Enabled is false the poller skips play notifications and devices
// must poll the due endpoint over HTTP.
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

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains firing-history metric settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// SoundsConfig contains sound payload storage settings.
type SoundsConfig struct {
	// Dir is the directory where uploaded sound files are stored.
	Dir string `yaml:"dir"`

	// MaxUploadBytes caps the size of a single uploaded sound file.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// PollerConfig contains evaluation driver settings. Interval is in seconds.
type PollerConfig struct {
	Enabled  bool `yaml:"enabled"`
	Interval int  `yaml:"interval"`
}

// PermissionsConfig contains authorisation policy settings.
type PermissionsConfig struct {
	// RevokeDisablesSchedules controls whether revoking a trustee grant also
	// disables that user's existing schedules on the device. Schedules are a
	// durable commitment by default; enabling this makes revocation cascade.
	RevokeDisablesSchedules bool `yaml:"revoke_disables_schedules"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CUCKOO_SECTION_KEY
// For example: CUCKOO_DATABASE_PATH, CUCKOO_API_PORT
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
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Cuckoo",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/cuckoo.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  15,
				Write: 30,
				Idle:  60,
			},
		},
		MQTT: MQTTConfig{
			Enabled: false,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "cuckoo-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Enabled:       false,
			BatchSize:     100,
			FlushInterval: 10,
		},
		Sounds: SoundsConfig{
			Dir:            "./data/sounds",
			MaxUploadBytes: 16 << 20, // 16 MB
		},
		Poller: PollerConfig{
			Enabled:  true,
			Interval: 30,
		},
		Permissions: PermissionsConfig{
			RevokeDisablesSchedules: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies CUCKOO_* environment variables over loaded values.
// Only the settings that differ between deployments are exposed this way.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CUCKOO_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("CUCKOO_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("CUCKOO_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("CUCKOO_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CUCKOO_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CUCKOO_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("CUCKOO_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("CUCKOO_SOUNDS_DIR"); v != "" {
		cfg.Sounds.Dir = v
	}
	if v := os.Getenv("CUCKOO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for invalid or inconsistent values.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path cannot be empty")
	}
	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("database.busy_timeout cannot be negative")
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("api.port must be 1-65535, got %d", c.API.Port)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if c.Sounds.Dir == "" {
		return fmt.Errorf("sounds.dir cannot be empty")
	}
	if c.Sounds.MaxUploadBytes <= 0 {
		return fmt.Errorf("sounds.max_upload_bytes must be positive")
	}
	if c.Poller.Enabled && c.Poller.Interval < 1 {
		return fmt.Errorf("poller.interval must be at least 1 second, got %d", c.Poller.Interval)
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		return fmt.Errorf("influxdb.url is required when influxdb is enabled")
	}
	if _, err := time.LoadLocation(c.Site.Timezone); err != nil {
		return fmt.Errorf("site.timezone %q is not a valid IANA timezone: %w", c.Site.Timezone, err)
	}
	return nil
}

// Location returns the site timezone as a *time.Location.
// Validate guarantees the name parses, so errors fall back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Site.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
