// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fawad-mazhar/statusboard/internal/models"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Source       SourceConfig       `yaml:"source"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Display      DisplayConfig      `yaml:"display"`
	LevelDB      LevelDBConfig      `yaml:"leveldb"`
	NATS         NATSConfig         `yaml:"nats"`
	RabbitMQ     RabbitMQConfig     `yaml:"rabbitmq"`
	Postgres     PostgresConfig     `yaml:"postgres"`
	Log          LogConfig          `yaml:"log"`
	Layouts      []models.JobLayout `yaml:"layouts"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
}

// SourceConfig selects and configures the stream of execution snapshots
type SourceConfig struct {
	Type              string `yaml:"type"` // sse, poll, nats, rabbitmq or postgres
	URL               string `yaml:"url"`
	Job               string `yaml:"job"`
	PollInterval      int    `yaml:"pollInterval"`      // seconds
	ReconnectAttempts int    `yaml:"reconnectAttempts"` // per reconnect cycle
	ReconnectDelay    int    `yaml:"reconnectDelay"`    // milliseconds
}

// OrchestratorConfig points at the orchestrator API serving job layouts
type OrchestratorConfig struct {
	URL     string `yaml:"url"`
	Timeout int    `yaml:"timeout"` // seconds
}

// DisplayConfig holds the presentation settings
type DisplayConfig struct {
	Capacity int    `yaml:"capacity"`
	View     string `yaml:"view"` // index, job or diagram
	Job      string `yaml:"job"`
	Timezone string `yaml:"timezone"`
	Print    bool   `yaml:"print"`
}

// LevelDBConfig holds LevelDB configuration
type LevelDBConfig struct {
	Path     string `yaml:"path"`
	TTLHours int    `yaml:"ttlHours"`
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// RabbitMQConfig holds RabbitMQ configuration
type RabbitMQConfig struct {
	URL         string `yaml:"url"`
	StatusQueue string `yaml:"statusQueue"`
}

// PostgresConfig holds PostgreSQL configuration
type PostgresConfig struct {
	URL   string `yaml:"-"`
	Limit int    `yaml:"limit"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Source types
const (
	SourceSSE      = "sse"
	SourcePoll     = "poll"
	SourceNATS     = "nats"
	SourceRabbitMQ = "rabbitmq"
	SourcePostgres = "postgres"
)

// Default configuration values
const (
	DefaultServerPort          = "8090"
	DefaultServerReadTimeout   = 30
	DefaultServerWriteTimeout  = 30
	DefaultSourceType          = SourceSSE
	DefaultPollInterval        = 2
	DefaultReconnectAttempts   = 10
	DefaultReconnectDelay      = 500
	DefaultOrchestratorTimeout = 10
	DefaultCapacity            = 10
	DefaultView                = "index"
	DefaultTimezone            = "UTC"
	DefaultLevelDBPath         = "./data/statusboard"
	DefaultLevelDBTTLHours     = 24
	DefaultNATSSubject         = "naxos.executions"
	DefaultStatusQueue         = "naxos.status"
	DefaultPostgresLimit       = 50
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
)

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as boolean or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func orString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func orInt(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}

// Load reads the YAML file at configPath and applies environment overrides and
// defaults. An empty configPath skips the file.
func Load(configPath string) (*Config, error) {
	var config Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Server = ServerConfig{
		Port:         getEnv("STATUSBOARD_SERVER_PORT", orString(config.Server.Port, DefaultServerPort)),
		ReadTimeout:  getEnvInt("STATUSBOARD_SERVER_READ_TIMEOUT", orInt(config.Server.ReadTimeout, DefaultServerReadTimeout)),
		WriteTimeout: getEnvInt("STATUSBOARD_SERVER_WRITE_TIMEOUT", orInt(config.Server.WriteTimeout, DefaultServerWriteTimeout)),
	}

	config.Source = SourceConfig{
		Type:              getEnv("STATUSBOARD_SOURCE_TYPE", orString(config.Source.Type, DefaultSourceType)),
		URL:               getEnv("STATUSBOARD_SOURCE_URL", config.Source.URL),
		Job:               getEnv("STATUSBOARD_SOURCE_JOB", config.Source.Job),
		PollInterval:      getEnvInt("STATUSBOARD_SOURCE_POLL_INTERVAL", orInt(config.Source.PollInterval, DefaultPollInterval)),
		ReconnectAttempts: getEnvInt("STATUSBOARD_SOURCE_RECONNECT_ATTEMPTS", orInt(config.Source.ReconnectAttempts, DefaultReconnectAttempts)),
		ReconnectDelay:    getEnvInt("STATUSBOARD_SOURCE_RECONNECT_DELAY", orInt(config.Source.ReconnectDelay, DefaultReconnectDelay)),
	}

	config.Orchestrator = OrchestratorConfig{
		URL:     getEnv("STATUSBOARD_ORCHESTRATOR_URL", config.Orchestrator.URL),
		Timeout: getEnvInt("STATUSBOARD_ORCHESTRATOR_TIMEOUT", orInt(config.Orchestrator.Timeout, DefaultOrchestratorTimeout)),
	}

	config.Display = DisplayConfig{
		Capacity: getEnvInt("STATUSBOARD_DISPLAY_CAPACITY", orInt(config.Display.Capacity, DefaultCapacity)),
		View:     getEnv("STATUSBOARD_DISPLAY_VIEW", orString(config.Display.View, DefaultView)),
		Job:      getEnv("STATUSBOARD_DISPLAY_JOB", config.Display.Job),
		Timezone: getEnv("STATUSBOARD_DISPLAY_TIMEZONE", orString(config.Display.Timezone, DefaultTimezone)),
		Print:    getEnvBool("STATUSBOARD_DISPLAY_PRINT", config.Display.Print),
	}

	config.LevelDB = LevelDBConfig{
		Path:     getEnv("STATUSBOARD_LEVELDB_PATH", orString(config.LevelDB.Path, DefaultLevelDBPath)),
		TTLHours: getEnvInt("STATUSBOARD_LEVELDB_TTL_HOURS", orInt(config.LevelDB.TTLHours, DefaultLevelDBTTLHours)),
	}

	config.NATS = NATSConfig{
		URL:     getEnv("STATUSBOARD_NATS_URL", config.NATS.URL),
		Subject: getEnv("STATUSBOARD_NATS_SUBJECT", orString(config.NATS.Subject, DefaultNATSSubject)),
	}

	config.RabbitMQ = RabbitMQConfig{
		URL:         getEnv("STATUSBOARD_RABBITMQ_URL", config.RabbitMQ.URL),
		StatusQueue: getEnv("STATUSBOARD_RABBITMQ_STATUS_QUEUE", orString(config.RabbitMQ.StatusQueue, DefaultStatusQueue)),
	}

	config.Postgres = PostgresConfig{
		URL:   os.Getenv("STATUSBOARD_POSTGRES_URL"),
		Limit: getEnvInt("STATUSBOARD_POSTGRES_LIMIT", orInt(config.Postgres.Limit, DefaultPostgresLimit)),
	}

	config.Log = LogConfig{
		Level:  getEnv("STATUSBOARD_LOG_LEVEL", orString(config.Log.Level, DefaultLogLevel)),
		Format: getEnv("STATUSBOARD_LOG_FORMAT", orString(config.Log.Format, DefaultLogFormat)),
	}

	// Initialize empty layouts slice if none were loaded from file
	if config.Layouts == nil {
		config.Layouts = make([]models.JobLayout, 0)
	}

	return &config, nil
}

// Validate checks the settings that cannot be defaulted
func (c *Config) Validate() error {
	if c.Display.Capacity < 1 {
		return fmt.Errorf("display capacity must be at least 1, got %d", c.Display.Capacity)
	}

	switch c.Display.View {
	case "index":
	case "job", "diagram":
		if c.Display.Job == "" {
			return fmt.Errorf("display view %q requires a job", c.Display.View)
		}
	default:
		return fmt.Errorf("unknown display view %q", c.Display.View)
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	switch c.Source.Type {
	case SourceSSE, SourcePoll:
		if c.Source.URL == "" {
			return fmt.Errorf("source type %q requires a url", c.Source.Type)
		}
		if c.Source.PollInterval < 1 {
			return fmt.Errorf("poll interval must be at least 1 second")
		}
	case SourceNATS:
		if c.NATS.URL == "" {
			return fmt.Errorf("STATUSBOARD_NATS_URL is required for the nats source")
		}
	case SourceRabbitMQ:
		if c.RabbitMQ.URL == "" {
			return fmt.Errorf("STATUSBOARD_RABBITMQ_URL is required for the rabbitmq source")
		}
	case SourcePostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("STATUSBOARD_POSTGRES_URL is required for the postgres source")
		}
	default:
		return fmt.Errorf("unknown source type %q", c.Source.Type)
	}

	return nil
}

// Location returns the time zone used to display timestamps
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Display.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", c.Display.Timezone, err)
	}
	return loc, nil
}

// PollPeriod returns the poll interval as a duration
func (c *SourceConfig) PollPeriod() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// ReconnectBackoff returns the initial reconnect delay as a duration
func (c *SourceConfig) ReconnectBackoff() time.Duration {
	return time.Duration(c.ReconnectDelay) * time.Millisecond
}

// RequestTimeout returns the timeout for orchestrator API calls
func (c *OrchestratorConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// LayoutTTL returns how long cached job layouts stay valid
func (c *LevelDBConfig) LayoutTTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}
