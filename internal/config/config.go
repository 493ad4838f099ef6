package config

import "time"

// IngesterConfig is the root configuration for an ingester instance.
type IngesterConfig struct {
	Instance InstanceConfig `yaml:"instance" toml:"instance"`
	Source   SourceConfig   `yaml:"source" toml:"source"`
	Decode   DecodeConfig   `yaml:"decode" toml:"decode"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Intake   IntakeConfig   `yaml:"intake" toml:"intake"`
	Relay    RelayConfig    `yaml:"relay" toml:"relay"`
	Upload   UploadConfig   `yaml:"upload" toml:"upload"`
	Pipeline PipelineConfig `yaml:"pipeline" toml:"pipeline"`
	Monitor  MonitorConfig  `yaml:"monitor" toml:"monitor"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// InstanceConfig identifies this ingester.
type InstanceConfig struct {
	ID string `yaml:"id" toml:"id"`
}

// SourceConfig describes the CGM integration feeding this instance.
type SourceConfig struct {
	Sensor            string `yaml:"sensor" toml:"sensor"`                         // e.g. "Glimp"
	Label             string `yaml:"label" toml:"label"`                           // Upload device label, e.g. "AndroidAPS-Glimp"
	Enabled           *bool  `yaml:"enabled" toml:"enabled"`                       // Initial gate state, default true
	AdvancedFiltering bool   `yaml:"advanced_filtering" toml:"advanced_filtering"` // Source supports advanced filtering
}

// DecodeConfig names the payload keys.
type DecodeConfig struct {
	ValueKey     string `yaml:"value_key" toml:"value_key"`
	TrendKey     string `yaml:"trend_key" toml:"trend_key"`
	TimestampKey string `yaml:"timestamp_key" toml:"timestamp_key"`
	RawKey       string `yaml:"raw_key" toml:"raw_key"`
}

// DatabaseConfig selects and configures the store.
type DatabaseConfig struct {
	Driver   string       `yaml:"driver" toml:"driver"` // "postgres", "sqlite" or "memory"
	Postgres DBConfig     `yaml:"postgres" toml:"postgres"`
	SQLite   SQLiteConfig `yaml:"sqlite" toml:"sqlite"`
}

// DBConfig holds a single PostgreSQL connection.
type DBConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	Name     string `yaml:"name" toml:"name"`
	User     string `yaml:"user" toml:"user"`
	Password string `yaml:"password" toml:"password"`
	SSLMode  string `yaml:"ssl_mode" toml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns" toml:"max_conns"`
	MinConns int    `yaml:"min_conns" toml:"min_conns"`
}

// SQLiteConfig holds the local database file.
type SQLiteConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// IntakeConfig holds inbound transport settings.
type IntakeConfig struct {
	HTTPPath           string        `yaml:"http_path" toml:"http_path"`
	MaxBodyBytes       int64         `yaml:"max_body_bytes" toml:"max_body_bytes"`
	WebSocketURL       string        `yaml:"websocket_url" toml:"websocket_url"` // Optional companion feed
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay" toml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay" toml:"reconnect_max_delay"`
	PingTimeout        time.Duration `yaml:"ping_timeout" toml:"ping_timeout"`
}

// RelayConfig selects the local broadcast sink.
type RelayConfig struct {
	Kind         string `yaml:"kind" toml:"kind"` // "hub", "redis" or "none"
	RedisAddr    string `yaml:"redis_addr" toml:"redis_addr"`
	RedisChannel string `yaml:"redis_channel" toml:"redis_channel"`
	ClientBuffer int    `yaml:"client_buffer" toml:"client_buffer"`
}

// UploadConfig selects the remote upload sink.
type UploadConfig struct {
	Kind       string        `yaml:"kind" toml:"kind"` // "nightscout" or "none"
	URL        string        `yaml:"url" toml:"url"`
	APISecret  string        `yaml:"api_secret" toml:"api_secret"`
	Timeout    time.Duration `yaml:"timeout" toml:"timeout"`
	MaxRetries int           `yaml:"max_retries" toml:"max_retries"`
}

// PipelineConfig holds orchestrator settings.
type PipelineConfig struct {
	Workers       int           `yaml:"workers" toml:"workers"`
	QueueSize     int           `yaml:"queue_size" toml:"queue_size"`
	StoreTimeout  time.Duration `yaml:"store_timeout" toml:"store_timeout"`
	NotifyTimeout time.Duration `yaml:"notify_timeout" toml:"notify_timeout"`
}

// MonitorConfig holds background dependency check settings.
type MonitorConfig struct {
	Interval time.Duration `yaml:"interval" toml:"interval"`
	Timeout  time.Duration `yaml:"timeout" toml:"timeout"`
}

// MetricsConfig holds the HTTP server serving health, intake and metrics.
type MetricsConfig struct {
	Port int    `yaml:"port" toml:"port"`
	Path string `yaml:"path" toml:"path"`
}

// LoggingConfig holds slog settings.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // text or json
}

// SourceEnabled returns the initial gate state.
func (c *IngesterConfig) SourceEnabled() bool {
	return c.Source.Enabled == nil || *c.Source.Enabled
}
