package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultSensor             = "Glimp"
	DefaultSourceLabel        = "AndroidAPS-Glimp"
	DefaultValueKey           = "mySGV"
	DefaultTrendKey           = "myTrend"
	DefaultTimestampKey       = "myTimestamp"
	DefaultRawKey             = "myRaw"
	DefaultDriver             = "sqlite"
	DefaultSQLitePath         = "cgm.db"
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultHTTPPath           = "/api/v1/glimp"
	DefaultMaxBodyBytes       = 64 << 10
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultPingTimeout        = 90 * time.Second
	DefaultRelayKind          = "hub"
	DefaultRedisChannel       = "cgm:glucose"
	DefaultClientBuffer       = 64
	DefaultUploadKind         = "none"
	DefaultUploadTimeout      = 30 * time.Second
	DefaultUploadRetries      = 3
	DefaultWorkers            = 4
	DefaultQueueSize          = 256
	DefaultStoreTimeout       = 10 * time.Second
	DefaultNotifyTimeout      = 30 * time.Second
	DefaultMonitorInterval    = 30 * time.Second
	DefaultMonitorTimeout     = 5 * time.Second
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

// ApplyDefaults fills unset fields.
func (c *IngesterConfig) ApplyDefaults() {
	// Source defaults
	if c.Source.Sensor == "" {
		c.Source.Sensor = DefaultSensor
	}
	if c.Source.Label == "" {
		c.Source.Label = "AndroidAPS-" + c.Source.Sensor
	}

	// Decode defaults
	if c.Decode.ValueKey == "" {
		c.Decode.ValueKey = DefaultValueKey
	}
	if c.Decode.TrendKey == "" {
		c.Decode.TrendKey = DefaultTrendKey
	}
	if c.Decode.TimestampKey == "" {
		c.Decode.TimestampKey = DefaultTimestampKey
	}
	if c.Decode.RawKey == "" {
		c.Decode.RawKey = DefaultRawKey
	}

	// Database defaults
	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	if c.Database.Driver == "sqlite" && c.Database.SQLite.Path == "" {
		c.Database.SQLite.Path = DefaultSQLitePath
	}
	if c.Database.Driver == "postgres" {
		applyDBDefaults(&c.Database.Postgres)
	}

	// Intake defaults
	if c.Intake.HTTPPath == "" {
		c.Intake.HTTPPath = DefaultHTTPPath
	}
	if c.Intake.MaxBodyBytes == 0 {
		c.Intake.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Intake.ReconnectBaseDelay == 0 {
		c.Intake.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Intake.ReconnectMaxDelay == 0 {
		c.Intake.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Intake.PingTimeout == 0 {
		c.Intake.PingTimeout = DefaultPingTimeout
	}

	// Relay defaults
	if c.Relay.Kind == "" {
		c.Relay.Kind = DefaultRelayKind
	}
	if c.Relay.RedisChannel == "" {
		c.Relay.RedisChannel = DefaultRedisChannel
	}
	if c.Relay.ClientBuffer == 0 {
		c.Relay.ClientBuffer = DefaultClientBuffer
	}

	// Upload defaults
	if c.Upload.Kind == "" {
		c.Upload.Kind = DefaultUploadKind
	}
	if c.Upload.Timeout == 0 {
		c.Upload.Timeout = DefaultUploadTimeout
	}
	if c.Upload.MaxRetries == 0 {
		c.Upload.MaxRetries = DefaultUploadRetries
	}

	// Pipeline defaults
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = DefaultWorkers
	}
	if c.Pipeline.QueueSize == 0 {
		c.Pipeline.QueueSize = DefaultQueueSize
	}
	if c.Pipeline.StoreTimeout == 0 {
		c.Pipeline.StoreTimeout = DefaultStoreTimeout
	}
	if c.Pipeline.NotifyTimeout == 0 {
		c.Pipeline.NotifyTimeout = DefaultNotifyTimeout
	}

	// Monitor defaults
	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = DefaultMonitorInterval
	}
	if c.Monitor.Timeout == 0 {
		c.Monitor.Timeout = DefaultMonitorTimeout
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
