package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rickgao/cgm-ingest/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *IngesterConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if _, ok := model.ParseSourceSensor(c.Source.Sensor); !ok {
		return fmt.Errorf("source.sensor %q is not a known sensor", c.Source.Sensor)
	}

	if c.Decode.ValueKey == "" || c.Decode.TrendKey == "" || c.Decode.TimestampKey == "" {
		return errors.New("decode.value_key, decode.trend_key and decode.timestamp_key are required")
	}

	switch c.Database.Driver {
	case "postgres":
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return errors.New("database.sqlite.path is required")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be postgres, sqlite or memory, got %q", c.Database.Driver)
	}

	if !strings.HasPrefix(c.Intake.HTTPPath, "/") {
		return fmt.Errorf("intake.http_path must start with /, got %q", c.Intake.HTTPPath)
	}
	if c.Intake.MaxBodyBytes < 1 {
		return errors.New("intake.max_body_bytes must be >= 1")
	}

	switch c.Relay.Kind {
	case "hub", "none":
	case "redis":
		if c.Relay.RedisAddr == "" {
			return errors.New("relay.redis_addr is required for redis relay")
		}
	default:
		return fmt.Errorf("relay.kind must be hub, redis or none, got %q", c.Relay.Kind)
	}

	switch c.Upload.Kind {
	case "none":
	case "nightscout":
		if c.Upload.URL == "" {
			return errors.New("upload.url is required for nightscout upload")
		}
		if c.Upload.MaxRetries < 0 {
			return errors.New("upload.max_retries must be >= 0")
		}
	default:
		return fmt.Errorf("upload.kind must be nightscout or none, got %q", c.Upload.Kind)
	}

	if c.Pipeline.Workers < 1 {
		return errors.New("pipeline.workers must be >= 1")
	}
	if c.Pipeline.QueueSize < 1 {
		return errors.New("pipeline.queue_size must be >= 1")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
