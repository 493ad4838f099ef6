package database

import (
	"net"
	"net/url"
	"strconv"

	"github.com/rickgao/cgm-ingest/internal/config"
)

// applicationName tags ingester sessions in pg_stat_activity.
const applicationName = "cgm-ingest"

// PostgresDSN builds a PostgreSQL connection URL from config.
// Credentials are escaped, so any password is safe to use.
func PostgresDSN(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", applicationName)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}
