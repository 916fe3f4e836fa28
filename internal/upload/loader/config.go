package loader

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds everything needed to invoke the bulk loader against the
// destination database. The loader takes piecewise credentials because the
// ogr2ogr PostgreSQL connection string is assembled from them.
type Config struct {
	// Bin is the loader executable, normally "ogr2ogr" on PATH.
	Bin string

	Host     string
	Port     string
	DBName   string
	User     string
	Password string

	// AcceptedExitCodes are loader exit statuses treated as success. 139 is
	// included by default: some GDAL builds segfault during teardown after
	// the translation has already committed. Pin this per environment via
	// OGR_ACCEPTED_EXIT_CODES rather than trusting the default blindly.
	AcceptedExitCodes []int
}

// LoadFromEnv reads loader configuration from environment variables.
//
// Environment variables:
//   - OGR_BIN: loader executable (default "ogr2ogr")
//   - OGR_HOST, OGR_PORT, OGR_DB, OGR_USER, OGR_PASSWORD: destination
//     database (defaults localhost/5432/data/postgres/postgres)
//   - OGR_ACCEPTED_EXIT_CODES: comma-separated exit codes counted as
//     success (default "0,139")
func LoadFromEnv() Config {
	cfg := Config{
		Bin:               envOr("OGR_BIN", "ogr2ogr"),
		Host:              envOr("OGR_HOST", "localhost"),
		Port:              envOr("OGR_PORT", "5432"),
		DBName:            envOr("OGR_DB", "data"),
		User:              envOr("OGR_USER", "postgres"),
		Password:          envOr("OGR_PASSWORD", "postgres"),
		AcceptedExitCodes: []int{0, 139},
	}

	if raw := strings.TrimSpace(os.Getenv("OGR_ACCEPTED_EXIT_CODES")); raw != "" {
		var codes []int
		for _, part := range strings.Split(raw, ",") {
			code, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				continue
			}
			codes = append(codes, code)
		}
		if len(codes) > 0 {
			cfg.AcceptedExitCodes = codes
		}
	}

	return cfg
}

// ConnString builds the ogr2ogr PostgreSQL destination argument.
func (c Config) ConnString() string {
	return fmt.Sprintf("PG:dbname=%s user=%s password=%s host=%s port=%s",
		c.DBName, c.User, c.Password, c.Host, c.Port)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
