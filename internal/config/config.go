package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration values. Each field corresponds
// to an environment variable. Secrets are read once here at startup and
// never logged anywhere in the application.
type Config struct {
	Env        string // application environment (e.g. "dev", "prod")
	Port       string // HTTP port to listen on
	DBDSN      string // full database DSN; when set the part vars below are ignored
	DBUser     string // database username
	DBPass     string // database password (optional)
	DBHost     string // database host address
	DBPort     string // database port number
	DBName     string // database name
	JWTSecret  string // secret used to sign JWTs
	AccessTTL  time.Duration // access token time-to-live
	RefreshTTL time.Duration // refresh token time-to-live
	ResetTTL   time.Duration // password-reset token time-to-live
	BcryptCost int           // bcrypt cost for password hashing

	CORSOrigins []string // allowed CORS origins

	AuditQueueCap  int    // bounded capacity of the audit sink queue
	NotifyProvider string // outbound notification adapter name

	DBMaxOpenConns int           // connection pool upper bound
	DBMaxIdleConns int           // idle connections kept around
	DBConnMaxLife  time.Duration // recycle connections after this long
}

// Load reads configuration values from environment variables and
// returns a Config. Required variables are enforced by must() and
// missing values cause the program to exit with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBDSN:          os.Getenv("DB_DSN"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTL:      time.Duration(intOr("ACCESS_TOKEN_TTL_MIN", 30)) * time.Minute,
		RefreshTTL:     time.Duration(intOr("REFRESH_TOKEN_TTL_DAYS", 7)) * 24 * time.Hour,
		ResetTTL:       time.Duration(intOr("RESET_TOKEN_TTL_MIN", 60)) * time.Minute,
		BcryptCost:     intOr("BCRYPT_COST", 12),
		CORSOrigins:    splitList(os.Getenv("CORS_ORIGINS")),
		AuditQueueCap:  intOr("AUDIT_QUEUE_CAP", 1024),
		NotifyProvider: os.Getenv("NOTIFY_PROVIDER"),
		DBMaxOpenConns: intOr("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: intOr("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLife:  time.Duration(intOr("DB_CONN_MAX_LIFE_MIN", 30)) * time.Minute,
	}
	// The discrete parts are only required when no full DSN is given.
	if cfg.DBDSN == "" {
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	}
	return cfg
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and
// exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// intOr retrieves an integer environment variable with a default. An
// unparsable value is fatal rather than silently defaulted.
func intOr(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// splitList parses a comma-separated env value into trimmed entries.
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
