package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig carries the fixed-window budgets for each endpoint
// class plus limiter storage selection. Storage is "memory" (per
// process) or "redis" (shared counters); the choice does not change the
// observable semantics beyond cross-process sharing.
type RateLimitConfig struct {
	Enabled bool
	Storage string // "memory" | "redis"
	Prefix  string

	Login         Window
	Register      Window
	PasswordReset Window
	Review        Window
	Complaint     Window
	Upload        Window
	AdminOps      Window
	Default       Window
}

// Window is one fixed-window budget.
type Window struct {
	Limit int
	Per   time.Duration
}

// LoadRateLimitConfig reads environment overrides for each endpoint
// class. The defaults implement the documented budgets: login 5/min,
// register 3/min, password-reset 3/h, review 10/h, complaint 20/h,
// upload 50/h, admin ops 500/h, public default 1000/h.
func LoadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled: envBool("RATE_LIMIT_ENABLED", true),
		Storage: envStr("RATE_LIMIT_STORAGE", "memory"),
		Prefix:  envStr("RATE_LIMIT_PREFIX", "rl"),

		Login:         window("RATE_LIMIT_LOGIN", 5, time.Minute),
		Register:      window("RATE_LIMIT_REGISTER", 3, time.Minute),
		PasswordReset: window("RATE_LIMIT_PASSWORD_RESET", 3, time.Hour),
		Review:        window("RATE_LIMIT_REVIEW", 10, time.Hour),
		Complaint:     window("RATE_LIMIT_COMPLAINT", 20, time.Hour),
		Upload:        window("RATE_LIMIT_UPLOAD", 50, time.Hour),
		AdminOps:      window("RATE_LIMIT_ADMIN", 500, time.Hour),
		Default:       window("RATE_LIMIT_DEFAULT", 1000, time.Hour),
	}
}

// window reads "<key>" as a request count and "<key>_PER" as a duration,
// falling back to the given defaults.
func window(key string, limit int, per time.Duration) Window {
	return Window{
		Limit: envInt(key, limit),
		Per:   envDur(key+"_PER", per),
	}
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
