// Package config loads the environment surface from spec §6.3 into a typed
// Config, failing fast on missing required secrets the way the reference
// server's startup sequence does.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
)

// Config is the fully-resolved process configuration, built once at
// startup and passed by value from there on — there is no global mutable
// configuration state in the core.
type Config struct {
	ServerBind   string
	DatabaseURL  string
	JWTSecret    string
	PasswordPepper string
	MaxTables    int

	DBMaxConnections int
	DBMinConnections int
	DBConnectTimeoutSecs int

	RateLimitLoginAttempts int
	RateLimitWindowSecs    int

	LogLevel string

	KafkaBrokers    []string
	KafkaEventsTopic string

	ClickHouseDSN string
	MetricsBind   string
}

// Load reads the environment and validates required secrets. It calls
// os.Exit(1) after logging a CRITICAL message if JWT_SECRET or
// PASSWORD_PEPPER is absent, matching the panic-is-for-startup-only policy
// in spec §7: this is the one place the process is allowed to refuse to
// start.
func Load() Config {
	cfg, err := load(os.Getenv)
	if err != nil {
		log.Printf("CRITICAL config: %v", err)
		os.Exit(1)
	}
	return cfg
}

func load(getenv func(string) string) (Config, error) {
	jwtSecret := getenv("JWT_SECRET")
	if jwtSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required and has no default")
	}
	pepper := getenv("PASSWORD_PEPPER")
	if pepper == "" {
		return Config{}, fmt.Errorf("PASSWORD_PEPPER is required and has no default")
	}

	cfg := Config{
		ServerBind:     orDefault(getenv("SERVER_BIND"), ":8080"),
		DatabaseURL:    getenv("DATABASE_URL"),
		JWTSecret:      jwtSecret,
		PasswordPepper: pepper,
		LogLevel:       orDefault(getenv("LOG_LEVEL"), "info"),
		KafkaEventsTopic: orDefault(getenv("KAFKA_EVENTS_TOPIC"), "poker.game-events"),
		ClickHouseDSN:  getenv("CLICKHOUSE_DSN"),
		MetricsBind:    orDefault(getenv("METRICS_BIND"), ":9090"),
	}

	var err error
	if cfg.MaxTables, err = intOrDefault(getenv("MAX_TABLES"), 1000); err != nil {
		return Config{}, err
	}
	if cfg.DBMaxConnections, err = intOrDefault(getenv("DB_MAX_CONNECTIONS"), 20); err != nil {
		return Config{}, err
	}
	if cfg.DBMinConnections, err = intOrDefault(getenv("DB_MIN_CONNECTIONS"), 2); err != nil {
		return Config{}, err
	}
	if cfg.DBConnectTimeoutSecs, err = intOrDefault(getenv("DB_CONNECT_TIMEOUT_SECS"), 5); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitLoginAttempts, err = intOrDefault(getenv("RATE_LIMIT_LOGIN_ATTEMPTS"), 5); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitWindowSecs, err = intOrDefault(getenv("RATE_LIMIT_WINDOW_SECS"), 60); err != nil {
		return Config{}, err
	}

	if brokers := getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitCSV(brokers)
	}

	return cfg, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intOrDefault(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value %q: %w", v, err)
	}
	return n, nil
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
