package testsupport

import (
	"os"
	"strconv"
	"testing"

	"seasoncast/internal/adapters/config"
)

// Each backend is gated by its own TEST_<BACKEND>_HOST variable so a developer
// with only Postgres running still gets the Postgres suites.
const (
	PostgresHostEnv   = "TEST_POSTGRES_HOST"
	ClickHouseHostEnv = "TEST_CLICKHOUSE_HOST"
	RedisHostEnv      = "TEST_REDIS_HOST"
)

// PostgresConfig returns connection settings for a disposable Postgres or skips the test
func PostgresConfig(t *testing.T) config.PostgresConfig {
	t.Helper()
	host := requireHost(t, PostgresHostEnv)

	return config.PostgresConfig{
		Enabled:  true,
		Host:     host,
		Port:     envInt("POSTGRES_PORT", 5432),
		User:     envString("POSTGRES_USER", "postgres"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Database: envString("POSTGRES_DB", "seasoncast_test"),
		SSLMode:  envString("POSTGRES_SSL_MODE", "disable"),
		MaxConns: 4,
	}
}

// ClickHouseConfig returns connection settings for a disposable ClickHouse or skips the test
func ClickHouseConfig(t *testing.T) config.ClickHouseConfig {
	t.Helper()
	host := requireHost(t, ClickHouseHostEnv)

	return config.ClickHouseConfig{
		Enabled:  true,
		Host:     host,
		Port:     envInt("CLICKHOUSE_PORT", 9000),
		User:     envString("CLICKHOUSE_USER", "default"),
		Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		Database: envString("CLICKHOUSE_DB", "seasoncast_test"),
	}
}

// RedisConfig returns connection settings for a disposable Redis or skips the test.
// DB 15 keeps flushes away from a developer's default database.
func RedisConfig(t *testing.T) config.RedisConfig {
	t.Helper()
	host := requireHost(t, RedisHostEnv)

	return config.RedisConfig{
		Enabled:  true,
		Host:     host,
		Port:     envInt("REDIS_PORT", 6379),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       envInt("REDIS_DB", 15),
	}
}

func requireHost(t *testing.T, key string) string {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	host := os.Getenv(key)
	if host == "" {
		t.Skipf("%s not set, skipping integration test", key)
	}
	return host
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
