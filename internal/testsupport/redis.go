package testsupport

import (
	"context"
	"testing"

	"seasoncast/internal/adapters/redis"
)

// OpenRedis connects to the test Redis with an empty database, emptied again after the test
func OpenRedis(t *testing.T) *redis.Client {
	t.Helper()

	client, err := redis.NewClient(RedisConfig(t))
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}

	flush := func() error { return client.Client().FlushDB(context.Background()).Err() }
	if err := flush(); err != nil {
		_ = client.Close()
		t.Fatalf("flush redis: %v", err)
	}
	t.Cleanup(func() {
		_ = flush()
		_ = client.Close()
	})
	return client
}
