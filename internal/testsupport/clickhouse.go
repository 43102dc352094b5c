package testsupport

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"seasoncast/internal/adapters/clickhouse"
)

// OpenClickHouse connects to the test ClickHouse and closes it after the test
func OpenClickHouse(t *testing.T) *clickhouse.Client {
	t.Helper()

	client, err := clickhouse.NewClient(ClickHouseConfig(t))
	if err != nil {
		t.Fatalf("connect clickhouse: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// ForgetFeatureRows removes the given predictions' rows from feature_vectors when the test ends.
// MergeTree has no transactions, so tests clean up by id.
func ForgetFeatureRows(t *testing.T, client *clickhouse.Client, ids ...uuid.UUID) {
	t.Helper()
	t.Cleanup(func() {
		for _, id := range ids {
			_ = client.Exec(context.Background(), "ALTER TABLE feature_vectors DELETE WHERE prediction_id = ?", id)
		}
	})
}
