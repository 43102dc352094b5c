package testsupport

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"

	"seasoncast/internal/adapters/postgres"
)

// MigrateFunc applies a package's schema before the test transaction opens
type MigrateFunc func(ctx context.Context, db *sqlx.DB) error

// PostgresTx is a migrated database plus one transaction that never commits.
// Repositories under test take Tx() so nothing they write outlives the test.
type PostgresTx struct {
	client *postgres.Client
	tx     *sqlx.Tx
	done   bool
}

// OpenPostgres connects to the test database, runs migrate and begins the test transaction
func OpenPostgres(t *testing.T, migrate MigrateFunc) *PostgresTx {
	t.Helper()

	client, err := postgres.NewClient(PostgresConfig(t))
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	if migrate != nil {
		if err := migrate(ctx, client.DB()); err != nil {
			t.Fatalf("migrate postgres: %v", err)
		}
	}

	tx, err := client.DB().BeginTxx(ctx, nil)
	if err != nil {
		t.Fatalf("begin test transaction: %v", err)
	}

	p := &PostgresTx{client: client, tx: tx}
	t.Cleanup(p.Close)
	return p
}

// Tx returns the test transaction
func (p *PostgresTx) Tx() *sqlx.Tx { return p.tx }

// DB returns the pool behind the transaction
func (p *PostgresTx) DB() *sqlx.DB { return p.client.DB() }

// Close discards everything written through Tx. Safe to call twice.
func (p *PostgresTx) Close() {
	if p.done {
		return
	}
	p.done = true
	_ = p.tx.Rollback()
}
