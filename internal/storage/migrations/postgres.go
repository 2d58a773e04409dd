package migrations

import (
	"context"
	"fmt"

	"etf-flow-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies every embedded Postgres file in order.
// Files use IF NOT EXISTS and are safe to rerun on each sync.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := Files(PostgresFS, "postgres")
	if err != nil {
		return err
	}

	for _, f := range files {
		if _, err := pool.Exec(ctx, f.SQL); err != nil {
			return fmt.Errorf("apply migration %s: %w", f.Name, err)
		}
	}
	return nil
}
