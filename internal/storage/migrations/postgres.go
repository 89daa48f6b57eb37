package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"crsp-equity-lab/internal/storage/postgres"
)

// RunPostgresMigrations brings the pull-run ledger schema up to date.
// Every migration is idempotent (CREATE ... IF NOT EXISTS), so running
// at each startup is safe.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := sqlFiles("postgres")
	if err != nil {
		return err
	}

	for _, file := range files {
		data, err := fs.ReadFile(schemaFS, "postgres/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}

	return nil
}
