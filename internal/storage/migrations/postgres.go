package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"

	"timeshift-nft/internal/storage/postgres"
)

// Files returns the embedded PostgreSQL migration names in apply order.
func Files() ([]string, error) {
	entries, err := fs.ReadDir(PostgresFS, "postgres")
	if err != nil {
		return nil, fmt.Errorf("read embedded postgres migrations: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// RunPostgresMigrations applies the embedded artwork and mint schema in lexical order.
// Every statement uses IF NOT EXISTS, so running it against a migrated database is a no-op.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}

	files, err := Files()
	if err != nil {
		return err
	}

	for _, file := range files {
		data, err := fs.ReadFile(PostgresFS, "postgres/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
		logger.Printf("applied migration %s", file)
	}

	return nil
}
