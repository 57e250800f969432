// Package migrate brings the search store schema up to date from SQL
// files embedded in the binary. Files are named <version>_<label>.sql
// and applied in version order; each run is idempotent.
package migrate

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Run applies every migration newer than the recorded schema version.
// Each step runs in its own transaction and is recorded in
// schema_migrations, so a failed step leaves earlier steps applied.
func Run(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       VARCHAR NOT NULL,
		applied_at TIMESTAMP DEFAULT current_timestamp
	)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	current, err := currentVersion(db)
	if err != nil {
		return err
	}

	steps, err := pendingSteps(current)
	if err != nil {
		return err
	}

	for _, step := range steps {
		if err := apply(db, step); err != nil {
			return err
		}
	}
	return nil
}

type step struct {
	version int
	name    string
	stmts   string
}

func currentVersion(db *sql.DB) (int, error) {
	var v sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return int(v.Int64), nil
}

func pendingSteps(after int) ([]step, error) {
	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("listing embedded migrations: %w", err)
	}

	var steps []step
	for _, e := range entries {
		name := e.Name()
		prefix, _, ok := strings.Cut(name, "_")
		if !ok || !strings.HasSuffix(name, ".sql") {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %s: bad version prefix: %w", name, err)
		}
		if version <= after {
			continue
		}
		stmts, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", name, err)
		}
		steps = append(steps, step{version: version, name: name, stmts: string(stmts)})
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].version < steps[j].version })
	return steps, nil
}

func apply(db *sql.DB, s step) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migration %s: begin: %w", s.name, err)
	}
	if _, err := tx.Exec(s.stmts); err != nil {
		tx.Rollback()
		return fmt.Errorf("migration %s: %w", s.name, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", s.version, s.name); err != nil {
		tx.Rollback()
		return fmt.Errorf("migration %s: record: %w", s.name, err)
	}
	return tx.Commit()
}
