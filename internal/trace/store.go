package trace

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists decision ledgers to a local SQLite database. Each run owns
// one row in processing_runs and one decision row per ledger record, keyed
// (run_reference, sequence).
type Store struct {
	db *sql.DB
}

// OpenStore opens (and if needed initializes) the ledger database.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS processing_runs (
		run_reference TEXT PRIMARY KEY,
		profile       TEXT NOT NULL,
		decision_count INTEGER NOT NULL,
		committed_at  DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS decisions (
		run_reference  TEXT NOT NULL REFERENCES processing_runs(run_reference),
		sequence       INTEGER NOT NULL,
		scope_level    TEXT NOT NULL,
		scope_ref      TEXT NOT NULL,
		action         TEXT NOT NULL,
		target_type    TEXT NOT NULL,
		target_name    TEXT NOT NULL,
		reason         TEXT NOT NULL,
		rule_source    TEXT NOT NULL,
		geometry       TEXT DEFAULT '',
		truncated_hash TEXT DEFAULT '',
		decided_at     DATETIME NOT NULL,
		PRIMARY KEY (run_reference, sequence)
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_action ON decisions(action);
	CREATE INDEX IF NOT EXISTS idx_decisions_reason ON decisions(reason);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Commit locks the ledger and persists every record atomically under the
// given run reference. All-or-nothing: a failed or canceled commit leaves no
// partial rows. Designed to be called exactly once per run.
func (s *Store) Commit(ctx context.Context, runRef, profile string, l *Ledger) (int, error) {
	l.Lock()
	records := l.Records()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO processing_runs (run_reference, profile, decision_count, committed_at)
		 VALUES (?, ?, ?, ?)`,
		runRef, profile, len(records), time.Now().UTC(),
	); err != nil {
		return 0, fmt.Errorf("could not insert run row: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO decisions (run_reference, sequence, scope_level, scope_ref,
		 action, target_type, target_name, reason, rule_source, geometry,
		 truncated_hash, decided_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, d := range records {
		geom := ""
		if d.Geometry != nil {
			b, _ := json.Marshal(d.Geometry)
			geom = string(b)
		}
		if _, err := stmt.ExecContext(ctx,
			runRef, d.Sequence, string(d.ScopeLevel), d.ScopeRef,
			string(d.Action), string(d.TargetType), d.TargetName,
			string(d.Reason), d.RuleSource, geom, d.TruncatedHash, d.At,
		); err != nil {
			return 0, fmt.Errorf("could not insert decision %d: %w", d.Sequence, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// DecisionsForRun loads all decisions for a run in sequence order.
func (s *Store) DecisionsForRun(ctx context.Context, runRef string) ([]Decision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sequence, scope_level, scope_ref, action, target_type,
		 target_name, reason, rule_source, geometry, truncated_hash, decided_at
		 FROM decisions WHERE run_reference = ? ORDER BY sequence`,
		runRef,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		var scopeLevel, action, targetType, reason, geom string
		if err := rows.Scan(&d.Sequence, &scopeLevel, &d.ScopeRef, &action,
			&targetType, &d.TargetName, &reason, &d.RuleSource, &geom,
			&d.TruncatedHash, &d.At); err != nil {
			return nil, err
		}
		d.ScopeLevel = ScopeLevel(scopeLevel)
		d.Action = ActionCode(action)
		d.TargetType = TargetType(targetType)
		d.Reason = ReasonCode(reason)
		if geom != "" {
			var g Geometry
			if err := json.Unmarshal([]byte(geom), &g); err == nil {
				d.Geometry = &g
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// RunCount returns the number of committed runs.
func (s *Store) RunCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM processing_runs`).Scan(&n)
	return n, err
}
