// CLAUDE:SUMMARY SQLite persistence for suppression rules — per-origin collections, upsert by id, 100-entry trim.
// Package store is the persistence collaborator: rules survive page
// lifetimes here, keyed by origin. The in-memory engine state stays
// authoritative for the current page; the store is catch-up on the
// next load. LoadRules never treats "nothing stored" as an error.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/hazyhaar/domveil/dbopen"
	"github.com/hazyhaar/domveil/engine"
)

// originCap bounds how many rules one origin may hold; the oldest are
// trimmed first.
const originCap = 100

// Schema contains the complete DDL for the domveil tables.
const Schema = `
-- Suppression rules, one row per (origin, rule id)
CREATE TABLE IF NOT EXISTS rules (
    origin       TEXT NOT NULL,
    id           TEXT NOT NULL,
    payload      TEXT NOT NULL,
    last_success INTEGER NOT NULL DEFAULT 0,
    fail_count   INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL,
    PRIMARY KEY (origin, id)
);
CREATE INDEX IF NOT EXISTS idx_rules_origin ON rules(origin, created_at);
`

// Store is the domveil database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies the
// schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// New wraps an already-open database (testing, shared handles). The
// schema must have been applied.
func New(db *sql.DB) *Store { return &Store{DB: db} }

// Close closes the database.
func (s *Store) Close() error { return s.DB.Close() }

// LoadRules returns the stored rules for an origin in creation order.
// An origin with nothing stored yields an empty slice, not an error.
func (s *Store) LoadRules(ctx context.Context, origin string) ([]*engine.Rule, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT payload FROM rules WHERE origin = ? ORDER BY created_at ASC, id ASC`,
		origin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*engine.Rule
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		r := &engine.Rule{}
		if err := json.Unmarshal([]byte(payload), r); err != nil {
			// A corrupt row must not poison the whole origin.
			continue
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// SaveRule upserts a rule by id under the origin, then trims the
// origin back to its cap, oldest first. Fire-and-forget from the
// engine's perspective: failures are logged by the caller, never
// surfaced synchronously into apply paths.
func (s *Store) SaveRule(ctx context.Context, origin string, r *engine.Rule) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	createdAt := r.CreatedAt
	if createdAt == 0 {
		createdAt = now
	}

	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rules (origin, id, payload, created_at, updated_at)
			VALUES (?,?,?,?,?)
			ON CONFLICT (origin, id) DO UPDATE SET
				payload = excluded.payload,
				updated_at = excluded.updated_at`,
			origin, r.ID, string(payload), createdAt, now,
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			DELETE FROM rules WHERE origin = ? AND id IN (
				SELECT id FROM rules WHERE origin = ?
				ORDER BY created_at DESC, id DESC
				LIMIT -1 OFFSET ?
			)`, origin, origin, originCap)
		return err
	})
}

// RecordRuleSuccess notes that a rule applied cleanly, resetting its
// failure streak.
func (s *Store) RecordRuleSuccess(ctx context.Context, origin, id string) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx, `
		UPDATE rules SET last_success = ?, fail_count = 0, updated_at = ?
		WHERE origin = ? AND id = ?`, now, now, origin, id)
	return err
}

// RecordRuleFailure increments a rule's failure streak.
func (s *Store) RecordRuleFailure(ctx context.Context, origin, id string) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx, `
		UPDATE rules SET fail_count = fail_count + 1, updated_at = ?
		WHERE origin = ? AND id = ?`, now, origin, id)
	return err
}

// RuleHealth reports a rule's last successful apply (epoch ms, 0 if
// never) and its current failure streak.
func (s *Store) RuleHealth(ctx context.Context, origin, id string) (lastSuccess int64, failCount int, err error) {
	err = s.DB.QueryRowContext(ctx, `
		SELECT last_success, fail_count FROM rules
		WHERE origin = ? AND id = ?`, origin, id).Scan(&lastSuccess, &failCount)
	return lastSuccess, failCount, err
}

// DeleteRule removes one rule. Reports whether a row was deleted.
func (s *Store) DeleteRule(ctx context.Context, origin, id string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM rules WHERE origin = ? AND id = ?`, origin, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CountRules reports how many rules an origin holds.
func (s *Store) CountRules(ctx context.Context, origin string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM rules WHERE origin = ?`, origin).Scan(&n)
	return n, err
}

// Origins lists every origin with at least one stored rule.
func (s *Store) Origins(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT DISTINCT origin FROM rules ORDER BY origin`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
