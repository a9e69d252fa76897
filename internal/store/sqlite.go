// Package store persists evaluated alert batches and their delivery outcomes
// in a local SQLite database, giving operators an audit trail of what the
// engine decided and what the integration endpoint answered.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"snowalert/internal/types"
)

type Store struct {
	db *sql.DB
}

// New wraps an opened database handle. Callers are expected to have opened it
// with the "sqlite" driver and to run Migrate before first use.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (creating if needed) the SQLite database at path and applies
// pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// modernc sqlite serializes at the connection level; a single connection
	// avoids SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	s := New(db)
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveBatch records an evaluated batch with its alerts and the snapshot it
// was evaluated against. Saving the same batch ID twice is a no-op.
func (s *Store) SaveBatch(batch *types.AlertBatch) error {
	snapshotJSON, err := json.Marshal(batch.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	var marwisJSON []byte
	if batch.Marwis != nil {
		if marwisJSON, err = json.Marshal(batch.Marwis); err != nil {
			return fmt.Errorf("encode marwis reading: %w", err)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO alert_batches (batch_id, evaluated_at, alert_count, snapshot_json, marwis_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(batch_id) DO NOTHING
	`, batch.ID, batch.EvaluatedAt, len(batch.Alerts), string(snapshotJSON), nullableText(marwisJSON))
	if err != nil {
		return fmt.Errorf("insert batch %s: %w", batch.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Batch already recorded; its alerts are too.
		return tx.Commit()
	}

	for _, a := range batch.Alerts {
		if _, err := tx.Exec(`
			INSERT INTO alerts (batch_id, rule_code, rule_name, rule_class, priority, generated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, batch.ID, a.Code, a.Rule.Name, a.Rule.Class, a.Priority, a.GeneratedAt); err != nil {
			return fmt.Errorf("insert alert %s for batch %s: %w", a.Code, batch.ID, err)
		}
	}

	return tx.Commit()
}

// SaveDeliveryResult records the outcome of delivering a batch.
func (s *Store) SaveDeliveryResult(batchID string, result *types.DeliveryResult) error {
	_, err := s.db.Exec(`
		INSERT INTO delivery_results (batch_id, success, status_code, message, delivered_at)
		VALUES (?, ?, ?, ?, ?)
	`, batchID, result.Success, result.StatusCode, result.Message, result.Timestamp)
	if err != nil {
		return fmt.Errorf("insert delivery result for batch %s: %w", batchID, err)
	}
	return nil
}

// AlertRecord is one stored alert joined with its delivery outcome, most
// recent delivery first.
type AlertRecord struct {
	BatchID     string
	RuleCode    string
	RuleName    string
	RuleClass   string
	Priority    int
	GeneratedAt time.Time
	Delivered   sql.NullBool
}

// RecentAlerts returns the most recently generated alerts, newest first.
func (s *Store) RecentAlerts(limit int) ([]AlertRecord, error) {
	rows, err := s.db.Query(`
		SELECT a.batch_id, a.rule_code, a.rule_name, a.rule_class, a.priority, a.generated_at,
		       (SELECT d.success FROM delivery_results d
		        WHERE d.batch_id = a.batch_id
		        ORDER BY d.delivered_at DESC LIMIT 1)
		FROM alerts a
		ORDER BY a.generated_at DESC, a.priority ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []AlertRecord
	for rows.Next() {
		var r AlertRecord
		if err := rows.Scan(&r.BatchID, &r.RuleCode, &r.RuleName, &r.RuleClass, &r.Priority, &r.GeneratedAt, &r.Delivered); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// BatchCount returns the number of stored batches.
func (s *Store) BatchCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM alert_batches`).Scan(&count)
	return count, err
}

func nullableText(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
