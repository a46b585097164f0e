// ABOUTME: CRM record storage for the fake server.
// ABOUTME: Records are JSON attribute documents keyed by entity logical name and id.

package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a record with the same entity and id exists.
	ErrDuplicate = errors.New("record already exists")
)

// Record is one stored CRM row. Data holds the JSON-encoded attributes.
type Record struct {
	Entity string
	ID     string
	Data   string
}

// CreateRecord inserts a record. A duplicate id for the same entity returns
// ErrDuplicate.
func (s *Store) CreateRecord(r *Record) error {
	_, err := s.db.Exec(
		"INSERT INTO crm_records (entity, id, data) VALUES (?, ?, ?)",
		r.Entity, r.ID, r.Data,
	)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("insert %s %s: %w", r.Entity, r.ID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert %s %s: %w", r.Entity, r.ID, err)
	}
	return nil
}

// GetRecord fetches a record by entity and id.
func (s *Store) GetRecord(entity, id string) (*Record, error) {
	var r Record
	err := s.db.QueryRow(
		"SELECT entity, id, data FROM crm_records WHERE entity = ? AND id = ?",
		entity, id,
	).Scan(&r.Entity, &r.ID, &r.Data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRecords returns records of one entity type in insertion order.
func (s *Store) ListRecords(entity string, limit, offset int) ([]Record, error) {
	rows, err := s.db.Query(
		"SELECT entity, id, data FROM crm_records WHERE entity = ? ORDER BY seq ASC LIMIT ? OFFSET ?",
		entity, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Entity, &r.ID, &r.Data); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountRecords returns the number of records per entity type.
func (s *Store) CountRecords() (map[string]int, error) {
	rows, err := s.db.Query("SELECT entity, COUNT(*) FROM crm_records GROUP BY entity")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var entity string
		var n int
		if err := rows.Scan(&entity, &n); err != nil {
			return nil, err
		}
		counts[entity] = n
	}
	return counts, rows.Err()
}
