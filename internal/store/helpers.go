package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cellstore/internal/domain"
)

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one (id, data, created_at, updated_at) row into a
// Record, decoding the JSON payload.
func scanRecord(s rowScanner) (*domain.Record, error) {
	var (
		id        string
		data      string
		createdMs int64
		updatedMs int64
	)
	if err := s.Scan(&id, &data, &createdMs, &updatedMs); err != nil {
		return nil, err
	}

	fields := make(map[string]any)
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil, fmt.Errorf("failed to decode payload for record %q: %w", id, err)
	}

	return &domain.Record{
		ID:        id,
		Fields:    fields,
		CreatedAt: time.UnixMilli(createdMs),
		UpdatedAt: time.UnixMilli(updatedMs),
	}, nil
}

// collectRecords drains rows into a slice, always returning a non-nil
// slice so callers serialize an empty list rather than null.
func collectRecords(rows *sql.Rows) ([]*domain.Record, error) {
	defer rows.Close()

	records := make([]*domain.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
