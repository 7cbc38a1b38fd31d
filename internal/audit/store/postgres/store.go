// Package postgres persists audit entries in the relational store. The
// table is append-only; there are no update or delete paths.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"verigate/internal/audit"
)

// Store is the PostgreSQL audit store.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	oldJSON, err := marshalNullable(entry.OldValues)
	if err != nil {
		return fmt.Errorf("marshal old values: %w", err)
	}
	newJSON, err := marshalNullable(entry.NewValues)
	if err != nil {
		return fmt.Errorf("marshal new values: %w", err)
	}
	// A nil diff stays NULL in the column so "no observable change" is
	// representable as absence, never as an empty object.
	var diffJSON any
	if entry.Diff != nil {
		b, err := json.Marshal(entry.Diff)
		if err != nil {
			return fmt.Errorf("marshal diff: %w", err)
		}
		diffJSON = b
	}

	const query = `
		INSERT INTO audit_entries
			(id, table_name, record_id, operation, old_values, new_values, diff,
			 actor_id, actor_role, trace_id, request_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.db.ExecContext(ctx, query,
		entry.ID, entry.Table, entry.RecordID, string(entry.Operation),
		oldJSON, newJSON, diffJSON,
		entry.ActorID, entry.ActorRole, entry.TraceID, entry.RequestID,
		entry.Reason, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *Store) ListByRecord(ctx context.Context, table, recordID string) ([]audit.Entry, error) {
	const query = `
		SELECT id, table_name, record_id, operation, old_values, new_values, diff,
		       actor_id, actor_role, trace_id, request_id, reason, created_at
		FROM audit_entries
		WHERE table_name = $1 AND record_id = $2
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, table, recordID)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			entry                      audit.Entry
			op                         string
			oldJSON, newJSON, diffJSON []byte
		)
		if err := rows.Scan(&entry.ID, &entry.Table, &entry.RecordID, &op,
			&oldJSON, &newJSON, &diffJSON,
			&entry.ActorID, &entry.ActorRole, &entry.TraceID, &entry.RequestID,
			&entry.Reason, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Operation = audit.Operation(op)
		if err := unmarshalNullable(oldJSON, &entry.OldValues); err != nil {
			return nil, err
		}
		if err := unmarshalNullable(newJSON, &entry.NewValues); err != nil {
			return nil, err
		}
		if len(diffJSON) > 0 {
			if err := json.Unmarshal(diffJSON, &entry.Diff); err != nil {
				return nil, fmt.Errorf("unmarshal diff: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func marshalNullable(values map[string]any) (any, error) {
	if values == nil {
		return nil, nil
	}
	b, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func unmarshalNullable(raw []byte, dst *map[string]any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal audit values: %w", err)
	}
	return nil
}

var _ audit.Store = (*Store)(nil)
