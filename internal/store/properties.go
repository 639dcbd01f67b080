package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrPropertyNotFound is returned by GetProperty for an unknown key.
var ErrPropertyNotFound = errors.New("property not found")

// Property is one key/value pair. Revision counts the SetProperty calls
// made for the key.
type Property struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Revision int64  `json:"revision"`
}

// GetProperty returns the value stored under key.
func (s *Store) GetProperty(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM properties WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("get property %q: %w", key, ErrPropertyNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get property %q: %w", key, err)
	}
	return value, nil
}

// SetProperty stores value under key, replacing any previous value.
func (s *Store) SetProperty(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("set property: empty key")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO properties (key, value, revision) VALUES (?, ?, 1)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, revision = properties.revision + 1
	`, key, value)
	if err != nil {
		return fmt.Errorf("set property %q: %w", key, err)
	}
	return nil
}

// DeleteProperty removes key. Deleting a missing key is not an error.
func (s *Store) DeleteProperty(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM properties WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete property %q: %w", key, err)
	}
	return nil
}

// ListProperties returns every property ordered by key.
func (s *Store) ListProperties(ctx context.Context) ([]Property, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, revision FROM properties
		ORDER BY key COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query properties: %w", err)
	}
	defer rows.Close()

	props := []Property{}
	for rows.Next() {
		var p Property
		if err := rows.Scan(&p.Key, &p.Value, &p.Revision); err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		props = append(props, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate properties: %w", err)
	}
	return props, nil
}
