// Package docstore keeps saved scene documents in sqlite.
package docstore

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound = errors.New("scene not found")
	ErrExists   = errors.New("scene already exists")
)

// DB stores the latest saved bytes of every scene, base64 encoded.
type DB struct {
	database *sql.DB
}

func Open(path string) (*DB, error) {
	slog.Info("Opening database", "path", path)
	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	d := &DB{database: database}
	if err := d.init(); err != nil {
		_ = database.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) Close() error {
	return d.database.Close()
}

func (d *DB) init() error {
	if _, err := d.database.Exec(
		`CREATE TABLE IF NOT EXISTS scenes (
		id text not null primary key,
		content text
		)`,
	); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	slog.Info("Ensured initial tables exist")
	return nil
}

func (d *DB) Get(ctx context.Context, id string) ([]byte, error) {
	var content string
	if err := d.database.QueryRowContext(ctx, `SELECT content FROM scenes WHERE id = ?`, id).Scan(&content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("failed to decode: %w", err)
	}
	return raw, nil
}

// Create inserts a new scene. It returns ErrExists when the id is taken.
func (d *DB) Create(ctx context.Context, id string, raw []byte) error {
	res, err := d.database.ExecContext(
		ctx, `INSERT OR IGNORE INTO scenes (id, content) VALUES (?, ?)`,
		id, base64.StdEncoding.EncodeToString(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrExists
	}
	return nil
}

// Backup overwrites the saved content of an existing scene and reports
// whether anything changed.
func (d *DB) Backup(ctx context.Context, id string, raw []byte) (bool, error) {
	newContent := base64.StdEncoding.EncodeToString(raw)
	res, err := d.database.ExecContext(
		ctx, `UPDATE scenes SET content = ? WHERE id = ? AND content != ?`,
		newContent, id, newContent,
	)
	if err != nil {
		return false, fmt.Errorf("failed to backup %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// All returns the saved bytes of every scene keyed by id.
func (d *DB) All(ctx context.Context) (map[string][]byte, error) {
	rows, err := d.database.QueryContext(ctx, `SELECT id, content FROM scenes`)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close", "err", err)
		}
	}(rows)
	out := make(map[string][]byte)
	for rows.Next() {
		var id, content string
		if err := rows.Scan(&id, &content); err != nil {
			return nil, fmt.Errorf("failed to scan: %w", err)
		}
		raw, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", id, err)
		}
		out[id] = raw
	}
	return out, rows.Err()
}
