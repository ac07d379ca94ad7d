// Package store keeps a history of served predictions in sqlite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Brownie44l1/digit-api/internal/model"
)

// Record is one served prediction.
type Record struct {
	ID         int64     `json:"id"`
	Digit      int       `json:"digit"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

// History stores prediction records.
type History struct {
	db *sql.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*History, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// sqlite serializes writers; one connection avoids "database is locked".
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS predictions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			digit INTEGER NOT NULL,
			confidence REAL NOT NULL,
			source TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create predictions table: %w", err)
	}
	return &History{db: db}, nil
}

// Save appends a prediction served through source ("json", "upload", "ws").
func (h *History) Save(ctx context.Context, source string, p model.Prediction) (Record, error) {
	rec := Record{Digit: p.Digit, Confidence: p.Confidence, Source: source, CreatedAt: time.Now().UTC()}
	res, err := h.db.ExecContext(ctx,
		`INSERT INTO predictions (digit, confidence, source, created_at) VALUES (?, ?, ?, ?)`,
		rec.Digit, rec.Confidence, rec.Source, rec.CreatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("failed to save prediction: %w", err)
	}
	if rec.ID, err = res.LastInsertId(); err != nil {
		return Record{}, fmt.Errorf("failed to read prediction id: %w", err)
	}
	return rec, nil
}

// Recent returns up to limit records, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, digit, confidence, source, created_at FROM predictions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Digit, &r.Confidence, &r.Source, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Counts returns how many times each digit has been predicted.
func (h *History) Counts(ctx context.Context) (map[int]int, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT digit, COUNT(*) FROM predictions GROUP BY digit`)
	if err != nil {
		return nil, fmt.Errorf("failed to count predictions: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var digit, n int
		if err := rows.Scan(&digit, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[digit] = n
	}
	return counts, rows.Err()
}

func (h *History) Close() error {
	return h.db.Close()
}
