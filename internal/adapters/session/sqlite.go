package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/0xcro3dile/contextrag-go/internal/domain/entities"
	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
)

// SQLiteStore keeps all sessions in one SQLite database.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

var _ ports.SessionStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) sessions.db in dir.
func NewSQLiteStore(dir string) (*SQLiteStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, "sessions.db"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT NOT NULL,
		position INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id, position)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns the messages of a session in order.
func (s *SQLiteStore) Load(ctx context.Context, sessionID string) ([]entities.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM sessions WHERE id = ? ORDER BY position`, SanitizeID(sessionID))
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	defer rows.Close()

	var msgs []entities.Message
	for rows.Next() {
		var m entities.Message
		var role string
		if err := rows.Scan(&role, &m.Content); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		m.Role = entities.Role(role)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Save replaces a session's messages in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, sessionID string, messages []entities.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := SanitizeID(sessionID)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO sessions (id, position, role, content) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i, m := range messages {
		if _, err := stmt.ExecContext(ctx, id, i, string(m.Role), m.Content); err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
	}
	return tx.Commit()
}

// Count returns how many sessions are stored.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT id) FROM sessions`).Scan(&n)
	return n, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
