package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/shatool-dad/group-bridge/internal/biz/domain"
	"github.com/shatool-dad/group-bridge/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// sqlStore implements the message store on sqlite so retained history
// survives restarts
type sqlStore struct {
	db    *sql.DB
	limit int
}

// NewSQLStore opens (or creates) the message database at dbPath
func NewSQLStore(dbPath string, limit int, log zerolog.Logger) (repo.MessageStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS group_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			group_id TEXT NOT NULL,
			msg_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create group_messages table: %w", err)
	}

	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_group_messages_group ON group_messages(group_id, id)`)

	log.Info().Str("component", "store").Str("path", dbPath).Msg("Message database initialized")
	return &sqlStore{db: db, limit: limit}, nil
}

func (s *sqlStore) Append(ctx context.Context, groupID string, msg *domain.NormalizedMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO group_messages (group_id, msg_id, payload, created_at)
		VALUES (?, ?, ?, ?)
	`, groupID, msg.ID, string(payload), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to add message: %w", err)
	}

	if s.limit > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM group_messages
			WHERE group_id = ? AND id NOT IN (
				SELECT id FROM group_messages WHERE group_id = ? ORDER BY id DESC LIMIT ?
			)
		`, groupID, groupID, s.limit)
		if err != nil {
			return fmt.Errorf("failed to trim history: %w", err)
		}
	}

	return tx.Commit()
}

func (s *sqlStore) List(ctx context.Context, groupID string) ([]*domain.NormalizedMessage, error) {
	return queryMessages(ctx, s.db, groupID)
}

func (s *sqlStore) Drain(ctx context.Context, groupID string) ([]*domain.NormalizedMessage, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	msgs, err := queryMessages(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM group_messages WHERE group_id = ?`, groupID); err != nil {
		return nil, fmt.Errorf("failed to clear history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit drain: %w", err)
	}
	return msgs, nil
}

func (s *sqlStore) Purge(ctx context.Context, groupID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM group_messages WHERE group_id = ?`, groupID)
	if err != nil {
		return fmt.Errorf("failed to purge history: %w", err)
	}
	return nil
}

func (s *sqlStore) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id, COUNT(*) FROM group_messages GROUP BY group_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		out[id] = n
	}
	return out, rows.Err()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryMessages(ctx context.Context, q queryer, groupID string) ([]*domain.NormalizedMessage, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT payload FROM group_messages
		WHERE group_id = ?
		ORDER BY id ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	msgs := []*domain.NormalizedMessage{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		var msg domain.NormalizedMessage
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		if msg.Links == nil {
			msg.Links = []string{}
		}
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}
