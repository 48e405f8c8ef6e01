package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SetToken stores the platform API token for a Telegram user. Tokens pasted
// from browser dev tools often arrive wrapped in quotes, so they are
// stripped before storage.
func (d *DB) SetToken(ctx context.Context, userID int64, token string) error {
	token = strings.Trim(strings.TrimSpace(token), `"'`)
	if token == "" {
		return errors.New("token is empty")
	}

	query := `INSERT INTO credentials (user_id, token, updated_at)
              VALUES (?, ?, ?)
              ON CONFLICT(user_id) DO UPDATE SET
                token = excluded.token,
                updated_at = excluded.updated_at`
	if _, err := d.ExecContext(ctx, query, userID, token, time.Now()); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// Token returns the stored token for a user, or "" when none is stored.
func (d *DB) Token(ctx context.Context, userID int64) (string, error) {
	var token string
	err := d.QueryRowContext(ctx, `SELECT token FROM credentials WHERE user_id = ?`, userID).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return token, nil
}

func (d *DB) ClearToken(ctx context.Context, userID int64) error {
	if _, err := d.ExecContext(ctx, `DELETE FROM credentials WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}
