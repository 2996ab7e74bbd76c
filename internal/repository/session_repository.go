package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/hostel-management/internal/model"
)

// SessionRepo maintains session_contexts rows. The table carries a
// unique index over (CASE WHEN is_active THEN user_id END), so the
// database itself rejects a second active row per user even if two
// switches race.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// GetActive returns the user's active context, or ErrNotFound when the
// user has none.
func (r *SessionRepo) GetActive(ctx context.Context, userID int64) (model.SessionContext, error) {
	var s model.SessionContext
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, hostel_id, is_active, created_at, updated_at FROM session_contexts WHERE user_id=? AND is_active=TRUE LIMIT 1",
		userID).Scan(&s.ID, &s.UserID, &s.HostelID, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.SessionContext{}, ErrNotFound
	}
	return s, err
}

// Switch atomically deactivates the user's current context and activates
// a row for the given hostel. A concurrent request sees either the old
// or the new hostel active, never both.
func (r *SessionRepo) Switch(ctx context.Context, userID, hostelID int64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"UPDATE session_contexts SET is_active=FALSE, updated_at=NOW() WHERE user_id=? AND is_active=TRUE",
		userID); err != nil {
		return err
	}
	// Reuse an existing (user, hostel) row when there is one so the table
	// does not grow a row per switch.
	res, err := tx.ExecContext(ctx,
		"UPDATE session_contexts SET is_active=TRUE, updated_at=NOW() WHERE user_id=? AND hostel_id=?",
		userID, hostelID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO session_contexts (user_id, hostel_id, is_active) VALUES (?,?,TRUE)",
			userID, hostelID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Clear deactivates the user's active context, if any.
func (r *SessionRepo) Clear(ctx context.Context, userID int64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE session_contexts SET is_active=FALSE, updated_at=NOW() WHERE user_id=? AND is_active=TRUE",
		userID)
	return err
}
