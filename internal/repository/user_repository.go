package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/hostel-management/internal/model"
)

// UserRepo is the MySQL-backed UserStore over the 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,username,phone,password_hash,role,home_hostel_id,is_active,created_at,updated_at"

// dupKey sniffs the violated key name out of a MySQL 1062 error.
func dupKey(err error) error {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "1062") {
		return err
	}
	switch {
	case strings.Contains(msg, "email"):
		return &DuplicateError{Key: "email"}
	case strings.Contains(msg, "username"):
		return &DuplicateError{Key: "username"}
	case strings.Contains(msg, "hostel"):
		return &DuplicateError{Key: "assignment"}
	default:
		return &DuplicateError{Key: "unknown"}
	}
}

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u      model.User
		phone  sql.NullString
		hostel sql.NullInt64
	)
	err := row.Scan(&u.ID, &u.Email, &u.Username, &phone, &u.PasswordHash,
		&u.Role, &hostel, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	if phone.Valid {
		p := phone.String
		u.Phone = &p
	}
	if hostel.Valid {
		h := hostel.Int64
		u.HomeHostelID = &h
	}
	return u, nil
}

// Create inserts a user and populates its ID. The email is normalized to
// lowercase and hostel ids <= 0 become NULL before insertion. The role
// string must already be a member of the closed set; callers validate it
// so a bad value here is a programming error, still rejected.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	if !model.ValidRole(u.Role) {
		return ErrConflict
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	var hostel sql.NullInt64
	if u.HomeHostelID != nil && *u.HomeHostelID > 0 {
		hostel = sql.NullInt64{Int64: *u.HomeHostelID, Valid: true}
	} else {
		u.HomeHostelID = nil
	}
	var phone sql.NullString
	if u.Phone != nil && *u.Phone != "" {
		phone = sql.NullString{String: *u.Phone, Valid: true}
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, username, phone, password_hash, role, home_hostel_id, is_active) VALUES (?,?,?,?,?,?,?)",
		u.Email, u.Username, phone, u.PasswordHash, u.Role, hostel, u.IsActive)
	if err != nil {
		return dupKey(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByUsername fetches a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username=? LIMIT 1", username))
}

// GetByPhone fetches a user by phone number.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE phone=? LIMIT 1", phone))
}

// FindByIdentifier resolves a login identifier trying email, username
// and phone in that order.
func (r *UserRepo) FindByIdentifier(ctx context.Context, identifier string) (model.User, error) {
	identifier = strings.TrimSpace(identifier)
	if u, err := r.GetByEmail(ctx, identifier); err == nil {
		return u, nil
	} else if err != ErrNotFound {
		return model.User{}, err
	}
	if u, err := r.GetByUsername(ctx, identifier); err == nil {
		return u, nil
	} else if err != ErrNotFound {
		return model.User{}, err
	}
	return r.GetByPhone(ctx, identifier)
}

// UpdateProfile applies an explicit field projection. Only non-nil
// fields are written; a HomeHostelID <= 0 clears the column.
func (r *UserRepo) UpdateProfile(ctx context.Context, id int64, p ProfileUpdate) error {
	sets := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	if p.Username != nil {
		sets = append(sets, "username=?")
		args = append(args, *p.Username)
	}
	if p.Phone != nil {
		sets = append(sets, "phone=?")
		if *p.Phone == "" {
			args = append(args, nil)
		} else {
			args = append(args, *p.Phone)
		}
	}
	if p.HomeHostelID != nil {
		sets = append(sets, "home_hostel_id=?")
		if *p.HomeHostelID > 0 {
			args = append(args, *p.HomeHostelID)
		} else {
			args = append(args, nil)
		}
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ",")+", updated_at=NOW() WHERE id=?", args...); err != nil {
		return dupKey(err)
	}
	return nil
}

// SetRole replaces the user's role. Role changes clear the home hostel
// for super_admins to keep the role invariants intact.
func (r *UserRepo) SetRole(ctx context.Context, id int64, role string) error {
	if !model.ValidRole(role) {
		return ErrConflict
	}
	q := "UPDATE users SET role=?, updated_at=NOW() WHERE id=?"
	if role == model.RoleSuperAdmin {
		q = "UPDATE users SET role=?, home_hostel_id=NULL, updated_at=NOW() WHERE id=?"
	}
	_, err := r.DB.ExecContext(ctx, q, role, id)
	return err
}

// SetPassword replaces the stored bcrypt hash.
func (r *UserRepo) SetPassword(ctx context.Context, id int64, hash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=NOW() WHERE id=?", hash, id)
	return err
}

// Deactivate sets is_active=false. Users are never hard-deleted; token
// revocation is the facade's responsibility.
func (r *UserRepo) Deactivate(ctx context.Context, id int64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_active=FALSE, updated_at=NOW() WHERE id=?", id)
	return err
}
