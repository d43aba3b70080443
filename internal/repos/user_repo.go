package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"sierraspos/internal/domain"
)

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

const userCols = `id, username, password_hash, role, name, email`

func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	out := []domain.User{}
	err := r.DB.SelectContext(ctx, &out, `SELECT `+userCols+` FROM users ORDER BY LOWER(username)`)
	return out, err
}

func (r *UserRepo) ByUsername(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	err := r.DB.GetContext(ctx, &u, `SELECT `+userCols+` FROM users WHERE LOWER(username)=LOWER(?)`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("user", username)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) ByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := r.DB.GetContext(ctx, &u, `SELECT `+userCols+` FROM users WHERE id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("user", id)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create stores a user; u.Hash must already be a bcrypt hash.
func (r *UserRepo) Create(ctx context.Context, u domain.User) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO users(username,password_hash,role,name,email) VALUES(?,?,?,?,?)
	`, u.Username, u.Hash, u.Role, u.Name, u.Email)
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("username %q: %w", u.Username, domain.ErrConflict)
	}
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Update edits a user. An empty Hash keeps the current password.
func (r *UserRepo) Update(ctx context.Context, u domain.User) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE users SET username=?, role=?, name=?, email=?,
		       password_hash = CASE WHEN ? = '' THEN password_hash ELSE ? END
		WHERE id=?
	`, u.Username, u.Role, u.Name, u.Email, u.Hash, u.Hash, u.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("username %q: %w", u.Username, domain.ErrConflict)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("user", u.ID)
	}
	return nil
}

// Delete removes the user and every open session of it.
func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE user_id=?`, id); err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFound("user", id)
	}
	return nil
}

func (r *UserRepo) BindSession(ctx context.Context, token string, userID int64) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO sessions(token,user_id) VALUES(?,?)`, token, userID)
	return err
}

func (r *UserRepo) SessionUser(ctx context.Context, token string) (*domain.User, error) {
	var u domain.User
	err := r.DB.GetContext(ctx, &u, `
      SELECT u.id,u.username,u.password_hash,u.role,u.name,u.email
      FROM sessions s
      JOIN users u ON u.id=s.user_id
      WHERE s.token=?`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("session", "token")
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) UnbindSession(ctx context.Context, token string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE token=?`, token)
	return err
}
