package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sysu-ecnc-dev/squad-optimizer/backend/internal/domain"
)

const userColumns = `id, username, password_hash, full_name, email, role, is_active, created_at, version`

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	dst := []any{&user.ID, &user.Username, &user.PasswordHash, &user.FullName, &user.Email, &user.Role, &user.IsActive, &user.CreatedAt, &user.Version}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *Repository) GetUserByID(id int64) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	return scanUser(r.dbpool.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *Repository) GetUserByUsername(username string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	return scanUser(r.dbpool.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

// UpdateUserPassword 版本号不一致时返回 sql.ErrNoRows
func (r *Repository) UpdateUserPassword(user *domain.User, passwordHash string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		UPDATE users
		SET password_hash = $1, version = version + 1
		WHERE id = $2 AND version = $3
		RETURNING version
	`

	if err := r.dbpool.QueryRowContext(ctx, query, passwordHash, user.ID, user.Version).Scan(&user.Version); err != nil {
		return err
	}

	user.PasswordHash = passwordHash
	return nil
}

// EnsureUser 用户名不存在时创建用户，返回是否新建
func (r *Repository) EnsureUser(user *domain.User) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		INSERT INTO users (username, password_hash, full_name, email, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (username) DO NOTHING
		RETURNING id, is_active, created_at, version
	`

	args := []any{user.Username, user.PasswordHash, user.FullName, user.Email, user.Role}
	err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&user.ID, &user.IsActive, &user.CreatedAt, &user.Version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, err
	}

	return true, nil
}
