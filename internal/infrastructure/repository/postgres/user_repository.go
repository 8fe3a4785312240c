package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avolkov/intel-workbench/internal/core/domain"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (id, email, password, name, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, user.ID, user.Email, user.Password, user.Name, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, email, password, name, created_at, updated_at
FROM users
WHERE id = $1
`, id)
	return scanUser(row, fmt.Sprintf("id=%s", id))
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, email, password, name, created_at, updated_at
FROM users
WHERE lower(email) = lower($1)
`, email)
	return scanUser(row, fmt.Sprintf("email=%s", email))
}

func (r *UserRepository) TouchUser(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE users SET updated_at = $2 WHERE id = $1
`, id, at)
	if err != nil {
		return fmt.Errorf("touch user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch user rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, "touch user", fmt.Errorf("id=%s", id))
	}
	return nil
}

func scanUser(row *sql.Row, ref string) (*domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.Email, &user.Password, &user.Name, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get user", errors.New(ref))
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}
