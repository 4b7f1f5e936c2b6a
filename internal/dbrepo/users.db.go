package dbrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Waesta/Wapos-sub011/internal/models"
	"github.com/Waesta/Wapos-sub011/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepo struct {
	db *pgxpool.Pool
}

func NewUserRepo(db *pgxpool.Pool) *UserRepo {
	return &UserRepo{db: db}
}

// GetUserByUsername returns one operator account, password hash included.
func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx, `
		SELECT id, name, username, role, password_hash, created_at
		FROM users
		WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Name, &u.Username, &u.Role, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user failed: %w", err)
	}
	return &u, nil
}

// EnsureUser creates an operator account if the username is not taken yet.
// Used at startup to provision the admin account from the environment.
func (r *UserRepo) EnsureUser(ctx context.Context, name, username, password, role string) error {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password failed: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO users (name, username, password_hash, role)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (username) DO NOTHING`,
		name, username, hash, role,
	)
	if err != nil {
		return fmt.Errorf("ensure user %s failed: %w", username, err)
	}
	return nil
}
