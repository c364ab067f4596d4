package store

import (
	"context"
	"strings"

	"byteshop/internal/models"
)

const userColumns = `id, email, full_name, role, provider, password_hash, created_at, updated_at`

func (q pgQueries) CreateUser(ctx context.Context, u *models.User) error {
	return q.get(ctx, u, `
		INSERT INTO users (id, email, full_name, role, provider, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
		u.ID, strings.ToLower(u.Email), u.FullName, u.Role, u.Provider, u.PasswordHash)
}

func (q pgQueries) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := q.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &u, nil
}

func (q pgQueries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := q.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email)); err != nil {
		return nil, err
	}
	return &u, nil
}

func (q pgQueries) UpdateUserProfile(ctx context.Context, id, fullName string) (*models.User, error) {
	var u models.User
	err := q.get(ctx, &u, `
		UPDATE users SET full_name = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, id, fullName)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (q pgQueries) UpdateUserRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	if err := requireElevated(ctx); err != nil {
		return nil, err
	}
	var u models.User
	err := q.get(ctx, &u, `
		UPDATE users SET role = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, id, role)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (q pgQueries) ListUsers(ctx context.Context) ([]models.User, error) {
	if err := requireElevated(ctx); err != nil {
		return nil, err
	}
	users := []models.User{}
	if err := q.sel(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`); err != nil {
		return nil, err
	}
	return users, nil
}
