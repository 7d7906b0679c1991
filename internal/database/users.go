package database

import (
	"context"
	"fmt"
	"time"

	"campusres/internal/domain"
	"campusres/internal/models"
)

const userColumns = `id, full_name, email, password_hash, role, telegram_chat_id, created_at`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var role, createdAt string
	if err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &role, &u.TelegramChatID, &createdAt); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = t
	return &u, nil
}

func (db *DB) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	var (
		query string
		args  []interface{}
	)
	if u.ID == 0 {
		query = `INSERT INTO users (full_name, email, password_hash, role, telegram_chat_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	} else {
		query = `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
		args = append(args, u.ID)
	}
	args = append(args, u.FullName, u.Email, u.PasswordHash, string(u.Role), u.TelegramChatID, formatTime(u.CreatedAt))

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	if u.ID == 0 {
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		u.ID = id
	}
	return nil
}
