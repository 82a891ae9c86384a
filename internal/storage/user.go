package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/topup-shop/internal/domain/models"
)

type UserStorage interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	CreateUser(ctx context.Context, tx *sql.Tx, user *models.User) (*models.User, error)
	AttachTelegram(ctx context.Context, userID int64, identity models.TelegramIdentity) error
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserStorage {
	return &userRepository{db: db}
}

const userColumns = "id, email, name, pass_hash, telegram_id, telegram_username, created_at"

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var telegramID sql.NullInt64
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PassHash, &telegramID, &user.TelegramUsername, &user.CreatedAt); err != nil {
		return nil, err
	}
	if telegramID.Valid {
		id := telegramID.Int64
		user.TelegramID = &id
	}
	return user, nil
}

func (r *userRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// получение уже существующего пользователя
func (r *userRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email)
}

func (r *userRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
}

func (r *userRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE telegram_id = $1", telegramID)
}

// CreateUser создает пользователя внутри транзакции; кошелек создается отдельно в той же транзакции
func (r *userRepository) CreateUser(ctx context.Context, tx *sql.Tx, user *models.User) (*models.User, error) {
	err := tx.QueryRowContext(ctx,
		`INSERT INTO users (email, name, pass_hash, telegram_id, telegram_username)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		user.Email, user.Name, user.PassHash, user.TelegramID, user.TelegramUsername,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// AttachTelegram привязывает Telegram к существующему аккаунту, если он еще не привязан к другому
func (r *userRepository) AttachTelegram(ctx context.Context, userID int64, identity models.TelegramIdentity) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET telegram_id = $1, telegram_username = $2
		 WHERE id = $3 AND (telegram_id IS NULL OR telegram_id = $1)`,
		identity.ID, identity.Username, userID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrTelegramLinked
		}
		return fmt.Errorf("failed to attach telegram: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTelegramLinked
	}
	return nil
}

func (r *userRepository) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	limit, offset = normalizePage(limit, offset)
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}
