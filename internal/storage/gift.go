package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/topup-shop/internal/domain/models"
)

// GiftStorage хранит историю вращений колеса и заявки на призы.
type GiftStorage interface {
	CreateDraw(ctx context.Context, tx *sql.Tx, draw *models.GiftDraw) error
	GetDraw(ctx context.Context, id int64) (*models.GiftDraw, error)
	// ClaimDraw переводит pending_claim розыгрыш пользователя в claimed.
	// Повторная заявка и чужой розыгрыш дают ErrDrawNotFound.
	ClaimDraw(ctx context.Context, userID, drawID int64, details models.ClaimDetails) (*models.GiftDraw, error)
	GetDrawsByUserID(ctx context.Context, userID int64, limit int) ([]*models.GiftDraw, error)
	ListDraws(ctx context.Context, limit, offset int) ([]*models.GiftDraw, error)
}

type giftRepository struct {
	db *sql.DB
}

func NewGiftRepository(db *sql.DB) GiftStorage {
	return &giftRepository{db: db}
}

const drawColumns = "id, user_id, prize, source, status, game, game_id, server_id, created_at, claimed_at"

func scanDraw(row rowScanner) (*models.GiftDraw, error) {
	d := &models.GiftDraw{}
	var claimedAt sql.NullTime
	if err := row.Scan(&d.ID, &d.UserID, &d.Prize, &d.Source, &d.Status, &d.Game, &d.GameID, &d.ServerID, &d.CreatedAt, &claimedAt); err != nil {
		return nil, err
	}
	if claimedAt.Valid {
		t := claimedAt.Time
		d.ClaimedAt = &t
	}
	return d, nil
}

func (r *giftRepository) CreateDraw(ctx context.Context, tx *sql.Tx, draw *models.GiftDraw) error {
	query := `INSERT INTO gift_draws (user_id, prize, source, status)
	          VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	err := tx.QueryRowContext(ctx, query, draw.UserID, draw.Prize, draw.Source, draw.Status).
		Scan(&draw.ID, &draw.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create gift draw: %w", err)
	}
	return nil
}

func (r *giftRepository) GetDraw(ctx context.Context, id int64) (*models.GiftDraw, error) {
	d, err := scanDraw(r.db.QueryRowContext(ctx, "SELECT "+drawColumns+" FROM gift_draws WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDrawNotFound
		}
		return nil, err
	}
	return d, nil
}

func (r *giftRepository) ClaimDraw(ctx context.Context, userID, drawID int64, details models.ClaimDetails) (*models.GiftDraw, error) {
	query := `UPDATE gift_draws
	          SET status = $1, game = $2, game_id = $3, server_id = $4, claimed_at = NOW()
	          WHERE id = $5 AND user_id = $6 AND status = $7
	          RETURNING ` + drawColumns
	d, err := scanDraw(r.db.QueryRowContext(ctx, query,
		models.DrawStatusClaimed, details.Game, details.GameID, details.ServerID,
		drawID, userID, models.DrawStatusPendingClaim,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDrawNotFound
		}
		return nil, fmt.Errorf("failed to claim gift draw: %w", err)
	}
	return d, nil
}

func (r *giftRepository) GetDrawsByUserID(ctx context.Context, userID int64, limit int) ([]*models.GiftDraw, error) {
	limit, _ = normalizePage(limit, 0)
	return r.query(ctx, "SELECT "+drawColumns+" FROM gift_draws WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2", userID, limit)
}

func (r *giftRepository) ListDraws(ctx context.Context, limit, offset int) ([]*models.GiftDraw, error) {
	limit, offset = normalizePage(limit, offset)
	return r.query(ctx, "SELECT "+drawColumns+" FROM gift_draws ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2", limit, offset)
}

func (r *giftRepository) query(ctx context.Context, query string, args ...interface{}) ([]*models.GiftDraw, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query gift draws: %w", err)
	}
	defer rows.Close()

	var draws []*models.GiftDraw
	for rows.Next() {
		d, err := scanDraw(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gift draw: %w", err)
		}
		draws = append(draws, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return draws, nil
}
