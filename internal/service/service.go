// Package service содержит бизнес-логику магазина: аккаунты, кошелек, заказы,
// колесо подарков, вход через Telegram и админку.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/linemk/topup-shop/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
	ErrInsufficientCredit = errors.New("no free spin or tokens available")
	ErrInvalidCode        = errors.New("invalid or expired login code")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidSignature   = errors.New("invalid telegram login signature")

	ErrInsufficientFunds = storage.ErrInsufficientFunds
	ErrUserExists        = storage.ErrUserExists
	ErrUserNotFound      = storage.ErrUserNotFound
	ErrDrawNotFound      = storage.ErrDrawNotFound
	ErrProductNotFound   = storage.ErrProductNotFound
	ErrTelegramLinked    = storage.ErrTelegramLinked
)

// Notifier доставляет сообщения в админский чат.
// Реализация не должна блокировать вызывающего надолго.
type Notifier interface {
	NotifyAdmin(ctx context.Context, text string)
}

// NopNotifier используется, когда бот не настроен
type NopNotifier struct{}

func (NopNotifier) NotifyAdmin(context.Context, string) {}

func rollback(logger *slog.Logger, tx *sql.Tx) {
	if rbErr := tx.Rollback(); rbErr != nil {
		logger.Error("transaction rollback failed", slog.Any("error", rbErr))
	}
}
