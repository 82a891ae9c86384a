package models

import (
	"fmt"
	"time"
)

// User представляет пользователя магазина
type User struct {
	ID               int64
	Email            string
	Name             string
	PassHash         []byte // nil для пользователей, пришедших через Telegram
	TelegramID       *int64
	TelegramUsername string
	CreatedAt        time.Time
}

// TelegramPlaceholderEmail возвращает служебный email для пользователя,
// зарегистрированного только через Telegram.
func TelegramPlaceholderEmail(telegramID int64) string {
	return fmt.Sprintf("tg%d@telegram.user", telegramID)
}
