package models

import "time"

// Статусы ожидающего входа через Telegram
const (
	LoginStatusPending   = "pending"
	LoginStatusConfirmed = "confirmed"
	LoginStatusDeclined  = "declined"
	LoginStatusExpired   = "expired"

	// LoginStatusCompleting: подтвержденный вход, по которому сейчас выдается токен.
	// Наружу сообщается как pending.
	LoginStatusCompleting = "completing"
)

// TelegramIdentity: данные пользователя Telegram, подтвердившего вход
type TelegramIdentity struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// DisplayName собирает имя для профиля
func (t TelegramIdentity) DisplayName() string {
	name := t.FirstName
	if t.LastName != "" {
		if name != "" {
			name += " "
		}
		name += t.LastName
	}
	if name == "" {
		name = t.Username
	}
	return name
}

// LoginSession: ожидающий вход, привязанный к короткому коду
type LoginSession struct {
	Code            string            `json:"code"`
	Requester       string            `json:"requester"`
	RequesterUserID *int64            `json:"requester_user_id,omitempty"`
	Status          string            `json:"status"`
	Identity        *TelegramIdentity `json:"identity,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}
