package models

import "time"

// Currency: единица внутренней валюты
const Currency = "Ks"

// Wallet представляет кошелек пользователя: баланс в Ks и токены для рулетки
type Wallet struct {
	UserID     int64      `json:"user_id"`
	Balance    int64      `json:"balance"`
	Tokens     int        `json:"tokens"`
	FreeNextAt *time.Time `json:"free_next_at,omitempty"` // nil: бесплатный спин ещё не использовался
	UpdatedAt  time.Time  `json:"updated_at"`
}

// FreeAvailable сообщает, доступен ли бесплатный спин в момент now
func (w *Wallet) FreeAvailable(now time.Time) bool {
	return w.FreeNextAt == nil || !w.FreeNextAt.After(now)
}
