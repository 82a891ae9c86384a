package models

import "time"

// Статусы розыгрыша
const (
	DrawStatusCompleted    = "completed"
	DrawStatusPendingClaim = "pending_claim"
	DrawStatusClaimed      = "claimed"
)

// Источник спина
const (
	SpinSourceFree  = "free"
	SpinSourceToken = "token"
)

// GiftDraw: запись об одном вращении колеса
type GiftDraw struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Prize     string     `json:"prize"`
	Source    string     `json:"source"`
	Status    string     `json:"status"`
	Game      string     `json:"game,omitempty"`
	GameID    string     `json:"game_id,omitempty"`
	ServerID  string     `json:"server_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
}

// ClaimDetails: данные, которые пользователь прикладывает к призу
type ClaimDetails struct {
	Game     string
	GameID   string
	ServerID string
}
