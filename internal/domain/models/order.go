package models

import "time"

// Статусы заказа
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// PaymentMethodWallet: оплата с баланса кошелька
const PaymentMethodWallet = "wallet"

// Order представляет заказ на пополнение игровой валюты или услугу
type Order struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	Shop           string    `json:"shop"`
	Item           string    `json:"item"`
	Price          int64     `json:"price"`
	PaymentMethod  string    `json:"payment_method"`
	RecipientName  string    `json:"recipient_name,omitempty"`
	RecipientPhone string    `json:"recipient_phone,omitempty"`
	GameID         string    `json:"game_id,omitempty"`
	ServerID       string    `json:"server_id,omitempty"`
	ScreenshotURL  string    `json:"screenshot_url,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}
