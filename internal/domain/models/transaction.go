package models

import "time"

// Типы операций по кошельку
const (
	TxTypeDeposit       = "deposit"
	TxTypeOrderPayment  = "order_payment"
	TxTypeTokenPurchase = "token_purchase"
	TxTypeGiftPrize     = "gift_prize"
)

// Transaction представляет операцию с балансом кошелька.
type Transaction struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Amount    int64     `json:"amount"` // со знаком: списания отрицательные
	Type      string    `json:"type"`
	Remark    string    `json:"remark,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
