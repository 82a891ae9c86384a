package storage

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserExists        = errors.New("user already exists")
	ErrTelegramLinked    = errors.New("account is already linked to another telegram user")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrNoSpinCredit      = errors.New("no spin credit")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrProductNotFound   = errors.New("product not found")
	ErrDrawNotFound      = errors.New("gift draw not found")
	ErrLoginNotFound     = errors.New("login session not found")
)

// коды ошибок postgres
const (
	pqUniqueViolation  = "23505"
	pqLockNotAvailable = "55P03"
)

// rowScanner: общий интерфейс для *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func isLockNotAvailable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqLockNotAvailable
}

// normalizePage ограничивает размер страницы для админских списков
func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
