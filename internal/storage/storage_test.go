package storage_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/linemk/topup-shop/internal/domain/models"
	"github.com/linemk/topup-shop/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userCols = []string{"id", "email", "name", "pass_hash", "telegram_id", "telegram_username", "created_at"}

func TestGetUserByID_Success(t *testing.T) {
	// Создаем sqlmock для эмуляции базы данных.
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	ctx := context.Background()
	userID := int64(1)
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	rows := sqlmock.NewRows(userCols).
		AddRow(userID, "test@example.com", "Test", []byte("hashed-password"), int64(777), "tester", created)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(userID).WillReturnRows(rows)

	user, err := repo.GetUserByID(ctx, userID)
	assert.NoError(t, err, "Expected no error when user is found")
	assert.Equal(t, userID, user.ID)
	assert.Equal(t, "test@example.com", user.Email)
	assert.Equal(t, []byte("hashed-password"), user.PassHash)
	require.NotNil(t, user.TelegramID)
	assert.Equal(t, int64(777), *user.TelegramID)
	assert.Equal(t, "tester", user.TelegramUsername)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByEmail_NoTelegram(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	rows := sqlmock.NewRows(userCols).
		AddRow(int64(5), "a@b.c", "A", []byte("h"), nil, "", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = $1")).
		WithArgs("a@b.c").WillReturnRows(rows)

	user, err := repo.GetUserByEmail(context.Background(), "a@b.c")
	assert.NoError(t, err)
	assert.Nil(t, user.TelegramID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByID_NoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	userID := int64(2)

	// Эмулируем ситуацию, когда запрос возвращает 0 строк.
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(userID).WillReturnRows(sqlmock.NewRows(userCols))

	user, err := repo.GetUserByID(context.Background(), userID)
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
	assert.Nil(t, user, "User should be nil when not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByTelegramID_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE telegram_id = $1")).
		WithArgs(int64(3)).WillReturnError(errors.New("query error"))

	user, err := repo.GetUserByTelegramID(context.Background(), 3)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrUserNotFound)
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	ctx := context.Background()
	created := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (email, name, pass_hash, telegram_id, telegram_username)")).
		WithArgs("new@example.com", "New", []byte("hash"), nil, "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(10), created))

	tx, err := db.Begin()
	require.NoError(t, err)

	user, err := repo.CreateUser(ctx, tx, &models.User{Email: "new@example.com", Name: "New", PassHash: []byte("hash")})
	assert.NoError(t, err)
	assert.Equal(t, int64(10), user.ID)
	assert.Equal(t, created, user.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_Duplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505"})

	tx, err := db.Begin()
	require.NoError(t, err)

	user, err := repo.CreateUser(context.Background(), tx, &models.User{Email: "dup@example.com"})
	assert.ErrorIs(t, err, storage.ErrUserExists)
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttachTelegram(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	identity := models.TelegramIdentity{ID: 42, Username: "neo"}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET telegram_id = $1, telegram_username = $2")).
		WithArgs(int64(42), "neo", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.AttachTelegram(context.Background(), 1, identity))

	// аккаунт уже привязан к другому Telegram
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET telegram_id")).
		WithArgs(int64(42), "neo", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.AttachTelegram(context.Background(), 2, identity), storage.ErrTelegramLinked)

	// этот Telegram уже привязан к другому аккаунту
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET telegram_id")).
		WithArgs(int64(42), "neo", int64(3)).
		WillReturnError(&pq.Error{Code: "23505"})
	assert.ErrorIs(t, repo.AttachTelegram(context.Background(), 3, identity), storage.ErrTelegramLinked)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsers_DefaultPage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	rows := sqlmock.NewRows(userCols).
		AddRow(int64(1), "a@a.a", "A", nil, nil, "", time.Now()).
		AddRow(int64(2), "tg9@telegram.user", "B", nil, int64(9), "b", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM users ORDER BY id LIMIT $1 OFFSET $2")).
		WithArgs(100, 0).WillReturnRows(rows)

	users, err := repo.ListUsers(context.Background(), 0, -5)
	assert.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Nil(t, users[0].PassHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var walletCols = []string{"user_id", "balance", "tokens", "free_next_at", "updated_at"}

func TestGetWallet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewWalletRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets WHERE user_id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(walletCols).AddRow(int64(1), int64(500), 2, nil, time.Now()))

	w, err := repo.GetWallet(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, int64(500), w.Balance)
	assert.Equal(t, 2, w.Tokens)
	assert.Nil(t, w.FreeNextAt)
	assert.True(t, w.FreeAvailable(time.Now()))

	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets WHERE user_id = $1")).
		WithArgs(int64(2)).WillReturnRows(sqlmock.NewRows(walletCols))
	_, err = repo.GetWallet(context.Background(), 2)
	assert.ErrorIs(t, err, storage.ErrWalletNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockWalletTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewWalletRepository(db)
	next := time.Now().Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets WHERE user_id = $1 FOR UPDATE")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(walletCols).AddRow(int64(1), int64(0), 0, next, time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(int64(2)).
		WillReturnError(&pq.Error{Code: "55P03"})

	tx, err := db.Begin()
	require.NoError(t, err)

	w, err := repo.LockWalletTx(context.Background(), tx, 1)
	assert.NoError(t, err)
	require.NotNil(t, w.FreeNextAt)
	assert.False(t, w.FreeAvailable(time.Now()))

	_, err = repo.LockWalletTx(context.Background(), tx, 2)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "resource is locked")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeFreeSpin(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewWalletRepository(db)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	next := now.Add(24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE wallets SET free_next_at = $1")).
		WithArgs(next, int64(1), now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("(free_next_at IS NULL OR free_next_at <= $3)")).
		WithArgs(next, int64(1), now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := db.Begin()
	require.NoError(t, err)

	assert.NoError(t, repo.ConsumeFreeSpin(context.Background(), tx, 1, now, next))
	// второй раз кредит уже израсходован
	assert.ErrorIs(t, repo.ConsumeFreeSpin(context.Background(), tx, 1, now, next), storage.ErrNoSpinCredit)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeToken(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewWalletRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE wallets SET tokens = tokens - 1")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"tokens"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("AND tokens > 0 RETURNING tokens")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"tokens"}))

	tx, err := db.Begin()
	require.NoError(t, err)

	left, err := repo.ConsumeToken(context.Background(), tx, 1)
	assert.NoError(t, err)
	assert.Equal(t, 2, left)

	_, err = repo.ConsumeToken(context.Background(), tx, 1)
	assert.ErrorIs(t, err, storage.ErrNoSpinCredit)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddBalanceAndTokens(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewWalletRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("balance + $1 >= 0 RETURNING balance")).
		WithArgs(int64(-1000), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(500)))
	mock.ExpectQuery(regexp.QuoteMeta("balance + $1 >= 0 RETURNING balance")).
		WithArgs(int64(-1000), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE wallets SET tokens = tokens + $1")).
		WithArgs(3, int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"tokens"}).AddRow(4))

	tx, err := db.Begin()
	require.NoError(t, err)

	balance, err := repo.AddBalance(context.Background(), tx, 1, -1000)
	assert.NoError(t, err)
	assert.Equal(t, int64(500), balance)

	_, err = repo.AddBalance(context.Background(), tx, 1, -1000)
	assert.ErrorIs(t, err, storage.ErrInsufficientFunds)

	tokens, err := repo.AddTokens(context.Background(), tx, 1, 3)
	assert.NoError(t, err)
	assert.Equal(t, 4, tokens)

	assert.NoError(t, mock.ExpectationsWereMet())
}

var drawCols = []string{"id", "user_id", "prize", "source", "status", "game", "game_id", "server_id", "created_at", "claimed_at"}

func TestCreateDraw(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewGiftRepository(db)
	created := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO gift_draws (user_id, prize, source, status)")).
		WithArgs(int64(1), "UC 1000", models.SpinSourceToken, models.DrawStatusPendingClaim).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(77), created))

	tx, err := db.Begin()
	require.NoError(t, err)

	draw := &models.GiftDraw{UserID: 1, Prize: "UC 1000", Source: models.SpinSourceToken, Status: models.DrawStatusPendingClaim}
	assert.NoError(t, repo.CreateDraw(context.Background(), tx, draw))
	assert.Equal(t, int64(77), draw.ID)
	assert.Equal(t, created, draw.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimDraw(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewGiftRepository(db)
	details := models.ClaimDetails{Game: "pubg", GameID: "5123", ServerID: "1"}
	claimedAt := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE gift_draws")).
		WithArgs(models.DrawStatusClaimed, "pubg", "5123", "1", int64(7), int64(1), models.DrawStatusPendingClaim).
		WillReturnRows(sqlmock.NewRows(drawCols).
			AddRow(int64(7), int64(1), "UC 1000", "free", models.DrawStatusClaimed, "pubg", "5123", "1", time.Now(), claimedAt))

	draw, err := repo.ClaimDraw(context.Background(), 1, 7, details)
	assert.NoError(t, err)
	assert.Equal(t, models.DrawStatusClaimed, draw.Status)
	require.NotNil(t, draw.ClaimedAt)

	// повторная заявка: строка уже не в pending_claim
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE gift_draws")).
		WithArgs(models.DrawStatusClaimed, "pubg", "5123", "1", int64(7), int64(1), models.DrawStatusPendingClaim).
		WillReturnRows(sqlmock.NewRows(drawCols))

	_, err = repo.ClaimDraw(context.Background(), 1, 7, details)
	assert.ErrorIs(t, err, storage.ErrDrawNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDrawsByUserID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewGiftRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM gift_draws WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2")).
		WithArgs(int64(1), 20).
		WillReturnRows(sqlmock.NewRows(drawCols).
			AddRow(int64(2), int64(1), "Ks-10", "free", models.DrawStatusCompleted, "", "", "", time.Now(), nil).
			AddRow(int64(1), int64(1), "Good Luck", "token", models.DrawStatusCompleted, "", "", "", time.Now(), nil))

	draws, err := repo.GetDrawsByUserID(context.Background(), 1, 20)
	assert.NoError(t, err)
	require.Len(t, draws, 2)
	assert.Equal(t, "Ks-10", draws[0].Prize)
	assert.Nil(t, draws[0].ClaimedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDraw_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewGiftRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM gift_draws WHERE id = $1")).
		WithArgs(int64(404)).WillReturnError(sql.ErrNoRows)

	_, err = repo.GetDraw(context.Background(), 404)
	assert.ErrorIs(t, err, storage.ErrDrawNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProduct(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewProductRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, shop, name, price FROM products WHERE shop = $1 AND name = $2")).
		WithArgs("mlbb", "86 Diamonds").
		WillReturnRows(sqlmock.NewRows([]string{"id", "shop", "name", "price"}).AddRow(int64(1), "mlbb", "86 Diamonds", int64(5500)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE shop = $1 AND name = $2")).
		WithArgs("mlbb", "nothing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "shop", "name", "price"}))

	tx, err := db.Begin()
	require.NoError(t, err)

	p, err := repo.GetProduct(context.Background(), tx, "mlbb", "86 Diamonds")
	assert.NoError(t, err)
	assert.Equal(t, int64(5500), p.Price)

	_, err = repo.GetProduct(context.Background(), tx, "mlbb", "nothing")
	assert.ErrorIs(t, err, storage.ErrProductNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListProducts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewProductRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE shop = $1 ORDER BY price, id")).
		WithArgs("hok").
		WillReturnRows(sqlmock.NewRows([]string{"id", "shop", "name", "price"}).
			AddRow(int64(5), "hok", "16 Tokens", int64(1000)).
			AddRow(int64(6), "hok", "80 Tokens", int64(4500)))

	products, err := repo.ListProducts(context.Background(), "hok")
	assert.NoError(t, err)
	assert.Len(t, products, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)
	order := &models.Order{
		UserID: 1, Shop: "mlbb", Item: "86 Diamonds", Price: 5500,
		PaymentMethod: models.PaymentMethodWallet, GameID: "123", ServerID: "45",
		Status: models.OrderStatusPending,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders")).
		WithArgs(int64(1), "mlbb", "86 Diamonds", int64(5500), "wallet", "", "", "123", "45", "", models.OrderStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(9), time.Now()))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	assert.NoError(t, repo.CreateOrder(context.Background(), tx, order))
	assert.NoError(t, tx.Commit())
	assert.Equal(t, int64(9), order.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrdersByUserID_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE user_id = $1")).
		WithArgs(int64(1)).WillReturnError(errors.New("db down"))

	orders, err := repo.GetOrdersByUserID(context.Background(), 1)
	assert.Error(t, err)
	assert.Nil(t, orders)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewTransactionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions (user_id, amount, type, remark, created_at)")).
		WithArgs(int64(1), int64(-1000), models.TxTypeTokenPurchase, "gift token").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	assert.NoError(t, repo.CreateTransaction(context.Background(), tx, 1, -1000, models.TxTypeTokenPurchase, "gift token"))
	assert.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTransactions(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := storage.NewTransactionRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM transactions")).
		WithArgs(50, 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "amount", "type", "remark", "created_at"}).
			AddRow(int64(1), int64(1), int64(100), models.TxTypeGiftPrize, "Ks-100", time.Now()))

	txs, err := repo.ListTransactions(context.Background(), 50, 10)
	assert.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(100), txs[0].Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
