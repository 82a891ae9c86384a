package service_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"time"

	"github.com/linemk/topup-shop/internal/domain/models"
	"github.com/linemk/topup-shop/internal/domain/prize"
	"github.com/linemk/topup-shop/internal/storage"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// onlyPrize: розыгрыш, в котором всегда выпадает один приз
func onlyPrize(label string) *prize.Drawer {
	table := prize.Table()
	for i := range table {
		if table[i].Label != label {
			table[i].Weight = 0
		}
	}
	return prize.NewDrawerWithTable(rand.NewSource(1), table)
}

type fakeUserRepo struct {
	users  map[int64]*models.User
	nextID int64
	// telegramErr возвращается один раз из GetUserByTelegramID
	telegramErr error
}

var _ storage.UserStorage = (*fakeUserRepo)(nil)

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	f := &fakeUserRepo{users: make(map[int64]*models.User)}
	for _, u := range users {
		f.users[u.ID] = u
		if u.ID > f.nextID {
			f.nextID = u.ID
		}
	}
	return f
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeUserRepo) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	if err := f.telegramErr; err != nil {
		f.telegramErr = nil
		return nil, err
	}
	for _, u := range f.users {
		if u.TelegramID != nil && *u.TelegramID == telegramID {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, tx *sql.Tx, user *models.User) (*models.User, error) {
	if _, err := f.GetUserByEmail(ctx, user.Email); err == nil {
		return nil, storage.ErrUserExists
	}
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) AttachTelegram(ctx context.Context, userID int64, identity models.TelegramIdentity) error {
	u, ok := f.users[userID]
	if !ok {
		return storage.ErrTelegramLinked
	}
	if other, err := f.GetUserByTelegramID(ctx, identity.ID); err == nil && other.ID != userID {
		return storage.ErrTelegramLinked
	}
	if u.TelegramID != nil && *u.TelegramID != identity.ID {
		return storage.ErrTelegramLinked
	}
	id := identity.ID
	u.TelegramID = &id
	u.TelegramUsername = identity.Username
	return nil
}

func (f *fakeUserRepo) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	var out []*models.User
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeWalletRepo повторяет условные UPDATE настоящего репозитория
type fakeWalletRepo struct {
	wallets map[int64]*models.Wallet
}

var _ storage.WalletStorage = (*fakeWalletRepo)(nil)

func newFakeWalletRepo(wallets ...*models.Wallet) *fakeWalletRepo {
	f := &fakeWalletRepo{wallets: make(map[int64]*models.Wallet)}
	for _, w := range wallets {
		f.wallets[w.UserID] = w
	}
	return f
}

func (f *fakeWalletRepo) CreateWallet(ctx context.Context, tx *sql.Tx, userID int64, balance int64) error {
	f.wallets[userID] = &models.Wallet{UserID: userID, Balance: balance}
	return nil
}

func (f *fakeWalletRepo) get(userID int64) (*models.Wallet, error) {
	w, ok := f.wallets[userID]
	if !ok {
		return nil, storage.ErrWalletNotFound
	}
	cp := *w
	return &cp, nil
}

func (f *fakeWalletRepo) GetWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	return f.get(userID)
}

func (f *fakeWalletRepo) LockWalletTx(ctx context.Context, tx *sql.Tx, userID int64) (*models.Wallet, error) {
	return f.get(userID)
}

func (f *fakeWalletRepo) ConsumeFreeSpin(ctx context.Context, tx *sql.Tx, userID int64, now, next time.Time) error {
	w, ok := f.wallets[userID]
	if !ok || !w.FreeAvailable(now) {
		return storage.ErrNoSpinCredit
	}
	w.FreeNextAt = &next
	return nil
}

func (f *fakeWalletRepo) ConsumeToken(ctx context.Context, tx *sql.Tx, userID int64) (int, error) {
	w, ok := f.wallets[userID]
	if !ok || w.Tokens <= 0 {
		return 0, storage.ErrNoSpinCredit
	}
	w.Tokens--
	return w.Tokens, nil
}

func (f *fakeWalletRepo) AddTokens(ctx context.Context, tx *sql.Tx, userID int64, n int) (int, error) {
	w, ok := f.wallets[userID]
	if !ok {
		return 0, storage.ErrWalletNotFound
	}
	w.Tokens += n
	return w.Tokens, nil
}

func (f *fakeWalletRepo) AddBalance(ctx context.Context, tx *sql.Tx, userID int64, delta int64) (int64, error) {
	w, ok := f.wallets[userID]
	if !ok || w.Balance+delta < 0 {
		return 0, storage.ErrInsufficientFunds
	}
	w.Balance += delta
	return w.Balance, nil
}

func (f *fakeWalletRepo) ListWallets(ctx context.Context, limit, offset int) ([]*models.Wallet, error) {
	var out []*models.Wallet
	for _, w := range f.wallets {
		out = append(out, w)
	}
	return out, nil
}

type fakeGiftRepo struct {
	draws  map[int64]*models.GiftDraw
	nextID int64
}

var _ storage.GiftStorage = (*fakeGiftRepo)(nil)

func newFakeGiftRepo() *fakeGiftRepo {
	return &fakeGiftRepo{draws: make(map[int64]*models.GiftDraw)}
}

func (f *fakeGiftRepo) CreateDraw(ctx context.Context, tx *sql.Tx, draw *models.GiftDraw) error {
	f.nextID++
	draw.ID = f.nextID
	draw.CreatedAt = time.Now()
	cp := *draw
	f.draws[draw.ID] = &cp
	return nil
}

func (f *fakeGiftRepo) GetDraw(ctx context.Context, id int64) (*models.GiftDraw, error) {
	d, ok := f.draws[id]
	if !ok {
		return nil, storage.ErrDrawNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeGiftRepo) ClaimDraw(ctx context.Context, userID, drawID int64, details models.ClaimDetails) (*models.GiftDraw, error) {
	d, ok := f.draws[drawID]
	if !ok || d.UserID != userID || d.Status != models.DrawStatusPendingClaim {
		return nil, storage.ErrDrawNotFound
	}
	now := time.Now()
	d.Status = models.DrawStatusClaimed
	d.Game, d.GameID, d.ServerID = details.Game, details.GameID, details.ServerID
	d.ClaimedAt = &now
	cp := *d
	return &cp, nil
}

func (f *fakeGiftRepo) GetDrawsByUserID(ctx context.Context, userID int64, limit int) ([]*models.GiftDraw, error) {
	var out []*models.GiftDraw
	for _, d := range f.draws {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeGiftRepo) ListDraws(ctx context.Context, limit, offset int) ([]*models.GiftDraw, error) {
	var out []*models.GiftDraw
	for _, d := range f.draws {
		out = append(out, d)
	}
	return out, nil
}

type fakeTxRepo struct {
	records []*models.Transaction
}

var _ storage.TransactionStorage = (*fakeTxRepo)(nil)

func (f *fakeTxRepo) CreateTransaction(ctx context.Context, tx *sql.Tx, userID int64, amount int64, txType, remark string) error {
	f.records = append(f.records, &models.Transaction{
		ID: int64(len(f.records) + 1), UserID: userID, Amount: amount, Type: txType, Remark: remark,
	})
	return nil
}

func (f *fakeTxRepo) GetTransactionsByUserID(ctx context.Context, userID int64) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for _, t := range f.records {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTxRepo) ListTransactions(ctx context.Context, limit, offset int) ([]*models.Transaction, error) {
	return f.records, nil
}

type fakeProductRepo struct {
	products []*models.Product
}

var _ storage.ProductStorage = (*fakeProductRepo)(nil)

func (f *fakeProductRepo) GetProduct(ctx context.Context, tx *sql.Tx, shop, name string) (*models.Product, error) {
	for _, p := range f.products {
		if p.Shop == shop && p.Name == name {
			return p, nil
		}
	}
	return nil, storage.ErrProductNotFound
}

func (f *fakeProductRepo) ListProducts(ctx context.Context, shop string) ([]*models.Product, error) {
	var out []*models.Product
	for _, p := range f.products {
		if p.Shop == shop {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeOrderRepo struct {
	orders []*models.Order
}

var _ storage.OrderStorage = (*fakeOrderRepo)(nil)

func (f *fakeOrderRepo) CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	order.ID = int64(len(f.orders) + 1)
	order.CreatedAt = time.Now()
	f.orders = append(f.orders, order)
	return nil
}

func (f *fakeOrderRepo) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	var out []*models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) ListOrders(ctx context.Context, limit, offset int) ([]*models.Order, error) {
	return f.orders, nil
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) NotifyAdmin(ctx context.Context, text string) {
	f.messages = append(f.messages, text)
}

// testPNG: заголовок PNG, которого достаточно для определения типа
var testPNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type fakeUploader struct {
	uploaded [][]byte
}

func (f *fakeUploader) Upload(ctx context.Context, prefix string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.uploaded = append(f.uploaded, data)
	return "https://cdn.example.com/" + prefix + "/shot.png", nil
}
