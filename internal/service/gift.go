package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/linemk/topup-shop/internal/domain/models"
	"github.com/linemk/topup-shop/internal/domain/prize"
	"github.com/linemk/topup-shop/internal/storage"
)

// GiftSettings: экономика колеса
type GiftSettings struct {
	TokenPrice        int64
	TokensPerPurchase int
	FreeSpinCooldown  time.Duration
	ContactURL        string
}

// GiftState: состояние колеса для пользователя
type GiftState struct {
	FreeAvailable bool       `json:"free_available"`
	Tokens        int        `json:"tokens"`
	FreeNextAt    *time.Time `json:"free_next_at"`
	Balance       int64      `json:"balance"`
}

// SpinResult: результат одного вращения. Sector и Rotation нужны клиенту,
// чтобы остановить колесо ровно на выпавшем призе.
type SpinResult struct {
	GiftState
	ID            int64   `json:"id"`
	Prize         string  `json:"prize"`
	Source        string  `json:"source"`
	Status        string  `json:"status"`
	RequiresClaim bool    `json:"requires_claim"`
	Sector        int     `json:"sector"`
	Rotation      float64 `json:"rotation"`
}

type TokenPurchase struct {
	Tokens  int   `json:"tokens"`
	Balance int64 `json:"balance"`
}

type GiftHistoryEntry struct {
	ID        int64     `json:"id"`
	Remark    string    `json:"remark"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type GiftService interface {
	State(ctx context.Context, userID int64, email string) (*GiftState, error)
	Spin(ctx context.Context, userID int64, email string) (*SpinResult, error)
	BuyToken(ctx context.Context, userID int64, email string) (*TokenPurchase, error)
	Claim(ctx context.Context, userID, drawID int64, details models.ClaimDetails) (*models.GiftDraw, error)
	History(ctx context.Context, userID int64, email string) ([]GiftHistoryEntry, error)
	ContactURL() string
}

const giftHistoryLimit = 50

type giftService struct {
	log        *slog.Logger
	db         *sql.DB
	accounts   *accounts
	walletRepo storage.WalletStorage
	giftRepo   storage.GiftStorage
	txRepo     storage.TransactionStorage
	drawer     *prize.Drawer
	notifier   Notifier
	settings   GiftSettings
	now        func() time.Time
}

// NewGiftService собирает сервис колеса. drawer == nil: стандартная таблица призов,
// notifier == nil: уведомления не отправляются.
func NewGiftService(
	log *slog.Logger,
	db *sql.DB,
	userRepo storage.UserStorage,
	walletRepo storage.WalletStorage,
	giftRepo storage.GiftStorage,
	txRepo storage.TransactionStorage,
	drawer *prize.Drawer,
	notifier Notifier,
	settings GiftSettings,
) *giftService {
	if drawer == nil {
		drawer = prize.NewDrawer(nil)
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if settings.TokensPerPurchase <= 0 {
		settings.TokensPerPurchase = 1
	}
	return &giftService{
		log:        log,
		db:         db,
		accounts:   &accounts{userRepo: userRepo},
		walletRepo: walletRepo,
		giftRepo:   giftRepo,
		txRepo:     txRepo,
		drawer:     drawer,
		notifier:   notifier,
		settings:   settings,
		now:        time.Now,
	}
}

// WithClock подменяет источник времени
func (s *giftService) WithClock(now func() time.Time) *giftService {
	s.now = now
	return s
}

func (s *giftService) State(ctx context.Context, userID int64, email string) (*GiftState, error) {
	const op = "service.GiftService.State"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	if _, err := s.accounts.owner(ctx, userID, email); err != nil {
		logger.Warn("gift state access denied", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	wallet, err := s.walletRepo.GetWallet(ctx, userID)
	if err != nil {
		logger.Error("failed to get wallet", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get wallet: %w", op, err)
	}
	return stateOf(wallet, s.now()), nil
}

// Spin вращает колесо. Сначала тратится бесплатный спин, если он доступен, иначе один токен.
// Списание кредита, начисление приза, запись в журнал и розыгрыш выполняются одной транзакцией
// под блокировкой строки кошелька.
func (s *giftService) Spin(ctx context.Context, userID int64, email string) (*SpinResult, error) {
	const op = "service.GiftService.Spin"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	if _, err := s.accounts.owner(ctx, userID, email); err != nil {
		logger.Warn("spin access denied", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	wallet, err := s.walletRepo.LockWalletTx(ctx, tx, userID)
	if err != nil {
		rollback(logger, tx)
		logger.Error("failed to lock wallet", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to lock wallet: %w", op, err)
	}

	now := s.now()
	var source string
	switch {
	case wallet.FreeAvailable(now):
		next := now.Add(s.settings.FreeSpinCooldown)
		err = s.walletRepo.ConsumeFreeSpin(ctx, tx, userID, now, next)
		wallet.FreeNextAt = &next
		source = models.SpinSourceFree
	case wallet.Tokens > 0:
		wallet.Tokens, err = s.walletRepo.ConsumeToken(ctx, tx, userID)
		source = models.SpinSourceToken
	default:
		err = storage.ErrNoSpinCredit
	}
	if err != nil {
		rollback(logger, tx)
		if errors.Is(err, storage.ErrNoSpinCredit) {
			logger.Warn("no spin credit", slog.Int("tokens", wallet.Tokens))
			return nil, fmt.Errorf("%s: %w", op, ErrInsufficientCredit)
		}
		logger.Error("failed to consume spin credit", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to consume spin credit: %w", op, err)
	}

	won, sector := s.drawer.Draw()

	if won.Kind == prize.KindCredit {
		wallet.Balance, err = s.walletRepo.AddBalance(ctx, tx, userID, won.Credit)
		if err != nil {
			rollback(logger, tx)
			logger.Error("failed to credit prize", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to credit prize: %w", op, err)
		}
		if err := s.txRepo.CreateTransaction(ctx, tx, userID, won.Credit, models.TxTypeGiftPrize, won.Label); err != nil {
			rollback(logger, tx)
			logger.Error("failed to record prize transaction", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to record prize transaction: %w", op, err)
		}
	}

	draw := &models.GiftDraw{
		UserID: userID,
		Prize:  won.Label,
		Source: source,
		Status: models.DrawStatusCompleted,
	}
	if won.RequiresClaim() {
		draw.Status = models.DrawStatusPendingClaim
	}
	if err := s.giftRepo.CreateDraw(ctx, tx, draw); err != nil {
		rollback(logger, tx)
		logger.Error("failed to save draw", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to save draw: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("wheel spun", slog.String("prize", won.Label), slog.String("source", source), slog.Int64("drawID", draw.ID))
	return &SpinResult{
		GiftState:     *stateOf(wallet, now),
		ID:            draw.ID,
		Prize:         won.Label,
		Source:        source,
		Status:        draw.Status,
		RequiresClaim: won.RequiresClaim(),
		Sector:        sector,
		Rotation:      prize.Rotation(sector, s.drawer.Turns()),
	}, nil
}

// BuyToken списывает цену токена с баланса и начисляет токены
func (s *giftService) BuyToken(ctx context.Context, userID int64, email string) (*TokenPurchase, error) {
	const op = "service.GiftService.BuyToken"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	if _, err := s.accounts.owner(ctx, userID, email); err != nil {
		logger.Warn("buy token access denied", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	if _, err := s.walletRepo.LockWalletTx(ctx, tx, userID); err != nil {
		rollback(logger, tx)
		logger.Error("failed to lock wallet", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to lock wallet: %w", op, err)
	}

	balance, err := s.walletRepo.AddBalance(ctx, tx, userID, -s.settings.TokenPrice)
	if err != nil {
		rollback(logger, tx)
		if errors.Is(err, storage.ErrInsufficientFunds) {
			logger.Warn("insufficient funds for token", slog.Int64("price", s.settings.TokenPrice))
		} else {
			logger.Error("failed to debit balance", slog.Any("error", err))
		}
		return nil, fmt.Errorf("%s: failed to debit balance: %w", op, err)
	}

	tokens, err := s.walletRepo.AddTokens(ctx, tx, userID, s.settings.TokensPerPurchase)
	if err != nil {
		rollback(logger, tx)
		logger.Error("failed to add tokens", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to add tokens: %w", op, err)
	}

	remark := fmt.Sprintf("gift token x%d", s.settings.TokensPerPurchase)
	if err := s.txRepo.CreateTransaction(ctx, tx, userID, -s.settings.TokenPrice, models.TxTypeTokenPurchase, remark); err != nil {
		rollback(logger, tx)
		logger.Error("failed to record token purchase", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to record token purchase: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("token purchased", slog.Int("tokens", tokens), slog.Int64("balance", balance))
	return &TokenPurchase{Tokens: tokens, Balance: balance}, nil
}

// Claim оформляет заявку на приз. Кошелек не меняется никогда:
// Diamond и UC выдаются вручную по game id, iPhone: через связь с администратором.
func (s *giftService) Claim(ctx context.Context, userID, drawID int64, details models.ClaimDetails) (*models.GiftDraw, error) {
	const op = "service.GiftService.Claim"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("drawID", drawID))

	draw, err := s.giftRepo.GetDraw(ctx, drawID)
	if err != nil {
		if errors.Is(err, storage.ErrDrawNotFound) {
			logger.Warn("draw not found")
		} else {
			logger.Error("failed to get draw", slog.Any("error", err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if draw.UserID != userID || draw.Status != models.DrawStatusPendingClaim {
		logger.Warn("draw is not claimable", slog.String("status", draw.Status))
		return nil, fmt.Errorf("%s: %w", op, ErrDrawNotFound)
	}

	details.Game = strings.TrimSpace(details.Game)
	details.GameID = strings.TrimSpace(details.GameID)
	details.ServerID = strings.TrimSpace(details.ServerID)

	won, _, ok := prize.Lookup(draw.Prize)
	if ok && won.Kind == prize.KindGame && (details.GameID == "" || details.ServerID == "") {
		logger.Warn("game id and server id are required")
		return nil, fmt.Errorf("%s: game id and server id are required: %w", op, ErrInvalidInput)
	}

	claimed, err := s.giftRepo.ClaimDraw(ctx, userID, drawID, details)
	if err != nil {
		if errors.Is(err, storage.ErrDrawNotFound) {
			logger.Warn("draw already claimed")
		} else {
			logger.Error("failed to claim draw", slog.Any("error", err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.notifier.NotifyAdmin(ctx, fmt.Sprintf(
		"Gift claim #%d\nUser: %d\nPrize: %s\nGame: %s\nGame ID: %s\nServer ID: %s",
		claimed.ID, userID, claimed.Prize, claimed.Game, claimed.GameID, claimed.ServerID,
	))

	logger.Info("gift claimed", slog.String("prize", claimed.Prize))
	return claimed, nil
}

func (s *giftService) History(ctx context.Context, userID int64, email string) ([]GiftHistoryEntry, error) {
	const op = "service.GiftService.History"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	if _, err := s.accounts.owner(ctx, userID, email); err != nil {
		logger.Warn("gift history access denied", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	draws, err := s.giftRepo.GetDrawsByUserID(ctx, userID, giftHistoryLimit)
	if err != nil {
		logger.Error("failed to get draws", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get draws: %w", op, err)
	}

	history := make([]GiftHistoryEntry, 0, len(draws))
	for _, d := range draws {
		history = append(history, GiftHistoryEntry{ID: d.ID, Remark: d.Prize, Status: d.Status, CreatedAt: d.CreatedAt})
	}
	return history, nil
}

func (s *giftService) ContactURL() string {
	return s.settings.ContactURL
}

func stateOf(w *models.Wallet, now time.Time) *GiftState {
	return &GiftState{
		FreeAvailable: w.FreeAvailable(now),
		Tokens:        w.Tokens,
		FreeNextAt:    w.FreeNextAt,
		Balance:       w.Balance,
	}
}
