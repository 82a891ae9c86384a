package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/linemk/topup-shop/internal/domain/models"
	"github.com/linemk/topup-shop/internal/lib/upload"
	"github.com/linemk/topup-shop/internal/storage"
)

// Uploader сохраняет скриншот оплаты и возвращает публичную ссылку
type Uploader interface {
	Upload(ctx context.Context, prefix string, r io.Reader) (string, error)
}

// OrderRequest: данные формы заказа
type OrderRequest struct {
	Shop           string
	Item           string
	Price          int64
	PaymentMethod  string
	RecipientName  string
	RecipientPhone string
	GameID         string
	ServerID       string
	Screenshot     io.Reader // обязателен для всех способов оплаты, кроме wallet
}

type OrderService interface {
	PlaceOrder(ctx context.Context, userID int64, req OrderRequest) (*models.Order, error)
	Orders(ctx context.Context, userID int64) ([]*models.Order, error)
	Products(ctx context.Context, shop string) ([]*models.Product, error)
}

type orderService struct {
	log         *slog.Logger
	db          *sql.DB
	walletRepo  storage.WalletStorage
	productRepo storage.ProductStorage
	orderRepo   storage.OrderStorage
	txRepo      storage.TransactionStorage
	uploader    Uploader
	notifier    Notifier
}

// NewOrderService: uploader == nil отключает хранение скриншотов
func NewOrderService(
	log *slog.Logger,
	db *sql.DB,
	walletRepo storage.WalletStorage,
	productRepo storage.ProductStorage,
	orderRepo storage.OrderStorage,
	txRepo storage.TransactionStorage,
	uploader Uploader,
	notifier Notifier,
) OrderService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &orderService{
		log:         log,
		db:          db,
		walletRepo:  walletRepo,
		productRepo: productRepo,
		orderRepo:   orderRepo,
		txRepo:      txRepo,
		uploader:    uploader,
		notifier:    notifier,
	}
}

// PlaceOrder создает заказ. Цена берется из каталога, если позиция в нем есть.
// Оплата с кошелька списывает баланс в той же транзакции, что и создание заказа;
// остальные способы требуют скриншот перевода.
func (s *orderService) PlaceOrder(ctx context.Context, userID int64, req OrderRequest) (*models.Order, error) {
	const op = "service.OrderService.PlaceOrder"
	req.Shop = strings.ToLower(strings.TrimSpace(req.Shop))
	req.Item = strings.TrimSpace(req.Item)
	req.PaymentMethod = strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("userID", userID),
		slog.String("shop", req.Shop),
		slog.String("item", req.Item),
		slog.String("payment", req.PaymentMethod),
	)
	logger.Info("placing order")

	if req.Shop == "" || req.Item == "" || req.PaymentMethod == "" {
		return nil, fmt.Errorf("%s: shop, item and payment method are required: %w", op, ErrInvalidInput)
	}

	wallet := req.PaymentMethod == models.PaymentMethodWallet

	// скриншот проверяется всегда, загружается только после проверки заказа
	var screenshot []byte
	if !wallet {
		if req.Screenshot == nil {
			logger.Warn("payment screenshot is missing")
			return nil, fmt.Errorf("%s: payment screenshot is required: %w", op, ErrInvalidInput)
		}
		data, _, err := upload.ReadImage(req.Screenshot)
		if err != nil {
			logger.Warn("payment screenshot rejected", slog.Any("error", err))
			return nil, fmt.Errorf("%s: invalid screenshot: %w", op, err)
		}
		screenshot = data
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	price := req.Price
	product, err := s.productRepo.GetProduct(ctx, tx, req.Shop, req.Item)
	switch {
	case err == nil:
		price = product.Price
	case errors.Is(err, storage.ErrProductNotFound) && !wallet && price > 0:
		// услуги вне каталога оплачиваются переводом по цене со страницы магазина
	default:
		rollback(logger, tx)
		if errors.Is(err, storage.ErrProductNotFound) {
			logger.Warn("product not found")
		} else {
			logger.Error("failed to get product", slog.Any("error", err))
		}
		return nil, fmt.Errorf("%s: failed to get product: %w", op, err)
	}

	var screenshotURL string
	if wallet {
		if _, err := s.walletRepo.LockWalletTx(ctx, tx, userID); err != nil {
			rollback(logger, tx)
			logger.Error("failed to lock wallet", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to lock wallet: %w", op, err)
		}
		if _, err := s.walletRepo.AddBalance(ctx, tx, userID, -price); err != nil {
			rollback(logger, tx)
			logger.Warn("failed to debit wallet", slog.Int64("price", price), slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to debit wallet: %w", op, err)
		}
		if err := s.txRepo.CreateTransaction(ctx, tx, userID, -price, models.TxTypeOrderPayment, req.Shop+": "+req.Item); err != nil {
			rollback(logger, tx)
			logger.Error("failed to record payment", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to record payment: %w", op, err)
		}
	} else {
		screenshotURL, err = s.storeScreenshot(ctx, logger, screenshot)
		if err != nil {
			rollback(logger, tx)
			return nil, fmt.Errorf("%s: failed to upload screenshot: %w", op, err)
		}
	}

	order := &models.Order{
		UserID:         userID,
		Shop:           req.Shop,
		Item:           req.Item,
		Price:          price,
		PaymentMethod:  req.PaymentMethod,
		RecipientName:  strings.TrimSpace(req.RecipientName),
		RecipientPhone: strings.TrimSpace(req.RecipientPhone),
		GameID:         strings.TrimSpace(req.GameID),
		ServerID:       strings.TrimSpace(req.ServerID),
		ScreenshotURL:  screenshotURL,
		Status:         models.OrderStatusPending,
	}
	if err := s.orderRepo.CreateOrder(ctx, tx, order); err != nil {
		rollback(logger, tx)
		logger.Error("failed to create order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create order: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	s.notifier.NotifyAdmin(ctx, fmt.Sprintf(
		"New order #%d\nShop: %s\nItem: %s\nPrice: %d %s\nPayment: %s\nGame ID: %s (%s)\nScreenshot: %s",
		order.ID, order.Shop, order.Item, order.Price, models.Currency, order.PaymentMethod,
		order.GameID, order.ServerID, order.ScreenshotURL,
	))

	logger.Info("order placed", slog.Int64("orderID", order.ID), slog.Int64("price", price))
	return order, nil
}

// storeScreenshot: без хранилища скриншот проверен, но не сохраняется
func (s *orderService) storeScreenshot(ctx context.Context, logger *slog.Logger, data []byte) (string, error) {
	if s.uploader == nil {
		logger.Warn("screenshot storage is not configured, screenshot dropped")
		return "", nil
	}
	url, err := s.uploader.Upload(ctx, "screenshots", bytes.NewReader(data))
	if err != nil {
		logger.Error("failed to upload screenshot", slog.Any("error", err))
		return "", err
	}
	return url, nil
}

func (s *orderService) Orders(ctx context.Context, userID int64) ([]*models.Order, error) {
	const op = "service.OrderService.Orders"

	orders, err := s.orderRepo.GetOrdersByUserID(ctx, userID)
	if err != nil {
		s.log.Error("failed to get orders", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

func (s *orderService) Products(ctx context.Context, shop string) ([]*models.Product, error) {
	const op = "service.OrderService.Products"

	products, err := s.productRepo.ListProducts(ctx, strings.ToLower(strings.TrimSpace(shop)))
	if err != nil {
		s.log.Error("failed to list products", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return products, nil
}
