package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/linemk/topup-shop/internal/app"
	"github.com/linemk/topup-shop/internal/app/handlers"
	"github.com/linemk/topup-shop/internal/bot"
	"github.com/linemk/topup-shop/internal/config"
	"github.com/linemk/topup-shop/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/topup-shop/internal/lib/logger"
	"github.com/linemk/topup-shop/internal/lib/logger/handlers/urllog"
	"github.com/linemk/topup-shop/internal/lib/upload"
	"github.com/linemk/topup-shop/internal/service"
	"github.com/linemk/topup-shop/internal/storage"
	pkgerrors "github.com/pkg/errors"
)

func main() {
	// .env необязателен, переменные окружения имеют приоритет
	_ = godotenv.Load()

	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// загружаем объект приложения с конфигом и подключениями к БД и Redis
	application, err := app.NewApp(ctx, log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(pkgerrors.Wrap(err, "failed to initialize app"))
	}
	defer application.Close()

	tokenTTL := time.Duration(cfg.JWT.TokenTTL) * time.Minute

	// слои по работе с БД
	userRepo := storage.NewUserRepository(application.DB)
	walletRepo := storage.NewWalletRepository(application.DB)
	giftRepo := storage.NewGiftRepository(application.DB)
	productRepo := storage.NewProductRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)
	txRepo := storage.NewTransactionRepository(application.DB)

	var loginStore storage.LoginStore
	if application.Redis != nil {
		loginStore = storage.NewRedisLoginStore(application.Redis, cfg.Telegram.LoginTTL)
		log.Info("telegram login sessions are stored in redis")
	} else {
		loginStore = storage.NewMemoryLoginStore()
	}

	var uploader service.Uploader
	if cfg.Storage.Bucket != "" {
		s3Uploader, err := upload.NewS3Uploader(ctx, cfg.Storage)
		if err != nil {
			log.Error("failed to initialize screenshot storage", slog.Any("error", err))
			panic(pkgerrors.Wrap(err, "failed to initialize screenshot storage"))
		}
		uploader = s3Uploader
	} else {
		log.Warn("storage bucket is not configured, payment screenshots will not be stored")
	}

	authService := service.NewAuthService(log, application.DB, userRepo, walletRepo, txRepo, tokenTTL, cfg.Gift.InitialBalance)
	walletService := service.NewWalletService(log, userRepo, walletRepo, txRepo)
	loginService := service.NewTelegramLoginService(log, application.DB, loginStore, userRepo, walletRepo, txRepo,
		cfg.Gift.InitialBalance, service.TelegramSettings{
			BotToken:    cfg.Telegram.BotToken,
			BotUsername: cfg.Telegram.BotUsername,
			LoginTTL:    cfg.Telegram.LoginTTL,
			TokenTTL:    tokenTTL,
		})

	// бот нужен сервисам как канал уведомлений админу
	var notifier service.Notifier = service.NopNotifier{}
	if cfg.Telegram.BotToken != "" {
		tgBot, err := bot.NewFromToken(log, cfg.Telegram.BotToken, loginService, walletService, cfg.Telegram.AdminChatID)
		if err != nil {
			log.Error("failed to start telegram bot", slog.Any("error", err))
			panic(pkgerrors.Wrap(err, "failed to start telegram bot"))
		}
		notifier = tgBot
		go tgBot.Run(ctx)
	} else {
		log.Warn("telegram bot token is not set, bot is disabled")
	}

	giftService := service.NewGiftService(log, application.DB, userRepo, walletRepo, giftRepo, txRepo, nil, notifier,
		service.GiftSettings{
			TokenPrice:        cfg.Gift.TokenPrice,
			TokensPerPurchase: cfg.Gift.TokensPerPurchase,
			FreeSpinCooldown:  cfg.Gift.FreeSpinCooldown,
			ContactURL:        cfg.Telegram.AdminContactURL,
		})
	orderService := service.NewOrderService(log, application.DB, walletRepo, productRepo, orderRepo, txRepo, uploader, notifier)
	adminService := service.NewAdminService(log, application.DB, userRepo, walletRepo, orderRepo, txRepo, giftRepo,
		cfg.Admin.Username, cfg.Admin.PasswordHash, tokenTTL)

	go loginService.RunSweeper(ctx, cfg.Telegram.SweepInterval)

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	// URLFormat не подключаем: он отрезает ".com" у email в пути

	// публичные эндпоинты
	router.Post("/api/register", handlers.RegisterHandler(log, authService))
	router.Post("/api/login", handlers.LoginHandler(log, authService))
	router.Get("/api/gift/contact-admin", handlers.GiftContactHandler(log, giftService))
	router.Get("/api/shops/{shop}/products", handlers.ProductsHandler(log, orderService))
	router.Get("/api/telegram-login-status/{code}", handlers.TelegramLoginStatusHandler(log, loginService))
	router.Post("/api/telegram-bot-confirm", handlers.TelegramBotConfirmHandler(log, loginService, cfg.Telegram.BotSecret))
	router.Post("/api/admin/login", handlers.AdminLoginHandler(log, adminService))

	// вход через Telegram: токен, если передан, привязывает Telegram к аккаунту
	router.Group(func(r chi.Router) {
		r.Use(jwtmiddleware.NewOptionalJWTMiddleware())
		r.Post("/api/telegram-login-start", handlers.TelegramLoginStartHandler(log, loginService))
		r.Post("/api/telegram-login-confirm", handlers.TelegramWidgetConfirmHandler(log, loginService))
	})

	router.Group(func(r chi.Router) {
		r.Use(jwtmiddleware.NewJWTMiddleware())
		r.Get("/api/me", handlers.MeHandler(log, authService))
		r.Get("/api/wallet/transactions", handlers.TransactionsHandler(log, walletService))
		r.Get("/api/wallet/{email}", handlers.WalletHandler(log, walletService))
		r.Post("/api/orders", handlers.CreateOrderHandler(log, orderService))
		r.Get("/api/orders", handlers.OrdersHandler(log, orderService))

		r.Get("/api/gift/state/{email}", handlers.GiftStateHandler(log, giftService))
		r.Post("/api/gift/spin", handlers.GiftSpinHandler(log, giftService))
		r.Post("/api/gift/buy-token", handlers.GiftBuyTokenHandler(log, giftService))
		r.Post("/api/gift/claim/{giftId}", handlers.GiftClaimHandler(log, giftService))
		r.Get("/api/gift/history/{email}", handlers.GiftHistoryHandler(log, giftService))
	})

	router.Group(func(r chi.Router) {
		r.Use(jwtmiddleware.NewJWTMiddleware())
		r.Use(jwtmiddleware.RequireAdmin)
		r.Get("/api/admin/users", handlers.AdminUsersHandler(log, adminService))
		r.Get("/api/admin/orders", handlers.AdminOrdersHandler(log, adminService))
		r.Get("/api/admin/transactions", handlers.AdminTransactionsHandler(log, adminService))
		r.Get("/api/admin/wallets", handlers.AdminWalletsHandler(log, adminService))
		r.Get("/api/admin/gift-draws", handlers.AdminDrawsHandler(log, adminService))
		r.Post("/api/admin/wallets/{userID}/deposit", handlers.AdminDepositHandler(log, adminService))
	})

	// long-poll статуса входа держит ответ до MaxStatusWait
	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout + service.MaxStatusWait,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.Any("error", err))
			cancel()
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	log.Info("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}
