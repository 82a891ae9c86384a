// Package bot содержит Telegram-бота магазина. Бот подтверждает вход по коду
// и доставляет уведомления в админский чат.
package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/linemk/topup-shop/internal/service"
)

const (
	notifyQueueSize = 64
	notifyAttempts  = 3
	notifyDelay     = 2 * time.Second
	updatesTimeout  = 60
)

// API: часть tgbotapi.BotAPI, которой пользуется бот
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Bot struct {
	api          API
	log          *slog.Logger
	loginService service.TelegramLoginService
	wallet       service.WalletService
	adminChatID  int64
	notify       chan string
	retryDelay   time.Duration
}

func New(
	log *slog.Logger,
	api API,
	loginService service.TelegramLoginService,
	wallet service.WalletService,
	adminChatID int64,
) *Bot {
	return &Bot{
		api:          api,
		log:          log,
		loginService: loginService,
		wallet:       wallet,
		adminChatID:  adminChatID,
		notify:       make(chan string, notifyQueueSize),
		retryDelay:   notifyDelay,
	}
}

// NewFromToken подключается к Bot API
func NewFromToken(
	log *slog.Logger,
	token string,
	loginService service.TelegramLoginService,
	wallet service.WalletService,
	adminChatID int64,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	log.Info("telegram bot authorized", slog.String("username", api.Self.UserName))
	return New(log, api, loginService, wallet, adminChatID), nil
}

// Run читает апдейты и отправляет уведомления до отмены ctx
func (b *Bot) Run(ctx context.Context) {
	b.log.Info("starting telegram bot")

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.runNotifier(ctx)
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = updatesTimeout
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			<-done
			b.log.Info("telegram bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				// канал закрыт, ждем только отмены
				updates = nil
				continue
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate обрабатывает один апдейт
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	}
}

// NotifyAdmin ставит сообщение в очередь. При переполненной очереди сообщение отбрасывается.
func (b *Bot) NotifyAdmin(_ context.Context, text string) {
	if b.adminChatID == 0 {
		return
	}
	select {
	case b.notify <- text:
	default:
		b.log.Warn("admin notification dropped, queue is full")
	}
}

func (b *Bot) runNotifier(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-b.notify:
			b.deliver(ctx, text)
		}
	}
}

func (b *Bot) deliver(ctx context.Context, text string) {
	const op = "bot.deliver"
	logger := b.log.With(slog.String("op", op), slog.Int64("chatID", b.adminChatID))

	err := retry.Do(
		func() error {
			_, err := b.api.Send(tgbotapi.NewMessage(b.adminChatID, text))
			return err
		},
		retry.Context(ctx),
		retry.Attempts(notifyAttempts),
		retry.Delay(b.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("retry admin notification", slog.Uint64("attempt", uint64(n+1)), slog.Any("error", err))
		}),
	)
	if err != nil {
		logger.Error("failed to notify admin", slog.Any("error", err))
	}
}

func (b *Bot) send(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("failed to send message", slog.Int64("chatID", chatID), slog.Any("error", err))
	}
}
