package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/linemk/topup-shop/internal/domain/models"
	"github.com/linemk/topup-shop/internal/service"
)

const (
	loginPayloadPrefix = "login_"
	callbackConfirm    = "login_confirm:"
	callbackDecline    = "login_decline:"
)

const helpText = "Commands:\n" +
	"/balance - wallet balance and spin tokens\n" +
	"/help - this message\n\n" +
	"To sign in on the website press \"Login with Telegram\" there and follow the link."

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		args := strings.TrimSpace(msg.CommandArguments())
		if strings.HasPrefix(args, loginPayloadPrefix) {
			b.handleLoginStart(ctx, chatID, strings.TrimPrefix(args, loginPayloadPrefix))
			return
		}
		b.send(chatID, "Welcome to the top-up shop!\n\n"+helpText, nil)
	case "help":
		b.send(chatID, helpText, nil)
	case "balance":
		b.handleBalance(ctx, chatID, msg.From)
	default:
		b.send(chatID, "Unknown command. Use /help.", nil)
	}
}

func (b *Bot) handleLoginStart(ctx context.Context, chatID int64, code string) {
	logger := b.log.With(slog.String("op", "bot.handleLoginStart"), slog.String("code", code))

	if _, err := b.loginService.Lookup(ctx, code); err != nil {
		if !errors.Is(err, service.ErrInvalidCode) {
			logger.Error("failed to look up login", slog.Any("error", err))
		}
		b.send(chatID, "This login link is invalid or has expired. Start again on the website.", nil)
		return
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", callbackConfirm+code),
			tgbotapi.NewInlineKeyboardButtonData("❌ Decline", callbackDecline+code),
		),
	)
	b.send(chatID, fmt.Sprintf("Sign in to the top-up shop with code %s?", code), keyboard)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	logger := b.log.With(slog.String("op", "bot.handleCallback"), slog.Int64("telegramID", cb.From.ID))

	var (
		code    string
		approve bool
	)
	switch {
	case strings.HasPrefix(cb.Data, callbackConfirm):
		code, approve = strings.TrimPrefix(cb.Data, callbackConfirm), true
	case strings.HasPrefix(cb.Data, callbackDecline):
		code = strings.TrimPrefix(cb.Data, callbackDecline)
	default:
		b.answerCallback(cb.ID, "")
		return
	}

	identity := models.TelegramIdentity{
		ID:        cb.From.ID,
		Username:  cb.From.UserName,
		FirstName: cb.From.FirstName,
		LastName:  cb.From.LastName,
	}

	var err error
	if approve {
		err = b.loginService.Confirm(ctx, code, identity)
	} else {
		err = b.loginService.Decline(ctx, code, identity)
	}

	var reply string
	switch {
	case errors.Is(err, service.ErrInvalidCode):
		reply = "This login link is invalid or has expired."
	case err != nil:
		logger.Error("failed to resolve login", slog.Any("error", err))
		reply = "Something went wrong, please try again."
	case approve:
		reply = "Login confirmed. Return to the website."
	default:
		reply = "Login declined."
	}

	b.answerCallback(cb.ID, reply)
	if cb.Message != nil {
		edit := tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID, reply)
		if _, err := b.api.Request(edit); err != nil {
			logger.Warn("failed to edit login message", slog.Any("error", err))
		}
	}
}

func (b *Bot) handleBalance(ctx context.Context, chatID int64, from *tgbotapi.User) {
	if from == nil {
		return
	}
	wallet, err := b.wallet.BalanceByTelegramID(ctx, from.ID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			b.send(chatID, "Your Telegram is not linked to a shop account yet. Sign in on the website with Telegram first.", nil)
			return
		}
		b.log.Error("failed to load balance", slog.Int64("telegramID", from.ID), slog.Any("error", err))
		b.send(chatID, "Could not load your balance, please try again later.", nil)
		return
	}
	b.send(chatID, fmt.Sprintf("Balance: %d %s\nSpin tokens: %d", wallet.Balance, models.Currency, wallet.Tokens), nil)
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.log.Warn("failed to answer callback", slog.Any("error", err))
	}
}
