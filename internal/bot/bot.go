// Package bot is the Telegram front end: requesters list their reservations
// and administrators decide pending ones from the chat.
package bot

import (
	"context"
	"time"

	"campusres/internal/metrics"
	"campusres/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Reservations interface {
	ForRequester(ctx context.Context, userID int64) ([]models.Reservation, error)
	Pending(ctx context.Context) ([]models.Reservation, error)
	Approve(ctx context.Context, id, actorID int64) (*models.Reservation, error)
	Reject(ctx context.Context, id, actorID int64) (*models.Reservation, error)
	ResourceName(ctx context.Context, ref models.ResourceRef) string
	UserName(ctx context.Context, id int64) string
}

type Users interface {
	ByTelegramChat(ctx context.Context, chatID int64) (*models.User, error)
}

type Dashboard interface {
	Metrics(ctx context.Context) (models.DashboardMetrics, error)
}

const updateTimeout = 30 * time.Second

type Bot struct {
	client       Client
	reservations Reservations
	users        Users
	dashboard    Dashboard
	pageSize     int
	logger       *zerolog.Logger
}

func New(client Client, reservations Reservations, users Users, dashboard Dashboard, pageSize int, logger *zerolog.Logger) *Bot {
	if pageSize <= 0 {
		pageSize = models.DefaultPaginationSize
	}
	return &Bot{
		client:       client,
		reservations: reservations,
		users:        users,
		dashboard:    dashboard,
		pageSize:     pageSize,
		logger:       logger,
	}
}

// Start polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.client.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.client.GetSelf().UserName).Msg("telegram bot polling")

	for {
		select {
		case <-ctx.Done():
			b.client.StopReceivingUpdates()
			b.logger.Info().Msg("telegram bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() { metrics.ObserveBotUpdate(time.Since(start)) }()

	updateCtx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	l := b.logger.With().Str("request_id", uuid.New().String()).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(updateCtx, func() {
		switch {
		case update.CallbackQuery != nil:
			metrics.IncBotUpdate("callback")
			b.handleCallback(updateCtx, update.CallbackQuery)
		case update.Message != nil && update.Message.IsCommand():
			metrics.IncBotUpdate("command")
			b.handleCommand(updateCtx, update.Message)
		case update.Message != nil:
			metrics.IncBotUpdate("message")
			b.send(updateCtx, update.Message.Chat.ID, helpText(nil))
		}
	})
}

func (b *Bot) withRecovery(ctx context.Context, handler func()) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncBotUpdate("panic")
			zerolog.Ctx(ctx).Error().Interface("panic", r).Msg("recovered from panic in update handler")
		}
	}()
	handler()
}

func (b *Bot) send(ctx context.Context, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.client.Send(msg); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("chat_id", chatID).Msg("telegram send failed")
	}
}
