package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"campusres/internal/domain"
	"campusres/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	cbMinePage    = "mine_page"
	cbPendingPage = "pending_page"
	cbApprove     = "approve"
	cbReject      = "reject"
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if cmd := msg.Command(); cmd == "start" || cmd == "help" {
		b.handleStart(ctx, chatID)
		return
	}

	user := b.identify(ctx, chatID)
	if user == nil {
		return
	}

	switch msg.Command() {
	case "mine":
		b.sendMine(ctx, chatID, 0, user, 0)
	case "pending":
		if !b.requireAdmin(ctx, chatID, user) {
			return
		}
		b.sendPending(ctx, chatID, 0, 0)
	case "dashboard":
		if !b.requireAdmin(ctx, chatID, user) {
			return
		}
		b.sendDashboard(ctx, chatID)
	default:
		b.send(ctx, chatID, "Unknown command.\n\n"+helpText(user))
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	user, err := b.users.ByTelegramChat(ctx, chatID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		b.send(ctx, chatID, notLinkedText(chatID))
	case err != nil:
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("lookup user by chat")
		b.send(ctx, chatID, errorText(err))
	default:
		b.send(ctx, chatID, fmt.Sprintf("Hello, %s!\n\n%s", escape(user.FullName), helpText(user)))
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// ответ убирает "часики" на кнопке
	if _, err := b.client.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("answer callback")
	}
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	action, arg, _ := strings.Cut(cb.Data, ":")
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Str("data", cb.Data).Msg("malformed callback data")
		return
	}

	user := b.identify(ctx, chatID)
	if user == nil {
		return
	}

	switch action {
	case cbMinePage:
		b.sendMine(ctx, chatID, cb.Message.MessageID, user, int(n))
	case cbPendingPage:
		if b.requireAdmin(ctx, chatID, user) {
			b.sendPending(ctx, chatID, cb.Message.MessageID, int(n))
		}
	case cbApprove, cbReject:
		if b.requireAdmin(ctx, chatID, user) {
			b.decide(ctx, chatID, user, action, n)
		}
	default:
		zerolog.Ctx(ctx).Warn().Str("data", cb.Data).Msg("unknown callback")
	}
}

// identify resolves the campus account linked to chatID and tells the chat
// when there is none.
func (b *Bot) identify(ctx context.Context, chatID int64) *models.User {
	user, err := b.users.ByTelegramChat(ctx, chatID)
	if err == nil {
		return user
	}
	if errors.Is(err, domain.ErrNotFound) {
		b.send(ctx, chatID, notLinkedText(chatID))
		return nil
	}
	zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("lookup user by chat")
	b.send(ctx, chatID, errorText(err))
	return nil
}

func (b *Bot) requireAdmin(ctx context.Context, chatID int64, user *models.User) bool {
	if user.IsAdmin() {
		return true
	}
	b.send(ctx, chatID, "⛔ This command is for administrators.")
	return false
}

func (b *Bot) sendMine(ctx context.Context, chatID int64, messageID int, user *models.User, index int) {
	list, err := b.reservations.ForRequester(ctx, user.ID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", user.ID).Msg("list own reservations")
		b.send(ctx, chatID, errorText(err))
		return
	}
	if len(list) == 0 {
		b.send(ctx, chatID, "You have no reservations yet.")
		return
	}

	b.renderPage(ctx, page{
		chatID:     chatID,
		messageID:  messageID,
		index:      index,
		title:      "📋 *Your reservations*",
		pagePrefix: cbMinePage,
	}, len(list), func(start, end int) (string, [][]tgbotapi.InlineKeyboardButton) {
		var sb strings.Builder
		for _, r := range list[start:end] {
			sb.WriteString(b.describe(ctx, r, false))
		}
		return sb.String(), nil
	})
}

func (b *Bot) sendPending(ctx context.Context, chatID int64, messageID int, index int) {
	list, err := b.reservations.Pending(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("list pending reservations")
		b.send(ctx, chatID, errorText(err))
		return
	}
	if len(list) == 0 {
		b.send(ctx, chatID, "✅ No reservations are waiting for a decision.")
		return
	}

	b.renderPage(ctx, page{
		chatID:     chatID,
		messageID:  messageID,
		index:      index,
		title:      "⏳ *Pending reservations*",
		pagePrefix: cbPendingPage,
	}, len(list), func(start, end int) (string, [][]tgbotapi.InlineKeyboardButton) {
		var (
			sb       strings.Builder
			keyboard [][]tgbotapi.InlineKeyboardButton
		)
		for _, r := range list[start:end] {
			sb.WriteString(b.describe(ctx, r, true))
			keyboard = append(keyboard, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d", r.ID), fmt.Sprintf("%s:%d", cbApprove, r.ID)),
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("❌ #%d", r.ID), fmt.Sprintf("%s:%d", cbReject, r.ID)),
			))
		}
		return sb.String(), keyboard
	})
}

func (b *Bot) decide(ctx context.Context, chatID int64, admin *models.User, action string, id int64) {
	var (
		r   *models.Reservation
		err error
	)
	if action == cbApprove {
		r, err = b.reservations.Approve(ctx, id, admin.ID)
	} else {
		r, err = b.reservations.Reject(ctx, id, admin.ID)
	}
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("reservation_id", id).Str("action", action).Msg("decision failed")
		b.send(ctx, chatID, errorText(err))
		return
	}

	zerolog.Ctx(ctx).Info().
		Int64("reservation_id", r.ID).
		Int64("actor_id", admin.ID).
		Str("status", string(r.Status)).
		Msg("reservation decided from chat")
	b.send(ctx, chatID, fmt.Sprintf("%s Reservation #%d is now *%s*.", statusEmoji(r.Status), r.ID, r.Status))
}

func (b *Bot) sendDashboard(ctx context.Context, chatID int64) {
	m, err := b.dashboard.Metrics(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("dashboard metrics")
		b.send(ctx, chatID, errorText(err))
		return
	}
	b.send(ctx, chatID, fmt.Sprintf("📊 *Today*\n\n"+
		"⏳ Pending requests: %d\n"+
		"🏫 Spaces occupied: %d\n"+
		"💻 Equipment in use: %d\n"+
		"🛠 Open reports: %d",
		m.PendingReservations, m.SpacesOccupied, m.EquipmentInUse, m.OpenReports))
}

func (b *Bot) describe(ctx context.Context, r models.Reservation, withRequester bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s *#%d* %s\n", statusEmoji(r.Status), r.ID, escape(b.reservations.ResourceName(ctx, r.Resource)))
	fmt.Fprintf(&sb, "   📅 %s %s-%s\n",
		r.StartTime.Format(models.DateLayout), r.StartTime.Format("15:04"), r.EndTime.Format("15:04"))
	if withRequester {
		fmt.Fprintf(&sb, "   👤 %s\n", escape(b.reservations.UserName(ctx, r.RequesterID)))
	}
	sb.WriteString("\n")
	return sb.String()
}
