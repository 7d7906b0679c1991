package notify

import (
	"context"
	"fmt"

	"campusres/internal/domain"
	"campusres/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramNotifier sends a chat message to the requester when their account
// has a linked chat id. Users without one are skipped.
type TelegramNotifier struct {
	bot    domain.TelegramSender
	users  domain.UserRepository
	logger *zerolog.Logger
}

func NewTelegramNotifier(bot domain.TelegramSender, users domain.UserRepository, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, users: users, logger: logger}
}

func (n *TelegramNotifier) ReservationStatusChanged(ctx context.Context, r models.Reservation, resourceName string) error {
	var verb string
	switch r.Status {
	case models.StatusApproved:
		verb = "approved ✅"
	case models.StatusRejected:
		verb = "rejected ❌"
	default:
		return nil
	}
	text := fmt.Sprintf("Your reservation of *%s* on %s %s-%s was %s",
		resourceName,
		r.StartTime.Format(models.DateLayout),
		r.StartTime.Format("15:04"),
		r.EndTime.Format("15:04"),
		verb,
	)
	return n.send(ctx, r.RequesterID, text)
}

func (n *TelegramNotifier) ReportMessageAdded(ctx context.Context, report models.Report, msg models.ReportMessage) error {
	text := fmt.Sprintf("New reply on your report *%s*:\n%s", report.Title, msg.Text)
	return n.send(ctx, report.RequesterID, text)
}

func (n *TelegramNotifier) send(ctx context.Context, userID int64, text string) error {
	user, err := n.users.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("telegram recipient %d: %w", userID, err)
	}
	if user.TelegramChatID == 0 {
		n.logger.Debug().Int64("user_id", userID).Msg("no telegram chat linked, skipping")
		return nil
	}

	msg := tgbotapi.NewMessage(user.TelegramChatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
