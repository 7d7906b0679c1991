package bot

import (
	"errors"
	"fmt"
	"strings"

	"campusres/internal/domain"
	"campusres/internal/ledger"
	"campusres/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func helpText(user *models.User) string {
	var sb strings.Builder
	sb.WriteString("Available commands:\n")
	sb.WriteString("/mine - your reservations\n")
	if user.IsAdmin() {
		sb.WriteString("/pending - requests waiting for a decision\n")
		sb.WriteString("/dashboard - today's figures\n")
	}
	sb.WriteString("/help - this message")
	return sb.String()
}

func notLinkedText(chatID int64) string {
	return fmt.Sprintf("This chat is not linked to a campus account.\n"+
		"Ask an administrator to set chat id `%d` on your profile.", chatID)
}

func errorText(err error) string {
	switch {
	case errors.Is(err, ledger.ErrConflict):
		return "⚠️ The resource is already booked for that time, the request cannot be approved."
	case errors.Is(err, ledger.ErrAlreadyDecided):
		return "ℹ️ This reservation was already decided."
	case errors.Is(err, domain.ErrNotFound):
		return "⚠️ Reservation not found."
	case errors.Is(err, ledger.ErrValidation):
		return "⚠️ " + escape(err.Error())
	}
	return "❌ Something went wrong, please try again later."
}

func statusEmoji(s models.ReservationStatus) string {
	switch s {
	case models.StatusApproved:
		return "✅"
	case models.StatusRejected:
		return "❌"
	}
	return "⏳"
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}
