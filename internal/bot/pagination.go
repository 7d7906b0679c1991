package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

type page struct {
	chatID     int64
	messageID  int // 0 sends a new message
	index      int
	title      string
	pagePrefix string
}

// renderPage draws one page of a list with navigation buttons. Callback data
// for navigation is pagePrefix + ":" + page index.
func (b *Bot) renderPage(ctx context.Context, p page, total int, render func(start, end int) (string, [][]tgbotapi.InlineKeyboardButton)) {
	totalPages := (total + b.pageSize - 1) / b.pageSize
	if p.index >= totalPages {
		p.index = totalPages - 1
	}
	if p.index < 0 {
		p.index = 0
	}

	start := p.index * b.pageSize
	end := start + b.pageSize
	if end > total {
		end = total
	}

	content, keyboard := render(start, end)

	var text strings.Builder
	text.WriteString(p.title + "\n\n")
	if totalPages > 1 {
		fmt.Fprintf(&text, "Page %d of %d\n\n", p.index+1, totalPages)
	}
	text.WriteString(content)

	var nav []tgbotapi.InlineKeyboardButton
	if p.index > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", fmt.Sprintf("%s:%d", p.pagePrefix, p.index-1)))
	}
	if end < total {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", fmt.Sprintf("%s:%d", p.pagePrefix, p.index+1)))
	}
	if len(nav) > 0 {
		keyboard = append(keyboard, nav)
	}

	var msg tgbotapi.Chattable
	if p.messageID != 0 {
		edit := tgbotapi.NewEditMessageText(p.chatID, p.messageID, text.String())
		edit.ParseMode = tgbotapi.ModeMarkdown
		if len(keyboard) > 0 {
			markup := tgbotapi.NewInlineKeyboardMarkup(keyboard...)
			edit.ReplyMarkup = &markup
		}
		msg = edit
	} else {
		m := tgbotapi.NewMessage(p.chatID, text.String())
		m.ParseMode = tgbotapi.ModeMarkdown
		if len(keyboard) > 0 {
			m.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboard...)
		}
		msg = m
	}
	if _, err := b.client.Send(msg); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("chat_id", p.chatID).Msg("telegram send page failed")
	}
}
