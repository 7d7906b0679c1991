package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client is the part of the Telegram Bot API the bot uses.
type Client interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	StopReceivingUpdates()
	GetSelf() tgbotapi.User
}

type APIClient struct {
	*tgbotapi.BotAPI
}

func NewAPIClient(api *tgbotapi.BotAPI) *APIClient {
	return &APIClient{BotAPI: api}
}

func (c *APIClient) GetSelf() tgbotapi.User {
	return c.Self
}
