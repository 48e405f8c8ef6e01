package bot

import (
	"clinicbook/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramClient adapts *tgbotapi.BotAPI to domain.TelegramSender.
type telegramClient struct {
	*tgbotapi.BotAPI
}

func NewTelegramClient(api *tgbotapi.BotAPI) domain.TelegramSender {
	return telegramClient{BotAPI: api}
}

func (c telegramClient) GetSelf() tgbotapi.User {
	return c.Self
}
