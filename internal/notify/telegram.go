package notify

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shaumne/tony-new-bot/internal/models"
)

// Telegram pushes lifecycle messages to a single chat. Send failures are
// logged and swallowed.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger zerolog.Logger
}

// NewTelegram creates a Telegram notifier for the given bot token and chat.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	return &Telegram{
		bot:    bot,
		chatID: chatID,
		logger: log.With().Str("component", "telegram_notifier").Logger(),
	}, nil
}

func (t *Telegram) send(text string) {
	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Warn().Err(err).Msg("failed to send telegram message")
	}
}

func (t *Telegram) PositionOpened(pos *models.Position, symbol string) {
	t.send(formatOpened(pos, symbol))
}

func (t *Telegram) PositionClosed(trade models.ClosedTrade, symbol string) {
	t.send(formatClosed(trade, symbol))
}

func (t *Telegram) TakeProfit1Hit(pos *models.Position, symbol string) {
	t.send(formatTP1(pos, symbol))
}

func (t *Telegram) Error(op string, err error) {
	t.send(formatError(op, err))
}
