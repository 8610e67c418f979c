package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/korjavin/mealplanner/pkg/logger"
)

// botAPI is the part of tgbotapi.BotAPI the bot uses
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot represents a Telegram bot instance
type Bot struct {
	api    botAPI
	logger *logger.Logger
}

// HandlerFunc is a function that handles a Telegram update
type HandlerFunc func(update tgbotapi.Update)

// CommandHandler is a function that handles a Telegram command
type CommandHandler func(message *tgbotapi.Message)

// CallbackHandler is a function that handles a Telegram callback query
type CallbackHandler func(callback *tgbotapi.CallbackQuery)

// New creates a new Telegram bot instance
func New(token string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	bot := newWithAPI(api)
	bot.logger.Info("Telegram bot created: @%s", api.Self.UserName)
	return bot, nil
}

func newWithAPI(api botAPI) *Bot {
	return &Bot{
		api:    api,
		logger: logger.New("telegram"),
	}
}

// Start listens for updates and dispatches them until Stop is called
func (b *Bot) Start(commandHandlers map[string]CommandHandler, callbackHandlers map[string]CallbackHandler, defaultHandler HandlerFunc) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	for update := range updates {
		b.dispatch(update, commandHandlers, callbackHandlers, defaultHandler)
	}

	return nil
}

// Stop ends the update loop started by Start
func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
}

func (b *Bot) dispatch(update tgbotapi.Update, commandHandlers map[string]CommandHandler, callbackHandlers map[string]CallbackHandler, defaultHandler HandlerFunc) {
	// Handle commands
	if update.Message != nil && update.Message.IsCommand() {
		command := update.Message.Command()
		if handler, ok := commandHandlers[command]; ok {
			b.logger.Info("Handling command /%s in chat %d from %s", command, update.Message.Chat.ID, userName(update.Message.From))
			handler(update.Message)
			return
		}
	}

	// Handle callback queries
	if update.CallbackQuery != nil {
		data := update.CallbackQuery.Data
		for prefix, handler := range callbackHandlers {
			if strings.HasPrefix(data, prefix) {
				b.logger.Info("Handling callback %s from %s", data, userName(update.CallbackQuery.From))
				handler(update.CallbackQuery)
				return
			}
		}
		b.logger.Warn("No handler for callback %s", data)
		return
	}

	// Use default handler for other updates
	if defaultHandler != nil {
		defaultHandler(update)
	}
}

func userName(u *tgbotapi.User) string {
	if u == nil {
		return "unknown"
	}
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return u.FirstName
}

// SendMessage sends a text message to a chat
func (b *Bot) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	return b.api.Send(msg)
}

// SendMessageWithKeyboard sends a text message with an inline keyboard
func (b *Bot) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	return b.api.Send(msg)
}

// AnswerCallbackQuery answers a callback query
func (b *Bot) AnswerCallbackQuery(callbackID string, text string) error {
	callback := tgbotapi.NewCallback(callbackID, text)
	_, err := b.api.Request(callback)
	return err
}
