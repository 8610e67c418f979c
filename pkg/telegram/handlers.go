package telegram

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/korjavin/mealplanner/pkg/logger"
	"github.com/korjavin/mealplanner/pkg/messages"
	"github.com/korjavin/mealplanner/pkg/models"
	"github.com/korjavin/mealplanner/pkg/recipe"
	"github.com/korjavin/mealplanner/pkg/scheduler"
	"github.com/korjavin/mealplanner/pkg/stats"
)

// mealCallbackPrefix marks inline buttons that open a planned meal's recipe.
// The payload is "<date>/<slot index>" so it stays within Telegram's 64 byte
// callback data limit whatever the meal and recipe names are.
const mealCallbackPrefix = "meal:"

// statsLimit is how many recipes /stats lists
const statsLimit = 10

// RecipeLookup finds recipes by title
type RecipeLookup interface {
	Lookup(title string) (recipe.Recipe, error)
}

// Handlers answers chat commands from the calendar's plan
type Handlers struct {
	bot       *Bot
	scheduler *scheduler.Scheduler
	recipes   RecipeLookup
	stats     *stats.Service
	messages  *messages.Service
	logger    *logger.Logger
}

// NewHandlers creates the command handlers. statsService may be nil.
func NewHandlers(bot *Bot, s *scheduler.Scheduler, recipes RecipeLookup, statsService *stats.Service) *Handlers {
	return &Handlers{
		bot:       bot,
		scheduler: s,
		recipes:   recipes,
		stats:     statsService,
		messages:  messages.New(s.Name()),
		logger:    logger.New("telegram"),
	}
}

// Commands returns the command handlers keyed by command name
func (h *Handlers) Commands() map[string]CommandHandler {
	return map[string]CommandHandler{
		"start":  h.welcome,
		"help":   h.welcome,
		"today":  h.today,
		"week":   h.week,
		"recipe": h.recipe,
		"stats":  h.showStats,
	}
}

// Callbacks returns the callback handlers keyed by data prefix
func (h *Handlers) Callbacks() map[string]CallbackHandler {
	return map[string]CallbackHandler{
		mealCallbackPrefix: h.openMeal,
	}
}

// Run starts the bot with these handlers
func (h *Handlers) Run() error {
	return h.bot.Start(h.Commands(), h.Callbacks(), nil)
}

func (h *Handlers) send(chatID int64, text string) {
	if _, err := h.bot.SendMessage(chatID, text); err != nil {
		h.logger.Error("Failed to send message to chat %d: %v", chatID, err)
	}
}

func (h *Handlers) welcome(message *tgbotapi.Message) {
	h.send(message.Chat.ID, h.messages.Welcome())
}

func (h *Handlers) today(message *tgbotapi.Message) {
	chatID := message.Chat.ID

	meals, err := h.scheduler.Today()
	if err != nil {
		h.logger.Error("Failed to get today's meals: %v", err)
		h.send(chatID, h.messages.Error("plan today's meals"))
		return
	}

	text := h.messages.Today(h.scheduler.Date(), meals)
	if len(meals) == 0 {
		h.send(chatID, text)
		return
	}

	if _, err := h.bot.SendMessageWithKeyboard(chatID, text, h.mealKeyboard(meals)); err != nil {
		h.logger.Error("Failed to send today's meals to chat %d: %v", chatID, err)
	}
}

func (h *Handlers) mealKeyboard(meals []scheduler.Assignment) tgbotapi.InlineKeyboardMarkup {
	index := make(map[string]int)
	for i, slot := range h.scheduler.Slots() {
		index[slot.Name] = i
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(meals))
	for _, m := range meals {
		label := fmt.Sprintf("%s: %s", m.Slot.Name, m.Title)
		data := fmt.Sprintf("%s%s/%d", mealCallbackPrefix, m.Date, index[m.Slot.Name])
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, data)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (h *Handlers) week(message *tgbotapi.Message) {
	chatID := message.Chat.ID

	if _, err := h.scheduler.Update(); err != nil {
		h.logger.Error("Failed to update plan: %v", err)
		h.send(chatID, h.messages.Error("plan this week's meals"))
		return
	}
	meals, err := h.scheduler.Assignments()
	if err != nil {
		h.logger.Error("Failed to list planned meals: %v", err)
		h.send(chatID, h.messages.Error("list this week's meals"))
		return
	}

	h.send(chatID, h.messages.Week(meals))
}

func (h *Handlers) recipe(message *tgbotapi.Message) {
	chatID := message.Chat.ID

	title := strings.TrimSpace(message.CommandArguments())
	if title == "" {
		h.send(chatID, h.messages.RecipeUsage())
		return
	}

	r, err := h.recipes.Lookup(title)
	if errors.Is(err, recipe.ErrNotFound) {
		h.send(chatID, h.messages.RecipeNotFound(title))
		return
	}
	if err != nil {
		h.logger.Error("Failed to look up recipe %q: %v", title, err)
		h.send(chatID, h.messages.Error("find that recipe"))
		return
	}

	h.send(chatID, h.messages.Recipe(r))
}

func (h *Handlers) showStats(message *tgbotapi.Message) {
	chatID := message.Chat.ID

	if h.stats == nil {
		h.send(chatID, h.messages.StatsDisabled())
		return
	}

	top, err := h.stats.TopRecipes(h.scheduler.Name(), statsLimit)
	if err != nil {
		h.logger.Error("Failed to get statistics: %v", err)
		h.send(chatID, h.messages.Error("load the statistics"))
		return
	}

	h.send(chatID, h.messages.Stats(top))
}

func (h *Handlers) openMeal(callback *tgbotapi.CallbackQuery) {
	date, slotIndex, ok := parseMealKey(strings.TrimPrefix(callback.Data, mealCallbackPrefix))
	slots := h.scheduler.Slots()
	if ok && slotIndex >= len(slots) {
		ok = false
	}
	if !ok {
		h.logger.Warn("Malformed meal callback %q", callback.Data)
	}

	slot := ""
	if ok {
		slot = slots[slotIndex].Name
	}

	var meals []scheduler.Assignment
	if ok {
		var err error
		if meals, err = h.scheduler.Assignments(); err != nil {
			h.logger.Error("Failed to list planned meals: %v", err)
		}
	}

	var found *scheduler.Assignment
	for i := range meals {
		if meals[i].Date == date && meals[i].Slot.Name == slot {
			found = &meals[i]
			break
		}
	}

	if found == nil {
		if err := h.bot.AnswerCallbackQuery(callback.ID, "That meal is no longer planned."); err != nil {
			h.logger.Error("Failed to answer callback: %v", err)
		}
		return
	}

	if err := h.bot.AnswerCallbackQuery(callback.ID, found.Title); err != nil {
		h.logger.Error("Failed to answer callback: %v", err)
	}
	if callback.Message != nil {
		h.send(callback.Message.Chat.ID, h.messages.Recipe(found.Recipe))
	}
}

// parseMealKey splits a callback payload into its date and slot index
func parseMealKey(key string) (date string, slot int, ok bool) {
	date, rest, ok := strings.Cut(key, "/")
	if !ok || len(date) != len(models.DateLayout) {
		return "", 0, false
	}
	slot, err := strconv.Atoi(rest)
	if err != nil || slot < 0 {
		return "", 0, false
	}
	return date, slot, true
}
