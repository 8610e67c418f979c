package messages

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/korjavin/mealplanner/pkg/recipe"
	"github.com/korjavin/mealplanner/pkg/scheduler"
	"github.com/korjavin/mealplanner/pkg/stats"
)

// MaxLength is the longest text Telegram accepts in one message
const MaxLength = 4096

// Service formats chat replies for one calendar
type Service struct {
	calendar string
}

// New creates a new message service
func New(calendar string) *Service {
	return &Service{calendar: calendar}
}

// Welcome is the reply to /start and /help
func (s *Service) Welcome() string {
	return "👋 Welcome to the " + s.calendar + " meal planner!\n\n" +
		"/today - what's cooking today\n" +
		"/week - the rest of this rotation\n" +
		"/recipe <title> - show a recipe\n" +
		"/stats - most planned recipes"
}

// Today lists the meals planned for date
func (s *Service) Today(date string, meals []scheduler.Assignment) string {
	if len(meals) == 0 {
		return "🤷 Nothing is planned for " + date + "."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🍽️ %s, %s\n\n", s.calendar, date)
	for _, m := range meals {
		fmt.Fprintf(&b, "%s %s: %s\n", m.Start.Format("15:04"), m.Slot.Name, m.Title)
	}
	return truncate(strings.TrimRight(b.String(), "\n"), MaxLength)
}

// Week lists every planned meal grouped by day
func (s *Service) Week(meals []scheduler.Assignment) string {
	if len(meals) == 0 {
		return "🤷 Nothing is planned yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📅 %s until the next reset\n", s.calendar)
	date := ""
	for _, m := range meals {
		if m.Date != date {
			date = m.Date
			fmt.Fprintf(&b, "\n%s (%s)\n", date, m.Start.Weekday())
		}
		fmt.Fprintf(&b, "• %s: %s\n", m.Slot.Name, m.Title)
	}
	return truncate(strings.TrimRight(b.String(), "\n"), MaxLength)
}

// Recipe renders a recipe as plain chat text
func (s *Service) Recipe(r recipe.Recipe) string {
	var b strings.Builder
	b.WriteString("📖 " + r.Title() + "\n")
	if desc, ok := r.Description(); ok {
		b.WriteString(desc + "\n")
	}

	if ingredients := r.Ingredients(); len(ingredients) > 0 {
		b.WriteString("\nIngredients:\n")
		for _, i := range ingredients {
			b.WriteString("• " + i + "\n")
		}
	}

	if steps := r.Instructions(); len(steps) > 0 {
		b.WriteString("\nInstructions:\n")
		for i, step := range steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
	}

	if image, ok := r.Image(); ok {
		b.WriteString("\n" + image + "\n")
	}

	return truncate(strings.TrimRight(b.String(), "\n"), MaxLength)
}

// Stats lists the most planned recipes
func (s *Service) Stats(top []stats.RecipeStat) string {
	if len(top) == 0 {
		return "📊 No plans have been recorded yet."
	}

	var b strings.Builder
	b.WriteString("📊 Most planned recipes\n\n")
	for i, stat := range top {
		fmt.Fprintf(&b, "%d. %s (%d, last %s)\n", i+1, stat.Title, stat.Planned, stat.LastPlanned)
	}
	return strings.TrimRight(b.String(), "\n")
}

// RecipeUsage is the reply to /recipe without a title
func (s *Service) RecipeUsage() string {
	return "Usage: /recipe <title>"
}

// RecipeNotFound is the reply when no recipe has the requested title
func (s *Service) RecipeNotFound(title string) string {
	return fmt.Sprintf("😕 I don't know a recipe called %q.", title)
}

// StatsDisabled is the reply to /stats when no data directory is configured
func (s *Service) StatsDisabled() string {
	return "📊 Statistics are not enabled."
}

// Error is the generic failure reply
func (s *Service) Error(action string) string {
	return "😢 Sorry, I couldn't " + action + ". Please try again later."
}

func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit-1]) + "…"
}
