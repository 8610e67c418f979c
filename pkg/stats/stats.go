package stats

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/korjavin/mealplanner/pkg/logger"
	"github.com/korjavin/mealplanner/pkg/models"
	"github.com/korjavin/mealplanner/pkg/storage"
)

// RecipeStat counts how often a recipe was planned
type RecipeStat struct {
	Title       string `json:"title"`
	Planned     int    `json:"planned"`
	LastPlanned string `json:"last_planned"`
}

// Statistics represents the statistics for a calendar
type Statistics struct {
	Calendar  string                `json:"calendar"`
	Plans     int                   `json:"plans"`
	Recipes   map[string]RecipeStat `json:"recipes"` // Title -> RecipeStat
	UpdatedAt time.Time             `json:"updated_at"`
}

// Service provides statistics functionality
type Service struct {
	store  *storage.Store
	logger *logger.Logger
}

// New creates a new statistics service
func New(store *storage.Store) *Service {
	return &Service{
		store:  store,
		logger: logger.New("stats"),
	}
}

func statsKey(calendar string) string {
	return fmt.Sprintf("stats:%s", calendar)
}

// GetStatistics retrieves the statistics for a calendar
func (s *Service) GetStatistics(calendar string) (*Statistics, error) {
	var stats Statistics
	err := s.store.Get(statsKey(calendar), &stats)
	if errors.Is(err, storage.ErrNotFound) {
		return &Statistics{
			Calendar: calendar,
			Recipes:  make(map[string]RecipeStat),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics: %w", err)
	}

	if stats.Recipes == nil {
		stats.Recipes = make(map[string]RecipeStat)
	}
	return &stats, nil
}

// RecordPlan adds every assignment of a freshly generated plan to the counters
func (s *Service) RecordPlan(calendar string, plan models.Plan) error {
	stats, err := s.GetStatistics(calendar)
	if err != nil {
		return err
	}

	for _, date := range plan.Dates() {
		for _, title := range plan[date] {
			stat := stats.Recipes[title]
			stat.Title = title
			stat.Planned++
			stat.LastPlanned = date
			stats.Recipes[title] = stat
		}
	}
	stats.Plans++
	stats.UpdatedAt = time.Now()

	s.logger.Debug("Recorded plan %d for %s", stats.Plans, calendar)
	return s.store.Set(statsKey(calendar), stats)
}

// TopRecipes returns the most planned recipes, at most limit of them.
// A limit of zero or less returns all recipes.
func (s *Service) TopRecipes(calendar string, limit int) ([]RecipeStat, error) {
	stats, err := s.GetStatistics(calendar)
	if err != nil {
		return nil, err
	}

	top := make([]RecipeStat, 0, len(stats.Recipes))
	for _, stat := range stats.Recipes {
		top = append(top, stat)
	}

	sort.Slice(top, func(i, j int) bool {
		if top[i].Planned != top[j].Planned {
			return top[i].Planned > top[j].Planned
		}
		return top[i].Title < top[j].Title
	})

	if limit > 0 && len(top) > limit {
		top = top[:limit]
	}
	return top, nil
}
