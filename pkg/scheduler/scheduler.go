package scheduler

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/korjavin/mealplanner/pkg/logger"
	"github.com/korjavin/mealplanner/pkg/models"
	"github.com/korjavin/mealplanner/pkg/recipe"
)

// RecipeSource is what the scheduler needs from a recipe store
type RecipeSource interface {
	Lookup(title string) (recipe.Recipe, error)
	Candidates(filter string) []string
}

// Assignment is one recipe placed in one meal slot on one day
type Assignment struct {
	Date   string
	Slot   models.MealSlot
	Title  string
	Recipe recipe.Recipe
	Start  time.Time
	End    time.Time
}

var uidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("mealplanner"))

// Scheduler owns the rotation plan of one calendar
type Scheduler struct {
	name     string
	slots    []models.MealSlot
	resetDay time.Weekday
	source   RecipeSource
	location *time.Location
	now      func() time.Time
	rng      *rand.Rand
	logger   *logger.Logger

	mu         sync.RWMutex
	plan       models.Plan
	generation uint64
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithRand sets the random source used to draw recipes
func WithRand(rng *rand.Rand) Option {
	return func(s *Scheduler) {
		s.rng = rng
	}
}

// WithLocation sets the time zone meal times are expressed in
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithLogger sets the scheduler's logger
func WithLogger(l *logger.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// New creates a scheduler for the named calendar. Slots are planned in the
// order given.
func New(name string, slots []models.MealSlot, resetDay time.Weekday, source RecipeSource, opts ...Option) *Scheduler {
	s := &Scheduler{
		name:     name,
		slots:    append([]models.MealSlot(nil), slots...),
		resetDay: resetDay,
		source:   source,
		location: time.Local,
		now:      time.Now,
		// Use a local random source instead of the deprecated rand.Seed
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: logger.New("scheduler"),
		plan:   make(models.Plan),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the calendar name
func (s *Scheduler) Name() string {
	return s.name
}

// Location returns the time zone meal times are expressed in
func (s *Scheduler) Location() *time.Location {
	return s.location
}

// Slots returns the configured meal slots
func (s *Scheduler) Slots() []models.MealSlot {
	return append([]models.MealSlot(nil), s.slots...)
}

func (s *Scheduler) today() time.Time {
	return s.now().In(s.location)
}

// Date returns the current date in the calendar's zone
func (s *Scheduler) Date() string {
	return s.today().Format(models.DateLayout)
}

// Update regenerates the plan when it does not cover today. The previous plan
// is discarded entirely, including days that were not reached yet. It reports
// whether a new plan was built.
func (s *Scheduler) Update() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.today()
	if s.plan.Covers(today) {
		return false, nil
	}

	plan, err := BuildPlan(today, s.slots, s.resetDay, s.source.Candidates, s.rng)
	if err != nil {
		return false, fmt.Errorf("failed to build meal plan: %w", err)
	}

	s.plan = plan
	s.generation++
	dates := plan.Dates()
	s.logger.Info("Planned %d days of meals for %s (%s to %s)", len(dates), s.name, dates[0], dates[len(dates)-1])
	return true, nil
}

// Plan returns a copy of the current plan
func (s *Scheduler) Plan() models.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plan.Clone()
}

// Snapshot returns a copy of the current plan together with its generation,
// which counts the plans built by Update. A restored plan keeps the
// generation of the plan it replaced.
func (s *Scheduler) Snapshot() (models.Plan, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plan.Clone(), s.generation
}

// Restore installs a previously saved plan. The plan is rejected unless it
// covers today, has an entry for every slot on every day and only names
// recipes the source knows.
func (s *Scheduler) Restore(plan models.Plan) error {
	if len(plan) > MaxPlanDays {
		return fmt.Errorf("saved plan has %d days, more than %d", len(plan), MaxPlanDays)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !plan.Covers(s.today()) {
		return fmt.Errorf("saved plan does not cover today")
	}
	for date, meals := range plan {
		if len(meals) != len(s.slots) {
			return fmt.Errorf("saved plan for %s has %d meals, expected %d", date, len(meals), len(s.slots))
		}
		for _, slot := range s.slots {
			title, ok := meals[slot.Name]
			if !ok {
				return fmt.Errorf("saved plan for %s has no %s", date, slot.Name)
			}
			if _, err := s.source.Lookup(title); err != nil {
				return fmt.Errorf("saved plan for %s: %w", date, err)
			}
		}
	}

	s.plan = plan.Clone()
	return nil
}

// assignments expands the plan into (date, slot) pairs, in date then slot order
func (s *Scheduler) assignments(dates []string) ([]Assignment, error) {
	var out []Assignment
	for _, date := range dates {
		day, err := time.ParseInLocation(models.DateLayout, date, s.location)
		if err != nil {
			return nil, fmt.Errorf("invalid plan date %q: %w", date, err)
		}
		meals := s.plan[date]
		for _, slot := range s.slots {
			title, ok := meals[slot.Name]
			if !ok {
				continue
			}
			r, err := s.source.Lookup(title)
			if err != nil {
				return nil, fmt.Errorf("meal %s on %s: %w", slot.Name, date, err)
			}
			start, end := slot.Interval(day, s.location)
			out = append(out, Assignment{
				Date:   date,
				Slot:   slot,
				Title:  title,
				Recipe: r,
				Start:  start,
				End:    end,
			})
		}
	}
	return out, nil
}

// Assignments returns every planned meal in chronological order
func (s *Scheduler) Assignments() ([]Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assignments(s.plan.Dates())
}

// Today returns today's planned meals, regenerating the plan if needed
func (s *Scheduler) Today() ([]Assignment, error) {
	if _, err := s.Update(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	today := s.today().Format(models.DateLayout)
	if _, ok := s.plan[today]; !ok {
		return nil, nil
	}
	return s.assignments([]string{today})
}

// EventUID returns the stable identifier of the event for slot on date
func (s *Scheduler) EventUID(date, slot string) string {
	return uuid.NewSHA1(uidNamespace, []byte(s.name+"/"+date+"/"+slot)).String()
}

func (s *Scheduler) toEvent(a Assignment) models.Event {
	return models.Event{
		UID:         s.EventUID(a.Date, a.Slot.Name),
		Title:       a.Title,
		Start:       models.FormatTimestamp(a.Start, false),
		End:         models.FormatTimestamp(a.End, false),
		Location:    "",
		Description: recipe.Render(a.Recipe),
	}
}

// Events lists the planned meals overlapping [start, end). A zero start or
// end leaves that side of the range open. The plan is regenerated first if it
// does not cover today.
func (s *Scheduler) Events(start, end time.Time) ([]models.Event, error) {
	if _, err := s.Update(); err != nil {
		return nil, err
	}

	all, err := s.Assignments()
	if err != nil {
		return nil, err
	}

	events := make([]models.Event, 0, len(all))
	for _, a := range all {
		if !start.IsZero() && !a.End.After(start) {
			continue
		}
		if !end.IsZero() && !a.Start.Before(end) {
			continue
		}
		events = append(events, s.toEvent(a))
	}
	return events, nil
}

// CurrentEvent returns the earliest planned meal starting strictly after now
func (s *Scheduler) CurrentEvent() (*models.CurrentEvent, error) {
	all, err := s.Assignments()
	if err != nil {
		return nil, err
	}

	now := s.now()
	var next *Assignment
	for i := range all {
		a := &all[i]
		if !a.Start.After(now) {
			continue
		}
		if next == nil || a.Start.Before(next.Start) {
			next = a
		}
	}
	if next == nil {
		return nil, nil
	}

	return &models.CurrentEvent{
		Summary:     next.Title,
		Start:       models.WrapTimestamp(next.Start, false),
		End:         models.WrapTimestamp(next.End, false),
		Location:    "",
		Description: recipe.Render(next.Recipe),
	}, nil
}
