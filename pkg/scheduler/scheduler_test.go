package scheduler

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/korjavin/mealplanner/pkg/logger"
	"github.com/korjavin/mealplanner/pkg/models"
	"github.com/korjavin/mealplanner/pkg/recipe"
)

type stubRecipe struct {
	title string
}

func (r stubRecipe) Title() string               { return r.title }
func (r stubRecipe) Category() string            { return recipe.DefaultCategory }
func (r stubRecipe) Ingredients() []string       { return []string{"salt"} }
func (r stubRecipe) Instructions() []string      { return []string{"cook " + r.title} }
func (r stubRecipe) Description() (string, bool) { return "", false }
func (r stubRecipe) Image() (string, bool)       { return "", false }

type fakeSource struct {
	titles []string
}

func (f *fakeSource) Lookup(title string) (recipe.Recipe, error) {
	for _, t := range f.titles {
		if t == title {
			return stubRecipe{title: t}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", recipe.ErrNotFound, title)
}

func (f *fakeSource) Candidates(filter string) []string {
	return f.titles
}

// fakeClock is a settable clock
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

// Monday 2024-03-04
var monday = time.Date(2024, 3, 4, 6, 0, 0, 0, time.UTC)

func slot(name string, start, end string) models.MealSlot {
	s, err := models.ParseTimeOfDay(start)
	if err != nil {
		panic(err)
	}
	e, err := models.ParseTimeOfDay(end)
	if err != nil {
		panic(err)
	}
	return models.MealSlot{Name: name, Start: s, End: e}
}

func newTestScheduler(clock *fakeClock, slots []models.MealSlot, resetDay time.Weekday, titles ...string) *Scheduler {
	if len(titles) == 0 {
		titles = []string{"Pasta", "Soup", "Salad", "Curry"}
	}
	return New("Meals", slots, resetDay, &fakeSource{titles: titles},
		WithClock(clock.Now),
		WithRand(rand.New(rand.NewSource(1))),
		WithLocation(time.UTC),
		WithLogger(logger.NewWithWriter(io.Discard, "scheduler", logger.LevelError)),
	)
}

func TestBuildPlan(t *testing.T) {
	breakfast := []models.MealSlot{slot("breakfast", "07:00", "07:30")}
	candidates := func(string) []string { return []string{"Pancakes", "Oats"} }

	tests := []struct {
		name     string
		resetDay time.Weekday
		wantDays int
	}{
		{"ResetInThreeDays", time.Thursday, 3},
		{"ResetTomorrow", time.Tuesday, 1},
		{"ResetToday", time.Monday, 7},
		{"ResetYesterday", time.Sunday, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := BuildPlan(monday, breakfast, tt.resetDay, candidates, rand.New(rand.NewSource(42)))
			if err != nil {
				t.Fatalf("BuildPlan failed: %v", err)
			}
			if len(plan) != tt.wantDays {
				t.Errorf("Expected %d days, got %d: %v", tt.wantDays, len(plan), plan.Dates())
			}
			if len(plan) > MaxPlanDays {
				t.Errorf("Plan exceeds %d days", MaxPlanDays)
			}
			if plan.Dates()[0] != "2024-03-04" {
				t.Errorf("Expected plan to start today, got %s", plan.Dates()[0])
			}
			if plan.Covers(monday.AddDate(0, 0, tt.wantDays)) {
				t.Errorf("Plan should not cover the reset day")
			}
		})
	}
}

func TestBuildPlanEverySlotEveryDay(t *testing.T) {
	slots := []models.MealSlot{
		slot("breakfast", "07:00", "07:30"),
		slot("lunch", "12:00", "13:00"),
		slot("dinner", "18:00", "20:00"),
	}
	known := map[string]bool{"A": true, "B": true, "C": true}
	candidates := func(string) []string { return []string{"A", "B", "C"} }

	for seed := int64(0); seed < 20; seed++ {
		for reset := time.Sunday; reset <= time.Saturday; reset++ {
			plan, err := BuildPlan(monday, slots, reset, candidates, rand.New(rand.NewSource(seed)))
			if err != nil {
				t.Fatalf("BuildPlan failed: %v", err)
			}
			if len(plan) == 0 || len(plan) > MaxPlanDays {
				t.Fatalf("Unexpected plan length %d", len(plan))
			}
			for date, meals := range plan {
				if len(meals) != len(slots) {
					t.Errorf("%s: expected %d meals, got %d", date, len(slots), len(meals))
				}
				for _, s := range slots {
					if !known[meals[s.Name]] {
						t.Errorf("%s: %s has unknown title %q", date, s.Name, meals[s.Name])
					}
				}
			}
		}
	}
}

func TestBuildPlanNoRecipes(t *testing.T) {
	_, err := BuildPlan(monday, []models.MealSlot{slot("dinner", "18:00", "20:00")}, time.Thursday,
		func(string) []string { return nil }, rand.New(rand.NewSource(1)))
	if !errors.Is(err, ErrNoRecipes) {
		t.Errorf("Expected ErrNoRecipes, got %v", err)
	}
}

func TestBuildPlanPassesFilter(t *testing.T) {
	slots := []models.MealSlot{slot("breakfast", "07:00", "07:30")}
	slots[0].Filter = "Breakfast"

	var seen []string
	_, err := BuildPlan(monday, slots, time.Tuesday, func(filter string) []string {
		seen = append(seen, filter)
		return []string{"Oats"}
	}, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}
	if len(seen) != 1 || seen[0] != "Breakfast" {
		t.Errorf("Expected the slot filter to reach the candidate provider, got %v", seen)
	}
}

func TestUpdate(t *testing.T) {
	slots := []models.MealSlot{slot("dinner", "18:00", "20:00")}

	t.Run("IdempotentWithinRotation", func(t *testing.T) {
		clock := &fakeClock{now: monday}
		s := newTestScheduler(clock, slots, time.Thursday)

		regenerated, err := s.Update()
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if !regenerated {
			t.Fatal("Expected first update to build a plan")
		}
		first := s.Plan()

		clock.now = monday.Add(5 * time.Hour)
		regenerated, err = s.Update()
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if regenerated {
			t.Error("Expected no regeneration on the same day")
		}

		clock.now = monday.AddDate(0, 0, 2)
		if regenerated, _ := s.Update(); regenerated {
			t.Error("Expected no regeneration while today is still planned")
		}

		second := s.Plan()
		for date, meals := range first {
			if second[date]["dinner"] != meals["dinner"] {
				t.Errorf("Plan changed on %s: %q -> %q", date, meals["dinner"], second[date]["dinner"])
			}
		}
	})

	t.Run("RegeneratesOnResetDay", func(t *testing.T) {
		clock := &fakeClock{now: monday}
		s := newTestScheduler(clock, slots, time.Thursday)
		if _, err := s.Update(); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		clock.now = monday.AddDate(0, 0, 3)
		regenerated, err := s.Update()
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if !regenerated {
			t.Fatal("Expected regeneration on the reset day")
		}

		plan := s.Plan()
		if len(plan) != 7 {
			t.Errorf("Expected a full week starting on the reset day, got %d days", len(plan))
		}
		if _, ok := plan["2024-03-04"]; ok {
			t.Error("Expected the previous plan to be discarded")
		}
	})

	t.Run("NoRecipes", func(t *testing.T) {
		clock := &fakeClock{now: monday}
		s := New("Meals", slots, time.Thursday, &fakeSource{},
			WithClock(clock.Now), WithLogger(logger.NewWithWriter(io.Discard, "", logger.LevelError)))
		if _, err := s.Update(); !errors.Is(err, ErrNoRecipes) {
			t.Errorf("Expected ErrNoRecipes, got %v", err)
		}
	})
}

func TestEvents(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	clock := &fakeClock{now: time.Date(2024, 3, 4, 6, 0, 0, 0, loc)}
	slots := []models.MealSlot{slot("dinner", "18:00", "20:00")}
	s := New("Meals", slots, time.Thursday, &fakeSource{titles: []string{"Pasta"}},
		WithClock(clock.Now), WithLocation(loc),
		WithLogger(logger.NewWithWriter(io.Discard, "", logger.LevelError)))

	t.Run("AllEvents", func(t *testing.T) {
		events, err := s.Events(time.Time{}, time.Time{})
		if err != nil {
			t.Fatalf("Events failed: %v", err)
		}
		if len(events) != 3 {
			t.Fatalf("Expected 3 events, got %d", len(events))
		}

		e := events[0]
		if e.Title != "Pasta" {
			t.Errorf("Expected title 'Pasta', got '%s'", e.Title)
		}
		if e.Start != "2024-03-04T18:00:00+01:00" || e.End != "2024-03-04T20:00:00+01:00" {
			t.Errorf("Unexpected interval %s - %s", e.Start, e.End)
		}
		if e.Location != "" {
			t.Errorf("Expected empty location, got '%s'", e.Location)
		}
		if !strings.HasPrefix(e.Description, "# Pasta") {
			t.Errorf("Expected rendered recipe description, got %q", e.Description)
		}
		if e.UID == "" || e.UID == events[1].UID {
			t.Errorf("Expected unique UIDs, got %q and %q", e.UID, events[1].UID)
		}
	})

	t.Run("StableUIDs", func(t *testing.T) {
		a, _ := s.Events(time.Time{}, time.Time{})
		b, _ := s.Events(time.Time{}, time.Time{})
		for i := range a {
			if a[i].UID != b[i].UID {
				t.Errorf("UID changed between calls: %q -> %q", a[i].UID, b[i].UID)
			}
		}
	})

	t.Run("Range", func(t *testing.T) {
		start := time.Date(2024, 3, 5, 0, 0, 0, 0, loc)
		end := time.Date(2024, 3, 6, 0, 0, 0, 0, loc)
		events, err := s.Events(start, end)
		if err != nil {
			t.Fatalf("Events failed: %v", err)
		}
		if len(events) != 1 {
			t.Fatalf("Expected 1 event, got %d", len(events))
		}
		if events[0].Start != "2024-03-05T18:00:00+01:00" {
			t.Errorf("Unexpected event start %s", events[0].Start)
		}
	})
}

func TestCurrentEvent(t *testing.T) {
	// configuration order deliberately differs from time order
	slots := []models.MealSlot{
		slot("lunch", "12:00", "13:00"),
		slot("breakfast", "07:00", "07:30"),
	}

	t.Run("EarliestFutureSlot", func(t *testing.T) {
		clock := &fakeClock{now: monday}
		s := newTestScheduler(clock, slots, time.Tuesday, "Oats")
		if _, err := s.Update(); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		ev, err := s.CurrentEvent()
		if err != nil {
			t.Fatalf("CurrentEvent failed: %v", err)
		}
		if ev == nil {
			t.Fatal("Expected a current event")
		}
		if ev.Start.DateTime != "2024-03-04T07:00:00Z" {
			t.Errorf("Expected the breakfast slot, got start %s", ev.Start.DateTime)
		}
		if ev.Start.Date != "" || ev.End.DateTime != "2024-03-04T07:30:00Z" {
			t.Errorf("Unexpected wrapped times %+v %+v", ev.Start, ev.End)
		}
		if ev.Summary != "Oats" {
			t.Errorf("Expected summary 'Oats', got '%s'", ev.Summary)
		}
	})

	t.Run("StrictlyAfterNow", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC)}
		s := newTestScheduler(clock, slots, time.Tuesday, "Oats")
		if _, err := s.Update(); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		ev, err := s.CurrentEvent()
		if err != nil {
			t.Fatalf("CurrentEvent failed: %v", err)
		}
		if ev == nil || ev.Start.DateTime != "2024-03-04T12:00:00Z" {
			t.Errorf("Expected the lunch slot, got %+v", ev)
		}
	})

	t.Run("NoneLeft", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2024, 3, 4, 23, 0, 0, 0, time.UTC)}
		s := newTestScheduler(clock, slots, time.Tuesday, "Oats")
		if _, err := s.Update(); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		ev, err := s.CurrentEvent()
		if err != nil {
			t.Fatalf("CurrentEvent failed: %v", err)
		}
		if ev != nil {
			t.Errorf("Expected no current event, got %+v", ev)
		}
	})
}

func TestRestore(t *testing.T) {
	slots := []models.MealSlot{slot("dinner", "18:00", "20:00")}

	t.Run("Valid", func(t *testing.T) {
		clock := &fakeClock{now: monday}
		s := newTestScheduler(clock, slots, time.Thursday)
		saved := models.Plan{"2024-03-04": {"dinner": "Soup"}, "2024-03-05": {"dinner": "Curry"}}
		if err := s.Restore(saved); err != nil {
			t.Fatalf("Restore failed: %v", err)
		}
		if regenerated, _ := s.Update(); regenerated {
			t.Error("Expected restored plan to be kept")
		}
		if s.Plan()["2024-03-05"]["dinner"] != "Curry" {
			t.Error("Expected restored assignment")
		}
	})

	t.Run("Stale", func(t *testing.T) {
		clock := &fakeClock{now: monday}
		s := newTestScheduler(clock, slots, time.Thursday)
		if err := s.Restore(models.Plan{"2024-02-26": {"dinner": "Soup"}}); err == nil {
			t.Error("Expected a stale plan to be rejected")
		}
	})

	t.Run("UnknownRecipe", func(t *testing.T) {
		clock := &fakeClock{now: monday}
		s := newTestScheduler(clock, slots, time.Thursday)
		err := s.Restore(models.Plan{"2024-03-04": {"dinner": "Pizza"}})
		if !errors.Is(err, recipe.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("MissingSlot", func(t *testing.T) {
		clock := &fakeClock{now: monday}
		s := newTestScheduler(clock, slots, time.Thursday)
		if err := s.Restore(models.Plan{"2024-03-04": {"lunch": "Soup"}}); err == nil {
			t.Error("Expected a plan with other slots to be rejected")
		}
	})
}

func TestToday(t *testing.T) {
	slots := []models.MealSlot{
		slot("breakfast", "07:00", "07:30"),
		slot("dinner", "18:00", "20:00"),
	}
	clock := &fakeClock{now: monday}
	s := newTestScheduler(clock, slots, time.Thursday)

	meals, err := s.Today()
	if err != nil {
		t.Fatalf("Today failed: %v", err)
	}
	if len(meals) != 2 {
		t.Fatalf("Expected 2 meals, got %d", len(meals))
	}
	if meals[0].Slot.Name != "breakfast" || meals[1].Slot.Name != "dinner" {
		t.Errorf("Expected configuration order, got %s, %s", meals[0].Slot.Name, meals[1].Slot.Name)
	}
	if meals[0].Date != "2024-03-04" {
		t.Errorf("Expected today's date, got %s", meals[0].Date)
	}
}
