package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/korjavin/mealplanner/pkg/logger"
	"github.com/korjavin/mealplanner/pkg/models"
	"github.com/korjavin/mealplanner/pkg/recipe"
	"github.com/korjavin/mealplanner/pkg/scheduler"
	"github.com/korjavin/mealplanner/pkg/stats"
	"github.com/korjavin/mealplanner/pkg/storage"
)

type stubRecipe struct{ title string }

func (r stubRecipe) Title() string               { return r.title }
func (r stubRecipe) Category() string            { return "Dinner" }
func (r stubRecipe) Ingredients() []string       { return []string{"rice"} }
func (r stubRecipe) Instructions() []string      { return []string{"cook"} }
func (r stubRecipe) Description() (string, bool) { return "Tasty", true }
func (r stubRecipe) Image() (string, bool)       { return "", false }

type stubRecipes struct{ titles []string }

func (s stubRecipes) Lookup(title string) (recipe.Recipe, error) {
	for _, t := range s.titles {
		if t == title {
			return stubRecipe{title: t}, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", recipe.ErrNotFound, title)
}

func (s stubRecipes) Titles(filter string) []string     { return s.titles }
func (s stubRecipes) Candidates(filter string) []string { return s.titles }

func newTestServer(t *testing.T, now time.Time, withStats bool) *httptest.Server {
	t.Helper()
	source := stubRecipes{titles: []string{"Fried Rice"}}
	slots := []models.MealSlot{
		{Name: "lunch", Start: models.TimeOfDay{Hour: 12}, End: models.TimeOfDay{Hour: 13}},
		{Name: "dinner", Start: models.TimeOfDay{Hour: 18}, End: models.TimeOfDay{Hour: 20}},
	}
	sched := scheduler.New("Meals", slots, time.Thursday, source,
		scheduler.WithClock(func() time.Time { return now }),
		scheduler.WithLocation(time.UTC),
		scheduler.WithLogger(logger.NewWithWriter(io.Discard, "", logger.LevelError)),
	)

	var statsService *stats.Service
	if withStats {
		store, err := storage.NewInMemory()
		if err != nil {
			t.Fatalf("Failed to open store: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		statsService = stats.New(store)
		if _, err := sched.Update(); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if err := statsService.RecordPlan("Meals", sched.Plan()); err != nil {
			t.Fatalf("RecordPlan failed: %v", err)
		}
	}

	srv := httptest.NewServer(New(sched, source, statsService, "").Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, srv *httptest.Server, path string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("Failed to decode %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

// Monday 2024-03-04 10:00 UTC
var now = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func TestHealth(t *testing.T) {
	srv := newTestServer(t, now, false)
	var body map[string]string
	if code := getJSON(t, srv, "/health", &body); code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("Unexpected health response %d %v", code, body)
	}
}

func TestEvents(t *testing.T) {
	srv := newTestServer(t, now, false)

	t.Run("All", func(t *testing.T) {
		var events []models.Event
		if code := getJSON(t, srv, "/calendar/events", &events); code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", code)
		}
		if len(events) != 6 {
			t.Fatalf("Expected 6 events (3 days x 2 meals), got %d", len(events))
		}
		if events[0].Start != "2024-03-04T12:00:00Z" || events[0].Title != "Fried Rice" {
			t.Errorf("Unexpected first event %+v", events[0])
		}
	})

	t.Run("DateRange", func(t *testing.T) {
		var events []models.Event
		code := getJSON(t, srv, "/calendar/events?start=2024-03-05&end=2024-03-06", &events)
		if code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", code)
		}
		if len(events) != 2 {
			t.Errorf("Expected 2 events on 2024-03-05, got %d", len(events))
		}
	})

	t.Run("TimestampRange", func(t *testing.T) {
		var events []models.Event
		q := url.Values{"start": {"2024-03-04T17:00:00Z"}, "end": {"2024-03-04T21:00:00Z"}}
		if code := getJSON(t, srv, "/calendar/events?"+q.Encode(), &events); code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", code)
		}
		if len(events) != 1 || events[0].Start != "2024-03-04T18:00:00Z" {
			t.Errorf("Expected only Monday dinner, got %+v", events)
		}
	})

	t.Run("BadRange", func(t *testing.T) {
		if code := getJSON(t, srv, "/calendar/events?start=tomorrow", nil); code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", code)
		}
	})
}

func TestCurrentEvent(t *testing.T) {
	t.Run("NextMeal", func(t *testing.T) {
		srv := newTestServer(t, now, false)
		// the plan is built by the events listing
		getJSON(t, srv, "/calendar/events", nil)

		var ev models.CurrentEvent
		if code := getJSON(t, srv, "/calendar/current", &ev); code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", code)
		}
		if ev.Start.DateTime != "2024-03-04T12:00:00Z" {
			t.Errorf("Expected lunch as the current event, got %+v", ev.Start)
		}
	})

	t.Run("NoPlanYet", func(t *testing.T) {
		srv := newTestServer(t, now, false)
		if code := getJSON(t, srv, "/calendar/current", nil); code != http.StatusNoContent {
			t.Errorf("Expected 204, got %d", code)
		}
	})
}

func TestRecipes(t *testing.T) {
	srv := newTestServer(t, now, false)

	var titles []string
	if code := getJSON(t, srv, "/recipes", &titles); code != http.StatusOK || len(titles) != 1 {
		t.Errorf("Unexpected recipe list %d %v", code, titles)
	}

	var rec RecipeResponse
	if code := getJSON(t, srv, "/recipes/"+url.PathEscape("Fried Rice"), &rec); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if rec.Description != "Tasty" || rec.Category != "Dinner" {
		t.Errorf("Unexpected recipe %+v", rec)
	}

	if code := getJSON(t, srv, "/recipes/Pizza", nil); code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", code)
	}
}

func TestStats(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		srv := newTestServer(t, now, false)
		if code := getJSON(t, srv, "/stats", nil); code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", code)
		}
	})

	t.Run("Enabled", func(t *testing.T) {
		srv := newTestServer(t, now, true)
		var top []stats.RecipeStat
		if code := getJSON(t, srv, "/stats?limit=5", &top); code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", code)
		}
		if len(top) != 1 || top[0].Planned != 6 {
			t.Errorf("Unexpected statistics %+v", top)
		}
	})

	t.Run("BadLimit", func(t *testing.T) {
		srv := newTestServer(t, now, true)
		if code := getJSON(t, srv, "/stats?limit=-1", nil); code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", code)
		}
	})
}
