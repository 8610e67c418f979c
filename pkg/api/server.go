package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/korjavin/mealplanner/pkg/logger"
	"github.com/korjavin/mealplanner/pkg/models"
	"github.com/korjavin/mealplanner/pkg/recipe"
	"github.com/korjavin/mealplanner/pkg/scheduler"
	"github.com/korjavin/mealplanner/pkg/stats"
)

// Recipes is the part of the recipe store the API exposes
type Recipes interface {
	Lookup(title string) (recipe.Recipe, error)
	Titles(filter string) []string
}

// Server handles HTTP requests for the calendar API
type Server struct {
	scheduler *scheduler.Scheduler
	recipes   Recipes
	stats     *stats.Service
	addr      string
	http      *http.Server
	logger    *logger.Logger
}

// New creates a new API server. stats may be nil.
func New(s *scheduler.Scheduler, recipes Recipes, statsService *stats.Service, addr string) *Server {
	srv := &Server{
		scheduler: s,
		recipes:   recipes,
		stats:     statsService,
		addr:      addr,
		logger:    logger.New("api"),
	}
	srv.http = &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv
}

// Handler returns the routed HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Calendar
	mux.HandleFunc("GET /calendar/events", s.listEvents)
	mux.HandleFunc("GET /calendar/current", s.currentEvent)
	mux.HandleFunc("GET /plan", s.getPlan)

	// Recipes
	mux.HandleFunc("GET /recipes", s.listRecipes)
	mux.HandleFunc("GET /recipes/{title}", s.getRecipe)

	mux.HandleFunc("GET /stats", s.getStats)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	return mux
}

// Run serves requests until Shutdown is called
func (s *Server) Run() error {
	s.logger.Info("Starting server on %s", s.addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for active requests until ctx is done
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseBound accepts RFC3339 timestamps or plain dates in the calendar's zone
func parseBound(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.ParseInLocation(models.DateLayout, value, loc)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	start, err := parseBound(r.URL.Query().Get("start"), s.scheduler.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start")
		return
	}
	end, err := parseBound(r.URL.Query().Get("end"), s.scheduler.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end")
		return
	}

	events, err := s.scheduler.Events(start, end)
	if err != nil {
		s.logger.Error("Failed to list events: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func (s *Server) currentEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.scheduler.CurrentEvent()
	if err != nil {
		s.logger.Error("Failed to select current event: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if event == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

func (s *Server) getPlan(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.Plan())
}

func (s *Server) listRecipes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.recipes.Titles(r.URL.Query().Get("filter")))
}

// RecipeResponse is the JSON form of a recipe
type RecipeResponse struct {
	Title        string   `json:"title"`
	Category     string   `json:"category"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
	Description  string   `json:"description,omitempty"`
	Image        string   `json:"image,omitempty"`
	Markdown     string   `json:"markdown"`
}

func (s *Server) getRecipe(w http.ResponseWriter, r *http.Request) {
	rec, err := s.recipes.Lookup(r.PathValue("title"))
	if errors.Is(err, recipe.ErrNotFound) {
		writeError(w, http.StatusNotFound, "recipe not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := RecipeResponse{
		Title:        rec.Title(),
		Category:     rec.Category(),
		Ingredients:  rec.Ingredients(),
		Instructions: rec.Instructions(),
		Markdown:     recipe.Render(rec),
	}
	resp.Description, _ = rec.Description()
	resp.Image, _ = rec.Image()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusNotFound, "statistics are disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	top, err := s.stats.TopRecipes(s.scheduler.Name(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, top)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
