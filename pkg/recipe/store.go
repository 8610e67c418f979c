package recipe

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/korjavin/mealplanner/pkg/logger"
)

// ErrNotFound is returned when a title is not in the store
var ErrNotFound = errors.New("recipe not found")

// Store holds the recipes of one archive, keyed by title.
// It is built once and is read-only afterwards.
type Store struct {
	recipes        map[string]Recipe
	order          []string
	member         string
	enforceFilters bool
	logger         *logger.Logger
}

// Option configures a Store
type Option func(*Store)

// WithMember overrides the document name looked up inside the archive
func WithMember(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.member = name
		}
	}
}

// WithFilterEnforcement makes Candidates narrow titles by a meal slot filter
func WithFilterEnforcement(enabled bool) Option {
	return func(s *Store) {
		s.enforceFilters = enabled
	}
}

// WithLogger sets the logger used for load warnings
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

func newStore(opts []Option) *Store {
	s := &Store{
		recipes: make(map[string]Recipe),
		member:  DefaultMember,
		logger:  logger.New("recipes"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load opens the zip archive at path and parses its recipe document
func Load(path string, opts ...Option) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recipe archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat recipe archive: %w", err)
	}

	return LoadReader(f, info.Size(), opts...)
}

// LoadReader parses a zip archive of the given size read from r
func LoadReader(r io.ReaderAt, size int64, opts ...Option) (*Store, error) {
	s := newStore(opts)

	archive, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe archive: %w", err)
	}

	var doc *zip.File
	for _, f := range archive.File {
		if f.Name == s.member {
			doc = f
			break
		}
	}
	if doc == nil {
		return nil, fmt.Errorf("recipe archive has no %s", s.member)
	}

	rc, err := doc.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.member, err)
	}
	defer rc.Close()

	recipes, err := parseMCB(rc)
	if err != nil {
		return nil, err
	}

	for i, r := range recipes {
		s.add(i, r)
	}

	s.logger.Info("Loaded %d recipes from %s", len(s.order), s.member)
	return s, nil
}

func (s *Store) add(index int, r Recipe) {
	title := r.Title()
	if title == "" {
		s.logger.Warn("Skipping recipe #%d without a title", index+1)
		return
	}
	if _, exists := s.recipes[title]; exists {
		s.logger.Warn("Duplicate recipe title %q, keeping the last definition", title)
	} else {
		s.order = append(s.order, title)
	}
	s.recipes[title] = r
}

// Lookup returns the recipe with the given title
func (s *Store) Lookup(title string) (Recipe, error) {
	r, ok := s.recipes[title]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, title)
	}
	return r, nil
}

// Titles returns every title in archive order. The filter is accepted for
// callers that thread a meal slot filter through but does not narrow the
// result; see Candidates.
func (s *Store) Titles(filter string) []string {
	return append([]string(nil), s.order...)
}

// Candidates returns the titles a meal slot may draw from. Without filter
// enforcement this is every title. With enforcement, a non-empty filter keeps
// recipes whose category matches it, falling back to every title when
// nothing matches.
func (s *Store) Candidates(filter string) []string {
	all := s.Titles(filter)
	filter = strings.TrimSpace(filter)
	if !s.enforceFilters || filter == "" {
		return all
	}

	var matched []string
	for _, title := range all {
		if strings.EqualFold(s.recipes[title].Category(), filter) {
			matched = append(matched, title)
		}
	}

	if len(matched) == 0 {
		s.logger.Warn("No recipes found for filter %q, falling back to all recipes", filter)
		return all
	}
	return matched
}

// Len returns the number of recipes in the store
func (s *Store) Len() int {
	return len(s.order)
}
