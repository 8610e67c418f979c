package export

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/korjavin/mealplanner/pkg/logger"
	"github.com/korjavin/mealplanner/pkg/models"
	"github.com/korjavin/mealplanner/pkg/recipe"
	"github.com/korjavin/mealplanner/pkg/scheduler"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var page = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Georgia, serif; max-width: 46em; margin: 2em auto; padding: 0 1em; color: #222; background: #fdfaf3; }
h1 { border-bottom: 2px solid #c8553d; padding-bottom: .2em; }
.meal { margin-bottom: 2.5em; }
.slot { font-family: Helvetica, sans-serif; font-size: .85em; text-transform: uppercase; letter-spacing: .08em; color: #c8553d; }
img { max-width: 100%; border-radius: 6px; }
li { margin: .25em 0; }
</style>
</head>
<body>
{{if .Meals}}{{range .Meals}}<section class="meal">
<div class="slot">{{.Slot}} &middot; {{.When}}</div>
{{.Body}}
</section>
{{end}}{{else}}<p>Nothing planned for {{.Date}}.</p>
{{end}}</body>
</html>
`))

type pageMeal struct {
	Slot string
	When string
	Body template.HTML
}

type pageData struct {
	Title string
	Date  string
	Meals []pageMeal
}

// HTMLExporter writes today's recipes as a styled HTML document to a fixed path
type HTMLExporter struct {
	path     string
	calendar string
	md       goldmark.Markdown
	last     []byte
	logger   *logger.Logger
}

// NewHTMLExporter creates an exporter writing to path
func NewHTMLExporter(path, calendar string) *HTMLExporter {
	return &HTMLExporter{
		path:     path,
		calendar: calendar,
		md:       goldmark.New(goldmark.WithExtensions(extension.GFM)),
		logger:   logger.New("export"),
	}
}

// Render converts the meals of day into the HTML document
func (e *HTMLExporter) Render(day time.Time, meals []scheduler.Assignment) ([]byte, error) {
	data := pageData{
		Title: fmt.Sprintf("%s: %s", e.calendar, day.Format(models.DateLayout)),
		Date:  day.Format(models.DateLayout),
	}

	for _, m := range meals {
		var body bytes.Buffer
		if err := e.md.Convert([]byte(recipe.Render(m.Recipe)), &body); err != nil {
			return nil, fmt.Errorf("failed to convert %q to HTML: %w", m.Title, err)
		}
		data.Meals = append(data.Meals, pageMeal{
			Slot: m.Slot.Name,
			When: fmt.Sprintf("%s-%s", m.Start.Format("15:04"), m.End.Format("15:04")),
			// goldmark escapes raw HTML unless WithUnsafe is set
			Body: template.HTML(body.String()),
		})
	}

	var out bytes.Buffer
	if err := page.Execute(&out, data); err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}
	return out.Bytes(), nil
}

// Export renders the document and replaces the file if its content changed
func (e *HTMLExporter) Export(day time.Time, meals []scheduler.Assignment) error {
	doc, err := e.Render(day, meals)
	if err != nil {
		return err
	}
	if bytes.Equal(doc, e.last) {
		return nil
	}

	if err := writeFileAtomic(e.path, doc); err != nil {
		return err
	}
	e.last = doc

	titles := make([]string, 0, len(meals))
	for _, m := range meals {
		titles = append(titles, m.Title)
	}
	e.logger.Info("Exported %s to %s: %s", day.Format(models.DateLayout), e.path, strings.Join(titles, ", "))
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".export-*.html")
	if err != nil {
		return fmt.Errorf("failed to create temporary export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write export file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close export file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set export file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move export file into place: %w", err)
	}
	return nil
}
