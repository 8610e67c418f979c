package recipe

import (
	"fmt"
	"strings"
)

// Recipe is the read-only view of a recipe the planner and renderers need.
// Each supported archive format provides its own implementation.
type Recipe interface {
	Title() string
	Category() string
	Ingredients() []string
	Instructions() []string
	Description() (string, bool)
	Image() (string, bool)
}

// DefaultCategory is reported for recipes without a category
const DefaultCategory = "None"

// Render returns the markdown form of r: a title heading, the italic
// description, the image, a bullet list of ingredients and a numbered list
// of instructions.
func Render(r Recipe) string {
	lines := []string{fmt.Sprintf("# %s", r.Title())}

	if description, ok := r.Description(); ok {
		lines = append(lines, fmt.Sprintf("_%s_", description))
	}
	lines = append(lines, "\n")

	if image, ok := r.Image(); ok {
		lines = append(lines, fmt.Sprintf("![image](%s)", image))
	}
	lines = append(lines, "\n")

	for _, ingredient := range r.Ingredients() {
		lines = append(lines, fmt.Sprintf("* %s", ingredient))
	}
	lines = append(lines, "\n")

	for _, instruction := range r.Instructions() {
		lines = append(lines, fmt.Sprintf("1. %s", instruction))
	}

	return strings.Join(lines, "\n")
}
