package recipe

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// DefaultMember is the document name inside a MyCookBook archive
const DefaultMember = "my_cookbook.xml"

// mcbElement mirrors a <recipe> element of a MyCookBook export
type mcbElement struct {
	Title        string   `xml:"title"`
	Category     *string  `xml:"category"`
	Ingredients  []string `xml:"ingredient>li"`
	Instructions []string `xml:"recipetext>li"`
	Description  *string  `xml:"description"`
	ImageURL     *string  `xml:"imageurl"`
}

// MCBRecipe is a recipe parsed from a MyCookBook archive
type MCBRecipe struct {
	title        string
	category     string
	ingredients  []string
	instructions []string
	description  string
	image        string
}

func (r *MCBRecipe) Title() string    { return r.title }
func (r *MCBRecipe) Category() string { return r.category }

func (r *MCBRecipe) Ingredients() []string {
	return append([]string(nil), r.ingredients...)
}

func (r *MCBRecipe) Instructions() []string {
	return append([]string(nil), r.instructions...)
}

func (r *MCBRecipe) Description() (string, bool) {
	return r.description, r.description != ""
}

func (r *MCBRecipe) Image() (string, bool) {
	return r.image, r.image != ""
}

func newMCBRecipe(el mcbElement) *MCBRecipe {
	r := &MCBRecipe{
		title:       strings.TrimSpace(el.Title),
		category:    optionalText(el.Category),
		description: optionalText(el.Description),
		image:       optionalText(el.ImageURL),
	}
	if r.category == "" {
		r.category = DefaultCategory
	}

	for _, item := range el.Ingredients {
		r.ingredients = append(r.ingredients, strings.TrimSpace(item))
	}
	for _, item := range el.Instructions {
		// steps without text are layout artifacts of the export
		if text := strings.TrimSpace(item); text != "" {
			r.instructions = append(r.instructions, text)
		}
	}

	return r
}

func optionalText(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// parseMCB streams the document and decodes every <recipe> element, at any depth.
func parseMCB(r io.Reader) ([]*MCBRecipe, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charset.NewReaderLabel

	var recipes []*MCBRecipe
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read recipe document: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "recipe" {
			continue
		}

		var el mcbElement
		if err := decoder.DecodeElement(&el, &start); err != nil {
			return nil, fmt.Errorf("failed to decode recipe element: %w", err)
		}
		recipes = append(recipes, newMCBRecipe(el))
	}

	return recipes, nil
}
