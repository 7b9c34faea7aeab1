// Package renderer turns engine reports into markdown documents.
package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
)

//go:embed templates/*.md
var templatesFS embed.FS

var templates, _ = fs.Sub(templatesFS, "templates")

// RenderCalendar renders a PnL calendar to a markdown string.
func RenderCalendar(c *Calendar) string {
	partials := map[string]string{
		"calendar_days":    "calendar_days.md",
		"calendar_missing": "calendar_missing.md",
		"warnings":         "warnings.md",
	}
	return renderTemplate("calendar", "calendar.md", partials, c)
}

// RenderHoldings renders open positions to a markdown string.
func RenderHoldings(h *Holdings) string {
	partials := map[string]string{
		"holdings_positions": "holdings_positions.md",
		"holdings_lots":      "holdings_lots.md",
		"warnings":           "warnings.md",
	}
	return renderTemplate("holdings", "holdings.md", partials, h)
}

// RenderRealized renders a realized PnL audit trail to a markdown string.
func RenderRealized(r *Realized) string {
	partials := map[string]string{
		"warnings": "warnings.md",
	}
	return renderTemplate("realized", "realized.md", partials, r)
}

// renderTemplate is a generic utility to render a main template that depends on several partials.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		content, err := fs.ReadFile(templates, file)
		if err != nil {
			return fmt.Sprintf("error reading partial template %q: %v", file, err)
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}
