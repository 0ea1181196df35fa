package api

import (
	"embed"
	"fmt"
	"html/template"
	"math"

	"github.com/sorairo/tenki/internal/advisory"
)

//go:embed templates/*
var templateFS embed.FS

// newTemplates creates and parses the HTML templates with custom functions.
func newTemplates() *template.Template {
	funcs := template.FuncMap{
		"temp": func(f float64) string {
			return fmt.Sprintf("%.0f°", f)
		},
		"riskClass": func(r advisory.RiskLevel) string {
			return "risk-" + string(r)
		},
		"css": func(s string) template.CSS {
			return template.CSS(s)
		},
		"pct": func(p float64) int {
			return int(math.Round(p * 100))
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}
