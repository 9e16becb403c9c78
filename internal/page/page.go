// Package page renders the drawing page from the embedded assets.
package page

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/woozymasta/drawmap/assets"
	"github.com/woozymasta/drawmap/internal/config"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
)

// Button is a mode button on the toolbar.
type Button struct {
	Name    string
	Enabled bool
}

// Settings is the client configuration injected into the page.
type Settings struct {
	APIBase     string        `json:"apiBase"`
	TileURL     string        `json:"tileURL"`
	Attribution string        `json:"attribution"`
	Filename    string        `json:"filename"`
	Subdomains  []string      `json:"subdomains"`
	Modes       []string      `json:"modes"`
	Center      config.LatLng `json:"center"`
	Zoom        int           `json:"zoom"`
	MaxZoom     int           `json:"maxZoom"`
}

// pageData feeds the template. The minified assets are trusted, everything
// coming from the configuration is escaped by the template.
type pageData struct {
	Title    string
	APIBase  string
	CSS      template.CSS
	JS       template.JS
	SVG      template.HTML
	Settings Settings
	Buttons  []Button
}

// TilePath is the route of the local tile cache.
const TilePath = "/tiles/{z}/{x}/{y}"

// NewSettings derives the client settings from the configuration. apiBase
// prefixes every URL the page requests from the server.
func NewSettings(cfg *config.Config, apiBase string) Settings {
	apiBase = strings.TrimRight(apiBase, "/")

	s := Settings{
		APIBase:     apiBase,
		TileURL:     cfg.Tiles.URL,
		Attribution: cfg.Tiles.Attribution,
		Filename:    cfg.Export.Filename,
		Subdomains:  cfg.Tiles.Subdomains,
		Modes:       cfg.Modes,
		Center:      cfg.Map.Center,
		Zoom:        cfg.Map.Zoom,
		MaxZoom:     cfg.Map.MaxZoom,
	}
	if cfg.Tiles.Cache {
		s.TileURL = apiBase + TilePath
		s.Subdomains = nil
	}

	return s
}

// Buttons lists every drawing mode, enabled when the configuration offers it.
func Buttons(cfg *config.Config) []Button {
	modes := config.DrawingModes()
	buttons := make([]Button, 0, len(modes))
	for _, m := range modes {
		buttons = append(buttons, Button{Name: m, Enabled: cfg.ModeEnabled(m)})
	}
	return buttons
}

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/javascript", js.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	return m
}

// Render builds the minified HTML page.
func Render(cfg *config.Config, apiBase string) ([]byte, error) {
	m := newMinifier()

	cssMin, err := m.String("text/css", assets.Style)
	if err != nil {
		return nil, fmt.Errorf("minify CSS: %w", err)
	}
	jsMin, err := m.String("text/javascript", assets.Script)
	if err != nil {
		return nil, fmt.Errorf("minify JS: %w", err)
	}
	svgMin, err := m.String("image/svg+xml", assets.Icon)
	if err != nil {
		return nil, fmt.Errorf("minify SVG: %w", err)
	}

	tmpl, err := template.New("index").Parse(assets.IndexTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, pageData{
		Title:    cfg.Title,
		APIBase:  strings.TrimRight(apiBase, "/"),
		CSS:      template.CSS(cssMin),
		JS:       template.JS(jsMin),
		SVG:      template.HTML(svgMin),
		Settings: NewSettings(cfg, apiBase),
		Buttons:  Buttons(cfg),
	})
	if err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}

	out, err := m.Bytes("text/html", buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("minify HTML: %w", err)
	}

	return out, nil
}

// Icon returns the minified favicon.
func Icon() ([]byte, error) {
	return newMinifier().Bytes("image/svg+xml", []byte(assets.Icon))
}
