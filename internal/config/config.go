// Package config handles configuration loading and shared data structures.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Known drawing modes.
const (
	ModeStatic    = "static"
	ModePolygon   = "polygon"
	ModeCircle    = "circle"
	ModeRectangle = "rectangle"
	ModeFreehand  = "freehand"
)

const (
	defaultTitle       = "Draw map boundaries"
	defaultTileURL     = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"
	defaultAttribution = `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`
	defaultFilename    = "boundaries.geojson"
)

// Config represents the root configuration file structure.
type Config struct {
	Title    string   `yaml:"title,omitempty" json:"title"`
	Map      View     `yaml:"map" json:"map"`
	Tiles    Tiles    `yaml:"tiles" json:"-"`
	Export   Export   `yaml:"export" json:"export"`
	Sessions Sessions `yaml:"sessions" json:"-"`

	// Modes lists the drawing modes offered as active buttons. Known modes not
	// listed here are rendered disabled.
	Modes []string `yaml:"modes,omitempty" json:"modes"`
}

// View is the initial map viewport.
type View struct {
	// Bounds limits tile prefetching, [minLng, minLat, maxLng, maxLat].
	Bounds  []float64 `yaml:"bounds,omitempty" json:"-"`
	Center  LatLng    `yaml:"center" json:"center"`
	Zoom    int       `yaml:"zoom" json:"zoom"`
	MaxZoom int       `yaml:"max_zoom,omitempty" json:"max_zoom"`
}

// LatLng is a geographic coordinate.
type LatLng struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lng float64 `yaml:"lng" json:"lng"`
}

// Tiles describes the raster tile source.
type Tiles struct {
	URL         string   `yaml:"url"`
	Attribution string   `yaml:"attribution,omitempty"`
	CacheDir    string   `yaml:"cache_dir,omitempty"`
	UserAgent   string   `yaml:"user_agent,omitempty"`
	Subdomains  []string `yaml:"subdomains,omitempty"`
	TileSize    int      `yaml:"tile_size,omitempty"`
	Quality     int      `yaml:"quality,omitempty"`
	Cache       bool     `yaml:"cache,omitempty"` // proxy tiles through the local webp cache
}

// Export configures the downloaded document.
type Export struct {
	Filename string `yaml:"filename,omitempty" json:"filename"`
}

// Sessions configures page session lifetime.
type Sessions struct {
	TTL time.Duration `yaml:"ttl,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads and parses the YAML configuration file from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Title == "" {
		c.Title = defaultTitle
	}
	if c.Map.Center == (LatLng{}) {
		c.Map.Center = LatLng{Lat: 34.017, Lng: -118.289}
	}
	if c.Map.Zoom <= 0 {
		c.Map.Zoom = 14
	}
	if c.Map.MaxZoom <= 0 {
		c.Map.MaxZoom = 19
	}
	if c.Tiles.URL == "" {
		c.Tiles.URL = defaultTileURL
		if len(c.Tiles.Subdomains) == 0 {
			c.Tiles.Subdomains = []string{"a", "b", "c"}
		}
	}
	if c.Tiles.Attribution == "" {
		c.Tiles.Attribution = defaultAttribution
	}
	if c.Tiles.CacheDir == "" {
		c.Tiles.CacheDir = "tiles"
	}
	if c.Tiles.UserAgent == "" {
		c.Tiles.UserAgent = "drawmap/1.0"
	}
	if c.Tiles.TileSize <= 0 {
		c.Tiles.TileSize = 256
	}
	if c.Tiles.Quality <= 0 {
		c.Tiles.Quality = 80
	}
	if c.Export.Filename == "" {
		c.Export.Filename = defaultFilename
	}
	if c.Sessions.TTL <= 0 {
		c.Sessions.TTL = 30 * time.Minute
	}
	if len(c.Modes) == 0 {
		c.Modes = []string{ModePolygon, ModeCircle, ModeRectangle}
	}
}

// Validate reports the first inconsistency in the configuration.
func (c *Config) Validate() error {
	if c.Map.Center.Lat < -90 || c.Map.Center.Lat > 90 {
		return fmt.Errorf("map.center.lat %v out of range", c.Map.Center.Lat)
	}
	if c.Map.Center.Lng < -180 || c.Map.Center.Lng > 180 {
		return fmt.Errorf("map.center.lng %v out of range", c.Map.Center.Lng)
	}
	if c.Map.Zoom > c.Map.MaxZoom {
		return fmt.Errorf("map.zoom %d exceeds map.max_zoom %d", c.Map.Zoom, c.Map.MaxZoom)
	}
	if n := len(c.Map.Bounds); n != 0 && n != 4 {
		return fmt.Errorf("map.bounds must have 4 values, got %d", n)
	}
	if c.Tiles.Quality > 100 {
		return fmt.Errorf("tiles.quality %d out of range", c.Tiles.Quality)
	}

	for _, m := range c.Modes {
		if !IsDrawingMode(m) {
			return fmt.Errorf("unknown drawing mode %q", m)
		}
	}

	return nil
}

// IsDrawingMode reports whether name is a mode that captures shapes.
func IsDrawingMode(name string) bool {
	switch name {
	case ModePolygon, ModeCircle, ModeRectangle, ModeFreehand:
		return true
	}
	return false
}

// DrawingModes returns every mode that captures shapes, in button order.
func DrawingModes() []string {
	return []string{ModePolygon, ModeFreehand, ModeCircle, ModeRectangle}
}

// ModeEnabled reports whether the mode button is active in this configuration.
func (c *Config) ModeEnabled(name string) bool {
	for _, m := range c.Modes {
		if m == name {
			return true
		}
	}
	return false
}
