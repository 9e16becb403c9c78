package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/woozymasta/drawmap/internal/config"
	"github.com/woozymasta/drawmap/internal/page"
	"github.com/woozymasta/drawmap/internal/session"
	"github.com/woozymasta/drawmap/internal/tiles"

	"github.com/rs/zerolog/log"
)

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config          *config.Config
	Sessions        *session.Store
	Tiles           *tiles.Cache
	IndexHTML       []byte
	Favicon         []byte
	TransparentTile []byte
	Settings        page.Settings
}

// NewServerContext renders the page and prepares the session store and the
// tile cache. The tile cache is nil unless tiles are proxied.
func NewServerContext(cfg *config.Config) (*ServerContext, error) {
	log.Info().
		Str("title", cfg.Title).
		Strs("modes", cfg.Modes).
		Bool("tile_cache", cfg.Tiles.Cache).
		Msg("Initializing server context")

	index, err := page.Render(cfg, "")
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	icon, err := page.Icon()
	if err != nil {
		return nil, fmt.Errorf("render icon: %w", err)
	}
	transparent, err := tiles.Transparent(cfg.Tiles.TileSize)
	if err != nil {
		return nil, fmt.Errorf("encode transparent tile: %w", err)
	}

	var cache *tiles.Cache
	if cfg.Tiles.Cache {
		cache = tiles.New(&http.Client{Timeout: 15 * time.Second}, cfg.Tiles)
		log.Debug().
			Str("source", cfg.Tiles.URL).
			Str("dir", cfg.Tiles.CacheDir).
			Msg("Tile cache enabled")
	}

	sessions := session.NewStore(session.Options{
		Modes:    cfg.Modes,
		Filename: cfg.Export.Filename,
		TTL:      cfg.Sessions.TTL,
	})

	log.Info().
		Int("page_bytes", len(index)).
		Dur("session_ttl", cfg.Sessions.TTL).
		Msg("Server context initialized successfully")

	return &ServerContext{
		Config:          cfg,
		Sessions:        sessions,
		Tiles:           cache,
		IndexHTML:       index,
		Favicon:         icon,
		TransparentTile: transparent,
		Settings:        page.NewSettings(cfg, ""),
	}, nil
}

// Routes registers every handler on a new mux.
func (s *ServerContext) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/config", s.HandleConfig)
	mux.HandleFunc("POST /api/sessions", s.HandleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.HandleSessionState)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.HandleCloseSession)
	mux.HandleFunc("POST /api/sessions/{id}/mode", s.HandleMode)
	mux.HandleFunc("POST /api/sessions/{id}/finish", s.HandleFinish)
	mux.HandleFunc("POST /api/sessions/{id}/clear", s.HandleClear)
	mux.HandleFunc("GET /api/sessions/{id}/download", s.HandleDownload)
	mux.HandleFunc("GET /tiles/{z}/{x}/{y}", s.HandleTile)
	mux.HandleFunc("GET /favicon.svg", s.HandleFavicon)
	mux.HandleFunc("GET /", s.HandleIndex)
	return mux
}
