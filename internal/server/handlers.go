// Package server handles HTTP requests and middleware.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"net/http"
	"strconv"
	"strings"

	"github.com/woozymasta/drawmap/internal/export"
	"github.com/woozymasta/drawmap/internal/geo"
	"github.com/woozymasta/drawmap/internal/pipeline"
	"github.com/woozymasta/drawmap/internal/session"
	"github.com/woozymasta/drawmap/internal/tiles"

	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog/log"
)

// maxSnapshotBytes bounds the body of a finish request.
const maxSnapshotBytes = 16 << 20

type modeRequest struct {
	Mode string `json:"mode"`
}

type finishRequest struct {
	Type     string          `json:"type"`
	IDs      []string        `json:"ids"`
	Snapshot json.RawMessage `json:"snapshot"`
}

// HandleConfig serves the client settings.
func (s *ServerContext) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Settings)
}

// HandleFavicon serves the site icon.
func (s *ServerContext) HandleFavicon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(s.Favicon)
}

// HandleIndex serves the main HTML application.
func (s *ServerContext) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && strings.Contains(r.URL.Path, ".") {
		http.NotFound(w, r)
		return
	}

	etag := fmt.Sprintf(`"%x-%x"`, len(s.IndexHTML), crc32.ChecksumIEEE(s.IndexHTML))

	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.IndexHTML)
}

// HandleCreateSession opens a session for a freshly loaded page.
func (s *ServerContext) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Sessions.Create()
	if err != nil {
		log.Error().Err(err).Msg("Failed to create session")
		writeError(w, http.StatusInternalServerError, "cannot create session")
		return
	}

	writeJSON(w, http.StatusCreated, sess.State())
}

// HandleSessionState returns the current mode, button colors and preview.
func (s *ServerContext) HandleSessionState(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, sess.State())
}

// HandleCloseSession drops a session when its page goes away.
func (s *ServerContext) HandleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Close(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleMode activates a drawing mode.
func (s *ServerContext) HandleMode(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid mode request")
		return
	}

	s.send(w, r, sess, pipeline.ModeSelected{Mode: pipeline.Mode(req.Mode)})
}

// HandleFinish receives the page snapshot after a shape is completed.
func (s *ServerContext) HandleFinish(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req finishRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSnapshotBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid finish request")
		return
	}

	snapshot, err := geo.DecodeSnapshot(req.Snapshot)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev := pipeline.FinishEvent{IDs: req.IDs, Kind: req.Type}
	if err := sess.Surface.Finish(r.Context(), snapshot, ev); err != nil {
		writeSendError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess.State())
}

// HandleClear empties the surface and the preview.
func (s *ServerContext) HandleClear(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	s.send(w, r, sess, pipeline.ClearRequested{})
}

// HandleDownload sends the current output as a GeoJSON attachment.
func (s *ServerContext) HandleDownload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	ev := pipeline.DownloadRequested{Sink: export.NewHTTPSink(w)}
	if err := sess.Pipeline.Send(r.Context(), ev); err != nil {
		writeSendError(w, err)
	}
}

// HandleTile serves a tile from the local cache, or a transparent tile when
// none is available.
func (s *ServerContext) HandleTile(w http.ResponseWriter, r *http.Request) {
	if s.Tiles == nil {
		http.NotFound(w, r)
		return
	}

	tile, ok := parseTile(r, s.Config.Map.MaxZoom)
	if !ok {
		http.NotFound(w, r)
		return
	}

	data, err := s.Tiles.Get(r.Context(), tile)
	if err != nil {
		if !errors.Is(err, tiles.ErrNotFound) {
			log.Warn().Err(err).Str("path", r.URL.Path).Msg("Failed to load tile")
		}

		w.Header().Set("Content-Type", "image/webp")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write(s.TransparentTile)
		return
	}

	w.Header().Set("Content-Type", "image/webp")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(data)
}

func parseTile(r *http.Request, maxZoom int) (maptile.Tile, bool) {
	z, errZ := strconv.ParseUint(r.PathValue("z"), 10, 8)
	x, errX := strconv.ParseUint(r.PathValue("x"), 10, 32)
	y, errY := strconv.ParseUint(strings.TrimSuffix(r.PathValue("y"), ".webp"), 10, 32)
	if errZ != nil || errX != nil || errY != nil {
		return maptile.Tile{}, false
	}
	if int(z) > maxZoom {
		return maptile.Tile{}, false
	}

	limit := uint64(1) << z
	if x >= limit || y >= limit {
		return maptile.Tile{}, false
	}

	return maptile.New(uint32(x), uint32(y), maptile.Zoom(z)), true
}

// session resolves the {id} path value, answering 404 when it is unknown.
func (s *ServerContext) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.Sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return sess, true
}

// send dispatches ev and answers with the resulting session state.
func (s *ServerContext) send(w http.ResponseWriter, r *http.Request, sess *session.Session, ev pipeline.Event) {
	if err := sess.Pipeline.Send(r.Context(), ev); err != nil {
		writeSendError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess.State())
}

func writeSendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrStopped):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, session.ErrNotStarted):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
