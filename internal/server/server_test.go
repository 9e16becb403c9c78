package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/woozymasta/drawmap/internal/config"
	"github.com/woozymasta/drawmap/internal/geo"
	"github.com/woozymasta/drawmap/internal/pipeline"
	"github.com/woozymasta/drawmap/internal/session"

	"github.com/paulmach/orb"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*ServerContext, *httptest.Server) {
	t.Helper()

	cfg := config.Default()
	cfg.Tiles.CacheDir = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}

	srvCtx, err := NewServerContext(cfg)
	if err != nil {
		t.Fatalf("NewServerContext(): %v", err)
	}

	srv := httptest.NewServer(RequestLogger(srvCtx.Routes()))
	t.Cleanup(srv.Close)

	return srvCtx, srv
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Encode(): %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("NewRequest(): %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func decodeState(t *testing.T, resp *http.Response) session.State {
	t.Helper()

	var st session.State
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("Decode(): %v", err)
	}
	return st
}

func TestIndex(t *testing.T) {
	_, srv := newTestServer(t, nil)

	resp := do(t, http.MethodGet, srv.URL+"/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/", nil)
	req.Header.Set("If-None-Match", etag)
	cached, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	_ = cached.Body.Close()
	if cached.StatusCode != http.StatusNotModified {
		t.Errorf("conditional status = %d", cached.StatusCode)
	}

	if resp := do(t, http.MethodGet, srv.URL+"/missing.js", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing asset status = %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, srv.URL+"/favicon.svg", nil); resp.Header.Get("Content-Type") != "image/svg+xml" {
		t.Errorf("favicon type = %q", resp.Header.Get("Content-Type"))
	}
}

func TestConfig(t *testing.T) {
	_, srv := newTestServer(t, nil)

	var settings struct {
		Zoom   int            `json:"zoom"`
		Modes  []string       `json:"modes"`
		Center map[string]any `json:"center"`
	}
	if err := json.NewDecoder(do(t, http.MethodGet, srv.URL+"/api/config", nil).Body).Decode(&settings); err != nil {
		t.Fatalf("Decode(): %v", err)
	}
	if settings.Zoom != 14 || len(settings.Modes) != 3 || settings.Center["lat"] != 34.017 {
		t.Errorf("settings = %+v", settings)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	_, srv := newTestServer(t, nil)

	resp := do(t, http.MethodPost, srv.URL+"/api/sessions", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	st := decodeState(t, resp)
	if st.Mode != pipeline.ModeStatic {
		t.Errorf("initial mode = %q", st.Mode)
	}
	base := srv.URL + "/api/sessions/" + st.ID

	do(t, http.MethodPost, base+"/mode", map[string]string{"mode": "circle"})
	st = decodeState(t, do(t, http.MethodPost, base+"/mode", map[string]string{"mode": "rectangle"}))
	if st.Mode != pipeline.ModeRectangle {
		t.Errorf("mode = %q", st.Mode)
	}
	if st.Buttons["rectangle"] != pipeline.ActiveColor || st.Buttons["circle"] != pipeline.InactiveColor {
		t.Errorf("buttons = %v", st.Buttons)
	}

	// freehand has no button and is ignored
	st = decodeState(t, do(t, http.MethodPost, base+"/mode", map[string]string{"mode": "freehand"}))
	if st.Mode != pipeline.ModeRectangle {
		t.Errorf("mode after freehand = %q", st.Mode)
	}

	snapshot := json.RawMessage(`[{"id":"x","type":"Feature","properties":{"mode":"rectangle","selected":true},
		"geometry":{"type":"Polygon","coordinates":[[[0,0],[0,1],[1,1],[1,0],[0,0]]]}}]`)
	resp = do(t, http.MethodPost, base+"/finish", map[string]any{"ids": []string{"x"}, "type": "rectangle", "snapshot": snapshot})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finish status = %d", resp.StatusCode)
	}
	if st = decodeState(t, resp); !strings.Contains(st.Preview, `"mode": "rectangle"`) {
		t.Errorf("preview = %q", st.Preview)
	}

	resp = do(t, http.MethodGet, base+"/download", nil)
	if got := resp.Header.Get("Content-Disposition"); got != "attachment; filename=boundaries.geojson" {
		t.Errorf("Content-Disposition = %q", got)
	}
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	if !strings.HasPrefix(buf.String(), "{\n    \"type\": \"FeatureCollection\"") {
		t.Errorf("download = %q", buf.String())
	}

	s, err := geo.DecodeSnapshot(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeSnapshot(): %v", err)
	}
	if len(s) != 1 || s[0].Mode() != "rectangle" || len(s[0].Properties) != 1 {
		t.Fatalf("downloaded features = %+v", s)
	}
	if ring := s[0].Geometry.Orb().(orb.Polygon)[0]; ring.Orientation() != orb.CCW {
		t.Errorf("exterior ring not counter-clockwise: %v", ring)
	}

	st = decodeState(t, do(t, http.MethodPost, base+"/clear", nil))
	if st.Preview != "" {
		t.Errorf("preview after clear = %q", st.Preview)
	}
	buf.Reset()
	_, _ = buf.ReadFrom(do(t, http.MethodGet, base+"/download", nil).Body)
	if buf.String() != "{}" {
		t.Errorf("download after clear = %q", buf.String())
	}

	if resp := do(t, http.MethodDelete, base, nil); resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	if resp := do(t, http.MethodGet, base, nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("state after delete status = %d", resp.StatusCode)
	}
}

func TestFinishRejectsBadSnapshot(t *testing.T) {
	_, srv := newTestServer(t, nil)
	st := decodeState(t, do(t, http.MethodPost, srv.URL+"/api/sessions", nil))

	resp := do(t, http.MethodPost, srv.URL+"/api/sessions/"+st.ID+"/finish",
		map[string]any{"snapshot": map[string]string{"type": "Point"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestUnknownSession(t *testing.T) {
	_, srv := newTestServer(t, nil)

	if resp := do(t, http.MethodPost, srv.URL+"/api/sessions/nope/clear", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestTiles(t *testing.T) {
	var tile bytes.Buffer
	if err := png.Encode(&tile, image.NewRGBA(image.Rect(0, 0, 256, 256))); err != nil {
		t.Fatalf("png.Encode(): %v", err)
	}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/3/1/2.png" {
			_, _ = w.Write(tile.Bytes())
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(upstream.Close)

	srvCtx, srv := newTestServer(t, func(cfg *config.Config) {
		cfg.Tiles.Cache = true
		cfg.Tiles.URL = upstream.URL + "/{z}/{x}/{y}.png"
		cfg.Tiles.Subdomains = nil
	})

	resp := do(t, http.MethodGet, srv.URL+"/tiles/3/1/2", nil)
	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	if resp.Header.Get("Content-Type") != "image/webp" || bytes.Equal(body.Bytes(), srvCtx.TransparentTile) {
		t.Errorf("tile not served from upstream: %q %d bytes", resp.Header.Get("Content-Type"), body.Len())
	}

	resp = do(t, http.MethodGet, srv.URL+"/tiles/3/0/0", nil)
	body.Reset()
	_, _ = body.ReadFrom(resp.Body)
	if !bytes.Equal(body.Bytes(), srvCtx.TransparentTile) {
		t.Error("missing tile did not fall back to the transparent tile")
	}

	for _, path := range []string{"/tiles/3/8/0", "/tiles/30/0/0", "/tiles/a/0/0"} {
		if resp := do(t, http.MethodGet, srv.URL+path, nil); resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s status = %d", path, resp.StatusCode)
		}
	}
}

func TestTilesDisabled(t *testing.T) {
	_, srv := newTestServer(t, nil)

	if resp := do(t, http.MethodGet, srv.URL+"/tiles/0/0/0", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
