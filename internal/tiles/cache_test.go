package tiles

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/woozymasta/drawmap/internal/config"

	"github.com/chai2010/webp"
	"github.com/paulmach/orb/maptile"
)

func pngTile(t *testing.T, size int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode(): %v", err)
	}
	return buf.Bytes()
}

// tileServer serves a PNG for zoom 1, a 1px tile for zoom 2 and 404 otherwise.
func tileServer(t *testing.T, size int) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	full, empty := pngTile(t, size), pngTile(t, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch {
		case len(r.URL.Path) > 3 && r.URL.Path[:3] == "/1/":
			_, _ = w.Write(full)
		case len(r.URL.Path) > 3 && r.URL.Path[:3] == "/2/":
			_, _ = w.Write(empty)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	return srv, &hits
}

func newTestCache(t *testing.T, srv *httptest.Server, tileSize int) *Cache {
	t.Helper()

	return New(srv.Client(), config.Tiles{
		URL:      srv.URL + "/{z}/{x}/{y}.png",
		CacheDir: t.TempDir(),
		TileSize: tileSize,
		Quality:  80,
	})
}

func TestCacheGet(t *testing.T) {
	srv, hits := tileServer(t, 256)
	c := newTestCache(t, srv, 256)
	tile := maptile.New(1, 0, 1)

	first, err := c.Get(context.Background(), tile)
	if err != nil {
		t.Fatalf("Get(): %v", err)
	}
	cfg, err := webp.DecodeConfig(bytes.NewReader(first))
	if err != nil {
		t.Fatalf("result is not webp: %v", err)
	}
	if cfg.Width != 256 || cfg.Height != 256 {
		t.Errorf("tile size = %dx%d", cfg.Width, cfg.Height)
	}

	second, err := c.Get(context.Background(), tile)
	if err != nil {
		t.Fatalf("second Get(): %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("cached tile differs from fetched tile")
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("upstream hit %d times, want 1", got)
	}
}

func TestCacheRescales(t *testing.T) {
	srv, _ := tileServer(t, 512)
	c := newTestCache(t, srv, 256)

	data, err := c.Get(context.Background(), maptile.New(0, 0, 1))
	if err != nil {
		t.Fatalf("Get(): %v", err)
	}
	cfg, err := webp.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeConfig(): %v", err)
	}
	if cfg.Width != 256 {
		t.Errorf("width = %d, want 256", cfg.Width)
	}
}

func TestCacheMissing(t *testing.T) {
	srv, _ := tileServer(t, 256)
	c := newTestCache(t, srv, 256)

	for _, tile := range []maptile.Tile{maptile.New(0, 0, 2), maptile.New(0, 0, 3)} {
		if _, err := c.Get(context.Background(), tile); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%v) = %v, want ErrNotFound", tile, err)
		}
	}
}

func TestPrefetch(t *testing.T) {
	srv, _ := tileServer(t, 256)
	c := newTestCache(t, srv, 256)

	tiles := []maptile.Tile{
		maptile.New(0, 0, 1), maptile.New(1, 0, 1),
		maptile.New(0, 0, 2), maptile.New(0, 0, 3),
	}

	stats := c.Prefetch(context.Background(), tiles, 3, false)
	if stats != (Stats{Fetched: 2, Missing: 2}) {
		t.Errorf("first run = %+v", stats)
	}

	stats = c.Prefetch(context.Background(), tiles, 3, false)
	if stats != (Stats{Cached: 2, Missing: 2}) {
		t.Errorf("second run = %+v", stats)
	}

	stats = c.Prefetch(context.Background(), tiles[:2], 1, true)
	if stats != (Stats{Fetched: 2}) {
		t.Errorf("forced run = %+v", stats)
	}
}

func TestTransparent(t *testing.T) {
	data, err := Transparent(0)
	if err != nil {
		t.Fatalf("Transparent(): %v", err)
	}
	cfg, err := webp.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeConfig(): %v", err)
	}
	if cfg.Width != 256 || cfg.Height != 256 {
		t.Errorf("size = %dx%d", cfg.Width, cfg.Height)
	}
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name       string
		tpl        string
		subdomains []string
		tile       maptile.Tile
		want       string
	}{
		{"XYZ", "https://t/{z}/{x}/{y}.png", nil, maptile.New(3, 5, 4), "https://t/4/3/5.png"},
		{"TMS", "https://t/{z}/{x}/{tms_y}.png", nil, maptile.New(0, 0, 1), "https://t/1/0/1.png"},
		{"Subdomain", "https://{s}.t/{z}/{x}/{y}.png", []string{"a", "b", "c"}, maptile.New(1, 0, 1), "https://b.t/1/1/0.png"},
		{"Subdomain Wraps", "https://{s}.t/{z}/{x}/{y}.png", []string{"a", "b", "c"}, maptile.New(2, 1, 2), "https://a.t/2/2/1.png"},
		{"No Subdomains", "https://{s}t/{z}/{x}/{y}.png", nil, maptile.New(0, 0, 0), "https://t/0/0/0.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildURL(tt.tpl, tt.subdomains, tt.tile); got != tt.want {
				t.Errorf("BuildURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
