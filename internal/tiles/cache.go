// Package tiles proxies raster map tiles through a local webp cache.
package tiles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/woozymasta/drawmap/internal/config"
	"github.com/woozymasta/drawmap/internal/geo"

	"github.com/chai2010/webp"
	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrNotFound means the upstream has no usable tile at this position.
var ErrNotFound = errors.New("tile not found")

// Cache fetches tiles from the configured source and keeps them on disk as webp.
type Cache struct {
	client *http.Client
	source config.Tiles
}

// New returns a cache for source using client for upstream requests.
func New(client *http.Client, source config.Tiles) *Cache {
	return &Cache{client: client, source: source}
}

// Path returns the cache file of t.
func (c *Cache) Path(t maptile.Tile) string {
	return filepath.Join(
		c.source.CacheDir,
		strconv.Itoa(int(t.Z)),
		strconv.FormatUint(uint64(t.X), 10),
		strconv.FormatUint(uint64(t.Y), 10)+".webp",
	)
}

// Get returns the webp encoded tile, fetching and converting it on a miss.
func (c *Cache) Get(ctx context.Context, t maptile.Tile) ([]byte, error) {
	data, _, err := c.load(ctx, t, false)
	return data, err
}

// load returns the tile and whether it came from disk. With force the disk
// copy is ignored and replaced.
func (c *Cache) load(ctx context.Context, t maptile.Tile, force bool) ([]byte, bool, error) {
	path := c.Path(t)

	if !force {
		if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
			return data, true, nil
		}
	}

	data, err := c.fetch(ctx, t)
	if err != nil {
		return nil, false, err
	}

	if err := writeFile(path, data); err != nil {
		// serve the fresh tile anyway, the next request retries the write
		log.Error().Err(err).Str("path", path).Msg("Failed to store tile")
	}

	return data, false, nil
}

func (c *Cache) fetch(ctx context.Context, t maptile.Tile) ([]byte, error) {
	url := BuildURL(c.source.URL, c.source.Subdomains, t)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.source.UserAgent != "" {
		req.Header.Set("User-Agent", c.source.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		log.Trace().Str("url", url).Msg("Tile not found (404)")
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status code %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}

	// Filter out empty/1px tiles often returned by map servers for OOB areas
	if img.Bounds().Dx() <= 1 {
		log.Trace().Str("url", url).Msg("Filtered empty tile")
		return nil, ErrNotFound
	}

	img = fitTile(img, c.source.TileSize)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: false, Quality: float32(c.source.Quality)}); err != nil {
		return nil, fmt.Errorf("encode %s: %w", url, err)
	}

	return buf.Bytes(), nil
}

// fitTile rescales img to size x size when the upstream serves another size.
func fitTile(img image.Image, size int) image.Image {
	b := img.Bounds()
	if size <= 0 || (b.Dx() == size && b.Dy() == size) {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// Transparent returns an empty webp tile served where no data exists.
func Transparent(size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}

	var buf bytes.Buffer
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: true}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// BuildURL expands {s}, {z}, {x}, {y} and {tms_y} in tpl for t. Subdomains
// rotate with the tile position so neighbouring tiles spread over hosts.
func BuildURL(tpl string, subdomains []string, t maptile.Tile) string {
	s := strings.ReplaceAll(tpl, "{z}", strconv.Itoa(int(t.Z)))
	s = strings.ReplaceAll(s, "{x}", strconv.FormatUint(uint64(t.X), 10))
	s = strings.ReplaceAll(s, "{y}", strconv.FormatUint(uint64(t.Y), 10))

	if strings.Contains(s, "{tms_y}") {
		s = strings.ReplaceAll(s, "{tms_y}", strconv.FormatUint(uint64(geo.TMSY(t)), 10))
	}

	if strings.Contains(s, "{s}") {
		sub := ""
		if len(subdomains) > 0 {
			sub = subdomains[int(t.X+t.Y)%len(subdomains)]
		}
		s = strings.ReplaceAll(s, "{s}", sub)
	}

	return s
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tile-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
