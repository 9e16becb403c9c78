package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/woozymasta/drawmap/internal/config"
	"github.com/woozymasta/drawmap/internal/geo"
	"github.com/woozymasta/drawmap/internal/logger"
	"github.com/woozymasta/drawmap/internal/tiles"

	"github.com/jessevdk/go-flags"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string `short:"c" long:"config"      env:"CONFIG_FILE" description:"Path to configuration file" default:"config.yaml"`
	BBox        string `short:"b" long:"bbox"        env:"BBOX"        description:"Area to prefetch as minLng,minLat,maxLng,maxLat, map bounds when unset"`
	MinZoom     int    `short:"m" long:"min-zoom"    env:"MIN_ZOOM"    description:"Lowest zoom level to prefetch" default:"0"`
	MaxZoom     int    `short:"z" long:"max-zoom"    env:"MAX_ZOOM"    description:"Highest zoom level to prefetch, map zoom when unset"`
	Radius      int    `short:"r" long:"radius"      env:"RADIUS"      description:"Tiles around the map center when no bounds are configured" default:"2"`
	Concurrency int    `short:"p" long:"concurrency" env:"CONCURRENCY" description:"Concurrency" default:"8"`
	Force       bool   `short:"f" long:"force"       description:"Force overwrite of existing files"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg, err := config.LoadOrDefault(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if opts.MaxZoom <= 0 {
		opts.MaxZoom = cfg.Map.Zoom
	}
	if opts.MaxZoom > cfg.Map.MaxZoom {
		opts.MaxZoom = cfg.Map.MaxZoom
	}
	if opts.MinZoom < 0 || opts.MinZoom > opts.MaxZoom {
		log.Fatal().
			Int("min_zoom", opts.MinZoom).
			Int("max_zoom", opts.MaxZoom).
			Msg("Invalid zoom range")
	}

	client := &http.Client{
		Transport: &http.Transport{
			TLSNextProto:        make(map[string]func(string, *tls.Conn) http.RoundTripper),
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
		Timeout: 15 * time.Second,
	}
	cache := tiles.New(client, cfg.Tiles)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	center := orb.Point{cfg.Map.Center.Lng, cfg.Map.Center.Lat}

	area := cfg.Map.Bounds
	if opts.BBox != "" {
		if area, err = parseBBox(opts.BBox); err != nil {
			log.Fatal().Err(err).Str("bbox", opts.BBox).Msg("Invalid bounding box")
		}
	}

	log.Info().
		Str("source", cfg.Tiles.URL).
		Str("dir", cfg.Tiles.CacheDir).
		Int("min_zoom", opts.MinZoom).
		Int("max_zoom", opts.MaxZoom).
		Floats64("bounds", area).
		Msg("Starting loader")

	var total tiles.Stats
	for z := opts.MinZoom; z <= opts.MaxZoom; z++ {
		zoom := maptile.Zoom(z)

		var bound orb.Bound
		if b := area; len(b) == 4 {
			bound = orb.Bound{Min: orb.Point{b[0], b[1]}, Max: orb.Point{b[2], b[3]}}
		} else {
			bound = geo.BoundAround(center, zoom, opts.Radius)
		}

		list := geo.TilesInBound(bound, zoom)
		stats := cache.Prefetch(ctx, list, opts.Concurrency, opts.Force)

		log.Info().
			Int("zoom", z).
			Int("tiles", len(list)).
			Int("fetched", stats.Fetched).
			Int("cached", stats.Cached).
			Int("missing", stats.Missing).
			Int("failed", stats.Failed).
			Msg("Zoom level processed")

		total.Fetched += stats.Fetched
		total.Cached += stats.Cached
		total.Missing += stats.Missing
		total.Failed += stats.Failed

		if ctx.Err() != nil {
			log.Warn().Msg("Loader interrupted")
			break
		}
	}

	log.Info().
		Int("fetched", total.Fetched).
		Int("cached", total.Cached).
		Int("missing", total.Missing).
		Int("failed", total.Failed).
		Msg("Loader finished")

	if total.Failed > 0 {
		os.Exit(1)
	}
}

func parseBBox(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("expected 4 comma separated values, got %d", len(parts))
	}

	bbox := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		bbox[i] = v
	}
	if bbox[0] > bbox[2] || bbox[1] > bbox[3] {
		return nil, fmt.Errorf("min corner exceeds max corner")
	}

	return bbox, nil
}
