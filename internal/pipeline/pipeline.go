// Package pipeline wires mode selection, shape capture, normalization and
// export for a single page. Events are handled one at a time on the goroutine
// running Run; all pipeline state belongs to that goroutine.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/woozymasta/drawmap/internal/geo"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultFilename is the name of the downloaded document.
const DefaultFilename = "boundaries.geojson"

// ErrStopped is returned by Send once Run has exited.
var ErrStopped = errors.New("pipeline stopped")

// FinishEvent describes a shape completed on the surface.
type FinishEvent struct {
	IDs  []string
	Kind string
}

// FinishHandler receives finish notifications from a surface.
type FinishHandler func(ctx context.Context, ev FinishEvent) error

// Surface is the drawing engine capturing user shapes.
type Surface interface {
	Start()
	SetMode(m Mode)
	Clear()
	Snapshot() geo.Snapshot
	OnFinish(h FinishHandler)
}

// Preview displays the current output as text.
type Preview interface {
	SetText(text string)
}

// Sink delivers an exported document.
type Sink interface {
	Export(v any, filename string) error
}

// Options configures a Pipeline.
type Options struct {
	Sink     Sink
	Logger   *zerolog.Logger
	Filename string
}

// Pipeline owns the active mode and the current output of one page.
type Pipeline struct {
	surface  Surface
	selector *ModeSelector
	preview  Preview
	sink     Sink
	logger   zerolog.Logger
	filename string

	// output is nil until the first finished shape and after a clear.
	output *geo.FeatureCollection

	events chan envelope
	done   chan struct{}
}

type envelope struct {
	ev   Event
	errc chan error
}

// New creates a pipeline. The selector should already have its buttons registered.
func New(surface Surface, selector *ModeSelector, preview Preview, opts Options) *Pipeline {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.Filename == "" {
		opts.Filename = DefaultFilename
	}

	return &Pipeline{
		surface:  surface,
		selector: selector,
		preview:  preview,
		sink:     opts.Sink,
		logger:   logger,
		filename: opts.Filename,
		events:   make(chan envelope, 16),
		done:     make(chan struct{}),
	}
}

// Start starts the surface and subscribes to its finish notifications.
func (p *Pipeline) Start() {
	p.surface.Start()
	p.surface.OnFinish(func(ctx context.Context, ev FinishEvent) error {
		return p.Send(ctx, ShapeFinished(ev))
	})
}

// Run handles events until ctx is done.
func (p *Pipeline) Run(ctx context.Context) error {
	defer close(p.done)

	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-p.events:
			env.errc <- p.handle(env.ev)
		}
	}
}

// Send queues ev and waits until it has been handled. Once queued the event
// always completes, even if ctx is cancelled meanwhile, so callers may hand
// request-scoped resources such as a response writer to the pipeline.
func (p *Pipeline) Send(ctx context.Context, ev Event) error {
	env := envelope{ev: ev, errc: make(chan error, 1)}

	select {
	case p.events <- env:
	case <-p.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-env.errc:
		return err
	case <-p.done:
		select {
		case err := <-env.errc:
			return err
		default:
			return ErrStopped
		}
	}
}

// Done is closed when Run returns.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

func (p *Pipeline) handle(ev Event) error {
	p.logger.Trace().Str("event", ev.event()).Msg("Handling event")

	switch e := ev.(type) {
	case ModeSelected:
		p.selectMode(e.Mode)
	case ShapeFinished:
		p.capture(e)
	case ClearRequested:
		p.clear()
	case DownloadRequested:
		p.download(e)
	default:
		return fmt.Errorf("unsupported event %T", ev)
	}

	return nil
}

func (p *Pipeline) selectMode(m Mode) {
	if !p.selector.Select(m) {
		p.logger.Debug().Str("mode", string(m)).Msg("No button registered for mode, ignoring")
		return
	}

	p.surface.SetMode(m)
	p.logger.Debug().Str("mode", string(m)).Msg("Mode selected")
}

func (p *Pipeline) capture(e ShapeFinished) {
	snapshot := p.surface.Snapshot()
	p.output = geo.Normalize(snapshot)

	text, err := json.MarshalIndent(p.output, "", "  ")
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to render preview")
	}
	p.preview.SetText(string(text))

	p.logger.Debug().
		Strs("ids", e.IDs).
		Str("kind", e.Kind).
		Int("features", len(p.output.Features)).
		Msg("Snapshot captured")
}

func (p *Pipeline) clear() {
	p.surface.Clear()
	p.preview.SetText("")
	p.output = nil

	p.logger.Debug().Msg("Surface cleared")
}

func (p *Pipeline) download(e DownloadRequested) {
	sink := e.Sink
	if sink == nil {
		sink = p.sink
	}
	if sink == nil {
		p.logger.Warn().Msg("Download requested without a sink")
		return
	}

	filename := e.Filename
	if filename == "" {
		filename = p.filename
	}

	var doc any = struct{}{}
	features := 0
	if p.output != nil {
		doc = p.output
		features = len(p.output.Features)
	}

	// failures are logged only
	if err := sink.Export(doc, filename); err != nil {
		p.logger.Warn().Err(err).Str("file", filename).Msg("Export failed")
		return
	}

	p.logger.Info().
		Str("file", filename).
		Int("features", features).
		Msg("GeoJSON exported")
}
