package session

import (
	"sync"

	"github.com/woozymasta/drawmap/internal/pipeline"
)

// Button is the server-side state of a mode button.
type Button struct {
	mu    sync.Mutex
	color string
}

// SetColor implements pipeline.Indicator.
func (b *Button) SetColor(color string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.color = color
}

// Color returns the current button color.
func (b *Button) Color() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.color
}

// Panel holds the preview text shown next to the map.
type Panel struct {
	mu   sync.Mutex
	text string
}

// SetText implements pipeline.Preview.
func (p *Panel) SetText(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.text = text
}

// Text returns the current preview text.
func (p *Panel) Text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.text
}

// State is what the page needs to render a session.
type State struct {
	ID      string            `json:"id"`
	Mode    pipeline.Mode     `json:"mode"`
	Buttons map[string]string `json:"buttons"`
	Preview string            `json:"preview"`
}
