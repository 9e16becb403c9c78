package pipeline

import "github.com/woozymasta/drawmap/internal/config"

// Mode identifies a drawing mode of the surface.
type Mode string

// Drawing modes. ModeStatic is inert: the surface captures nothing.
const (
	ModeStatic    Mode = config.ModeStatic
	ModePolygon   Mode = config.ModePolygon
	ModeCircle    Mode = config.ModeCircle
	ModeRectangle Mode = config.ModeRectangle
	ModeFreehand  Mode = config.ModeFreehand
)

// Button colors.
const (
	ActiveColor   = "#27ccff"
	InactiveColor = "#565656"
)

// Indicator is the visual affordance of a mode button.
type Indicator interface {
	SetColor(color string)
}

// ModeSelector tracks the active mode and the button that represents it.
type ModeSelector struct {
	buttons map[Mode]Indicator
	active  Indicator
	mode    Mode
}

// NewModeSelector returns a selector in the inert mode with no buttons.
func NewModeSelector() *ModeSelector {
	return &ModeSelector{
		buttons: make(map[Mode]Indicator),
		mode:    ModeStatic,
	}
}

// Register attaches the button for m. Modes without a button cannot be selected.
func (s *ModeSelector) Register(m Mode, button Indicator) {
	s.buttons[m] = button
}

// Mode returns the active mode.
func (s *ModeSelector) Mode() Mode {
	return s.mode
}

// Select makes m the active mode and restyles the previous and new buttons.
// It reports false, changing nothing, when m has no registered button.
func (s *ModeSelector) Select(m Mode) bool {
	button, ok := s.buttons[m]
	if !ok {
		return false
	}

	s.mode = m
	if s.active != nil {
		s.active.SetColor(InactiveColor)
	}
	s.active = button
	s.active.SetColor(ActiveColor)

	return true
}
