package pipeline

// Event is a UI event consumed by the pipeline.
type Event interface {
	event() string
}

// ModeSelected is sent when a mode button is activated.
type ModeSelected struct {
	Mode Mode
}

// ShapeFinished is sent when the surface reports a completed shape. The ids
// and kind are informational; the pipeline rereads the whole snapshot.
type ShapeFinished struct {
	IDs  []string
	Kind string
}

// ClearRequested is sent when the user clears the map.
type ClearRequested struct{}

// DownloadRequested asks for the current output to be exported. A nil Sink
// falls back to the pipeline's sink, an empty Filename to its default.
type DownloadRequested struct {
	Sink     Sink
	Filename string
}

func (ModeSelected) event() string      { return "mode_selected" }
func (ShapeFinished) event() string     { return "shape_finished" }
func (ClearRequested) event() string    { return "clear_requested" }
func (DownloadRequested) event() string { return "download_requested" }
