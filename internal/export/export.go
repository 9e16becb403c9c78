// Package export serializes GeoJSON documents and delivers them as downloads.
package export

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
)

// ContentType is the media type of exported documents.
const ContentType = "application/geo+json"

// Marshal encodes v the way exported files are written: 4-space indented JSON.
func Marshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "    ")
}

// HTTPSink streams exports to an HTTP response as an attachment.
type HTTPSink struct {
	w http.ResponseWriter
}

// NewHTTPSink returns a sink bound to a single response.
func NewHTTPSink(w http.ResponseWriter) *HTTPSink {
	return &HTTPSink{w: w}
}

// Export writes v as a file download named filename.
func (s *HTTPSink) Export(v any, filename string) error {
	data, err := Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filename, err)
	}

	h := s.w.Header()
	h.Set("Content-Type", ContentType+"; charset=utf-8")
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filepath.Base(filename)}))
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("Cache-Control", "no-store")

	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}

	return nil
}

// FileSink writes exports into a directory.
type FileSink struct {
	Dir string
}

// Export writes v to Dir/filename. The content goes to a temporary file
// first and is renamed into place, so readers never see a partial file.
func (s FileSink) Export(v any, filename string) error {
	data, err := Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filename, err)
	}

	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}

	return os.Rename(tmpName, filepath.Join(dir, filepath.Base(filename)))
}
