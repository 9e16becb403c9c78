package export

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestMarshal(t *testing.T) {
	data, err := Marshal(map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("Marshal(): %v", err)
	}
	if got, want := string(data), "{\n    \"a\": 1\n}"; got != want {
		t.Errorf("Marshal() = %q, want %q", got, want)
	}
}

func TestHTTPSink(t *testing.T) {
	rec := httptest.NewRecorder()

	if err := NewHTTPSink(rec).Export(map[string]int{"a": 1}, "boundaries.geojson"); err != nil {
		t.Fatalf("Export(): %v", err)
	}

	if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename=boundaries.geojson" {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/geo+json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if got, want := rec.Body.String(), "{\n    \"a\": 1\n}"; got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
	if got := rec.Header().Get("Content-Length"); got != "14" {
		t.Errorf("Content-Length = %q", got)
	}
}

func TestHTTPSinkStripsDirectories(t *testing.T) {
	rec := httptest.NewRecorder()

	if err := NewHTTPSink(rec).Export(struct{}{}, "../../etc/passwd"); err != nil {
		t.Fatalf("Export(): %v", err)
	}
	if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename=passwd" {
		t.Errorf("Content-Disposition = %q", got)
	}
}

func TestFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	if err := (FileSink{Dir: dir}).Export(map[string]int{"a": 1}, "boundaries.geojson"); err != nil {
		t.Fatalf("Export(): %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "boundaries.geojson"))
	if err != nil {
		t.Fatalf("ReadFile(): %v", err)
	}
	if got, want := string(data), "{\n    \"a\": 1\n}"; got != want {
		t.Errorf("file = %q, want %q", got, want)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(): %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestFileSinkMarshalError(t *testing.T) {
	dir := t.TempDir()

	if err := (FileSink{Dir: dir}).Export(make(chan int), "x.geojson"); err == nil {
		t.Fatal("Export() succeeded for unencodable value")
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("files created on failure: %v", entries)
	}
}
