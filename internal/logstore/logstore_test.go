package logstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/searchtrail/searchtrail/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "search-log.csv"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendReadAll(t *testing.T) {
	s := newTestStore(t)

	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local)
	events := []model.SearchEvent{
		{Timestamp: ts, Query: "cat"},
		{Timestamp: ts.Add(time.Hour), Query: "shoes, red"},
		{Timestamp: ts.Add(2 * time.Hour), Query: ""},
	}
	for _, ev := range events {
		if err := s.Append(ev); err != nil {
			t.Fatalf("Append(%q): %v", ev.Query, err)
		}
	}

	got, err := s.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("ReadAll returned %d events, want %d", len(got), len(events))
	}
	for i, ev := range events {
		if got[i].Query != ev.Query {
			t.Errorf("event %d query = %q, want %q", i, got[i].Query, ev.Query)
		}
		if !got[i].Timestamp.Equal(ev.Timestamp) {
			t.Errorf("event %d timestamp = %v, want %v", i, got[i].Timestamp, ev.Timestamp)
		}
	}
}

func TestReadAllMissingFile(t *testing.T) {
	s := newTestStore(t)

	got, err := s.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll on missing file: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("ReadAll on missing file = %d events, want 0", len(got))
	}
}

func TestTruncateThenAppend(t *testing.T) {
	s := newTestStore(t)

	// Truncating a store that does not exist yet leaves exactly the header.
	if err := s.Truncate(); err != nil {
		t.Fatalf("Truncate empty: %v", err)
	}
	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != Header+"\n" {
		t.Fatalf("after truncate file = %q, want header only", data)
	}

	if err := s.Append(model.SearchEvent{Timestamp: time.Now(), Query: "cat"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Truncate(); err != nil {
		t.Fatalf("Truncate non-empty: %v", err)
	}

	if err := s.Append(model.SearchEvent{Timestamp: time.Now(), Query: "dog"}); err != nil {
		t.Fatalf("Append after truncate: %v", err)
	}
	data, err = os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 || lines[0] != Header {
		t.Fatalf("after truncate+append file = %q, want header + one line", data)
	}

	got, err := s.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 1 || got[0].Query != "dog" {
		t.Fatalf("ReadAll after truncate = %+v, want single dog event", got)
	}
}

func TestReadAllSkipsPartialTrailingLine(t *testing.T) {
	s := newTestStore(t)

	if err := s.Append(model.SearchEvent{Timestamp: time.Now(), Query: "ok"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Simulate a torn concurrent append.
	f, err := os.OpenFile(s.Path(), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.WriteString("2024-01-01 10:00:00,half writ"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close torn writer: %v", err)
	}

	got, err := s.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 1 || got[0].Query != "ok" {
		t.Fatalf("ReadAll with torn line = %+v, want [ok]", got)
	}
}

func TestReadAllSkipsMalformedLines(t *testing.T) {
	s := newTestStore(t)

	if err := s.Append(model.SearchEvent{Timestamp: time.Now(), Query: "first"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	f, err := os.OpenFile(s.Path(), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.WriteString("only one field\n"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := s.Append(model.SearchEvent{Timestamp: time.Now(), Query: "second"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 2 || got[0].Query != "first" || got[1].Query != "second" {
		t.Fatalf("ReadAll with malformed line = %+v, want [first second]", got)
	}
}

func TestDenyMarkersSelfHeal(t *testing.T) {
	s := newTestStore(t)

	if err := s.Append(model.SearchEvent{Timestamp: time.Now(), Query: "cat"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	dir := filepath.Dir(s.Path())
	htaccess := filepath.Join(dir, ".htaccess")
	index := filepath.Join(dir, "index.html")
	for _, p := range []string{htaccess, index} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("marker %s missing after first append: %v", p, err)
		}
	}

	// An admin deleting the markers must not leave the directory exposed.
	if err := os.Remove(htaccess); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Append(model.SearchEvent{Timestamp: time.Now(), Query: "dog"}); err != nil {
		t.Fatalf("Append after marker removal: %v", err)
	}
	data, err := os.ReadFile(htaccess)
	if err != nil {
		t.Fatalf("marker not repaired: %v", err)
	}
	if !strings.Contains(string(data), "Deny from all") {
		t.Fatalf("repaired marker content = %q", data)
	}
}

func TestDenyMarkersRepairedOnRead(t *testing.T) {
	s := newTestStore(t)

	if err := s.Append(model.SearchEvent{Timestamp: time.Now(), Query: "cat"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	dir := filepath.Dir(s.Path())
	htaccess := filepath.Join(dir, ".htaccess")
	if err := os.Remove(htaccess); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if _, err := s.ReadAll(); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	data, err := os.ReadFile(htaccess)
	if err != nil {
		t.Fatalf("marker not repaired on read: %v", err)
	}
	if !strings.Contains(string(data), "Deny from all") {
		t.Fatalf("repaired marker content = %q", data)
	}
}

func TestReadAllMissingStoreCreatesNothing(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "search-log.csv"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := s.ReadAll(); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("read of a missing store created %d files, want 0", len(entries))
	}
}

func TestAppendConcurrent(t *testing.T) {
	s := newTestStore(t)

	const n = 50
	done := make(chan error, n)
	ts := time.Now()
	for i := 0; i < n; i++ {
		go func() {
			done <- s.Append(model.SearchEvent{Timestamp: ts, Query: "parallel, query"})
		}()
	}
	for i := 0; i < n; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent Append: %v", err)
		}
	}

	got, err := s.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != n {
		t.Fatalf("ReadAll after concurrent appends = %d events, want %d", len(got), n)
	}
	for _, ev := range got {
		if ev.Query != "parallel, query" {
			t.Fatalf("corrupted line survived: %q", ev.Query)
		}
	}
}
