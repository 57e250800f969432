package logstore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/searchtrail/searchtrail/internal/model"
)

const (
	defaultFileMode = 0644
	defaultDirMode  = 0755

	// Header is the fixed first line of the store file. Readers skip it;
	// Truncate resets the file to exactly this line.
	Header = "timestamp,search_query"
)

// Store is the flat-file search log. It owns its backing file exclusively:
// appends are mutex-serialized, truncation goes through an atomic rename,
// and readers tolerate a partially written trailing line.
type Store struct {
	mu   sync.Mutex
	path string
}

// Open creates a flat-file store backed by path. The backing file and its
// access-control markers are created lazily and re-verified on every
// write, so an unwritable location surfaces per operation rather than
// here.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("logstore: path is empty")
	}
	return &Store{path: path}, nil
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Append persists one event as a single line. Callers on the ingestion
// path are expected to swallow ErrStoreUnavailable: logging a search must
// never break the search itself.
func (s *Store) Append(ev model.SearchEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensure(); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, defaultFileMode)
	if err != nil {
		return fmt.Errorf("%w: open for append: %v", model.ErrStoreUnavailable, err)
	}
	defer f.Close()

	if _, err := f.WriteString(encodeLine(ev) + "\n"); err != nil {
		return fmt.Errorf("%w: append: %v", model.ErrStoreUnavailable, err)
	}
	return nil
}

// ReadAll returns all stored events in file order. A missing file reads
// as an empty store. The header line, blank lines, malformed lines, and a
// trailing partial line (a concurrent append in flight) are skipped.
func (s *Store) ReadAll() ([]model.SearchEvent, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: open for read: %v", model.ErrStoreUnavailable, err)
	}
	defer f.Close()

	// The store exists, so repair any deny markers deleted since the last
	// write. A missing store stays missing: reads never create files.
	if err := EnsureDenyMarkers(filepath.Dir(s.path)); err != nil {
		return nil, err
	}

	var events []model.SearchEvent
	reader := bufio.NewReader(f)
	first := true
	for {
		line, rerr := reader.ReadString('\n')
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return nil, fmt.Errorf("%w: read: %v", model.ErrStoreUnavailable, rerr)
		}
		if !strings.HasSuffix(line, "\n") && line != "" {
			// Trailing line without a newline may still be mid-write.
			break
		}
		line = strings.TrimRight(line, "\r\n")

		if first {
			first = false
			// The first line is the fixed header (optionally BOM-prefixed),
			// never data.
			if errors.Is(rerr, io.EOF) {
				break
			}
			continue
		}

		if line != "" {
			if ev, derr := decodeLine(line); derr == nil {
				events = append(events, ev)
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
	}
	return events, nil
}

// Truncate resets the store to header-only content. The replacement file
// is written beside the store and swapped in with a rename, so a
// concurrent reader sees either the old content or the empty store, never
// a half-written file.
func (s *Store) Truncate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensure(); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(Header+"\n"), defaultFileMode); err != nil {
		return fmt.Errorf("%w: write truncate tmp: %v", model.ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: swap truncated file: %v", model.ErrStoreUnavailable, err)
	}
	return nil
}

// Close releases nothing: the store opens its file per operation so that
// truncation via rename never leaves a writer on an unlinked inode.
func (s *Store) Close() error {
	return nil
}

// ensure creates the store directory, the header-only file, and the
// access-control markers on first use, and repairs any of them that have
// gone missing since. Callers hold s.mu.
func (s *Store) ensure() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, defaultDirMode); err != nil {
		return fmt.Errorf("%w: mkdir: %v", model.ErrStoreUnavailable, err)
	}
	if err := EnsureDenyMarkers(dir); err != nil {
		return err
	}

	if _, err := os.Stat(s.path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: stat: %v", model.ErrStoreUnavailable, err)
		}
		if werr := os.WriteFile(s.path, []byte(Header+"\n"), defaultFileMode); werr != nil {
			return fmt.Errorf("%w: create: %v", model.ErrStoreUnavailable, werr)
		}
	}
	return nil
}

// EnsureDenyMarkers writes the files that keep a generic static file
// server from listing or serving the directory: a deny-all .htaccess and
// an empty index placeholder. Existing markers are left untouched.
func EnsureDenyMarkers(dir string) error {
	markers := map[string]string{
		".htaccess":  "Deny from all\n",
		"index.html": "",
	}
	for name, content := range markers {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: stat marker %s: %v", model.ErrStoreUnavailable, name, err)
		}
		if err := os.WriteFile(p, []byte(content), defaultFileMode); err != nil {
			return fmt.Errorf("%w: write marker %s: %v", model.ErrStoreUnavailable, name, err)
		}
	}
	return nil
}
