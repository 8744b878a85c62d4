package analytics

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"
)

// Spool is the on-disk fallback queue for analytics events. Events are
// appended as gzip-compressed JSON lines, one segment file per process run,
// and replayed on the next startup.
type Spool struct {
	dir string

	mu   sync.Mutex
	file *os.File
	gz   *pgzip.Writer
}

// NewSpool creates the spool directory if needed.
func NewSpool(dir string) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create spool directory")
	}
	return &Spool{dir: dir}, nil
}

// Append writes one event to the current segment.
func (s *Spool) Append(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gz == nil {
		name := fmt.Sprintf("events-%d.jsonl.gz", time.Now().UnixNano())
		f, err := os.Create(filepath.Join(s.dir, name))
		if err != nil {
			return errors.Wrap(err, "create spool segment")
		}
		s.file = f
		s.gz = pgzip.NewWriter(f)
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}
	line = append(line, '\n')
	if _, err := s.gz.Write(line); err != nil {
		return errors.Wrap(err, "write spool segment")
	}
	// Flush per event so a crash loses at most the event being written.
	if err := s.gz.Flush(); err != nil {
		return errors.Wrap(err, "flush spool segment")
	}
	return nil
}

// Replay reads all completed segments concurrently, feeds every event to fn,
// and removes the segments that replayed cleanly. The segment currently open
// for writing is untouched.
func (s *Spool) Replay(ctx context.Context, fn func(Event)) (int, error) {
	s.mu.Lock()
	var current string
	if s.file != nil {
		current = s.file.Name()
	}
	s.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "events-*.jsonl.gz"))
	if err != nil {
		return 0, errors.Wrap(err, "list spool segments")
	}

	var (
		countMu sync.Mutex
		count   int
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, path := range matches {
		if path == current {
			continue
		}
		g.Go(func() error {
			n, err := replaySegment(ctx, path, fn)
			if err != nil {
				return errors.Wrapf(err, "segment %s", filepath.Base(path))
			}
			countMu.Lock()
			count += n
			countMu.Unlock()
			return os.Remove(path)
		})
	}
	if err := g.Wait(); err != nil {
		return count, err
	}
	return count, nil
}

func replaySegment(ctx context.Context, path string, fn func(Event)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "open segment")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrap(err, "open gzip stream")
	}
	defer func() { _ = gz.Close() }()

	n := 0
	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		var ev Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			// A torn tail line from a crashed writer is expected; skip it.
			continue
		}
		fn(ev)
		n++
	}
	if err := sc.Err(); err != nil {
		return n, errors.Wrap(err, "scan segment")
	}
	return n, nil
}

// Close finishes the current segment.
func (s *Spool) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gz == nil {
		return nil
	}
	if err := s.gz.Close(); err != nil {
		_ = s.file.Close()
		return errors.Wrap(err, "close gzip writer")
	}
	if err := s.file.Close(); err != nil {
		return errors.Wrap(err, "close spool segment")
	}
	s.gz = nil
	s.file = nil
	return nil
}
