// Package sink appends projected posts to the output CSV, one durable row
// at a time, and enforces the soft quota pause.
package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"xscraper/pkg/backoff"
	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/post"
	"xscraper/pkg/ui"
)

const utf8BOM = "\ufeff"

// Options control durability and the soft quota
type Options struct {
	// SyncEveryRow fsyncs after each appended row
	SyncEveryRow bool
	// QuotaThreshold is the saved-record count that triggers a pause; 0 disables
	QuotaThreshold int
	QuotaCooldown  time.Duration
	// InitialTotal seeds TotalSaved when resuming
	InitialTotal int
}

// Sink is an append-only CSV writer for posts
type Sink struct {
	mu     sync.Mutex
	file   *os.File
	path   string
	opts   Options
	waiter backoff.Waiter
	logger logger.Logger

	buf bytes.Buffer
	enc *csv.Writer

	total      int
	pageSaved  int
	batchSaved int
	skipped    int
}

// Open opens path for appending, writing the header if the file is new or
// empty. An existing file with a different header is rejected
func Open(path string, opts Options, waiter backoff.Waiter, log logger.Logger) (*Sink, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errs.NewFileIO("failed to create output directory", err)
		}
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, errs.NewFileIO("failed to open output file", err)
	}

	s := &Sink{
		file:   f,
		path:   path,
		opts:   opts,
		waiter: waiter,
		logger: log.WithField("component", "sink"),
		total:  opts.InitialTotal,
	}
	s.enc = csv.NewWriter(&s.buf)

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errs.NewFileIO("failed to stat output file", err)
	}

	if info.Size() == 0 {
		if err := s.writeRow(post.Columns); err != nil {
			f.Close()
			return nil, err
		}
		s.logger.InfoWithFields("Created output file", map[string]interface{}{"path": path})
		return s, nil
	}

	if err := checkHeader(f); err != nil {
		f.Close()
		return nil, err
	}
	s.logger.InfoWithFields("Appending to existing output file", map[string]interface{}{
		"path":  path,
		"bytes": info.Size(),
	})
	return s, nil
}

// checkHeader compares the first record of f with post.Columns
func checkHeader(f *os.File) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return errs.NewFileIO("failed to read output header", err)
	}

	br := bufio.NewReader(f)
	if b, err := br.Peek(len(utf8BOM)); err == nil && string(b) == utf8BOM {
		_, _ = br.Discard(len(utf8BOM))
	}

	header, err := csv.NewReader(br).Read()
	if err != nil {
		return errs.NewFileIO("failed to parse output header", err)
	}
	if !equalColumns(header, post.Columns) {
		return errs.NewFileIO(fmt.Sprintf("output header mismatch: have %q, want %q",
			strings.Join(header, ","), strings.Join(post.Columns, ",")), nil)
	}
	return nil
}

func equalColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if strings.TrimSpace(a[i]) != b[i] {
			return false
		}
	}
	return true
}

// writeRow encodes row in memory and appends it with a single write
func (s *Sink) writeRow(row []string) error {
	s.buf.Reset()
	if err := s.enc.Write(row); err != nil {
		return errs.NewFileIO("failed to encode row", err)
	}
	s.enc.Flush()
	if err := s.enc.Error(); err != nil {
		return errs.NewFileIO("failed to encode row", err)
	}

	if _, err := s.file.Write(s.buf.Bytes()); err != nil {
		return errs.NewFileIO("failed to append row", err)
	}
	if s.opts.SyncEveryRow {
		if err := s.file.Sync(); err != nil {
			return errs.NewFileIO("failed to sync output file", err)
		}
	}
	return nil
}

// Accept projects and appends p. Projection failures are logged and the
// record skipped; write failures are returned. When the soft quota is
// reached Accept blocks for the quota cool-down
func (s *Sink) Accept(ctx context.Context, p post.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := post.Project(p)
	if err != nil {
		s.skipped++
		s.logger.WithError(err).WarnWithFields("Error processing post, skipping", map[string]interface{}{
			"post_id": p.ID,
		})
		return nil
	}

	if err := s.writeRow(row); err != nil {
		return fmt.Errorf("post %s: %w", p.ID, err)
	}

	s.total++
	s.pageSaved++
	s.batchSaved++

	if s.opts.QuotaThreshold > 0 && s.batchSaved >= s.opts.QuotaThreshold {
		s.logger.InfoWithFields("Quota reached, pausing", map[string]interface{}{
			"saved":    s.batchSaved,
			"cooldown": s.opts.QuotaCooldown,
			"quota":    ui.QuotaBar(s.batchSaved, s.opts.QuotaThreshold),
		})
		if err := s.waiter.Wait(ctx, s.opts.QuotaCooldown, backoff.KindQuota.String()); err != nil {
			return err
		}
		s.batchSaved = 0
	}
	return nil
}

// FlushProgress logs the per-page tally and starts a new page count.
// It returns the number of rows saved for the page
func (s *Sink) FlushProgress() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.pageSaved
	s.logger.InfoWithFields(fmt.Sprintf("Batch processed with %d saved posts", saved), map[string]interface{}{
		"total_saved": s.total,
		"quota":       ui.QuotaBar(s.batchSaved, s.opts.QuotaThreshold),
	})
	s.pageSaved = 0
	return saved
}

// TotalSaved returns rows written, including InitialTotal
func (s *Sink) TotalSaved() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// BatchSaved returns rows written since the last quota pause
func (s *Sink) BatchSaved() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batchSaved
}

// Skipped returns the number of records rejected by projection
func (s *Sink) Skipped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

// Path returns the output file path
func (s *Sink) Path() string {
	return s.path
}

// Close syncs and closes the output file
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	syncErr := s.file.Sync()
	closeErr := s.file.Close()
	s.file = nil
	if syncErr != nil {
		return errs.NewFileIO("failed to sync output file", syncErr)
	}
	if closeErr != nil {
		return errs.NewFileIO("failed to close output file", closeErr)
	}
	return nil
}
