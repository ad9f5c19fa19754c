package harvest

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"xscraper/pkg/backoff"
	errs "xscraper/pkg/errors"
	"xscraper/pkg/post"
	"xscraper/pkg/provider"
)

// step is one scripted FetchPage outcome
type step struct {
	posts  []post.Post
	cursor string
	err    error
	// before runs inside FetchPage, e.g. to cancel the context
	before func()
}

func pageOf(startID, n int, cursor string) step {
	posts := make([]post.Post, n)
	for i := range posts {
		posts[i] = post.Post{ID: fmt.Sprint(startID + i), Text: post.String("text")}
	}
	return step{posts: posts, cursor: cursor}
}

func failure(err error) step {
	return step{err: err}
}

type fakeSession struct {
	mu      sync.Mutex
	steps   []step
	cursors []string
	handles []string
}

func (s *fakeSession) FetchPage(ctx context.Context, handle, cursor string) (*provider.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursors = append(s.cursors, cursor)
	s.handles = append(s.handles, handle)
	i := len(s.cursors) - 1
	if i >= len(s.steps) {
		return nil, fmt.Errorf("unscripted fetch %d", i+1)
	}
	st := s.steps[i]
	if st.before != nil {
		st.before()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if st.err != nil {
		return nil, st.err
	}
	return &provider.Page{Posts: st.posts, Cursor: st.cursor}, nil
}

// fakeProvider fails Authenticate with authErrs in order, then succeeds.
// Discard succeeds only when discardable is set
type fakeProvider struct {
	session     *fakeSession
	authErrs    []error
	calls       int
	discardable bool
	discards    int
}

func (p *fakeProvider) Discard() bool {
	if !p.discardable {
		return false
	}
	p.discards++
	return true
}

func (p *fakeProvider) Authenticate(ctx context.Context) (provider.Session, error) {
	p.calls++
	if p.calls <= len(p.authErrs) {
		return nil, p.authErrs[p.calls-1]
	}
	return p.session, nil
}

// fakeMonitor reports reachability from a script, defaulting to reachable
type fakeMonitor struct {
	reachable  []bool
	checks     int
	awaitCalls int
	awaitErr   error
}

func (m *fakeMonitor) IsReachable(ctx context.Context) bool {
	m.checks++
	if m.checks <= len(m.reachable) {
		return m.reachable[m.checks-1]
	}
	return true
}

func (m *fakeMonitor) AwaitReachable(ctx context.Context) error {
	m.awaitCalls++
	return m.awaitErr
}

type fakeSink struct {
	ids      []string
	pageRows int
	failOn   string
	flushes  []int
}

func (s *fakeSink) Accept(ctx context.Context, p post.Post) error {
	if s.failOn != "" && p.ID == s.failOn {
		return errs.NewFileIO("write row", fmt.Errorf("disk full"))
	}
	s.ids = append(s.ids, p.ID)
	s.pageRows++
	return nil
}

func (s *fakeSink) FlushProgress() int {
	n := s.pageRows
	s.flushes = append(s.flushes, n)
	s.pageRows = 0
	return n
}

func (s *fakeSink) TotalSaved() int { return len(s.ids) }
func (s *fakeSink) BatchSaved() int { return len(s.ids) }
func (s *fakeSink) Skipped() int    { return 0 }

type recordingCheckpointer struct {
	cursors []string
	pages   []int
	totals  []int
}

func (c *recordingCheckpointer) Record(cursor string, pages, totalSaved int) error {
	c.cursors = append(c.cursors, cursor)
	c.pages = append(c.pages, pages)
	c.totals = append(c.totals, totalSaved)
	return nil
}

func testController() *backoff.Controller {
	return backoff.NewController(backoff.DefaultSchedule()).WithRand(rand.New(rand.NewSource(7)))
}

func defaultRunConfig() RunConfig {
	return RunConfig{Handle: "sample_user", EmptyBatchLimit: 3}
}

// harness wires a driver to fakes
type harness struct {
	session  *fakeSession
	provider *fakeProvider
	monitor  *fakeMonitor
	waiter   *backoff.RecordingWaiter
	sink     *fakeSink
	driver   *Driver
}

func newHarness(cfg RunConfig, steps ...step) *harness {
	h := &harness{
		session: &fakeSession{steps: steps},
		monitor: &fakeMonitor{},
		waiter:  &backoff.RecordingWaiter{},
		sink:    &fakeSink{},
	}
	h.provider = &fakeProvider{session: h.session}
	h.driver = New(cfg, h.provider, h.monitor, testController(), h.waiter, h.sink, nil)
	return h
}

// waitsFor returns the recorded durations with the given reason
func (h *harness) waitsFor(kind backoff.Kind) []time.Duration {
	var out []time.Duration
	for _, w := range h.waiter.Waits {
		if w.Reason == kind.String() {
			out = append(out, w.Duration)
		}
	}
	return out
}
