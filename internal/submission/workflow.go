package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zombor/campusfind/internal/analysis"
	"github.com/zombor/campusfind/internal/imaging"
	"github.com/zombor/campusfind/internal/item"
)

// ErrNoSession is returned when publishing without an identity
var ErrNoSession = errors.New("a signed-in user is required")

// sweepInterval bounds how often expired drafts are looked for
const sweepInterval = time.Minute

// Analyzer describes an image, falling back to an empty result on failure
type Analyzer interface {
	Analyze(ctx context.Context, image string) analysis.Result
}

// Reporter turns a finished draft into a stored item
type Reporter interface {
	Report(req item.ReportRequest) (*item.Item, error)
	Today() string
}

// Key identifies a session's draft. The draft is dropped once ExpiresAt
// has passed.
type Key struct {
	ID        string
	ExpiresAt time.Time
}

// draftEntry is one session's draft. mu serialises that session only.
type draftEntry struct {
	mu        sync.Mutex
	form      Form
	expiresAt time.Time
}

// Workflow keeps one draft per session and drives it through selection,
// analysis and publishing
type Workflow struct {
	mu        sync.Mutex // guards drafts, lastSweep and every expiresAt
	drafts    map[string]*draftEntry
	lastSweep time.Time
	analyzer  Analyzer
	reporter  Reporter
	now       func() time.Time
}

// NewWorkflow creates a new Workflow
func NewWorkflow(analyzer Analyzer, reporter Reporter) *Workflow {
	return &Workflow{
		drafts:   make(map[string]*draftEntry),
		analyzer: analyzer,
		reporter: reporter,
		now:      time.Now,
	}
}

// entry returns the session's draft entry, creating it if needed. Expired
// drafts of any session are swept on the way.
func (w *Workflow) entry(key Key) *draftEntry {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if now.Sub(w.lastSweep) >= sweepInterval {
		w.sweep(now)
	}

	e, ok := w.drafts[key.ID]
	if !ok || !now.Before(e.expiresAt) {
		e = &draftEntry{form: NewForm(w.reporter.Today())}
		w.drafts[key.ID] = e
	}
	if key.ExpiresAt.After(e.expiresAt) {
		e.expiresAt = key.ExpiresAt
	}
	return e
}

// sweep drops drafts whose session has expired. w.mu must be held.
func (w *Workflow) sweep(now time.Time) {
	for id, e := range w.drafts {
		if !now.Before(e.expiresAt) {
			delete(w.drafts, id)
			slog.Debug("Dropped expired draft", "session", id)
		}
	}
	w.lastSweep = now
}

// current reports whether e is still the session's live draft
func (w *Workflow) current(id string, e *draftEntry) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.drafts[id] == e
}

// Len returns the number of drafts held
func (w *Workflow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.drafts)
}

// Draft returns the session's draft, creating an empty one if needed
func (w *Workflow) Draft(key Key) Form {
	e := w.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.form.copy()
}

// SelectImage normalises the upload, attaches it to the draft and runs the
// analysis. No lock is held during the analysis call; the result is only
// applied if the draft still shows the same image.
func (w *Workflow) SelectImage(ctx context.Context, key Key, upload item.Upload) (Form, error) {
	processed, err := imaging.Process(upload.Data, upload.ContentType)
	if err != nil {
		return w.Draft(key), fmt.Errorf("processing image: %w", err)
	}
	image := imaging.DataURL(processed.Data, processed.MIME)
	original := upload

	e := w.entry(key)
	e.mu.Lock()
	f, token, err := e.form.SelectImage(image, &original).BeginAnalysis()
	if err != nil {
		e.mu.Unlock()
		return Form{}, fmt.Errorf("starting analysis: %w", err)
	}
	e.form = f
	e.mu.Unlock()

	result := w.analyzer.Analyze(ctx, image)

	e.mu.Lock()
	defer e.mu.Unlock()

	if !w.current(key.ID, e) {
		slog.Info("Draft discarded during analysis", "generation", token)
		return NewForm(w.reporter.Today()), nil
	}
	next, applied := e.form.CompleteAnalysis(token, result)
	if !applied {
		slog.Info("Discarding stale analysis result",
			"generation", token,
			"current_generation", e.form.Generation,
		)
		return e.form.copy(), nil
	}
	e.form = next
	return next.copy(), nil
}

// Edit applies user changes to the draft
func (w *Workflow) Edit(key Key, edits Edits) Form {
	e := w.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.form = e.form.Edit(edits)
	return e.form.copy()
}

// Clear resets the draft to an empty form, dropping the held upload
func (w *Workflow) Clear(key Key) Form {
	e := w.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.form = e.form.Clear(w.reporter.Today())
	return e.form.copy()
}

// Publish stores the draft as a new unclaimed item reported by author and
// resets the draft. Nothing is stored when the draft is not publishable.
// Only this session's draft is locked while the item is reported.
func (w *Workflow) Publish(key Key, author item.Actor) (*item.Item, Form, error) {
	if author.UserID == "" || author.CollegeID == "" {
		return nil, Form{}, ErrNoSession
	}

	e := w.entry(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	final, err := e.form.Publish()
	if err != nil {
		return nil, e.form.copy(), err
	}

	it, err := w.reporter.Report(final.report(author))
	if err != nil {
		return nil, e.form.copy(), fmt.Errorf("reporting item: %w", err)
	}
	slog.Info("Published item", "id", it.ID, "college", it.CollegeID)

	e.form = final.Clear(w.reporter.Today())
	return it, e.form.copy(), nil
}

// Discard drops the session's draft
func (w *Workflow) Discard(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.drafts, id)
}
