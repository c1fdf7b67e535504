package client

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// DefaultAutoSaveDelay is the quiet period after the last edit before an
// automatic draft save fires.
const DefaultAutoSaveDelay = 5 * time.Second

// ErrIncompleteDraft is returned by Flush when title or URL is missing.
var ErrIncompleteDraft = errors.New("title and json_file_url are required")

// DraftSaver persists a draft. *Client satisfies it.
type DraftSaver interface {
	SaveDraft(ctx context.Context, d Draft) (*Session, error)
}

// AutoSaver debounces edits to a single draft and saves it once the edits
// stop. At most one save is in flight; a timer that fires during a save is
// pushed back by another delay. Failed automatic saves are not returned to
// anyone: they go to the error callback and the draft stays dirty, so the
// next edit or Flush retries.
type AutoSaver struct {
	saver       DraftSaver
	delay       time.Duration
	saveTimeout time.Duration
	onError     func(error)
	onSaved     func(*Session)

	// inflight holds a token while a save runs.
	inflight chan struct{}

	mu      sync.Mutex
	draft   Draft
	dirty   bool
	timer   *time.Timer
	stopped bool
}

// AutoSaveOption configures an AutoSaver.
type AutoSaveOption func(*AutoSaver)

// WithDelay overrides the debounce delay.
func WithDelay(d time.Duration) AutoSaveOption {
	return func(a *AutoSaver) { a.delay = d }
}

// WithSaveTimeout bounds each automatic save.
func WithSaveTimeout(d time.Duration) AutoSaveOption {
	return func(a *AutoSaver) { a.saveTimeout = d }
}

// WithErrorHandler receives failures of automatic saves.
func WithErrorHandler(fn func(error)) AutoSaveOption {
	return func(a *AutoSaver) { a.onError = fn }
}

// WithSavedHandler is called after every successful save.
func WithSavedHandler(fn func(*Session)) AutoSaveOption {
	return func(a *AutoSaver) { a.onSaved = fn }
}

// NewAutoSaver creates an auto-saver. initial seeds the draft; pass a Draft
// with an ID to keep editing an existing session.
func NewAutoSaver(saver DraftSaver, initial Draft, opts ...AutoSaveOption) *AutoSaver {
	a := &AutoSaver{
		saver:       saver,
		delay:       DefaultAutoSaveDelay,
		saveTimeout: DefaultTimeout,
		inflight:    make(chan struct{}, 1),
		draft:       cloneDraft(initial),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Update records the latest form state and restarts the countdown. An
// empty ID in d keeps the ID the saver already knows.
func (a *AutoSaver) Update(d Draft) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}

	if d.ID == "" {
		d.ID = a.draft.ID
	}
	a.draft = cloneDraft(d)
	a.dirty = true
	a.scheduleLocked(a.delay)
}

// Draft returns the current draft, including any adopted ID.
func (a *AutoSaver) Draft() Draft {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneDraft(a.draft)
}

// Dirty reports whether there are edits not yet saved.
func (a *AutoSaver) Dirty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dirty
}

// Flush cancels the countdown and saves now, waiting for an in-flight save
// to finish first. Unlike automatic saves, errors are returned.
func (a *AutoSaver) Flush(ctx context.Context) (*Session, error) {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
	}
	ready := a.draft.Ready()
	a.mu.Unlock()

	if !ready {
		return nil, ErrIncompleteDraft
	}

	select {
	case a.inflight <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return a.save(ctx)
}

// Stop cancels any pending countdown. A save already in flight completes.
func (a *AutoSaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	if a.timer != nil {
		a.timer.Stop()
	}
}

// scheduleLocked (re)starts the countdown. Callers hold a.mu.
func (a *AutoSaver) scheduleLocked(d time.Duration) {
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(d, a.fire)
}

// fire runs when the countdown elapses.
func (a *AutoSaver) fire() {
	a.mu.Lock()
	if a.stopped || !a.dirty || !a.draft.Ready() {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	select {
	case a.inflight <- struct{}{}:
	default:
		// A save is running; try again after another quiet period.
		a.mu.Lock()
		if !a.stopped {
			a.scheduleLocked(a.delay)
		}
		a.mu.Unlock()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.saveTimeout)
	defer cancel()

	if _, err := a.save(ctx); err != nil && a.onError != nil {
		a.onError(err)
	}
}

// save sends the current draft. The caller must hold the inflight token;
// save releases it.
func (a *AutoSaver) save(ctx context.Context) (*Session, error) {
	defer func() { <-a.inflight }()

	a.mu.Lock()
	snapshot := cloneDraft(a.draft)
	a.dirty = false
	a.mu.Unlock()

	session, err := a.saver.SaveDraft(ctx, snapshot)

	a.mu.Lock()
	if err != nil {
		a.dirty = true
		a.mu.Unlock()
		return nil, err
	}
	// Adopt the new ID unless the caller switched drafts meanwhile.
	if a.draft.ID == snapshot.ID {
		a.draft.ID = session.ID
	}
	a.mu.Unlock()

	if a.onSaved != nil {
		a.onSaved(session)
	}
	return session, nil
}

func cloneDraft(d Draft) Draft {
	d.Tags = slices.Clone(d.Tags)
	return d
}
