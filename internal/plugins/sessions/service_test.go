package sessions

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/keyxmakerx/wellnest/internal/apperror"
)

// memoryRepo is an in-memory SessionRepository with the same owner-scoping
// and timestamp rules as the MariaDB implementation.
type memoryRepo struct {
	mu       sync.Mutex
	sessions map[string]Session
	authors  map[string]string // owner id -> email
	calls    int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		sessions: make(map[string]Session),
		authors:  make(map[string]string),
	}
}

func (m *memoryRepo) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.sessions[s.ID] = *s
	return nil
}

func (m *memoryRepo) FindOwned(_ context.Context, id, ownerID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	s, ok := m.sessions[id]
	if !ok || s.OwnerID != ownerID {
		return nil, apperror.NewNotFound("session not found")
	}
	return &s, nil
}

func (m *memoryRepo) ListByOwner(_ context.Context, ownerID string) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	out := []Session{}
	for _, s := range m.sessions {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *memoryRepo) ListPublished(_ context.Context, tag string) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	out := []Session{}
	for _, s := range m.sessions {
		if s.Status != StatusPublished {
			continue
		}
		if tag != "" && !slices.Contains(s.Tags, tag) {
			continue
		}
		s.Author = m.authors[s.OwnerID]
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryRepo) UpdateOwned(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	cur, ok := m.sessions[s.ID]
	if !ok || cur.OwnerID != s.OwnerID {
		return apperror.NewNotFound("session not found")
	}
	cur.Title, cur.Tags, cur.JSONFileURL, cur.Status = s.Title, s.Tags, s.JSONFileURL, s.Status
	if s.UpdatedAt.After(cur.UpdatedAt) {
		cur.UpdatedAt = s.UpdatedAt
	}
	m.sessions[s.ID] = cur
	return nil
}

func (m *memoryRepo) DeleteOwned(_ context.Context, id, ownerID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	s, ok := m.sessions[id]
	if !ok || s.OwnerID != ownerID {
		return nil, apperror.NewNotFound("session not found")
	}
	delete(m.sessions, id)
	return &s, nil
}

func (m *memoryRepo) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// stepClock returns a clock that advances by step on every call.
func stepClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	cur := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := cur
		cur = cur.Add(step)
		return t
	}
}

const (
	ownerA = "11111111-1111-4111-8111-111111111111"
	ownerB = "22222222-2222-4222-8222-222222222222"
)

func newTestService(repo SessionRepository) *sessionService {
	return &sessionService{
		repo:  repo,
		cache: noopCache{},
		now:   stepClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC), time.Second),
	}
}

// assertAppError checks that err is an *apperror.AppError with the expected code.
func assertAppError(t *testing.T, err error, expectedCode int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", expectedCode)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
}

func morningFlow() SaveInput {
	return SaveInput{
		Title:       "Morning Flow",
		Tags:        []string{"yoga", "am"},
		JSONFileURL: "https://x.io/a.json",
	}
}

// --- SaveDraft / Publish ---

func TestSaveDraft_CreatesDraft(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	s, err := svc.SaveDraft(context.Background(), ownerA, morningFlow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Status != StatusDraft {
		t.Errorf("expected draft, got %s", s.Status)
	}
	if s.ID == "" || !validID(s.ID) {
		t.Errorf("expected a generated id, got %q", s.ID)
	}
	if s.OwnerID != ownerA {
		t.Errorf("expected owner %s, got %s", ownerA, s.OwnerID)
	}
	if !s.CreatedAt.Equal(s.UpdatedAt) {
		t.Errorf("new session should have created_at == updated_at")
	}
	if !slices.Equal([]string(s.Tags), []string{"yoga", "am"}) {
		t.Errorf("unexpected tags %v", s.Tags)
	}
}

func TestSave_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input SaveInput
	}{
		{"missing title", SaveInput{JSONFileURL: "https://x.io/a.json"}},
		{"blank title", SaveInput{Title: "   ", JSONFileURL: "https://x.io/a.json"}},
		{"markup-only title", SaveInput{Title: "<b></b>", JSONFileURL: "https://x.io/a.json"}},
		{"missing url", SaveInput{Title: "Calm"}},
		{"ftp url", SaveInput{Title: "Calm", JSONFileURL: "ftp://x.io/a.json"}},
		{"scheme only", SaveInput{Title: "Calm", JSONFileURL: "https://"}},
		{"title too long", SaveInput{Title: strings.Repeat("t", 201), JSONFileURL: "https://x.io/a.json"}},
		{"tag too long", SaveInput{Title: "Calm", JSONFileURL: "https://x.io/a.json", Tags: []string{strings.Repeat("g", 51)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemoryRepo()
			svc := newTestService(repo)

			_, err := svc.SaveDraft(context.Background(), ownerA, tt.input)
			assertAppError(t, err, 400)
			_, err = svc.Publish(context.Background(), ownerA, tt.input)
			assertAppError(t, err, 400)

			if repo.callCount() != 0 {
				t.Errorf("store was called %d times on invalid input", repo.callCount())
			}
		})
	}
}

func TestSave_NormalizesFields(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	s, err := svc.SaveDraft(context.Background(), ownerA, SaveInput{
		Title:       "  Evening Wind Down ",
		Tags:        []string{" calm ", "", "  "},
		JSONFileURL: "  http://x.io/b.json ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Title != "Evening Wind Down" {
		t.Errorf("unexpected title %q", s.Title)
	}
	if !slices.Equal([]string(s.Tags), []string{"calm"}) {
		t.Errorf("unexpected tags %v", s.Tags)
	}
	if s.JSONFileURL != "http://x.io/b.json" {
		t.Errorf("unexpected url %q", s.JSONFileURL)
	}
}

func TestSave_KeepsMarkupCharactersVerbatim(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	titles := []string{"x<y stretch", "Breathe <in> & out", "Focus &amp; Flow"}
	for _, title := range titles {
		s, err := svc.Publish(ctx, ownerA, SaveInput{
			Title:       title,
			Tags:        []string{" <am> ", "a&b"},
			JSONFileURL: "https://x.io/a.json",
		})
		if err != nil {
			t.Fatalf("saving %q: %v", title, err)
		}
		if s.Title != title {
			t.Errorf("title %q stored as %q", title, s.Title)
		}
		if !slices.Equal([]string(s.Tags), []string{"<am>", "a&b"}) {
			t.Errorf("unexpected tags %v", s.Tags)
		}
	}

	list, err := svc.ListPublished(ctx, " <am> ")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != len(titles) {
		t.Errorf("tag filter %q matched %d sessions, want %d", "<am>", len(list), len(titles))
	}
}

func TestSave_BoundaryLengths(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.SaveDraft(context.Background(), ownerA, SaveInput{
		Title:       strings.Repeat("t", 200),
		Tags:        []string{strings.Repeat("g", 50)},
		JSONFileURL: "https://x.io/a.json",
	})
	if err != nil {
		t.Errorf("limits are inclusive: %v", err)
	}
}

func TestSave_NilTagsDefaultToEmpty(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	s, err := svc.SaveDraft(context.Background(), ownerA, SaveInput{Title: "Calm", JSONFileURL: "https://x.io/a.json"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Tags == nil || len(s.Tags) != 0 {
		t.Errorf("expected empty non-nil tags, got %#v", s.Tags)
	}
}

func TestSaveDraft_Idempotent(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	first, err := svc.SaveDraft(ctx, ownerA, morningFlow())
	if err != nil {
		t.Fatalf("first save: %v", err)
	}

	input := morningFlow()
	input.ID = first.ID
	second, err := svc.SaveDraft(ctx, ownerA, input)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	third, err := svc.SaveDraft(ctx, ownerA, input)
	if err != nil {
		t.Fatalf("third save: %v", err)
	}

	if second.ID != first.ID || third.ID != first.ID {
		t.Error("saving with an id must not create a new session")
	}
	if third.Title != first.Title || !slices.Equal([]string(third.Tags), []string(first.Tags)) || third.JSONFileURL != first.JSONFileURL {
		t.Errorf("fields changed across identical saves: %+v vs %+v", first, third)
	}
	if second.UpdatedAt.Before(first.UpdatedAt) || third.UpdatedAt.Before(second.UpdatedAt) {
		t.Error("updated_at went backwards")
	}
	if !third.CreatedAt.Equal(first.CreatedAt) {
		t.Error("created_at changed on update")
	}
}

func TestSave_UpdatedNeverBeforeCreatedWhenClockSkews(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.SaveDraft(ctx, ownerA, morningFlow())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Clock jumps back an hour.
	svc.now = func() time.Time { return created.CreatedAt.Add(-time.Hour) }
	input := morningFlow()
	input.ID = created.ID
	updated, err := svc.Publish(ctx, ownerA, input)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.UpdatedAt.Before(updated.CreatedAt) {
		t.Errorf("updated_at %v before created_at %v", updated.UpdatedAt, updated.CreatedAt)
	}
}

func TestStatusTransitions(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	draft, err := svc.SaveDraft(ctx, ownerA, morningFlow())
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}
	listed := func() bool {
		t.Helper()
		list, err := svc.ListPublished(ctx, "")
		if err != nil {
			t.Fatalf("list published: %v", err)
		}
		return slices.ContainsFunc(list, func(s Session) bool { return s.ID == draft.ID })
	}
	if listed() {
		t.Fatal("draft must not be publicly listed")
	}

	input := morningFlow()
	input.ID = draft.ID

	pub, err := svc.Publish(ctx, ownerA, input)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if pub.Status != StatusPublished || !listed() {
		t.Fatal("publish should flip to published and list it")
	}

	// Published -> published keeps it listed.
	input.Title = "Morning Flow II"
	pub, err = svc.Publish(ctx, ownerA, input)
	if err != nil {
		t.Fatalf("republish: %v", err)
	}
	if pub.Title != "Morning Flow II" || !listed() {
		t.Fatal("republish should keep the edits and the listing")
	}

	redraft, err := svc.SaveDraft(ctx, ownerA, input)
	if err != nil {
		t.Fatalf("re-draft: %v", err)
	}
	if redraft.Status != StatusDraft || listed() {
		t.Fatal("saving a published session as draft should unlist it")
	}
}

func TestPublish_WithoutIDCreatesPublished(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	s, err := svc.Publish(context.Background(), ownerA, morningFlow())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Status != StatusPublished {
		t.Errorf("expected published, got %s", s.Status)
	}
}

// --- Ownership ---

func TestOwnershipIsolation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	a, err := svc.SaveDraft(ctx, ownerA, morningFlow())
	if err != nil {
		t.Fatalf("A save: %v", err)
	}
	b, err := svc.SaveDraft(ctx, ownerB, SaveInput{Title: "B's session", JSONFileURL: "https://x.io/b.json"})
	if err != nil {
		t.Fatalf("B save: %v", err)
	}

	mine, err := svc.ListOwned(ctx, ownerA)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != a.ID {
		t.Errorf("A should see only their session, got %+v", mine)
	}

	_, err = svc.GetOwned(ctx, b.ID, ownerA)
	assertAppError(t, err, 404)

	_, err = svc.DeleteOwned(ctx, b.ID, ownerA)
	assertAppError(t, err, 404)

	// A cannot overwrite B's session by passing its id.
	hijack := morningFlow()
	hijack.ID = b.ID
	_, err = svc.Publish(ctx, ownerA, hijack)
	assertAppError(t, err, 404)

	still, err := svc.GetOwned(ctx, b.ID, ownerB)
	if err != nil {
		t.Fatalf("B's session was affected: %v", err)
	}
	if still.Title != "B's session" || still.Status != StatusDraft {
		t.Errorf("B's session changed: %+v", still)
	}
}

func TestCrossOwnerAndMissingLookAlike(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	b, _ := svc.SaveDraft(ctx, ownerB, morningFlow())

	_, cross := svc.GetOwned(ctx, b.ID, ownerA)
	_, missing := svc.GetOwned(ctx, "33333333-3333-4333-8333-333333333333", ownerA)
	_, malformed := svc.GetOwned(ctx, "not-an-id", ownerA)

	for _, err := range []error{cross, missing, malformed} {
		assertAppError(t, err, 404)
	}
	if apperror.SafeMessage(cross) != apperror.SafeMessage(missing) {
		t.Error("cross-owner and missing must be indistinguishable")
	}
}

func TestDeleteOwned(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	s, _ := svc.SaveDraft(ctx, ownerA, morningFlow())

	deleted, err := svc.DeleteOwned(ctx, s.ID, ownerA)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.ID != s.ID {
		t.Errorf("expected deleted record %s, got %s", s.ID, deleted.ID)
	}

	_, err = svc.GetOwned(ctx, s.ID, ownerA)
	assertAppError(t, err, 404)

	_, err = svc.DeleteOwned(ctx, s.ID, ownerA)
	assertAppError(t, err, 404)
}

// --- Listing ---

func TestListPublished_AuthorAndTagFilter(t *testing.T) {
	repo := newMemoryRepo()
	repo.authors[ownerA] = "a@x.io"
	repo.authors[ownerB] = "b@x.io"
	svc := newTestService(repo)
	ctx := context.Background()

	if _, err := svc.Publish(ctx, ownerA, morningFlow()); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Publish(ctx, ownerB, SaveInput{Title: "Night", Tags: []string{"sleep"}, JSONFileURL: "https://x.io/n.json"}); err != nil {
		t.Fatal(err)
	}

	all, err := svc.ListPublished(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 published, got %d", len(all))
	}
	// Newest created first.
	if all[0].Title != "Night" || all[0].Author != "b@x.io" {
		t.Errorf("unexpected first entry %+v", all[0])
	}

	yoga, err := svc.ListPublished(ctx, "yoga")
	if err != nil {
		t.Fatalf("list yoga: %v", err)
	}
	if len(yoga) != 1 || yoga[0].Author != "a@x.io" {
		t.Errorf("unexpected yoga list %+v", yoga)
	}
}

func TestListOwned_NewestUpdatedFirst(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	first, _ := svc.SaveDraft(ctx, ownerA, morningFlow())
	_, _ = svc.SaveDraft(ctx, ownerA, SaveInput{Title: "Second", JSONFileURL: "https://x.io/2.json"})

	// Touch the first one again.
	input := morningFlow()
	input.ID = first.ID
	if _, err := svc.SaveDraft(ctx, ownerA, input); err != nil {
		t.Fatal(err)
	}

	list, err := svc.ListOwned(ctx, ownerA)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != first.ID {
		t.Errorf("expected most recently updated first, got %+v", list)
	}
}

func TestListOwned_StoreError(t *testing.T) {
	svc := newTestService(&failingRepo{memoryRepo: newMemoryRepo()})
	_, err := svc.ListOwned(context.Background(), ownerA)
	assertAppError(t, err, 500)
}

// failingRepo fails every listing with an infrastructure error.
type failingRepo struct {
	*memoryRepo
}

func (f *failingRepo) ListByOwner(context.Context, string) ([]Session, error) {
	return nil, errors.New("connection refused")
}
