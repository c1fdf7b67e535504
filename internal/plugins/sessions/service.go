package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/keyxmakerx/wellnest/internal/apperror"
)

// Field limits.
const (
	maxTitleLen = 200
	maxTagLen   = 50
	maxURLLen   = 2048
)

var urlPattern = regexp.MustCompile(`^https?://.+`)

// SessionService defines the business logic contract for sessions. Every
// owner-scoped operation takes the caller's id explicitly; it never comes
// from the input.
type SessionService interface {
	ListOwned(ctx context.Context, ownerID string) ([]Session, error)
	ListPublished(ctx context.Context, tag string) ([]Session, error)
	GetOwned(ctx context.Context, id, ownerID string) (*Session, error)
	SaveDraft(ctx context.Context, ownerID string, input SaveInput) (*Session, error)
	Publish(ctx context.Context, ownerID string, input SaveInput) (*Session, error)
	DeleteOwned(ctx context.Context, id, ownerID string) (*Session, error)
}

// sessionService implements SessionService.
type sessionService struct {
	repo  SessionRepository
	cache PublishedCache
	now   func() time.Time
}

// NewSessionService creates a new session service. cache may be nil.
func NewSessionService(repo SessionRepository, cache PublishedCache) SessionService {
	if cache == nil {
		cache = noopCache{}
	}
	return &sessionService{repo: repo, cache: cache, now: utcNow}
}

// ListOwned returns the caller's sessions, drafts included.
func (s *sessionService) ListOwned(ctx context.Context, ownerID string) ([]Session, error) {
	sessions, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing owned sessions: %w", err))
	}
	return sessions, nil
}

// ListPublished returns the public list, optionally filtered by tag.
func (s *sessionService) ListPublished(ctx context.Context, tag string) ([]Session, error) {
	tag = strings.TrimSpace(tag)

	cached, gen, ok := s.cache.Get(ctx, tag)
	if ok {
		return cached, nil
	}

	sessions, err := s.repo.ListPublished(ctx, tag)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing published sessions: %w", err))
	}

	s.cache.Set(ctx, tag, gen, sessions)
	return sessions, nil
}

// GetOwned returns one of the caller's sessions.
func (s *sessionService) GetOwned(ctx context.Context, id, ownerID string) (*Session, error) {
	if !validID(id) {
		return nil, apperror.NewNotFound("session not found")
	}
	session, err := s.repo.FindOwned(ctx, id, ownerID)
	if err != nil {
		return nil, wrapStoreError("finding session", err)
	}
	return session, nil
}

// SaveDraft creates or updates a session and leaves it as a draft. Saving a
// published session as a draft takes it off the public list.
func (s *sessionService) SaveDraft(ctx context.Context, ownerID string, input SaveInput) (*Session, error) {
	return s.save(ctx, ownerID, input, StatusDraft)
}

// Publish creates or updates a session and makes it public.
func (s *sessionService) Publish(ctx context.Context, ownerID string, input SaveInput) (*Session, error) {
	return s.save(ctx, ownerID, input, StatusPublished)
}

// save is the shared upsert behind SaveDraft and Publish. Without an id a
// new session is created; with one, the caller's session is overwritten.
func (s *sessionService) save(ctx context.Context, ownerID string, input SaveInput, status string) (*Session, error) {
	fields, err := validateSaveInput(input)
	if err != nil {
		return nil, err
	}

	now := s.now()
	id := strings.TrimSpace(input.ID)

	var session *Session
	if id == "" {
		session = &Session{
			ID:          uuid.NewString(),
			OwnerID:     ownerID,
			Title:       fields.Title,
			Tags:        fields.Tags,
			JSONFileURL: fields.JSONFileURL,
			Status:      status,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.Create(ctx, session); err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("creating session: %w", err))
		}
	} else {
		if !validID(id) {
			return nil, apperror.NewNotFound("session not found")
		}
		update := &Session{
			ID:          id,
			OwnerID:     ownerID,
			Title:       fields.Title,
			Tags:        fields.Tags,
			JSONFileURL: fields.JSONFileURL,
			Status:      status,
			UpdatedAt:   now,
		}
		if err := s.repo.UpdateOwned(ctx, update); err != nil {
			return nil, wrapStoreError("updating session", err)
		}
		// Read back for created_at and the clamped updated_at.
		session, err = s.repo.FindOwned(ctx, id, ownerID)
		if err != nil {
			return nil, wrapStoreError("reloading session", err)
		}
	}

	s.cache.Invalidate(ctx)

	slog.Info("session saved",
		slog.String("session_id", session.ID),
		slog.String("user_id", ownerID),
		slog.String("status", status),
	)

	return session, nil
}

// DeleteOwned permanently removes one of the caller's sessions and returns it.
func (s *sessionService) DeleteOwned(ctx context.Context, id, ownerID string) (*Session, error) {
	if !validID(id) {
		return nil, apperror.NewNotFound("session not found")
	}
	session, err := s.repo.DeleteOwned(ctx, id, ownerID)
	if err != nil {
		return nil, wrapStoreError("deleting session", err)
	}

	s.cache.Invalidate(ctx)

	slog.Info("session deleted",
		slog.String("session_id", id),
		slog.String("user_id", ownerID),
	)
	return session, nil
}

// --- Validation helpers ---

// validateSaveInput normalizes and checks the editable fields. It runs
// before any store call.
func validateSaveInput(input SaveInput) (SaveInput, error) {
	out := SaveInput{
		Title:       strings.TrimSpace(input.Title),
		JSONFileURL: strings.TrimSpace(input.JSONFileURL),
	}

	if out.Title == "" || out.JSONFileURL == "" {
		return SaveInput{}, apperror.NewValidation("title and json_file_url are required")
	}
	if utf8.RuneCountInString(out.Title) > maxTitleLen {
		return SaveInput{}, apperror.NewValidation(
			fmt.Sprintf("title must be at most %d characters", maxTitleLen))
	}
	if len(out.JSONFileURL) > maxURLLen {
		return SaveInput{}, apperror.NewValidation(
			fmt.Sprintf("json_file_url must be at most %d characters", maxURLLen))
	}
	if !urlPattern.MatchString(out.JSONFileURL) {
		return SaveInput{}, apperror.NewValidation("json_file_url must be an http(s) URL")
	}

	out.Tags = trimTags(input.Tags)
	for _, tag := range out.Tags {
		if utf8.RuneCountInString(tag) > maxTagLen {
			return SaveInput{}, apperror.NewValidation(
				fmt.Sprintf("tags must be at most %d characters each", maxTagLen))
		}
	}

	return out, nil
}

// trimTags trims every tag and drops the blank ones. Tags are stored as
// typed; escaping is the renderer's job.
func trimTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// validID reports whether id could name a session. Anything else cannot
// exist, so callers answer not-found without a query.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}

// wrapStoreError passes AppErrors (not-found) through and hides the rest.
func wrapStoreError(op string, err error) error {
	if apperror.IsNotFound(err) {
		return err
	}
	return apperror.NewInternal(fmt.Errorf("%s: %w", op, err))
}
