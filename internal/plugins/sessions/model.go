// Package sessions manages wellness sessions: owner-scoped records with a
// title, tags, and a link to the session's JSON file. A session is either a
// private draft or published, and published sessions are listed publicly
// along with their author's email.
package sessions

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Session status constants. These must match the ENUM on sessions.status.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Session is a wellness session. The id is exposed as "_id" for
// compatibility with existing clients.
type Session struct {
	ID          string    `json:"_id"`
	OwnerID     string    `json:"-"`
	Title       string    `json:"title"`
	Tags        Tags      `json:"tags"`
	JSONFileURL string    `json:"json_file_url"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Joined data (only populated on the public list).
	Author string `json:"author,omitempty"`
}

// Tags is an ordered list of tags stored as a JSON array column.
type Tags []string

// Value implements driver.Valuer. A nil list is stored as [].
func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (t *Tags) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*t = Tags{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scanning tags: unsupported type %T", src)
	}

	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("scanning tags: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*t = out
	return nil
}

// --- DTOs ---

// SaveSessionRequest is the body of save-draft and publish. "_id" is what
// existing clients send; "id" is accepted as well.
type SaveSessionRequest struct {
	ID          string   `json:"_id"`
	AltID       string   `json:"id"`
	Title       string   `json:"title"`
	Tags        []string `json:"tags"`
	JSONFileURL string   `json:"json_file_url"`
}

// SaveInput is the input for saving a draft or publishing. An empty ID
// creates a new session.
type SaveInput struct {
	ID          string
	Title       string
	Tags        []string
	JSONFileURL string
}

// toInput converts the request body, preferring "_id" over "id".
func (r *SaveSessionRequest) toInput() SaveInput {
	id := r.ID
	if id == "" {
		id = r.AltID
	}
	return SaveInput{
		ID:          id,
		Title:       r.Title,
		Tags:        r.Tags,
		JSONFileURL: r.JSONFileURL,
	}
}
