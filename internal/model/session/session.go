package session

import (
	"context"
	"errors"
)

// Stage is the conversational state of a session. A selection input only has
// meaning while the session is in StageSelecting.
type Stage string

const (
	// StageIdle means the session is at the options menu.
	StageIdle Stage = "idle"
	// StageSelecting means the menu was just listed and the next input is
	// expected to be a comma-separated item selection.
	StageSelecting Stage = "selecting"
)

// Session captures per-connection conversational context: the opaque token
// binding connections to a user, the in-progress cart, and the stage that
// disambiguates free-form numeric input.
type Session struct {
	Token string   `json:"token"`
	Cart  []string `json:"cart"`
	Stage Stage    `json:"stage"`
}

// ErrNotFound indicates no session exists for the token.
var ErrNotFound = errors.New("session not found")

// Store persists sessions keyed by token. Save writes cart and stage together
// so a concurrent reader of the same token never observes one without the
// other.
type Store interface {
	Get(ctx context.Context, token string) (Session, error)
	Save(ctx context.Context, sess Session) error
	Delete(ctx context.Context, token string) error
}
