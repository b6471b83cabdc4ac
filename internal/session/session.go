// Package session holds per-chat conversation scratch space
package session

import (
	"context"
	"errors"

	"market/internal/models"
)

// ErrStoreUnavailable is returned when the backing store cannot be reached
var ErrStoreUnavailable = errors.New("session store unavailable")

// ExpectedInput marks which free-text answer the conversation waits for
type ExpectedInput string

const (
	InputNone        ExpectedInput = ""
	InputUsername    ExpectedInput = "username"
	InputPassword    ExpectedInput = "password"
	InputAPIKeyLogin ExpectedInput = "api_key_login"
	InputAPIKeyAdd   ExpectedInput = "api_key_add"
)

// Session is the mutable state of one chat between updates
type Session struct {
	Role            models.Role         `json:"role,omitempty"`
	State           string              `json:"state,omitempty"`
	SelectedShop    *models.ShopSummary `json:"selected_shop,omitempty"`
	ShopToUnlink    *models.ShopSummary `json:"shop_to_unlink,omitempty"`
	ExpectedInput   ExpectedInput       `json:"expected_input,omitempty"`
	PendingUsername string              `json:"pending_username,omitempty"`
	ListOffset      int                 `json:"list_offset,omitempty"`
}

// Reset clears every field
func (s *Session) Reset() {
	*s = Session{}
}

// ClearInput drops pending free-text expectations
func (s *Session) ClearInput() {
	s.ExpectedInput = InputNone
	s.PendingUsername = ""
}

// Store loads and saves sessions by chat id. Writes are last-write-wins.
type Store interface {
	// Load returns the session of chatID, or an empty one if none is stored
	Load(ctx context.Context, chatID int64) (*Session, error)
	Save(ctx context.Context, chatID int64, s *Session) error
	Delete(ctx context.Context, chatID int64) error
}

// RoleSource is the user directory lookup used for role resolution
type RoleSource interface {
	GetRole(ctx context.Context, chatID int64) (models.Role, error)
}

// ResolveRole returns the cached role, or loads it from src and caches it
// into s. An unset stored role is not cached.
func ResolveRole(ctx context.Context, src RoleSource, chatID int64, s *Session) (models.Role, error) {
	if s.Role != models.RoleUnset {
		if _, err := models.ParseRole(string(s.Role)); err != nil {
			return models.RoleUnset, err
		}
		return s.Role, nil
	}

	role, err := src.GetRole(ctx, chatID)
	if err != nil {
		return models.RoleUnset, err
	}
	s.Role = role
	return role, nil
}
