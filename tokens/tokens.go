// Package tokens manages the opaque bearer credentials the gateway issues to
// third-party applications on behalf of users. The audit core treats tokens
// as opaque: identifying metadata is logged on lifecycle transitions, the raw
// secret value never is.
package tokens

import (
	"time"

	"github.com/pkg/errors"
)

var TokenNotFoundErr = errors.New("token not found")

type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// Token is an opaque bearer credential bound to a grant and application.
type Token struct {
	ID        string
	Value     string // the opaque secret; never logged
	Type      TokenType
	UserID    string
	Username  string
	AppID     string
	AppName   string
	Scopes    []string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry at the given time.
func (t *Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// HasScope checks whether the token carries a named scope.
func (t *Token) HasScope(scope string) bool {
	for _, s := range t.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Repo is implemented by the external persistence layer.
type Repo interface {
	Upsert(token *Token) error
	GetByID(id string) (*Token, error)
	GetByValue(value string) (*Token, error)
	ListByUserApp(userID, appID string) ([]*Token, error)
	Delete(id string) error
}
