// Package grants manages data access grants: the durable records of a user's
// consent permitting an application specific data-access scopes. The audit
// core observes grant lifecycle transitions; it never mutates grants outside
// the lifecycle operations here.
package grants

import (
	"time"

	"github.com/pkg/errors"
)

var GrantNotFoundErr = errors.New("data access grant not found")

// Grant records one user's consent for one application.
type Grant struct {
	ID        string
	UserID    string
	Username  string
	AppID     string
	AppName   string
	Scopes    []string
	CreatedAt time.Time
}

// HasScope checks whether the grant covers a named scope.
func (g *Grant) HasScope(scope string) bool {
	for _, s := range g.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Repo is implemented by the external persistence layer.
type Repo interface {
	Upsert(grant *Grant) error
	GetByID(id string) (*Grant, error)
	GetByUserApp(userID, appID string) (*Grant, error)
	Delete(id string) error
}
