// Package applications holds the third-party application model. An
// application is a registered OAuth2 client that may be granted scoped access
// to a user's health data.
package applications

import "github.com/pkg/errors"

var (
	ApplicationNotFoundErr = errors.New("application not found")
	InvalidScopeErr        = errors.New("invalid scope")
)

type Application struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	ClientID string   `json:"clientId"`
	Active   bool     `json:"active"`
	Scopes   []string `json:"scopes"` // capability scopes this application may request
}

// HasScope checks if the application is registered for a specific scope.
func (a *Application) HasScope(scope string) bool {
	for _, s := range a.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ValidateScopes checks that every requested scope is registered for this
// application.
func (a *Application) ValidateScopes(requested []string) error {
	for _, scope := range requested {
		if !a.HasScope(scope) {
			return InvalidScopeErr
		}
	}
	return nil
}

type Repo interface {
	Upsert(app *Application) error
	Delete(id string) error
	Get(id string) (*Application, error)
	GetByClientID(clientID string) (*Application, error)
}
