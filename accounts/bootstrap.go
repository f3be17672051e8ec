package accounts

import (
	"github.com/careaccess/go-fhir-gateway/internal/config"
	"github.com/pkg/errors"
)

// MissingBootstrapConfigErr is reported when any of the three superuser
// environment variables is unset. The bootstrap step then creates nothing.
var MissingBootstrapConfigErr = errors.New(
	"environment variables SUPERUSER_USERNAME, SUPERUSER_PASSWORD and SUPERUSER_EMAIL must all be set")

// CreateSuperUserFromEnv creates the bootstrap superuser from the configured
// credential triple. If any value is missing the step is a no-op that reports
// the missing-configuration condition; no partial account is ever created.
func CreateSuperUserFromEnv(cfg config.Bootstrap, repo UserRepo) (*User, error) {
	if cfg.Username == "" || cfg.Password == "" || cfg.Email == "" {
		return nil, MissingBootstrapConfigErr
	}

	passwordHash, err := HashPassword(cfg.Password)
	if err != nil {
		return nil, errors.Wrap(err, "[accounts.CreateSuperUserFromEnv] hash password")
	}

	user := &User{
		Username:     cfg.Username,
		Email:        cfg.Email,
		FirstName:    "Super",
		LastName:     "User",
		PasswordHash: passwordHash,
		IsStaff:      true,
		IsSuperuser:  true,
	}
	if err := repo.Upsert(user); err != nil {
		return nil, errors.Wrap(err, "[accounts.CreateSuperUserFromEnv] upsert user")
	}
	return user, nil
}
