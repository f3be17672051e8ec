// Package accounts holds the local user model, the crosswalk linking a local
// user to the identity used by upstream health-record systems, and the
// superuser bootstrap utility.
package accounts

import (
	"golang.org/x/crypto/bcrypt"
)

// User is a local account. The gateway never stores plaintext passwords.
type User struct {
	ID           string
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsStaff      bool
	IsSuperuser  bool
}

// Crosswalk maps a local user to the hashed identifiers used by the upstream
// health-record systems.
type Crosswalk struct {
	ID         string
	UserID     string
	HICNHash   string
	MBIHash    string
	FHIRID     string
	UserIDType string
}

// HashPassword hashes a password with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash reports whether password matches the stored bcrypt hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
