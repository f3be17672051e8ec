package accounts

import "github.com/pkg/errors"

var (
	UserNotFoundErr      = errors.New("user not found")
	CrosswalkNotFoundErr = errors.New("crosswalk not found")
)

// UserRepo is implemented by the external persistence layer.
type UserRepo interface {
	Upsert(user *User) error
	GetByID(id string) (*User, error)
	GetByUsername(username string) (*User, error)
	Count() (int, error)
}

// CrosswalkRepo resolves the upstream identity for a local user.
type CrosswalkRepo interface {
	Upsert(cw *Crosswalk) error
	GetByUserID(userID string) (*Crosswalk, error)
}
