package repofake

import (
	"sync"

	"github.com/careaccess/go-fhir-gateway/accounts"
	"github.com/google/uuid"
)

var _ accounts.UserRepo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	lock      sync.RWMutex
	users     map[string]*accounts.User
	usernames map[string]string // username to user id
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:     make(map[string]*accounts.User),
		usernames: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Upsert(user *accounts.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	ur.users[user.ID] = user
	ur.usernames[user.Username] = user.ID
	return nil
}

func (ur *FakeUserRepo) GetByID(id string) (*accounts.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[id]
	if !ok {
		return nil, accounts.UserNotFoundErr
	}
	return user, nil
}

func (ur *FakeUserRepo) GetByUsername(username string) (*accounts.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.usernames[username]
	if !ok {
		return nil, accounts.UserNotFoundErr
	}
	return ur.users[id], nil
}

func (ur *FakeUserRepo) Count() (int, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return len(ur.users), nil
}

var _ accounts.CrosswalkRepo = (*FakeCrosswalkRepo)(nil)

type FakeCrosswalkRepo struct {
	lock       sync.RWMutex
	crosswalks map[string]*accounts.Crosswalk // keyed by user id
}

func NewFakeCrosswalkRepo() *FakeCrosswalkRepo {
	return &FakeCrosswalkRepo{crosswalks: make(map[string]*accounts.Crosswalk)}
}

func (cr *FakeCrosswalkRepo) Upsert(cw *accounts.Crosswalk) error {
	cr.lock.Lock()
	defer cr.lock.Unlock()

	if cw.ID == "" {
		cw.ID = uuid.New().String()
	}
	cr.crosswalks[cw.UserID] = cw
	return nil
}

func (cr *FakeCrosswalkRepo) GetByUserID(userID string) (*accounts.Crosswalk, error) {
	cr.lock.RLock()
	defer cr.lock.RUnlock()

	cw, ok := cr.crosswalks[userID]
	if !ok {
		return nil, accounts.CrosswalkNotFoundErr
	}
	return cw, nil
}
