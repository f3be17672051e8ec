package repofake

import (
	"sync"

	"github.com/careaccess/go-fhir-gateway/applications"
	"github.com/google/uuid"
)

var _ applications.Repo = (*FakeApplicationRepo)(nil)

type FakeApplicationRepo struct {
	lock      sync.RWMutex
	apps      map[string]*applications.Application
	clientIds map[string]string // client id to application id
}

func NewFakeApplicationRepo() *FakeApplicationRepo {
	return &FakeApplicationRepo{
		apps:      make(map[string]*applications.Application),
		clientIds: make(map[string]string),
	}
}

func (ar *FakeApplicationRepo) Upsert(app *applications.Application) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	ar.apps[app.ID] = app
	if app.ClientID != "" {
		ar.clientIds[app.ClientID] = app.ID
	}
	return nil
}

func (ar *FakeApplicationRepo) Delete(id string) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	app, ok := ar.apps[id]
	if !ok {
		return applications.ApplicationNotFoundErr
	}
	delete(ar.clientIds, app.ClientID)
	delete(ar.apps, id)
	return nil
}

func (ar *FakeApplicationRepo) Get(id string) (*applications.Application, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	app, ok := ar.apps[id]
	if !ok {
		return nil, applications.ApplicationNotFoundErr
	}
	return app, nil
}

func (ar *FakeApplicationRepo) GetByClientID(clientID string) (*applications.Application, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	id, ok := ar.clientIds[clientID]
	if !ok {
		return nil, applications.ApplicationNotFoundErr
	}
	return ar.apps[id], nil
}
