package repofake

import (
	"sync"

	"github.com/careaccess/go-fhir-gateway/grants"
	"github.com/google/uuid"
)

var _ grants.Repo = (*FakeGrantRepo)(nil)

type FakeGrantRepo struct {
	lock   sync.RWMutex
	byID   map[string]*grants.Grant
	byPair map[string]string // userID+"/"+appID to grant id
}

func NewFakeGrantRepo() *FakeGrantRepo {
	return &FakeGrantRepo{
		byID:   make(map[string]*grants.Grant),
		byPair: make(map[string]string),
	}
}

func (gr *FakeGrantRepo) Upsert(grant *grants.Grant) error {
	gr.lock.Lock()
	defer gr.lock.Unlock()

	if grant.ID == "" {
		grant.ID = uuid.New().String()
	}
	gr.byID[grant.ID] = grant
	gr.byPair[pairKey(grant.UserID, grant.AppID)] = grant.ID
	return nil
}

func (gr *FakeGrantRepo) GetByID(id string) (*grants.Grant, error) {
	gr.lock.RLock()
	defer gr.lock.RUnlock()

	grant, ok := gr.byID[id]
	if !ok {
		return nil, grants.GrantNotFoundErr
	}
	return grant, nil
}

func (gr *FakeGrantRepo) GetByUserApp(userID, appID string) (*grants.Grant, error) {
	gr.lock.RLock()
	defer gr.lock.RUnlock()

	id, ok := gr.byPair[pairKey(userID, appID)]
	if !ok {
		return nil, grants.GrantNotFoundErr
	}
	return gr.byID[id], nil
}

func (gr *FakeGrantRepo) Delete(id string) error {
	gr.lock.Lock()
	defer gr.lock.Unlock()

	grant, ok := gr.byID[id]
	if !ok {
		return grants.GrantNotFoundErr
	}
	delete(gr.byPair, pairKey(grant.UserID, grant.AppID))
	delete(gr.byID, id)
	return nil
}

func pairKey(userID, appID string) string {
	return userID + "/" + appID
}
