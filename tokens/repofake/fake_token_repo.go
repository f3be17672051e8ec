package repofake

import (
	"sync"

	"github.com/careaccess/go-fhir-gateway/tokens"
	"github.com/google/uuid"
)

var _ tokens.Repo = (*FakeTokenRepo)(nil)

type FakeTokenRepo struct {
	lock   sync.RWMutex
	byID   map[string]*tokens.Token
	values map[string]string // token value to token id
}

func NewFakeTokenRepo() *FakeTokenRepo {
	return &FakeTokenRepo{
		byID:   make(map[string]*tokens.Token),
		values: make(map[string]string),
	}
}

func (tr *FakeTokenRepo) Upsert(token *tokens.Token) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	tr.byID[token.ID] = token
	tr.values[token.Value] = token.ID
	return nil
}

func (tr *FakeTokenRepo) GetByID(id string) (*tokens.Token, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	token, ok := tr.byID[id]
	if !ok {
		return nil, tokens.TokenNotFoundErr
	}
	return token, nil
}

func (tr *FakeTokenRepo) GetByValue(value string) (*tokens.Token, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	id, ok := tr.values[value]
	if !ok {
		return nil, tokens.TokenNotFoundErr
	}
	return tr.byID[id], nil
}

func (tr *FakeTokenRepo) ListByUserApp(userID, appID string) ([]*tokens.Token, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	var list []*tokens.Token
	for _, token := range tr.byID {
		if token.UserID == userID && token.AppID == appID {
			list = append(list, token)
		}
	}
	return list, nil
}

func (tr *FakeTokenRepo) Delete(id string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	token, ok := tr.byID[id]
	if !ok {
		return tokens.TokenNotFoundErr
	}
	delete(tr.values, token.Value)
	delete(tr.byID, id)
	return nil
}
