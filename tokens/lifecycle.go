package tokens

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/careaccess/go-fhir-gateway/audit"
	"github.com/careaccess/go-fhir-gateway/flowtrace"
	"github.com/pkg/errors"
)

const tokenValueLength = 32

// Lifecycle owns token issue and revocation, publishing one audit event per
// lifecycle transition. Deleting a token that is already gone is a not-found
// error and publishes nothing, so a delete can never be audited twice.
type Lifecycle struct {
	repo    Repo
	bus     *audit.Bus
	nowTime func() time.Time
}

type LifecycleOption func(*Lifecycle)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) LifecycleOption {
	return func(l *Lifecycle) {
		l.nowTime = nowFunc
	}
}

func NewLifecycle(repo Repo, bus *audit.Bus, options ...LifecycleOption) (*Lifecycle, error) {
	if repo == nil {
		return nil, errors.New("[tokens.NewLifecycle] repo is required")
	}
	if bus == nil {
		return nil, errors.New("[tokens.NewLifecycle] bus is required")
	}
	l := &Lifecycle{repo: repo, bus: bus, nowTime: time.Now}
	for _, opt := range options {
		opt(l)
	}
	return l, nil
}

// Issue creates an opaque token bound to (user, application) and publishes a
// token-authorized event carrying the flow trace of the authorization journey.
func (l *Lifecycle) Issue(ctx context.Context, tokenType TokenType, userID, username, appID, appName string,
	scopes []string, expiry time.Duration, trace flowtrace.Snapshot) (*Token, error) {

	value, err := generateTokenValue()
	if err != nil {
		return nil, errors.Wrap(err, "[Lifecycle.Issue] generate token value")
	}

	now := l.nowTime()
	token := &Token{
		Value:     value,
		Type:      tokenType,
		UserID:    userID,
		Username:  username,
		AppID:     appID,
		AppName:   appName,
		Scopes:    scopes,
		CreatedAt: now,
		ExpiresAt: now.Add(expiry),
	}
	if err := l.repo.Upsert(token); err != nil {
		return nil, errors.Wrap(err, "[Lifecycle.Issue] upsert token")
	}

	l.bus.Publish(ctx, audit.ChannelTokenAuthorized, audit.SenderAuthorizationEndpoint, audit.TokenEvent{
		Action:    "authorized",
		TokenID:   token.ID,
		TokenType: string(token.Type),
		UserID:    token.UserID,
		Username:  token.Username,
		AppID:     token.AppID,
		AppName:   token.AppName,
		Trace:     trace,
	})
	return token, nil
}

// Revoke deletes the token and publishes exactly one token-revoked event.
func (l *Lifecycle) Revoke(ctx context.Context, tokenID string, trace flowtrace.Snapshot) error {
	token, err := l.repo.GetByID(tokenID)
	if err != nil {
		return errors.Wrap(err, "[Lifecycle.Revoke] get token")
	}
	if err := l.repo.Delete(tokenID); err != nil {
		return errors.Wrap(err, "[Lifecycle.Revoke] delete token")
	}

	l.bus.Publish(ctx, audit.ChannelTokenRevoked, audit.SenderTokenLifecycle, audit.TokenEvent{
		Action:    "revoked",
		TokenID:   token.ID,
		TokenType: string(token.Type),
		UserID:    token.UserID,
		Username:  token.Username,
		AppID:     token.AppID,
		AppName:   token.AppName,
		Trace:     trace,
	})
	return nil
}

// RevokeForUserApp removes every token binding the pair, e.g. when a grant is
// revoked or a reauthorization replaces an earlier consent. Each deleted
// token is audited individually. Returns the access and refresh delete counts.
func (l *Lifecycle) RevokeForUserApp(ctx context.Context, userID, appID string, trace flowtrace.Snapshot) (accessCnt, refreshCnt int, err error) {
	list, err := l.repo.ListByUserApp(userID, appID)
	if err != nil {
		return 0, 0, errors.Wrap(err, "[Lifecycle.RevokeForUserApp] list tokens")
	}
	for _, token := range list {
		if err := l.Revoke(ctx, token.ID, trace); err != nil {
			return accessCnt, refreshCnt, errors.Wrap(err, "[Lifecycle.RevokeForUserApp] revoke token")
		}
		if token.Type == TypeRefresh {
			refreshCnt++
		} else {
			accessCnt++
		}
	}
	return accessCnt, refreshCnt, nil
}

// ResolveBearer resolves an opaque bearer value to a live token.
func (l *Lifecycle) ResolveBearer(value string) (*Token, error) {
	token, err := l.repo.GetByValue(value)
	if err != nil {
		return nil, errors.Wrap(err, "[Lifecycle.ResolveBearer] get token")
	}
	if token.Expired(l.nowTime()) {
		return nil, TokenNotFoundErr
	}
	return token, nil
}

func generateTokenValue() (string, error) {
	bytes := make([]byte, tokenValueLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}
