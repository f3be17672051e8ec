package grants

import (
	"context"
	"time"

	"github.com/careaccess/go-fhir-gateway/audit"
	"github.com/careaccess/go-fhir-gateway/flowtrace"
	"github.com/careaccess/go-fhir-gateway/tokens"
	"github.com/pkg/errors"
)

// Lifecycle owns grant creation and revocation. Revoking a grant cascades to
// the tokens bound to the same (user, application) pair; every deletion, grant
// or token, produces exactly one audit event.
type Lifecycle struct {
	repo    Repo
	tokens  *tokens.Lifecycle
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

func NewLifecycle(repo Repo, tokenLifecycle *tokens.Lifecycle, bus *audit.Bus, options ...LifecycleOption) (*Lifecycle, error) {
	if repo == nil {
		return nil, errors.New("[grants.NewLifecycle] repo is required")
	}
	if tokenLifecycle == nil {
		return nil, errors.New("[grants.NewLifecycle] token lifecycle is required")
	}
	if bus == nil {
		return nil, errors.New("[grants.NewLifecycle] bus is required")
	}
	l := &Lifecycle{repo: repo, tokens: tokenLifecycle, bus: bus, nowTime: time.Now}
	for _, opt := range options {
		opt(l)
	}
	return l, nil
}

// AuthorizeResult carries the cleanup counts from replacing an earlier
// consent, for the app-authorized audit event.
type AuthorizeResult struct {
	Grant                   *Grant
	AccessTokenDeleteCount  int
	RefreshTokenDeleteCount int
	GrantDeleteCount        int
}

// Authorize records a successful consent. Any earlier grant for the same
// (user, application) pair is revoked first, cascading its tokens, and the
// cleanup counts are reported so the caller can include them in the
// authorization audit event.
func (l *Lifecycle) Authorize(ctx context.Context, userID, username, appID, appName string,
	scopes []string, trace flowtrace.Snapshot) (*AuthorizeResult, error) {

	result := &AuthorizeResult{}

	// Count the stale tokens first so the cascade inside Revoke has nothing
	// left to delete and the report stays accurate.
	accessCnt, refreshCnt, err := l.tokens.RevokeForUserApp(ctx, userID, appID, trace)
	if err != nil {
		return nil, errors.Wrap(err, "[Lifecycle.Authorize] revoke stale tokens")
	}
	result.AccessTokenDeleteCount = accessCnt
	result.RefreshTokenDeleteCount = refreshCnt

	if previous, err := l.repo.GetByUserApp(userID, appID); err == nil {
		if err := l.Revoke(ctx, previous.ID, trace); err != nil {
			return nil, errors.Wrap(err, "[Lifecycle.Authorize] revoke previous grant")
		}
		result.GrantDeleteCount = 1
	}

	grant := &Grant{
		UserID:    userID,
		Username:  username,
		AppID:     appID,
		AppName:   appName,
		Scopes:    scopes,
		CreatedAt: l.nowTime(),
	}
	if err := l.repo.Upsert(grant); err != nil {
		return nil, errors.Wrap(err, "[Lifecycle.Authorize] upsert grant")
	}
	result.Grant = grant
	return result, nil
}

// Revoke deletes the grant, publishes exactly one grant-revoked event, and
// cascades revocation to the tokens bound to the same pair.
func (l *Lifecycle) Revoke(ctx context.Context, grantID string, trace flowtrace.Snapshot) error {
	grant, err := l.repo.GetByID(grantID)
	if err != nil {
		return errors.Wrap(err, "[Lifecycle.Revoke] get grant")
	}
	if err := l.repo.Delete(grantID); err != nil {
		return errors.Wrap(err, "[Lifecycle.Revoke] delete grant")
	}

	l.bus.Publish(ctx, audit.ChannelGrantRevoked, audit.SenderGrantLifecycle, audit.GrantEvent{
		Action:   "revoked",
		GrantID:  grant.ID,
		UserID:   grant.UserID,
		Username: grant.Username,
		AppID:    grant.AppID,
		AppName:  grant.AppName,
		Scopes:   grant.Scopes,
		Trace:    trace,
	})

	if _, _, err := l.tokens.RevokeForUserApp(ctx, grant.UserID, grant.AppID, trace); err != nil {
		return errors.Wrap(err, "[Lifecycle.Revoke] cascade token revocation")
	}
	return nil
}

// Exists reports whether a live grant binds the (user, application) pair.
func (l *Lifecycle) Exists(userID, appID string) bool {
	_, err := l.repo.GetByUserApp(userID, appID)
	return err == nil
}
