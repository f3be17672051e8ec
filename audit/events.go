package audit

import (
	"time"

	"github.com/careaccess/go-fhir-gateway/flowtrace"
)

// Event is the tagged union of audit payloads. Each originating component
// publishes its own strongly-typed variant; the marker method keeps foreign
// types off the bus.
type Event interface {
	auditEvent()
}

// TokenEvent records an access or refresh token lifecycle transition. Action
// is "authorized" on issue and "revoked" on deletion. The raw token value is
// deliberately absent: the audit core logs identifying metadata only.
type TokenEvent struct {
	Action    string
	TokenID   string
	UserID    string
	Username  string
	AppID     string
	AppName   string
	TokenType string // "access" or "refresh"
	Trace     flowtrace.Snapshot
}

// CrosswalkSummary is the audit projection of a user's upstream identity
// mapping. Only hashed identifiers are carried.
type CrosswalkSummary struct {
	ID         string `json:"id"`
	HICNHash   string `json:"user_hicn_hash"`
	MBIHash    string `json:"user_mbi_hash"`
	FHIRID     string `json:"fhir_id"`
	UserIDType string `json:"user_id_type"`
}

// AppAuthorizedEvent records the outcome of a user's consent decision for an
// application, including the counts of credentials cleaned up when an earlier
// authorization was replaced.
type AppAuthorizedEvent struct {
	AuthStatus              string
	AuthStatusCode          int
	UserID                  string
	Username                string
	Crosswalk               CrosswalkSummary
	AppID                   string
	AppName                 string
	ShareDemographicScopes  bool
	Scopes                  []string
	Allow                   bool
	AccessTokenDeleteCount  int
	RefreshTokenDeleteCount int
	GrantDeleteCount        int
	Trace                   flowtrace.Snapshot
}

// GrantEvent records a data-access-grant lifecycle transition.
type GrantEvent struct {
	Action   string
	GrantID  string
	UserID   string
	Username string
	AppID    string
	AppName  string
	Scopes   []string
	Trace    flowtrace.Snapshot
}

// FetchRequestEvent is the audit-shaped projection of an outbound request to
// the backend resource server, fired on the pre-fetch channel. It never
// carries the Authorization header or request body.
type FetchRequestEvent struct {
	UUID    string
	Path    string
	StartAt time.Time
	Trace   flowtrace.Snapshot
}

// FetchResponseEvent is the audit-shaped projection of the corresponding
// response, fired on the post-fetch channel. It never carries the resource
// body.
type FetchResponseEvent struct {
	UUID       string
	Path       string
	StatusCode int
	Elapsed    time.Duration
	Trace      flowtrace.Snapshot
}

// IdentityProviderResponseEvent records the identity provider's answer to a
// token-exchange call, success or failure. It fires before the status code is
// turned into an error so that failed exchanges are still audited.
type IdentityProviderResponseEvent struct {
	UUID       string
	Path       string
	StatusCode int
	Elapsed    time.Duration
	Trace      flowtrace.Snapshot
}

func (TokenEvent) auditEvent()                    {}
func (AppAuthorizedEvent) auditEvent()            {}
func (GrantEvent) auditEvent()                    {}
func (FetchRequestEvent) auditEvent()             {}
func (FetchResponseEvent) auditEvent()            {}
func (IdentityProviderResponseEvent) auditEvent() {}
