package audit

import (
	"encoding/json"
	"fmt"
)

// RenderEvent converts a domain event into its canonical loggable JSON line.
// Renderers carry only audit metadata; bearer tokens and client secrets are
// never part of the event payloads and so can never reach a sink. RenderEvent
// panics on an unregistered event type; callers wrap it in CaptureRender.
func RenderEvent(event Event) string {
	switch e := event.(type) {
	case TokenEvent:
		return renderTokenEvent(e)
	case AppAuthorizedEvent:
		return renderAppAuthorizedEvent(e)
	case GrantEvent:
		return renderGrantEvent(e)
	case FetchRequestEvent:
		return renderFetchRequest(e, false)
	case FetchResponseEvent:
		return renderFetchResponse(e, false)
	case IdentityProviderResponseEvent:
		return renderIdentityProviderResponse(e)
	default:
		panic(fmt.Sprintf("no serializer registered for %T", event))
	}
}

// RenderAuthFetchEvent renders the pre/post-fetch projections published by
// the identity exchange client. Unlike the resource mediator's variant these
// carry the auth flow trace, since the fetch happens mid-authorization.
func RenderAuthFetchEvent(event Event) string {
	switch e := event.(type) {
	case FetchRequestEvent:
		return renderFetchRequest(e, true)
	case FetchResponseEvent:
		return renderFetchResponse(e, true)
	default:
		panic(fmt.Sprintf("no auth fetch serializer registered for %T", event))
	}
}

func renderTokenEvent(e TokenEvent) string {
	type line struct {
		Type      string `json:"type"`
		Action    string `json:"action"`
		TokenID   string `json:"id"`
		TokenType string `json:"token_type,omitempty"`
		UserID    string `json:"user_id,omitempty"`
		Username  string `json:"username,omitempty"`
		AppID     string `json:"application_id,omitempty"`
		AppName   string `json:"application_name,omitempty"`
		Trace     any    `json:"auth_flow,omitempty"`
	}
	return marshalLine(line{
		Type:      "AccessToken",
		Action:    e.Action,
		TokenID:   e.TokenID,
		TokenType: e.TokenType,
		UserID:    e.UserID,
		Username:  e.Username,
		AppID:     e.AppID,
		AppName:   e.AppName,
		Trace:     traceOrNil(e.Trace),
	})
}

func renderAppAuthorizedEvent(e AppAuthorizedEvent) string {
	type userLine struct {
		ID        string           `json:"id"`
		Username  string           `json:"username"`
		Crosswalk CrosswalkSummary `json:"crosswalk"`
	}
	type appLine struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	type line struct {
		Type                    string   `json:"type"`
		AuthStatus              string   `json:"auth_status"`
		AuthStatusCode          int      `json:"auth_status_code"`
		User                    userLine `json:"user"`
		Application             appLine  `json:"application"`
		ShareDemographicScopes  bool     `json:"share_demographic_scopes"`
		Scopes                  []string `json:"scopes"`
		Allow                   bool     `json:"allow"`
		AccessTokenDeleteCount  int      `json:"access_token_delete_cnt"`
		RefreshTokenDeleteCount int      `json:"refresh_token_delete_cnt"`
		GrantDeleteCount        int      `json:"data_access_grant_delete_cnt"`
		Trace                   any      `json:"auth_flow,omitempty"`
	}
	return marshalLine(line{
		Type:                    "Authorization",
		AuthStatus:              e.AuthStatus,
		AuthStatusCode:          e.AuthStatusCode,
		User:                    userLine{ID: e.UserID, Username: e.Username, Crosswalk: e.Crosswalk},
		Application:             appLine{ID: e.AppID, Name: e.AppName},
		ShareDemographicScopes:  e.ShareDemographicScopes,
		Scopes:                  e.Scopes,
		Allow:                   e.Allow,
		AccessTokenDeleteCount:  e.AccessTokenDeleteCount,
		RefreshTokenDeleteCount: e.RefreshTokenDeleteCount,
		GrantDeleteCount:        e.GrantDeleteCount,
		Trace:                   traceOrNil(e.Trace),
	})
}

func renderGrantEvent(e GrantEvent) string {
	type line struct {
		Type     string   `json:"type"`
		Action   string   `json:"action"`
		GrantID  string   `json:"id"`
		UserID   string   `json:"user_id,omitempty"`
		Username string   `json:"username,omitempty"`
		AppID    string   `json:"application_id,omitempty"`
		AppName  string   `json:"application_name,omitempty"`
		Scopes   []string `json:"scopes,omitempty"`
		Trace    any      `json:"auth_flow,omitempty"`
	}
	return marshalLine(line{
		Type:     "DataAccessGrant",
		Action:   e.Action,
		GrantID:  e.GrantID,
		UserID:   e.UserID,
		Username: e.Username,
		AppID:    e.AppID,
		AppName:  e.AppName,
		Scopes:   e.Scopes,
		Trace:    traceOrNil(e.Trace),
	})
}

func renderFetchRequest(e FetchRequestEvent, forAuth bool) string {
	type line struct {
		Type    string `json:"type"`
		UUID    string `json:"uuid"`
		Path    string `json:"path"`
		StartAt string `json:"start"`
		Trace   any    `json:"auth_flow,omitempty"`
	}
	l := line{
		Type:    "fhir_pre_fetch",
		UUID:    e.UUID,
		Path:    e.Path,
		StartAt: e.StartAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if forAuth {
		l.Type = "fhir_auth_pre_fetch"
		l.Trace = traceOrNil(e.Trace)
	}
	return marshalLine(l)
}

func renderFetchResponse(e FetchResponseEvent, forAuth bool) string {
	type line struct {
		Type       string `json:"type"`
		UUID       string `json:"uuid"`
		Path       string `json:"path"`
		StatusCode int    `json:"code"`
		ElapsedMS  int64  `json:"elapsed_ms"`
		Trace      any    `json:"auth_flow,omitempty"`
	}
	l := line{
		Type:       "fhir_post_fetch",
		UUID:       e.UUID,
		Path:       e.Path,
		StatusCode: e.StatusCode,
		ElapsedMS:  e.Elapsed.Milliseconds(),
	}
	if forAuth {
		l.Type = "fhir_auth_post_fetch"
		l.Trace = traceOrNil(e.Trace)
	}
	return marshalLine(l)
}

func renderIdentityProviderResponse(e IdentityProviderResponseEvent) string {
	type line struct {
		Type       string `json:"type"`
		UUID       string `json:"uuid"`
		Path       string `json:"path"`
		StatusCode int    `json:"code"`
		ElapsedMS  int64  `json:"elapsed_ms"`
		Trace      any    `json:"auth_flow,omitempty"`
	}
	return marshalLine(line{
		Type:       "SLS_token",
		UUID:       e.UUID,
		Path:       e.Path,
		StatusCode: e.StatusCode,
		ElapsedMS:  e.Elapsed.Milliseconds(),
		Trace:      traceOrNil(e.Trace),
	})
}

func marshalLine(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// Recovered by CaptureRender at the subscription site.
		panic(err)
	}
	return string(b)
}

func traceOrNil(s interface{ IsZero() bool }) any {
	if s.IsZero() {
		return nil
	}
	return s
}
