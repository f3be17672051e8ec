package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/careaccess/go-fhir-gateway/audit"
	"github.com/careaccess/go-fhir-gateway/flowtrace"
	"github.com/careaccess/go-fhir-gateway/identity"
	"github.com/careaccess/go-fhir-gateway/tokens"
	"github.com/pkg/errors"
)

const (
	accessTokenTTL  = 10 * time.Hour
	refreshTokenTTL = 30 * 24 * time.Hour
)

// The page shown when the identity provider rejects the exchange. It is
// deliberately generic: upstream status codes and error bodies stay in the
// audit trail, not in the browser.
const authErrorPage = `<!DOCTYPE html>
<html>
<head><title>Authorization Error</title></head>
<body>
<h1>An error occurred connecting to your account</h1>
<p>Please close this window and try again.</p>
</body>
</html>`

// SLSCallback completes an in-flight authorization: the identity provider
// redirects here with a one-time code, the gateway exchanges it, records the
// consent as a grant, and issues the application's tokens. The flow trace
// established when the authorization started ties every audit event of the
// journey together.
func (s *Server) SLSCallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := RequestID(ctx)

		code := r.URL.Query().Get("code")
		state := r.URL.Query().Get("state")
		if code == "" || state == "" {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "code and state are required")
			return
		}

		flow, err := s.deps.Flows.Get(state)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_state", "no authorization flow for state")
			return
		}
		flow.Mark("sls_callback", requestID)

		exchange, err := s.deps.Identity.Exchange(ctx, code, requestID, flow.Snapshot())
		if err != nil {
			var upstreamErr *identity.UpstreamAuthError
			if errors.As(err, &upstreamErr) {
				s.logger.Warn().Int("status", upstreamErr.StatusCode).Str("request_id", requestID).Msg("identity provider rejected exchange")
				w.Header().Set("Content-Type", contentTypeHTML)
				w.WriteHeader(http.StatusBadGateway)
				_, _ = fmt.Fprint(w, authErrorPage)
				return
			}
			s.logger.Error().Err(err).Str("request_id", requestID).Msg("token exchange failed")
			writeJSONError(w, http.StatusInternalServerError, "server_error", "token exchange failed")
			return
		}

		userID := flow.Snapshot().Markers["user_id"]
		if userID == "" {
			writeJSONError(w, http.StatusBadRequest, "invalid_state", "authorization flow has no user")
			return
		}
		user, err := s.deps.Users.GetByID(userID)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_state", "unknown user")
			return
		}
		app, err := s.deps.Apps.Get(flow.AppID)
		if err != nil || !app.Active {
			writeJSONError(w, http.StatusForbidden, "access_denied", "application is not active")
			return
		}

		scopes := app.Scopes
		if requested := flow.Snapshot().Markers["scope"]; requested != "" {
			scopes = strings.Fields(requested)
			if err := app.ValidateScopes(scopes); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid_scope", "requested scope is not registered")
				return
			}
		}

		// This flow's identity-provider token authenticates the crosswalk
		// probe against the backend; a failure here is audited but not fatal.
		if crosswalk, err := s.deps.Crosswalks.GetByUserID(user.ID); err == nil {
			if _, err := s.deps.Mediator.FetchForAuth(ctx, "Patient", crosswalk.FHIRID, requestID,
				exchange.AuthHeader(), flow.Snapshot()); err != nil {
				s.logger.Warn().Err(err).Str("request_id", requestID).Msg("crosswalk probe failed")
			}
		}

		trace := flow.Snapshot()
		authResult, err := s.deps.Grants.Authorize(ctx, user.ID, user.Username, app.ID, app.Name, scopes, trace)
		if err != nil {
			s.logger.Error().Err(err).Str("request_id", requestID).Msg("grant authorization failed")
			writeJSONError(w, http.StatusInternalServerError, "server_error", "authorization could not be recorded")
			return
		}

		access, err := s.deps.Tokens.Issue(ctx, tokens.TypeAccess, user.ID, user.Username, app.ID, app.Name, scopes, accessTokenTTL, trace)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "server_error", "token issue failed")
			return
		}
		refresh, err := s.deps.Tokens.Issue(ctx, tokens.TypeRefresh, user.ID, user.Username, app.ID, app.Name, scopes, refreshTokenTTL, trace)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "server_error", "token issue failed")
			return
		}

		var crosswalkSummary audit.CrosswalkSummary
		if crosswalk, err := s.deps.Crosswalks.GetByUserID(user.ID); err == nil {
			crosswalkSummary = audit.CrosswalkSummary{
				ID:         crosswalk.ID,
				HICNHash:   crosswalk.HICNHash,
				MBIHash:    crosswalk.MBIHash,
				FHIRID:     crosswalk.FHIRID,
				UserIDType: crosswalk.UserIDType,
			}
		}
		s.deps.Bus.Publish(ctx, audit.ChannelAppAuthorized, audit.SenderAuthorizationEndpoint, audit.AppAuthorizedEvent{
			AuthStatus:              "OK",
			AuthStatusCode:          http.StatusOK,
			UserID:                  user.ID,
			Username:                user.Username,
			Crosswalk:               crosswalkSummary,
			AppID:                   app.ID,
			AppName:                 app.Name,
			ShareDemographicScopes:  trace.Markers["share_demographic_scopes"] == "true",
			Scopes:                  scopes,
			Allow:                   true,
			AccessTokenDeleteCount:  authResult.AccessTokenDeleteCount,
			RefreshTokenDeleteCount: authResult.RefreshTokenDeleteCount,
			GrantDeleteCount:        authResult.GrantDeleteCount,
			Trace:                   trace,
		})

		_ = s.deps.Flows.Delete(state)

		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  access.Value,
			"refresh_token": refresh.Value,
			"token_type":    "Bearer",
			"expires_in":    int(accessTokenTTL.Seconds()),
			"scope":         strings.Join(scopes, " "),
		})
	}
}

// Revoke deletes the presented token. Per RFC 7009 an unknown token still
// yields 200: the caller learns nothing about whether it ever existed, and
// the revocation audit event fires only when something was actually deleted.
func (s *Server) Revoke() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value := r.PostFormValue("token")
		if value == "" {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "token is required")
			return
		}

		token, err := s.deps.Tokens.ResolveBearer(value)
		if err != nil {
			w.WriteHeader(http.StatusOK)
			return
		}
		if err := s.deps.Tokens.Revoke(r.Context(), token.ID, flowtrace.Snapshot{}); err != nil {
			if errors.Is(err, tokens.TokenNotFoundErr) {
				w.WriteHeader(http.StatusOK)
				return
			}
			writeJSONError(w, http.StatusInternalServerError, "server_error", "revocation failed")
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
