package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/careaccess/go-fhir-gateway/accounts"
	"github.com/careaccess/go-fhir-gateway/applications"
	"github.com/careaccess/go-fhir-gateway/permissions"
)

const (
	contentTypeHTML     = "text/html; charset=utf-8"
	contentTypeJSON     = "application/json; charset=utf-8"
	contentTypeFHIRJSON = "application/fhir+json; charset=utf-8"
)

// ResourceRead is the bearer-token protected read endpoint. The permission
// chain runs to completion before the mediator is invoked; a denied request
// never reaches the backend.
func (s *Server) ResourceRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		bearer := bearerToken(r)
		if bearer == "" {
			writeJSONError(w, http.StatusUnauthorized, "invalid_token", "missing bearer token")
			return
		}
		token, err := s.deps.Tokens.ResolveBearer(bearer)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "invalid_token", "token is not valid")
			return
		}

		var user *accounts.User
		if u, err := s.deps.Users.GetByID(token.UserID); err == nil {
			user = u
		}
		var app *applications.Application
		if a, err := s.deps.Apps.Get(token.AppID); err == nil {
			app = a
		}

		in := &permissions.Input{
			Token:        token,
			User:         user,
			Application:  app,
			ResourceType: r.PathValue("resourceType"),
			ResourceID:   r.PathValue("resourceID"),
		}
		decision := s.readChain.Evaluate(ctx, in)
		if !decision.Allowed {
			writeJSONError(w, http.StatusForbidden, "access_denied", decision.Reason)
			return
		}

		result, err := s.deps.Mediator.Fetch(ctx, in.ResourceType, in.ResourceID, RequestID(ctx))
		if err != nil {
			s.logger.Error().Err(err).Str("request_id", RequestID(ctx)).Msg("backend fetch failed")
			writeJSONError(w, http.StatusBadGateway, "upstream_unavailable", "the resource server could not be reached")
			return
		}

		w.Header().Set("Content-Type", contentTypeFHIRJSON)
		w.WriteHeader(result.StatusCode)
		_, _ = w.Write(result.Body)
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             code,
		"error_description": description,
	})
}
