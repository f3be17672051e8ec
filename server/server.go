// Package server is the gateway's thin HTTP surface: the protected FHIR read
// endpoint, the identity-provider callback that completes an authorization
// flow, and token revocation. All domain behaviour lives in the packages
// behind it; handlers resolve inputs, run the permission chain, and translate
// outcomes to HTTP.
package server

import (
	"net/http"

	"github.com/careaccess/go-fhir-gateway/accounts"
	"github.com/careaccess/go-fhir-gateway/applications"
	"github.com/careaccess/go-fhir-gateway/audit"
	"github.com/careaccess/go-fhir-gateway/fhir"
	"github.com/careaccess/go-fhir-gateway/flowtrace"
	"github.com/careaccess/go-fhir-gateway/grants"
	"github.com/careaccess/go-fhir-gateway/identity"
	"github.com/careaccess/go-fhir-gateway/internal/config"
	"github.com/careaccess/go-fhir-gateway/permissions"
	"github.com/careaccess/go-fhir-gateway/tokens"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// DefaultAllowedResources are the backend resource types the gateway will
// mediate reads for.
var DefaultAllowedResources = []string{"Patient", "Coverage", "ExplanationOfBenefit"}

// Deps are the domain services the handlers delegate to.
type Deps struct {
	Users      accounts.UserRepo
	Crosswalks accounts.CrosswalkRepo
	Apps       applications.Repo
	Tokens     *tokens.Lifecycle
	Grants     *grants.Lifecycle
	Identity   *identity.Client
	Mediator   *fhir.Mediator
	Bus        *audit.Bus
	Flows      flowtrace.Repo
}

type Server struct {
	env       string // Environment (e.g., "DEV", "production")
	mux       *http.ServeMux
	routes    []string
	config    config.Config
	logger    zerolog.Logger
	deps      Deps
	readChain *permissions.Chain
}

func New(cfg config.Config, logger zerolog.Logger, deps Deps) (*Server, error) {
	if deps.Users == nil || deps.Crosswalks == nil || deps.Apps == nil || deps.Flows == nil {
		return nil, errors.New("[server.New] repositories are required")
	}
	if deps.Tokens == nil || deps.Grants == nil {
		return nil, errors.New("[server.New] token and grant lifecycles are required")
	}
	if deps.Identity == nil || deps.Mediator == nil {
		return nil, errors.New("[server.New] identity client and fetch mediator are required")
	}
	if deps.Bus == nil {
		return nil, errors.New("[server.New] audit bus is required")
	}

	s := &Server{
		env:       cfg.Env,
		mux:       http.NewServeMux(),
		config:    cfg,
		logger:    logger,
		deps:      deps,
		readChain: permissions.NewReadChain(deps.Crosswalks, deps.Grants, DefaultAllowedResources),
	}
	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		s.logger.Info().Str("route", route).Msg("registered route")
	}
}
