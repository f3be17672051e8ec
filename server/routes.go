package server

const (
	RouteFHIRRead    = "/v1/fhir/{resourceType}/{resourceID}"
	RouteSLSCallback = "/mymedicare/sls-callback"
	RouteTokenRevoke = "/v1/o/revoke"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteFHIRRead, ChainMiddleware(s.ResourceRead(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteSLSCallback, ChainMiddleware(s.SLSCallback(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteTokenRevoke, ChainMiddleware(s.Revoke(), s.APIMiddleware()...))
}
