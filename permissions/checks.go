package permissions

import (
	"context"

	"github.com/careaccess/go-fhir-gateway/accounts"
)

// Stable deny reason codes surfaced to callers.
const (
	ReasonNotAuthenticated    = "not_authenticated"
	ReasonApplicationInactive = "application_inactive"
	ReasonResourceNotAllowed  = "resource_not_allowed"
	ReasonNoCrosswalk         = "no_crosswalk"
	ReasonCrosswalkMismatch   = "crosswalk_mismatch"
	ReasonNoDataAccessGrant   = "no_data_access_grant"
	ReasonMissingCapability   = "missing_capability"
)

// GrantChecker reports whether a live data access grant binds a user and an
// application. Satisfied by grants.Lifecycle.
type GrantChecker interface {
	Exists(userID, appID string) bool
}

// NewReadChain assembles the fixed-order chain guarding protected resource
// reads: authenticated first, then application-active, before any check that
// depends on the established identity.
func NewReadChain(crosswalks accounts.CrosswalkRepo, grantChecker GrantChecker, allowedResources []string) *Chain {
	return NewChain(
		AuthenticatedCheck{},
		ApplicationActiveCheck{},
		ResourceAllowedCheck{Allowed: allowedResources},
		CrosswalkCheck{Crosswalks: crosswalks},
		DataAccessGrantCheck{Grants: grantChecker},
		TokenCapabilityCheck{},
	)
}

// AuthenticatedCheck requires an established identity: a resolved bearer
// token and its user.
type AuthenticatedCheck struct{}

func (AuthenticatedCheck) Name() string { return "IsAuthenticated" }

func (c AuthenticatedCheck) Evaluate(_ context.Context, in *Input) Decision {
	if in.Token == nil || in.User == nil {
		return Deny(c.Name(), ReasonNotAuthenticated)
	}
	return Allow()
}

// ApplicationActiveCheck denies requests from deactivated applications.
type ApplicationActiveCheck struct{}

func (ApplicationActiveCheck) Name() string { return "ApplicationActive" }

func (c ApplicationActiveCheck) Evaluate(_ context.Context, in *Input) Decision {
	if in.Application == nil || !in.Application.Active {
		return Deny(c.Name(), ReasonApplicationInactive)
	}
	return Allow()
}

// ResourceAllowedCheck restricts requests to the supported resource types.
type ResourceAllowedCheck struct {
	Allowed []string
}

func (ResourceAllowedCheck) Name() string { return "ResourcePermission" }

func (c ResourceAllowedCheck) Evaluate(_ context.Context, in *Input) Decision {
	for _, resourceType := range c.Allowed {
		if resourceType == in.ResourceType {
			return Allow()
		}
	}
	return Deny(c.Name(), ReasonResourceNotAllowed)
}

// CrosswalkCheck verifies the token-to-identity crosswalk: the user has an
// upstream identity mapping, and a Patient read targets the user's own FHIR
// id.
type CrosswalkCheck struct {
	Crosswalks accounts.CrosswalkRepo
}

func (CrosswalkCheck) Name() string { return "ReadCrosswalk" }

func (c CrosswalkCheck) Evaluate(_ context.Context, in *Input) Decision {
	crosswalk, err := c.Crosswalks.GetByUserID(in.User.ID)
	if err != nil {
		return Deny(c.Name(), ReasonNoCrosswalk)
	}
	if in.ResourceType == "Patient" && in.ResourceID != crosswalk.FHIRID {
		return Deny(c.Name(), ReasonCrosswalkMismatch)
	}
	return Allow()
}

// DataAccessGrantCheck requires a live consent record binding the user and
// application.
type DataAccessGrantCheck struct {
	Grants GrantChecker
}

func (DataAccessGrantCheck) Name() string { return "DataAccessGrant" }

func (c DataAccessGrantCheck) Evaluate(_ context.Context, in *Input) Decision {
	if !c.Grants.Exists(in.User.ID, in.Application.ID) {
		return Deny(c.Name(), ReasonNoDataAccessGrant)
	}
	return Allow()
}

// TokenCapabilityCheck requires the token to carry the capability scope for
// the requested resource type.
type TokenCapabilityCheck struct{}

func (TokenCapabilityCheck) Name() string { return "TokenHasProtectedCapability" }

func (c TokenCapabilityCheck) Evaluate(_ context.Context, in *Input) Decision {
	if !in.Token.HasScope(CapabilityScope(in.ResourceType)) {
		return Deny(c.Name(), ReasonMissingCapability)
	}
	return Allow()
}

// CapabilityScope maps a resource type to the scope an application must hold
// to read it, e.g. "patient/Patient.read".
func CapabilityScope(resourceType string) string {
	return "patient/" + resourceType + ".read"
}
