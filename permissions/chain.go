// Package permissions implements the ordered, short-circuiting chain of
// authorization checks evaluated before any protected-resource fetch. The
// order is fixed and deliberate: identity is established first, then the
// application's standing, before any check that could leak grant-existence
// information to an unauthenticated caller.
package permissions

import (
	"context"

	"github.com/careaccess/go-fhir-gateway/accounts"
	"github.com/careaccess/go-fhir-gateway/applications"
	"github.com/careaccess/go-fhir-gateway/tokens"
)

// Input is the evaluation context for one protected-resource request. The
// caller resolves the bearer token to its user and application before the
// chain runs; unresolved fields simply fail the corresponding check.
type Input struct {
	Token        *tokens.Token
	User         *accounts.User
	Application  *applications.Application
	ResourceType string
	ResourceID   string
}

// Decision is the transient result of evaluating a check or a chain: a
// pass-through or a deny with a stable reason code. No state is retained
// between requests.
type Decision struct {
	Allowed bool
	Check   string
	Reason  string
}

func Allow() Decision {
	return Decision{Allowed: true}
}

func Deny(check, reason string) Decision {
	return Decision{Check: check, Reason: reason}
}

// Check is a single authorization capability.
type Check interface {
	Name() string
	Evaluate(ctx context.Context, in *Input) Decision
}

// Chain evaluates its checks in order, halting at the first deny. Evaluation
// is side-effect free.
type Chain struct {
	checks []Check
}

func NewChain(checks ...Check) *Chain {
	return &Chain{checks: checks}
}

// Evaluate returns the first deny, or an allow when every check passes. A
// deny at position k guarantees checks k+1..n are never evaluated.
func (c *Chain) Evaluate(ctx context.Context, in *Input) Decision {
	for _, check := range c.checks {
		if decision := check.Evaluate(ctx, in); !decision.Allowed {
			return decision
		}
	}
	return Allow()
}
