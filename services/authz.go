// services/authz.go
package services

import (
	"fmt"

	"bug-bounty-platform/models"

	"github.com/gofiber/fiber/v2"
)

// Caller is the authenticated identity attached by the gateway middleware.
type Caller struct {
	ID    string
	Roles []string
}

// CallerFromCtx reads the identity placed in fiber locals by
// middleware.UserContextMiddleware.
func CallerFromCtx(c *fiber.Ctx) Caller {
	caller := Caller{}
	if id, ok := c.Locals("user_id").(string); ok {
		caller.ID = id
	}
	if roles, ok := c.Locals("user_roles").([]string); ok {
		caller.Roles = roles
	}
	return caller
}

// Operation names an access-controlled operation.
type Operation string

const (
	OpReviewSubmission Operation = "review_submission"
	OpUpdateFee        Operation = "update_fee"
	OpVerifyHunter     Operation = "verify_hunter"
)

// Authorizer is the single place role checks live. Handlers call Authorize
// before any mutation; the operations themselves never inspect roles.
type Authorizer struct {
	OwnerID string // platform owner, fixed at system initialization
}

func NewAuthorizer(ownerID string) *Authorizer {
	return &Authorizer{OwnerID: ownerID}
}

// Authorize returns nil when caller may perform op on resource, ErrForbidden
// otherwise. Resource is the *models.Bounty for review operations and unused
// for owner-gated platform operations.
func (a *Authorizer) Authorize(op Operation, caller Caller, resource any) error {
	switch op {
	case OpReviewSubmission:
		bounty, ok := resource.(*models.Bounty)
		if !ok || bounty == nil {
			return fmt.Errorf("%w: review requires a bounty resource", ErrForbidden)
		}
		if caller.ID == "" || caller.ID != bounty.CreatorID {
			return fmt.Errorf("%w: only the bounty creator may review submissions", ErrForbidden)
		}
		return nil
	case OpUpdateFee, OpVerifyHunter:
		if caller.ID == "" || caller.ID != a.OwnerID {
			return fmt.Errorf("%w: owner-only operation", ErrForbidden)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown operation %q", ErrForbidden, op)
	}
}
