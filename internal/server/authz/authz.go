// Package authz is the role gate applied after authentication.
package authz

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Allowed reports whether role is a member of required. It has no state and
// does no I/O.
func Allowed(role models.Role, required models.RoleSet) bool {
	return required.Contains(role)
}

// Check applies the gate to the identity in ctx: common.ErrorUnauthorized
// when there is none, common.ErrForbidden when its role is outside required.
func Check(ctx context.Context, required models.RoleSet) (*models.Identity, error) {
	id, ok := auth.IdentityFrom(ctx)
	if !ok {
		return nil, common.ErrorUnauthorized
	}
	if !Allowed(id.Role, required) {
		return nil, common.ErrForbidden
	}
	return id, nil
}
