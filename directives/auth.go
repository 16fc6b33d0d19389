package directives

import (
	"context"
	"strings"

	"github.com/99designs/gqlgen/graphql"
	"github.com/buildhub/datasync_backend/utils"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// HasRole lets the field resolve only for an authenticated caller holding one
// of roles. Role names compare case-insensitively so schema enums (ADMIN) match
// token roles (admin).
func HasRole(ctx context.Context, obj interface{}, next graphql.Resolver, roles []string) (interface{}, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, &gqlerror.Error{
			Message: "Access Denied",
		}
	}
	role, _ := utils.GetRoleFromContext(ctx)
	for _, allowed := range roles {
		if strings.EqualFold(allowed, role) {
			return next(ctx)
		}
	}
	return nil, &gqlerror.Error{
		Message: "Unauthorized",
	}
}
