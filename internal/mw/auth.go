package mw

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"roomcheck-backend/internal/auth"
	"roomcheck-backend/internal/model"
)

const principalKey = "principal"

// Authenticate verifies the bearer token and stores the caller's principal on
// the context.
func Authenticate(tokens *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			abort(c, http.StatusUnauthorized, model.ErrUnauthorized)
			return
		}

		claims, err := tokens.Verify(strings.TrimSpace(raw))
		if err != nil {
			e := *model.ErrUnauthorized
			if errors.Is(err, auth.ErrExpiredToken) {
				e.Message = "bearer token has expired"
			}
			abort(c, http.StatusUnauthorized, &e)
			return
		}
		c.Set(principalKey, claims.Principal())
		c.Next()
	}
}

// RequireRole rejects callers whose role is not one of roles.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, model.ErrUnauthorized)
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, model.ErrForbidden)
	}
}

// PrincipalFrom returns the authenticated caller.
func PrincipalFrom(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}

func abort(c *gin.Context, status int, err *model.DomainError) {
	c.AbortWithStatusJSON(status, err)
}
