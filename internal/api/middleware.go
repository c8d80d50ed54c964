package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Identity arrives from the authenticating gateway as trusted headers.
// The service never verifies credentials itself.
const (
	headerUserID    = "X-User-ID"
	headerUserEmail = "X-User-Email"
	headerUserName  = "X-User-Name"
	headerUserRole  = "X-User-Role"

	contextUserKey = "auth_user"
)

// AuthUser is the identity extracted from gateway headers.
type AuthUser struct {
	ID    string
	Email string
	Name  string
	Admin bool
}

// requireUser rejects requests that carry no identity.
func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerUserID)
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		c.Set(contextUserKey, &AuthUser{
			ID:    id,
			Email: c.GetHeader(headerUserEmail),
			Name:  c.GetHeader(headerUserName),
			Admin: c.GetHeader(headerUserRole) == "admin",
		})
		c.Next()
	}
}

// requireAdmin rejects non-admin identities. Must run after requireUser.
func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !mustUser(c).Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

func mustUser(c *gin.Context) *AuthUser {
	return c.MustGet(contextUserKey).(*AuthUser)
}
