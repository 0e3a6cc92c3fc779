package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	actorIDHeader   = "X-Actor-ID"
	actorRoleHeader = "X-Actor-Role"

	actorContextKey = "dispatch.actor"
)

// Actor is the authenticated identity attached to every request. The
// gateway in front of this service performs authentication; dispatch trusts
// these headers and does no validation of its own.
type Actor struct {
	ID   string
	Role string
}

// Identity extracts the actor from upstream auth headers. Requests without
// an actor id are rejected before reaching any handler.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := Actor{
			ID:   c.GetHeader(actorIDHeader),
			Role: c.GetHeader(actorRoleHeader),
		}

		if actor.ID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing actor identity"})
			return
		}

		c.Set(actorContextKey, actor)
		c.Next()
	}
}

// CurrentActor returns the actor attached to the request context.
func CurrentActor(c *gin.Context) Actor {
	if v, ok := c.Get(actorContextKey); ok {
		if actor, ok := v.(Actor); ok {
			return actor
		}
	}
	return Actor{}
}
