package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chat-sync/auth"
	"chat-sync/domain"
)

const participantContextKey = "participant"

// authRequired resolves the bearer token to a participant and aborts with
// 401 when it cannot.
func authRequired(identity auth.IIdentityProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		participant, err := identity.Authenticate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(participantContextKey, participant)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if after, found := strings.CutPrefix(header, "Bearer "); found {
		return after
	}
	// Browsers cannot set headers on websocket upgrades, so those
	// endpoints pass the token in the query string instead.
	return c.Query("token")
}

func currentParticipant(c *gin.Context) domain.Participant {
	value, _ := c.Get(participantContextKey)
	participant, _ := value.(domain.Participant)
	return participant
}
