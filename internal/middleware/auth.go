// Package middleware provides HTTP middleware for authentication, logging, and rate limiting.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const (
	// APITokenHeader carries the API token.
	APITokenHeader = "X-API-Token" // #nosec G101 - header name
	// apiTokenQuery is accepted for websocket upgrades, which cannot set headers.
	apiTokenQuery = "token"
)

// APITokenRequired rejects requests whose token does not match the bcrypt
// hash. An empty hash disables the check.
func APITokenRequired(tokenHash string) gin.HandlerFunc {
	hash := []byte(tokenHash)

	return func(c *gin.Context) {
		if len(hash) == 0 {
			c.Next()
			return
		}

		token := c.GetHeader(APITokenHeader)
		if token == "" && c.IsWebsocket() {
			token = c.Query(apiTokenQuery)
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing API token"})
			c.Abort()
			return
		}

		if err := bcrypt.CompareHashAndPassword(hash, []byte(token)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API token"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// HashToken returns the bcrypt hash to configure for token.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
