package middleware

import (
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type customerClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// OptionalAuth extracts the authenticated customer reference from a bearer
// token when one is supplied. The chat endpoints are open to anonymous
// sessions, so a missing or invalid token is simply ignored.
func OptionalAuth() gin.HandlerFunc {
	secret := os.Getenv("JWT_SECRET")
	issuer := os.Getenv("JWT_ISSUER") // optional

	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.Next()
			return
		}
		raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if raw == "" {
			c.Next()
			return
		}

		claims := &customerClaims{}
		tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		if err != nil || tok == nil || !tok.Valid {
			c.Next()
			return
		}
		if issuer != "" && claims.Issuer != issuer {
			c.Next()
			return
		}

		if claims.Subject != "" {
			c.Set("customer_id", claims.Subject)
		}
		c.Next()
	}
}
