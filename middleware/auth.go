package middleware

import (
	"errors"
	"fmt"
	"strings"

	"checkout-service/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const UserContextKey = "userID"

// AuthConfig controls where the caller identity is taken from.
type AuthConfig struct {
	// TrustGatewayHeaders accepts X-User-ID and the user_id cookie set by the API gateway.
	TrustGatewayHeaders bool
	// JWTSecret enables bearer tokens signed with HMAC.
	JWTSecret []byte
}

// AuthMiddleware resolves the signed-in user. With a secret configured, a
// bearer token decides the identity and an invalid one is rejected; gateway
// headers are only consulted when no token is sent. Unauthenticated requests
// are rejected with 401 and a redirect to the login page.
func AuthMiddleware(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := ""
		header := c.GetHeader("Authorization")
		if len(cfg.JWTSecret) > 0 && strings.HasPrefix(header, "Bearer ") {
			id, err := userFromToken(strings.TrimPrefix(header, "Bearer "), cfg.JWTSecret)
			if err != nil {
				apperrors.Respond(c, apperrors.Unauthenticated())
				return
			}
			userID = id
		} else if cfg.TrustGatewayHeaders {
			userID = strings.TrimSpace(c.GetHeader("X-User-ID"))
			if userID == "" {
				if v, err := c.Cookie("user_id"); err == nil && v != "" {
					userID = v
				}
			}
		}

		if userID == "" {
			apperrors.Respond(c, apperrors.Unauthenticated())
			return
		}

		c.Set(UserContextKey, userID)
		c.Next()
	}
}

func userFromToken(tokenStr string, secret []byte) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return "", errors.New("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}
	if typ, ok := claims["typ"].(string); ok && typ != "access" {
		return "", errors.New("invalid token type")
	}
	for _, key := range []string{"user_id", "sub"} {
		if id, ok := claims[key].(string); ok && id != "" {
			return id, nil
		}
	}
	return "", errors.New("token has no subject")
}

func GetUserID(c *gin.Context) (string, error) {
	val, exists := c.Get(UserContextKey)
	if !exists {
		return "", errors.New("user ID not found in context")
	}
	userID, ok := val.(string)
	if !ok || userID == "" {
		return "", errors.New("user ID has invalid type in context")
	}
	return userID, nil
}
