package middlewares

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/preetsinghmakkar/groupcall/internal/models"
)

const identityKey = "identity"

var (
	ErrMissingToken    = errors.New("authentication required")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrMissingIdentity = errors.New("identity not found in request context")
)

// Claims is the bearer token payload issued by the auth service.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// ParseIdentity validates an HS256 token and resolves the caller.
func ParseIdentity(tokenString, secret string) (models.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return models.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Email == "" {
		return models.Identity{}, fmt.Errorf("%w: email claim missing", ErrInvalidToken)
	}

	role := models.RoleUser
	if strings.EqualFold(claims.Role, string(models.RoleAdmin)) {
		role = models.RoleAdmin
	}
	return models.Identity{Email: claims.Email, Name: claims.Name, Role: role}, nil
}

// AuthMiddleware resolves the identity from the Authorization header, or from
// the token query parameter for browser WebSocket clients that cannot set headers.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMissingToken.Error()})
			return
		}

		identity, err := ParseIdentity(token, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidToken.Error()})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// AdminOnly must run after AuthMiddleware.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := GetIdentity(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMissingToken.Error()})
			return
		}
		if !identity.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

func GetIdentity(c *gin.Context) (models.Identity, error) {
	val, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, ErrMissingIdentity
	}
	identity, ok := val.(models.Identity)
	if !ok {
		return models.Identity{}, ErrMissingIdentity
	}
	return identity, nil
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return c.Query("token")
}
