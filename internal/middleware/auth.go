package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/herbtrace/herbtrace-backend/internal/domain"
	"github.com/herbtrace/herbtrace-backend/internal/platform/logger"
)

const (
	roleContextKey = "herbtrace.role"
	userContextKey = "herbtrace.username"

	// Dev-only escape hatch used when no signing secret is configured.
	roleHeader = "X-Herbtrace-Role"
)

type roleClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// RoleMiddleware resolves the acting supply-chain role from the request.
// The authentication collaborator issues HS256 tokens carrying {username,
// role}; the core trusts the role claim and nothing else.
type RoleMiddleware struct {
	log    *logger.Logger
	secret []byte
}

func NewRoleMiddleware(log *logger.Logger, secret string) *RoleMiddleware {
	return &RoleMiddleware{
		log:    log.With("Middleware", "RoleMiddleware"),
		secret: []byte(secret),
	}
}

// RequireRole aborts requests that carry no resolvable role.
func (m *RoleMiddleware) RequireRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, username, err := m.resolve(c)
		if err != nil {
			m.log.Debug("role resolution failed", "error", err, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(roleContextKey, role)
		c.Set(userContextKey, username)
		c.Next()
	}
}

func (m *RoleMiddleware) resolve(c *gin.Context) (domain.Role, string, error) {
	if len(m.secret) == 0 {
		// No secret configured: local development against the portal,
		// which sends its active role in a plain header.
		role, ok := domain.ParseRole(c.GetHeader(roleHeader))
		if !ok {
			return "", "", fmt.Errorf("missing or unknown %s header", roleHeader)
		}
		return role, "dev", nil
	}

	tokenString := extractToken(c)
	if tokenString == "" {
		return "", "", errors.New("missing bearer token")
	}

	claims := &roleClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return "", "", errors.New("invalid token")
	}

	role, ok := domain.ParseRole(claims.Role)
	if !ok {
		return "", "", fmt.Errorf("unknown role %q in token", claims.Role)
	}
	return role, claims.Username, nil
}

func extractToken(c *gin.Context) string {
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}

// RoleFrom reads the role resolved by RequireRole.
func RoleFrom(c *gin.Context) (domain.Role, bool) {
	v, ok := c.Get(roleContextKey)
	if !ok {
		return "", false
	}
	role, ok := v.(domain.Role)
	return role, ok
}

// UsernameFrom reads the username resolved by RequireRole.
func UsernameFrom(c *gin.Context) string {
	v, ok := c.Get(userContextKey)
	if !ok {
		return ""
	}
	name, _ := v.(string)
	return name
}
