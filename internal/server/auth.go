package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/vendora/refundcore/internal/principal"
)

type principalClaims struct {
	jwt.RegisteredClaims
	Admin        bool     `json:"admin"`
	VendorID     string   `json:"vendor_id,omitempty"`
	CustomerID   string   `json:"customer_id,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Authenticate resolves the bearer token into the caller principal. The
// token is minted by the identity subsystem; this service only verifies and
// reads it.
func (s *Server) Authenticate(c *gin.Context) {
	raw := strings.TrimSpace(c.GetHeader("Authorization"))
	if !strings.HasPrefix(raw, "Bearer ") {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))

	claims := &principalClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	caller := principal.Principal{
		ID:           parseID(claims.Subject),
		IsAdmin:      claims.Admin,
		VendorID:     parseID(claims.VendorID),
		CustomerID:   parseID(claims.CustomerID),
		Capabilities: claims.Capabilities,
	}
	if caller.ID == 0 {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	c.Request = c.Request.WithContext(principal.WithPrincipal(c.Request.Context(), caller))
	c.Next()
}

func (s *Server) caller(c *gin.Context) (principal.Principal, bool) {
	caller, ok := principal.FromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return principal.Principal{}, false
	}
	return caller, true
}

func parseID(raw string) snowflake.ID {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return snowflake.ID(id)
}
