package controller

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"ojstats/internal/stats/model"
	xerrors "ojstats/pkg/errors"
	"ojstats/pkg/utils/response"
)

const callerContextKey = "caller"

// capabilityClaims is the token payload the auth service issues. Capabilities
// are opaque names; this service only checks for their presence.
type capabilityClaims struct {
	ProfileID    int64    `json:"profile_id"`
	Capabilities []string `json:"capabilities"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates the bearer token and stores the resolved Caller in
// the request context. Requests without a valid token never reach the handler.
func AuthMiddleware(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			response.AbortWithError(c, xerrors.New(xerrors.Unauthorized).
				WithMessage("missing bearer token"))
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

		claims := &capabilityClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			code := xerrors.TokenInvalid
			if errors.Is(err, jwt.ErrTokenExpired) {
				code = xerrors.TokenExpired
			}
			response.AbortWithError(c, xerrors.New(code))
			return
		}
		if claims.ProfileID <= 0 {
			response.AbortWithError(c, xerrors.New(xerrors.TokenInvalid).
				WithMessage("token carries no profile"))
			return
		}

		c.Set(callerContextKey, model.NewCaller(claims.ProfileID, claims.Capabilities...))
		c.Next()
	}
}

// CallerFrom extracts the authenticated caller placed by AuthMiddleware.
func CallerFrom(c *gin.Context) (model.Caller, bool) {
	value, exists := c.Get(callerContextKey)
	if !exists {
		return model.Caller{}, false
	}
	caller, ok := value.(model.Caller)
	return caller, ok
}
