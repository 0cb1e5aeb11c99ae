package middleware

import (
	"context"
	"strings"

	"bitwise74/drop-api/pkg/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	CodeInvalidToken = "INVALID_TOKEN"
	CodeUserNotFound = "USER_NOT_FOUND"
)

type TokenParser interface {
	ParseAuthToken(token string) (userID string, err error)
}

type UserChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// bearer reads the token from the Authorization header and falls back to
// the auth_token cookie browsers carry
func bearer(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}

	if cookie, err := c.Cookie("auth_token"); err == nil {
		return cookie
	}

	return ""
}

// NewJWTMiddleware rejects requests without a valid token for an existing
// account. On success userID is set on the context.
func NewJWTMiddleware(tokens TokenParser, users UserChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearer(c)
		if tokenStr == "" {
			apperr.Respond(c, apperr.New(apperr.KindUnauthenticated, apperr.CodeUnauthenticated))
			return
		}

		userID, err := tokens.ParseAuthToken(tokenStr)
		if err != nil {
			zap.L().Debug("Rejected auth token", zap.Error(err), zap.String("requestID", c.GetString("requestID")))
			apperr.Respond(c, apperr.New(apperr.KindUnauthenticated, CodeInvalidToken))
			return
		}

		// Tokens outlive deleted accounts
		ok, err := users.Exists(c.Request.Context(), userID)
		if err != nil {
			apperr.Respond(c, apperr.Internal(err))
			return
		}

		if !ok {
			apperr.Respond(c, apperr.New(apperr.KindUnauthenticated, CodeUserNotFound))
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}

// NewOptionalJWTMiddleware sets userID when a valid token is present and
// otherwise lets the request through anonymously
func NewOptionalJWTMiddleware(tokens TokenParser, users UserChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearer(c)
		if tokenStr == "" {
			c.Next()
			return
		}

		userID, err := tokens.ParseAuthToken(tokenStr)
		if err != nil {
			c.Next()
			return
		}

		ok, err := users.Exists(c.Request.Context(), userID)
		if err != nil {
			zap.L().Warn("Failed to check token owner", zap.Error(err), zap.String("requestID", c.GetString("requestID")))
		}

		if ok {
			c.Set("userID", userID)
		}

		c.Next()
	}
}
