// Package middleware provides authentication and request-scoped middleware for the application.
package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"xplore/internal/config"
	"xplore/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

var (
	errMissingHeader = errors.New("authorization header required")
	errHeaderFormat  = errors.New("invalid authorization header format")
	errInvalidToken  = errors.New("invalid or expired token")
	errSubject       = errors.New("invalid token subject")
)

// AuthRequired rejects requests without a valid bearer token.
func AuthRequired(c *fiber.Ctx) error {
	userID, err := authenticate(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(err.Error()))
	}
	setViewer(c, userID)
	return c.Next()
}

// OptionalAuth resolves the viewer when a bearer token is present and lets
// anonymous requests through. A present but invalid token is still rejected.
func OptionalAuth(c *fiber.Ctx) error {
	userID, err := authenticate(c)
	switch {
	case errors.Is(err, errMissingHeader):
		return c.Next()
	case err != nil:
		return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(err.Error()))
	}
	setViewer(c, userID)
	return c.Next()
}

// ViewerID returns the authenticated user, or nil for anonymous requests.
func ViewerID(c *fiber.Ctx) *uint {
	if uid, ok := c.Locals("userID").(uint); ok {
		return &uid
	}
	return nil
}

// IssueToken signs an HS256 token whose subject is userID.
func IssueToken(secret string, userID uint, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func setViewer(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, userID))
}

func authenticate(c *fiber.Ctx) (uint, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return 0, errMissingHeader
	}

	// Extract token from "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return 0, errHeaderFormat
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return []byte(secret()), nil
	})
	if err != nil || !token.Valid {
		return 0, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errInvalidToken
	}

	// subject claim per RFC 7519
	subStr, ok := claims["sub"].(string)
	if !ok {
		return 0, errSubject
	}
	userID, err := strconv.ParseUint(subStr, 10, 32)
	if err != nil || userID == 0 {
		return 0, errSubject
	}
	return uint(userID), nil
}

func secret() string {
	if cfg == nil {
		return ""
	}
	return cfg.JWTSecret
}
