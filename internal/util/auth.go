package util

import (
	"errors"
	"strings"
)

var (
	// ErrMissingAuthHeader is returned when the Authorization header is missing
	ErrMissingAuthHeader = errors.New("missing Authorization header")
	// ErrInvalidAuthHeader is returned when the Authorization header format is invalid
	ErrInvalidAuthHeader = errors.New("invalid Authorization header format")
)

// ExtractBearerToken extracts the JWT token from an Authorization header.
// It expects the format "Bearer <token>" and returns the token part.
func ExtractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthHeader
	}

	token := authHeader[len(bearerPrefix):]
	if token == "" {
		return "", ErrInvalidAuthHeader
	}

	return token, nil
}

// ResolveToken picks the credential of a WebSocket handshake. The header wins;
// query and path parameters exist for browsers that cannot set headers.
func ResolveToken(authHeader string, candidates ...string) (string, error) {
	if authHeader != "" {
		return ExtractBearerToken(authHeader)
	}
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c, nil
		}
	}
	return "", ErrMissingAuthHeader
}

// HasRole checks if a user has any of the specified roles.
//
// Example:
//
//	if util.HasRole(claims.Roles, "admin", "chat_admin") {
//	    // User has admin access
//	}
func HasRole(userRoles []string, requiredRoles ...string) bool {
	roleMap := make(map[string]bool, len(userRoles))
	for _, role := range userRoles {
		roleMap[role] = true
	}

	for _, required := range requiredRoles {
		if roleMap[required] {
			return true
		}
	}

	return false
}

// ContainsWeakPattern checks if a string contains any weak patterns.
// This is used for secret validation.
func ContainsWeakPattern(s string, weakPatterns []string) (bool, string) {
	lowerS := strings.ToLower(s)
	for _, pattern := range weakPatterns {
		if strings.Contains(lowerS, pattern) {
			return true, pattern
		}
	}
	return false, ""
}

// ContainsAny reports whether s contains any of the lowercase needles, ignoring case.
func ContainsAny(s string, needles []string) bool {
	found, _ := ContainsWeakPattern(s, needles)
	return found
}
