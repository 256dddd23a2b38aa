package internal

import (
	"context"
)

type contextKey string

const TokenContextKey contextKey = "api-token"

// Caller identifies whoever presented a bearer token.
type Caller interface {
	GetToken() string
}

// GetTokenFromContext extracts the authenticated bearer token from request context
func GetTokenFromContext(ctx context.Context) (string, bool) {
	callerData := ctx.Value(TokenContextKey)
	if callerData == nil {
		return "", false
	}

	caller, ok := callerData.(Caller)
	if !ok {
		return "", false
	}

	return caller.GetToken(), true
}
