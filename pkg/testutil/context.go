package testutil

import (
	"net/http"

	"ezclaim/pkg/requestcontext"
)

// WithPrincipal marks the request as authenticated, as the auth middleware
// would after validating a token with the given scopes.
func WithPrincipal(req *http.Request, subject string, scopes ...string) *http.Request {
	return req.WithContext(requestcontext.WithPrincipal(req.Context(), subject, scopes))
}

// WithBearer sets the Authorization header for requests that go through the
// full middleware chain.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
