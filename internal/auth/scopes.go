// Package auth maps bearer-token scopes onto the caller context the domain
// services consume, and issues tokens for the configured demo users.
package auth

import (
	"context"
	"slices"

	"ezclaim/pkg/requestcontext"
)

// Scopes granted by access tokens.
const (
	ScopeAudit       = "AUDIT"
	ScopeClaimRead   = "CLAIM_READ"
	ScopeClaimWrite  = "CLAIM_WRITE"
	ScopeTagRead     = "TAG_READ"
	ScopeTagWrite    = "TAG_WRITE"
	ScopePhotoRead   = "PHOTO_READ"
	ScopePhotoWrite  = "PHOTO_WRITE"
	ScopePhotoDelete = "PHOTO_DELETE"
)

// AllScopes is every scope, in a stable order.
var AllScopes = []string{
	ScopeAudit,
	ScopeClaimRead,
	ScopeClaimWrite,
	ScopeTagRead,
	ScopeTagWrite,
	ScopePhotoRead,
	ScopePhotoWrite,
	ScopePhotoDelete,
}

// ReadScopes grants read access plus the audit trail.
var ReadScopes = []string{
	ScopeAudit,
	ScopeClaimRead,
	ScopeTagRead,
	ScopePhotoRead,
}

// Caller is what a domain operation knows about who invoked it. It is built
// per request and passed explicitly; services never read ambient auth state.
type Caller struct {
	Subject  string
	Scopes   []string
	Password *string
}

// CallerFromContext builds a Caller from the authenticated principal and an
// optional claim password supplied with the request.
func CallerFromContext(ctx context.Context, password *string) Caller {
	return Caller{
		Subject:  requestcontext.Subject(ctx),
		Scopes:   requestcontext.Scopes(ctx),
		Password: password,
	}
}

// HasScope reports whether the caller holds scope.
func (c Caller) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// HasAnyScope reports whether the caller holds at least one of scopes.
func (c Caller) HasAnyScope(scopes ...string) bool {
	return slices.ContainsFunc(scopes, c.HasScope)
}

// Anonymous reports whether the request carried no valid token.
func (c Caller) Anonymous() bool {
	return c.Subject == ""
}
