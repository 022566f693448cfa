package shared

import "context"

// Role distinguishes the two principal kinds the platform knows about.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// Principal is the authenticated caller. Identity storage and verification
// live in the external auth service; by the time a Principal exists the
// bearer token has already been validated. Authorization decisions dispatch
// on Role rather than comparing raw claim strings.
type Principal struct {
	UserID   string
	Role     Role
	ClientID string // set only for RoleClient
	FullName string
}

// IsAdmin reports whether the principal carries the admin capability.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// IsClient reports whether the principal is a client, returning its client id.
func (p Principal) IsClient() (string, bool) {
	if p.Role != RoleClient {
		return "", false
	}
	return p.ClientID, true
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
