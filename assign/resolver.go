// Package assign maps task roles to concrete assignable identities.
package assign

import "strings"

// Resolver turns a role name into an assignable identity. Resolution
// never fails: when no concrete mapping exists the resolver returns a
// stable placeholder that downstream systems can re-resolve later.
type Resolver interface {
	Resolve(role string) string
}

// RoleMapResolver resolves roles through a static role→identity map,
// falling back to Placeholder for unmapped roles.
type RoleMapResolver struct {
	mapping map[string]string
}

// NewRoleMapResolver creates a resolver over a role→identity map.
// A nil map is valid; every role then resolves to its placeholder.
func NewRoleMapResolver(mapping map[string]string) *RoleMapResolver {
	return &RoleMapResolver{mapping: mapping}
}

// Resolve returns the mapped identity for role, or its placeholder.
func (r *RoleMapResolver) Resolve(role string) string {
	if id, ok := r.mapping[role]; ok && id != "" {
		return id
	}
	return Placeholder(role)
}

// Placeholder derives the deterministic fallback identity for a role:
// lower-cased with spaces replaced by hyphens, e.g. "Senior Associate"
// becomes "senior-associate".
func Placeholder(role string) string {
	return strings.ReplaceAll(strings.ToLower(role), " ", "-")
}
