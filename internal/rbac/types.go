// Package rbac implements the pure, synchronous authorization engine:
// principals, rules, roles, role bindings, and permission evaluation.
package rbac

import "time"

// PrincipalType discriminates the two kinds of authenticated principal.
// Its stored/wire value for a Subject is the literal "User", not "Subject" —
// a deliberate carry-over from the system this control plane replaces.
type PrincipalType string

const (
	PrincipalSubject        PrincipalType = "User"
	PrincipalServiceAccount PrincipalType = "ServiceAccount"
)

// Principal is a tagged union over the two authenticated-entity kinds.
// Handlers that only need a name use Name(); RBAC resolution inspects Type().
type Principal struct {
	kind PrincipalType
	name string
}

// NewSubject builds a Principal for an external identity with no stored credential.
func NewSubject(name string) Principal {
	return Principal{kind: PrincipalSubject, name: name}
}

// NewServiceAccountPrincipal builds a Principal for an authenticated service account.
func NewServiceAccountPrincipal(user string) Principal {
	return Principal{kind: PrincipalServiceAccount, name: user}
}

// Type returns the principal's discriminant.
func (p Principal) Type() PrincipalType { return p.kind }

// Name returns the principal's identifying name (subject name, or service
// account user).
func (p Principal) Name() string { return p.name }

// Rule is a tuple of (api groups, resources, verbs, optional resource names)
// that grants the cross product. "*" in any field matches anything.
type Rule struct {
	APIGroups     []string `json:"apiGroups" db:"-"`
	Resources     []string `json:"resources" db:"-"`
	Verbs         []string `json:"verbs" db:"-"`
	ResourceNames []string `json:"resourceNames,omitempty" db:"-"`
}

// Role is a named, global bundle of permission rules.
type Role struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Rules       []Rule    `json:"rules" db:"-"`
	Description string    `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// RoleBinding associates a role with a principal, optionally scoped to a
// workspace. A nil Workspace binds the role globally.
type RoleBinding struct {
	ID            string        `json:"id" db:"id"`
	RoleName      string        `json:"roleName" db:"role_name"`
	PrincipalName string        `json:"principalName" db:"principal_name"`
	PrincipalType PrincipalType `json:"principalType" db:"principal_type"`
	Workspace     *string       `json:"workspace,omitempty" db:"workspace"`
	CreatedAt     time.Time     `json:"createdAt" db:"created_at"`
}

// PermissionContext is what a handler asks the engine to decide about.
type PermissionContext struct {
	APIGroup     string
	Resource     string
	Verb         string
	ResourceName string
	Workspace    string // empty means the request is not workspace-scoped
}
