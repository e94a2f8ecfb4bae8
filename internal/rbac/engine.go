package rbac

// Engine evaluates authorization decisions. It holds no state: callers load
// the relevant roles and bindings per request and pass them in, so the
// decision is a pure function of its arguments.
type Engine struct{}

// NewEngine returns a ready-to-use Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// HasPermission implements the five-step algorithm: filter bindings for the
// principal, narrow by workspace scope, resolve roles, and check whether any
// resolved role's rules grant the context.
func (e *Engine) HasPermission(principal Principal, roles []Role, bindings []RoleBinding, ctx PermissionContext) bool {
	applicable := applicableBindings(principal, bindings, ctx.Workspace)
	boundRoles := resolveRoles(applicable, roles)

	for _, role := range boundRoles {
		if roleGrants(role, ctx) {
			return true
		}
	}
	return false
}

// applicableBindings filters to bindings matching the principal's identity,
// then — when the request is workspace-scoped — further restricts to
// bindings whose workspace is global (nil) or equal to the request workspace.
func applicableBindings(principal Principal, bindings []RoleBinding, workspace string) []RoleBinding {
	var out []RoleBinding
	for _, b := range bindings {
		if b.PrincipalType != principal.Type() || b.PrincipalName != principal.Name() {
			continue
		}
		if workspace != "" && b.Workspace != nil && *b.Workspace != workspace {
			continue
		}
		out = append(out, b)
	}
	return out
}

// resolveRoles maps bindings to their named roles, deduping by role name.
func resolveRoles(bindings []RoleBinding, roles []Role) []Role {
	byName := make(map[string]Role, len(roles))
	for _, r := range roles {
		byName[r.Name] = r
	}

	seen := make(map[string]bool, len(bindings))
	var out []Role
	for _, b := range bindings {
		role, ok := byName[b.RoleName]
		if !ok || seen[role.Name] {
			continue
		}
		seen[role.Name] = true
		out = append(out, role)
	}
	return out
}

func roleGrants(role Role, ctx PermissionContext) bool {
	for _, rule := range role.Rules {
		if ruleGrants(rule, ctx) {
			return true
		}
	}
	return false
}

func ruleGrants(rule Rule, ctx PermissionContext) bool {
	if !matches(rule.APIGroups, ctx.APIGroup) {
		return false
	}
	if !matches(rule.Resources, ctx.Resource) {
		return false
	}
	if !matches(rule.Verbs, ctx.Verb) {
		return false
	}
	return resourceNameMatches(rule.ResourceNames, ctx.ResourceName)
}

func matches(allowed []string, want string) bool {
	for _, v := range allowed {
		if v == "*" || v == want {
			return true
		}
	}
	return false
}

// resourceNameMatches implements the rule that an unrestricted ResourceNames
// list (nil/empty) always matches, but a restricted list with no requested
// name in context never matches.
func resourceNameMatches(allowed []string, want string) bool {
	if len(allowed) == 0 {
		return true
	}
	if want == "" {
		return false
	}
	return matches(allowed, want)
}
