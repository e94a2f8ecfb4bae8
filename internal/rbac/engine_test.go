package rbac

import "testing"

func adminRole() Role {
	return Role{
		Name: "admin",
		Rules: []Rule{
			{APIGroups: []string{"*"}, Resources: []string{"*"}, Verbs: []string{"*"}},
		},
	}
}

func TestHasPermission_GlobalBinding(t *testing.T) {
	principal := NewServiceAccountPrincipal("admin")
	roles := []Role{adminRole()}
	bindings := []RoleBinding{
		{RoleName: "admin", PrincipalName: "admin", PrincipalType: PrincipalServiceAccount},
	}

	engine := NewEngine()
	ctx := PermissionContext{APIGroup: "api", Resource: "agents", Verb: "list"}
	if !engine.HasPermission(principal, roles, bindings, ctx) {
		t.Fatal("expected global admin binding to grant permission")
	}
}

func TestHasPermission_WorkspaceScoping(t *testing.T) {
	reader := Role{
		Name: "reader",
		Rules: []Rule{
			{APIGroups: []string{"api"}, Resources: []string{"agents"}, Verbs: []string{"list"}},
		},
	}
	teamA := "team-a"
	bindings := []RoleBinding{
		{RoleName: "reader", PrincipalName: "alice", PrincipalType: PrincipalSubject, Workspace: &teamA},
	}
	principal := NewSubject("alice")
	engine := NewEngine()

	cases := []struct {
		name      string
		workspace string
		want      bool
	}{
		{"matching workspace grants", "team-a", true},
		{"other workspace denies", "team-b", false},
		{"unscoped request treats binding as global", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := PermissionContext{APIGroup: "api", Resource: "agents", Verb: "list", Workspace: tc.workspace}
			got := engine.HasPermission(principal, []Role{reader}, bindings, ctx)
			if got != tc.want {
				t.Errorf("HasPermission() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHasPermission_ResourceNamesRestriction(t *testing.T) {
	role := Role{
		Name: "named",
		Rules: []Rule{
			{APIGroups: []string{"*"}, Resources: []string{"sessions"}, Verbs: []string{"get"}, ResourceNames: []string{"s1"}},
		},
	}
	bindings := []RoleBinding{
		{RoleName: "named", PrincipalName: "bob", PrincipalType: PrincipalSubject},
	}
	principal := NewSubject("bob")
	engine := NewEngine()

	cases := []struct {
		name         string
		resourceName string
		want         bool
	}{
		{"matching resource name grants", "s1", true},
		{"other resource name denies", "s2", false},
		{"missing resource name denies when rule restricts", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := PermissionContext{APIGroup: "api", Resource: "sessions", Verb: "get", ResourceName: tc.resourceName}
			got := engine.HasPermission(principal, []Role{role}, bindings, ctx)
			if got != tc.want {
				t.Errorf("HasPermission() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHasPermission_WrongPrincipalTypeDenied(t *testing.T) {
	bindings := []RoleBinding{
		{RoleName: "admin", PrincipalName: "admin", PrincipalType: PrincipalServiceAccount},
	}
	principal := NewSubject("admin") // same name, different type
	engine := NewEngine()
	ctx := PermissionContext{APIGroup: "*", Resource: "*", Verb: "*"}

	if engine.HasPermission(principal, []Role{adminRole()}, bindings, ctx) {
		t.Fatal("binding scoped to a ServiceAccount must not grant a Subject of the same name")
	}
}
