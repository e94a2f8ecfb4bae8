package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/kandev/raworc/internal/common/errors"
	"github.com/kandev/raworc/internal/rbac"
)

// roleRow mirrors rbac.Role but stores Rules as a raw JSON column, since
// rbac.Rule carries no db tags (the in-memory engine never touches SQL).
type roleRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Rules       []byte    `db:"rules"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r roleRow) toRole() (rbac.Role, error) {
	var rules []rbac.Rule
	if len(r.Rules) > 0 {
		if err := json.Unmarshal(r.Rules, &rules); err != nil {
			return rbac.Role{}, err
		}
	}
	return rbac.Role{ID: r.ID, Name: r.Name, Rules: rules, Description: r.Description, CreatedAt: r.CreatedAt}, nil
}

// CreateRole inserts a new role, assigning an id and timestamp if unset.
func (s *Store) CreateRole(ctx context.Context, role *rbac.Role) error {
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	role.CreatedAt = time.Now().UTC()

	rules, err := json.Marshal(role.Rules)
	if err != nil {
		return apperrors.InternalError("marshal role rules", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO roles (id, name, rules, description, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		role.ID, role.Name, rules, role.Description, role.CreatedAt)
	return wrapWrite(err)
}

// GetRole looks up a role by id.
func (s *Store) GetRole(ctx context.Context, id string) (*rbac.Role, error) {
	var row roleRow
	if err := s.db.GetContext(ctx, &row, `SELECT id, name, rules, description, created_at FROM roles WHERE id = $1`, id); err != nil {
		return nil, wrapRead(err, "role", id)
	}
	role, err := row.toRole()
	if err != nil {
		return nil, apperrors.InternalError("unmarshal role rules", err)
	}
	return &role, nil
}

// GetRoleByName looks up a role by name, satisfying spec.md §6's
// "{id|name}" lookup contract.
func (s *Store) GetRoleByName(ctx context.Context, name string) (*rbac.Role, error) {
	var row roleRow
	if err := s.db.GetContext(ctx, &row, `SELECT id, name, rules, description, created_at FROM roles WHERE name = $1`, name); err != nil {
		return nil, wrapRead(err, "role", name)
	}
	role, err := row.toRole()
	if err != nil {
		return nil, apperrors.InternalError("unmarshal role rules", err)
	}
	return &role, nil
}

// ListRoles returns every role.
func (s *Store) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	var rows []roleRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, name, rules, description, created_at FROM roles ORDER BY created_at`); err != nil {
		return nil, wrapWrite(err)
	}
	roles := make([]rbac.Role, 0, len(rows))
	for _, row := range rows {
		role, err := row.toRole()
		if err != nil {
			return nil, apperrors.InternalError("unmarshal role rules", err)
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// DeleteRole hard-deletes a role, per spec.md §3's lifecycle rule.
func (s *Store) DeleteRole(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return wrapWrite(err)
	}
	return checkAffected(res, "role", id)
}

const roleBindingColumns = `id, role_name, principal_name, principal_type, workspace, created_at`

// CreateRoleBinding inserts a new role binding.
func (s *Store) CreateRoleBinding(ctx context.Context, rb *rbac.RoleBinding) error {
	if rb.ID == "" {
		rb.ID = uuid.NewString()
	}
	rb.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO role_bindings (`+roleBindingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rb.ID, rb.RoleName, rb.PrincipalName, rb.PrincipalType, rb.Workspace, rb.CreatedAt)
	return wrapWrite(err)
}

// GetRoleBinding looks up a role binding by id.
func (s *Store) GetRoleBinding(ctx context.Context, id string) (*rbac.RoleBinding, error) {
	var rb rbac.RoleBinding
	err := s.db.GetContext(ctx, &rb, `SELECT `+roleBindingColumns+` FROM role_bindings WHERE id = $1`, id)
	if err != nil {
		return nil, wrapRead(err, "role binding", id)
	}
	return &rb, nil
}

// ListRoleBindings returns every role binding.
func (s *Store) ListRoleBindings(ctx context.Context) ([]rbac.RoleBinding, error) {
	var bindings []rbac.RoleBinding
	err := s.db.SelectContext(ctx, &bindings, `SELECT `+roleBindingColumns+` FROM role_bindings ORDER BY created_at`)
	if err != nil {
		return nil, wrapWrite(err)
	}
	return bindings, nil
}

// ListRoleBindingsForPrincipal returns the bindings the authorization engine
// evaluates for one principal, narrowing step 1 of spec.md §4.6 in SQL
// rather than loading every binding on every request.
func (s *Store) ListRoleBindingsForPrincipal(ctx context.Context, principalType rbac.PrincipalType, principalName string) ([]rbac.RoleBinding, error) {
	var bindings []rbac.RoleBinding
	err := s.db.SelectContext(ctx, &bindings,
		`SELECT `+roleBindingColumns+` FROM role_bindings WHERE principal_type = $1 AND principal_name = $2`,
		principalType, principalName)
	if err != nil {
		return nil, wrapWrite(err)
	}
	return bindings, nil
}

// DeleteRoleBinding hard-deletes a role binding.
func (s *Store) DeleteRoleBinding(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM role_bindings WHERE id = $1`, id)
	if err != nil {
		return wrapWrite(err)
	}
	return checkAffected(res, "role binding", id)
}
