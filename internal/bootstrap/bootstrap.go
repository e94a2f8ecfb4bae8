// Package bootstrap seeds the admin principal an empty install needs before
// any request can be authenticated, per spec §6's seed data.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kandev/raworc/internal/auth"
	"github.com/kandev/raworc/internal/common/logger"
	"github.com/kandev/raworc/internal/models"
	"github.com/kandev/raworc/internal/rbac"
	"github.com/kandev/raworc/internal/store"
)

// AdminUser and AdminPassword are the seeded service account's credentials.
// The operator is expected to rotate the password after first login.
const (
	AdminUser     = "admin"
	AdminPassword = "admin"
	AdminRoleName = "admin"
)

// Seed creates the admin service account, the admin role granting every
// verb on every resource, and a global role binding from one to the other,
// but only on an empty install: store.CountServiceAccounts > 0 means a
// prior run already seeded (or an operator has since changed) the
// principal set, and seeding again would silently re-grant a
// since-revoked admin.
func Seed(ctx context.Context, st *store.Store, log *logger.Logger) error {
	count, err := st.CountServiceAccounts(ctx)
	if err != nil {
		return fmt.Errorf("count service accounts: %w", err)
	}
	if count > 0 {
		log.Debug("service accounts already exist, skipping seed")
		return nil
	}

	log.Info("seeding admin service account")

	passHash, err := auth.HashPassword(AdminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	sa := &models.ServiceAccount{
		User:        AdminUser,
		PassHash:    passHash,
		Description: "Seeded cluster administrator",
		Active:      true,
	}
	if err := st.CreateServiceAccount(ctx, sa); err != nil {
		return fmt.Errorf("create admin service account: %w", err)
	}

	role := &rbac.Role{
		Name:        AdminRoleName,
		Description: "Full cluster admin access",
		Rules: []rbac.Rule{{
			APIGroups: []string{"*"},
			Resources: []string{"*"},
			Verbs:     []string{"*"},
		}},
	}
	if err := st.CreateRole(ctx, role); err != nil {
		return fmt.Errorf("create admin role: %w", err)
	}

	binding := &rbac.RoleBinding{
		RoleName:      AdminRoleName,
		PrincipalName: sa.User,
		PrincipalType: rbac.PrincipalServiceAccount,
	}
	if err := st.CreateRoleBinding(ctx, binding); err != nil {
		return fmt.Errorf("create admin role binding: %w", err)
	}

	log.Info("admin service account seeded", zap.String("user", AdminUser))
	return nil
}
