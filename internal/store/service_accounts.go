package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kandev/raworc/internal/models"
)

const serviceAccountColumns = `id, "user", pass_hash, description, active, created_at, updated_at, last_login_at`

// CreateServiceAccount inserts a new service account, assigning an id and
// timestamps if unset.
func (s *Store) CreateServiceAccount(ctx context.Context, sa *models.ServiceAccount) error {
	if sa.ID == "" {
		sa.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sa.CreatedAt, sa.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_accounts (`+serviceAccountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sa.ID, sa.User, sa.PassHash, sa.Description, sa.Active, sa.CreatedAt, sa.UpdatedAt, sa.LastLoginAt)
	return wrapWrite(err)
}

// GetServiceAccount looks up a service account by id.
func (s *Store) GetServiceAccount(ctx context.Context, id string) (*models.ServiceAccount, error) {
	var sa models.ServiceAccount
	err := s.db.GetContext(ctx, &sa, `SELECT `+serviceAccountColumns+` FROM service_accounts WHERE id = $1`, id)
	if err != nil {
		return nil, wrapRead(err, "service account", id)
	}
	return &sa, nil
}

// GetServiceAccountByUser looks up a service account by its login name,
// satisfying spec.md §6's "{id|user}" lookup contract.
func (s *Store) GetServiceAccountByUser(ctx context.Context, user string) (*models.ServiceAccount, error) {
	var sa models.ServiceAccount
	err := s.db.GetContext(ctx, &sa, `SELECT `+serviceAccountColumns+` FROM service_accounts WHERE "user" = $1`, user)
	if err != nil {
		return nil, wrapRead(err, "service account", user)
	}
	return &sa, nil
}

// ListServiceAccounts returns every service account.
func (s *Store) ListServiceAccounts(ctx context.Context) ([]models.ServiceAccount, error) {
	var accounts []models.ServiceAccount
	err := s.db.SelectContext(ctx, &accounts, `SELECT `+serviceAccountColumns+` FROM service_accounts ORDER BY created_at`)
	if err != nil {
		return nil, wrapWrite(err)
	}
	return accounts, nil
}

// CountServiceAccounts reports how many service accounts exist, used to
// decide whether the seed step should run.
func (s *Store) CountServiceAccounts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM service_accounts`); err != nil {
		return 0, wrapWrite(err)
	}
	return n, nil
}

// UpdateServiceAccount persists description/active/pass_hash changes.
func (s *Store) UpdateServiceAccount(ctx context.Context, sa *models.ServiceAccount) error {
	sa.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE service_accounts
		SET pass_hash = $1, description = $2, active = $3, updated_at = $4, last_login_at = $5
		WHERE id = $6`,
		sa.PassHash, sa.Description, sa.Active, sa.UpdatedAt, sa.LastLoginAt, sa.ID)
	if err != nil {
		return wrapWrite(err)
	}
	return checkAffected(res, "service account", sa.ID)
}

// TouchLastLogin records a successful /auth/internal login.
func (s *Store) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE service_accounts SET last_login_at = $1, updated_at = $1 WHERE id = $2`, at, id)
	return wrapWrite(err)
}

// DeleteServiceAccount hard-deletes a service account, per spec.md §3's
// "service accounts: hard delete" lifecycle rule.
func (s *Store) DeleteServiceAccount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM service_accounts WHERE id = $1`, id)
	if err != nil {
		return wrapWrite(err)
	}
	return checkAffected(res, "service account", id)
}
