package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kandev/raworc/internal/models"
)

const agentColumns = `id, name, workspace, description, instructions, model, tools, routes, guardrails, knowledge_bases, active, created_at, updated_at, deleted_at`

// CreateAgent inserts a new agent, assigning an id and timestamps if unset.
func (s *Store) CreateAgent(ctx context.Context, a *models.Agent) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (`+agentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		a.ID, a.Name, a.Workspace, a.Description, a.Instructions, a.Model,
		a.Tools, a.Routes, a.Guardrails, a.KnowledgeBases, a.Active, a.CreatedAt, a.UpdatedAt, a.DeletedAt)
	return wrapWrite(err)
}

// GetAgent looks up a non-deleted agent by id.
func (s *Store) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	var a models.Agent
	err := s.db.GetContext(ctx, &a, `SELECT `+agentColumns+` FROM agents WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return nil, wrapRead(err, "agent", id)
	}
	return &a, nil
}

// GetAgentByName looks up a non-deleted agent by workspace+name, satisfying
// spec.md §6's "{id|name}" lookup contract.
func (s *Store) GetAgentByName(ctx context.Context, workspace, name string) (*models.Agent, error) {
	var a models.Agent
	err := s.db.GetContext(ctx, &a,
		`SELECT `+agentColumns+` FROM agents WHERE workspace = $1 AND name = $2 AND deleted_at IS NULL`, workspace, name)
	if err != nil {
		return nil, wrapRead(err, "agent", name)
	}
	return &a, nil
}

// ListAgents returns non-deleted agents, optionally narrowed to one
// workspace (empty string means every workspace).
func (s *Store) ListAgents(ctx context.Context, workspace string) ([]models.Agent, error) {
	var agents []models.Agent
	var err error
	if workspace == "" {
		err = s.db.SelectContext(ctx, &agents, `SELECT `+agentColumns+` FROM agents WHERE deleted_at IS NULL ORDER BY created_at`)
	} else {
		err = s.db.SelectContext(ctx, &agents,
			`SELECT `+agentColumns+` FROM agents WHERE workspace = $1 AND deleted_at IS NULL ORDER BY created_at`, workspace)
	}
	if err != nil {
		return nil, wrapWrite(err)
	}
	return agents, nil
}

// UpdateAgent persists mutable agent fields.
func (s *Store) UpdateAgent(ctx context.Context, a *models.Agent) error {
	a.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE agents
		SET description = $1, instructions = $2, model = $3, tools = $4, routes = $5,
		    guardrails = $6, knowledge_bases = $7, active = $8, updated_at = $9
		WHERE id = $10 AND deleted_at IS NULL`,
		a.Description, a.Instructions, a.Model, a.Tools, a.Routes, a.Guardrails, a.KnowledgeBases, a.Active, a.UpdatedAt, a.ID)
	if err != nil {
		return wrapWrite(err)
	}
	return checkAffected(res, "agent", a.ID)
}

// DeleteAgent soft-deletes an agent, per spec.md §3's lifecycle rule.
func (s *Store) DeleteAgent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE agents SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return wrapWrite(err)
	}
	return checkAffected(res, "agent", id)
}
