// Package models holds the persisted domain types shared across storage,
// the API surface, and the lifecycle worker.
package models

import (
	"time"

	"github.com/kandev/raworc/internal/session"
)

// ServiceAccount is a principal with a stored, bcrypt-hashed credential.
type ServiceAccount struct {
	ID          string     `db:"id" json:"id"`
	User        string     `db:"user" json:"user"`
	PassHash    string     `db:"pass_hash" json:"-"`
	Description string     `db:"description" json:"description,omitempty"`
	Active      bool       `db:"active" json:"active"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
	LastLoginAt *time.Time `db:"last_login_at" json:"lastLoginAt,omitempty"`
}

// Agent is an external collaborator registered via the API: a conversational
// agent definition scoped to a workspace.
type Agent struct {
	ID             string         `db:"id" json:"id"`
	Name           string         `db:"name" json:"name"`
	Workspace      string         `db:"workspace" json:"workspace"`
	Description    string         `db:"description" json:"description,omitempty"`
	Instructions   string         `db:"instructions" json:"instructions,omitempty"`
	Model          string         `db:"model" json:"model,omitempty"`
	Tools          JSONStringList `db:"tools" json:"tools,omitempty"`
	Routes         JSONStringList `db:"routes" json:"routes,omitempty"`
	Guardrails     JSONStringList `db:"guardrails" json:"guardrails,omitempty"`
	KnowledgeBases JSONStringList `db:"knowledge_bases" json:"knowledgeBases,omitempty"`
	Active         bool           `db:"active" json:"active"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`
	DeletedAt      *time.Time     `db:"deleted_at" json:"-"`
}

// Session is a durable record of one sandboxed agent conversation.
type Session struct {
	ID                   string          `db:"id" json:"id"`
	Name                 string          `db:"name" json:"name"`
	Workspace            string          `db:"workspace" json:"workspace"`
	StartingPrompt       string          `db:"starting_prompt" json:"startingPrompt"`
	State                session.State   `db:"state" json:"state"`
	WaitingTimeoutSecs   *int            `db:"waiting_timeout_seconds" json:"waitingTimeoutSeconds,omitempty"`
	ContainerID          *string         `db:"container_id" json:"containerId,omitempty"`
	PersistentVolumeID   *string         `db:"persistent_volume_id" json:"persistentVolumeId,omitempty"`
	CreatedBy            string          `db:"created_by" json:"createdBy"`
	ParentSessionID       *string         `db:"parent_session_id" json:"parentSessionId,omitempty"`
	CreatedAt            time.Time       `db:"created_at" json:"createdAt"`
	StartedAt            *time.Time      `db:"started_at" json:"startedAt,omitempty"`
	LastActivityAt       *time.Time      `db:"last_activity_at" json:"lastActivityAt,omitempty"`
	TerminatedAt         *time.Time      `db:"terminated_at" json:"terminatedAt,omitempty"`
	TerminationReason    *string         `db:"termination_reason" json:"terminationReason,omitempty"`
	Metadata             JSONMap         `db:"metadata" json:"metadata,omitempty"`
	DeletedAt            *time.Time      `db:"deleted_at" json:"-"`
}

// RequiresContainer reports whether s's current state requires a running container.
func (s *Session) RequiresContainer() bool {
	return session.RequiresContainer(s.State)
}

// SessionAgent is the many-to-many assignment of an agent to a session.
type SessionAgent struct {
	SessionID     string    `db:"session_id" json:"sessionId"`
	AgentID       string    `db:"agent_id" json:"agentId"`
	AssignedAt    time.Time `db:"assigned_at" json:"assignedAt"`
	Configuration JSONMap   `db:"configuration" json:"configuration,omitempty"`
}

// MessageRole discriminates who authored a session message.
type MessageRole string

const (
	MessageRoleUser   MessageRole = "USER"
	MessageRoleAgent  MessageRole = "AGENT"
	MessageRoleSystem MessageRole = "SYSTEM"
)

// Message is one turn in a session's conversation.
type Message struct {
	ID        string      `db:"id" json:"id"`
	SessionID string      `db:"session_id" json:"sessionId"`
	Role      MessageRole `db:"role" json:"role"`
	Content   string      `db:"content" json:"content"`
	AgentID   *string     `db:"agent_id" json:"agentId,omitempty"`
	Metadata  JSONMap     `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
}

// TaskStatus is the lifecycle status of a queued task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task is a durable work item consumed by the lifecycle worker.
type Task struct {
	ID          string           `db:"id" json:"id"`
	Type        session.TaskType `db:"type" json:"type"`
	SessionID   string           `db:"session_id" json:"sessionId"`
	Payload     JSONMap          `db:"payload" json:"payload,omitempty"`
	Status      TaskStatus       `db:"status" json:"status"`
	Error       *string          `db:"error" json:"error,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updatedAt"`
	StartedAt   *time.Time       `db:"started_at" json:"startedAt,omitempty"`
	CompletedAt *time.Time       `db:"completed_at" json:"completedAt,omitempty"`
}

// CommandResult stores the output of an execute_command task.
type CommandResult struct {
	ID         string    `db:"id" json:"id"`
	TaskID     string    `db:"task_id" json:"taskId"`
	SessionID  string    `db:"session_id" json:"sessionId"`
	Command    string    `db:"command" json:"command"`
	ExitCode   int       `db:"exit_code" json:"exitCode"`
	Stdout     string    `db:"stdout" json:"stdout"`
	Stderr     string    `db:"stderr" json:"stderr"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
