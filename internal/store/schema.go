package store

// schema is applied idempotently on every startup; Postgres tolerates
// CREATE TABLE/INDEX IF NOT EXISTS running against an already-initialized
// database, so this runs unconditionally ahead of serving traffic.
const schema = `
CREATE TABLE IF NOT EXISTS service_accounts (
	id TEXT PRIMARY KEY,
	"user" TEXT NOT NULL UNIQUE,
	pass_hash TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	last_login_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS roles (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	rules JSONB NOT NULL DEFAULT '[]',
	description TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS role_bindings (
	id TEXT PRIMARY KEY,
	role_name TEXT NOT NULL,
	principal_name TEXT NOT NULL,
	principal_type TEXT NOT NULL,
	workspace TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_role_bindings_principal ON role_bindings(principal_type, principal_name);

CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	workspace TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	instructions TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	tools JSONB NOT NULL DEFAULT '[]',
	routes JSONB NOT NULL DEFAULT '[]',
	guardrails JSONB NOT NULL DEFAULT '[]',
	knowledge_bases JSONB NOT NULL DEFAULT '[]',
	active BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	deleted_at TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_agents_workspace_name ON agents(workspace, name) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	workspace TEXT NOT NULL,
	starting_prompt TEXT NOT NULL DEFAULT '',
	state TEXT NOT NULL,
	waiting_timeout_seconds INTEGER,
	container_id TEXT,
	persistent_volume_id TEXT,
	created_by TEXT NOT NULL,
	parent_session_id TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	started_at TIMESTAMPTZ,
	last_activity_at TIMESTAMPTZ,
	terminated_at TIMESTAMPTZ,
	termination_reason TEXT,
	metadata JSONB NOT NULL DEFAULT '{}',
	deleted_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_sessions_workspace ON sessions(workspace) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_sessions_created_by ON sessions(created_by) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(state) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_sessions_idle_sweep ON sessions(state, last_activity_at) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS session_agents (
	session_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	assigned_at TIMESTAMPTZ NOT NULL,
	configuration JSONB NOT NULL DEFAULT '{}',
	PRIMARY KEY (session_id, agent_id)
);

CREATE TABLE IF NOT EXISTS session_messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	agent_id TEXT,
	metadata JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL,
	CHECK (role <> 'AGENT' OR agent_id IS NOT NULL)
);
CREATE INDEX IF NOT EXISTS idx_session_messages_session ON session_messages(session_id, created_at);

CREATE TABLE IF NOT EXISTS session_tasks (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	session_id TEXT NOT NULL,
	payload JSONB NOT NULL DEFAULT '{}',
	status TEXT NOT NULL DEFAULT 'pending',
	error TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_session_tasks_claim ON session_tasks(status, created_at);
CREATE INDEX IF NOT EXISTS idx_session_tasks_session ON session_tasks(session_id, status);

CREATE TABLE IF NOT EXISTS command_results (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	command TEXT NOT NULL,
	exit_code INTEGER NOT NULL,
	stdout TEXT NOT NULL DEFAULT '',
	stderr TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_command_results_task ON command_results(task_id);
`
