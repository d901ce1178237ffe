package store

// schemaDDL creates the four tables and three indices this system is built
// on. It is idempotent: every statement uses IF NOT EXISTS, so InitSchema
// can run on every process startup without a migration runner.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS text_assets (
	id UUID PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	content TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id UUID PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	role TEXT NOT NULL,
	content TEXT NULL,
	tool_calls JSONB NOT NULL DEFAULT '[]',
	tool_call_id TEXT NULL,
	input_tokens INT NULL,
	output_tokens INT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
	id UUID PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	message_ids UUID[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS agents (
	id UUID PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	name TEXT NOT NULL,
	system_prompt_id UUID NOT NULL REFERENCES text_assets(id),
	parent_id UUID NULL REFERENCES agents(id) ON DELETE SET NULL,
	conversation_id UUID NOT NULL REFERENCES conversations(id),
	model TEXT NOT NULL,
	model_config JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_agents_conversation_id ON agents(conversation_id);
CREATE INDEX IF NOT EXISTS idx_agents_name_lower ON agents(lower(name));
CREATE INDEX IF NOT EXISTS idx_agents_created_at ON agents(created_at DESC);
`

// lineageQuery climbs parent_id from id up to the root, via one recursive
// self-join. The result arrives root-last (anchor row is $1 itself, each
// recursive step walks toward the root); callers reverse it to return
// root-first.
const lineageQuery = `
WITH RECURSIVE lineage AS (
	SELECT * FROM agents WHERE id = $1
	UNION ALL
	SELECT a.* FROM agents a INNER JOIN lineage l ON a.id = l.parent_id
)
SELECT id, created_at, name, system_prompt_id, parent_id, conversation_id, model, model_config
FROM lineage;
`
