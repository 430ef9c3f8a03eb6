package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create workflow table
			CREATE TABLE workflow (
				id UUID PRIMARY KEY,
				user_id TEXT NOT NULL,
				workspace_id TEXT,
				folder_id TEXT,
				name TEXT NOT NULL,
				description TEXT,
				state JSONB NOT NULL,
				color TEXT NOT NULL DEFAULT '#3972F6',
				last_synced TIMESTAMP WITH TIME ZONE NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				is_deployed BOOLEAN NOT NULL DEFAULT false,
				deployed_state JSONB,
				deployed_at TIMESTAMP WITH TIME ZONE,
				collaborators JSONB NOT NULL DEFAULT '[]',
				run_count INTEGER NOT NULL DEFAULT 0 CHECK (run_count >= 0),
				last_run_at TIMESTAMP WITH TIME ZONE,
				variables JSONB NOT NULL DEFAULT '{}',
				is_published BOOLEAN NOT NULL DEFAULT false,
				marketplace_data JSONB
			);

			CREATE INDEX idx_workflow_user_id ON workflow(user_id);
			CREATE INDEX idx_workflow_updated_at ON workflow(updated_at);
		`,
		2: `
			-- Runtime block rows, one per block of workflow.state
			CREATE TABLE workflow_blocks (
				workflow_id UUID NOT NULL REFERENCES workflow(id) ON DELETE CASCADE,
				id TEXT NOT NULL,
				type TEXT NOT NULL,
				name TEXT NOT NULL,
				position_x DOUBLE PRECISION NOT NULL DEFAULT 0,
				position_y DOUBLE PRECISION NOT NULL DEFAULT 0,
				enabled BOOLEAN NOT NULL DEFAULT true,
				horizontal_handles BOOLEAN NOT NULL DEFAULT true,
				is_wide BOOLEAN NOT NULL DEFAULT false,
				advanced_mode BOOLEAN NOT NULL DEFAULT false,
				height DOUBLE PRECISION NOT NULL DEFAULT 0,
				sub_blocks JSONB NOT NULL DEFAULT '{}',
				outputs JSONB NOT NULL DEFAULT '{}',
				data JSONB,
				parent_id TEXT,
				extent TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				PRIMARY KEY (workflow_id, id)
			);

			CREATE INDEX idx_workflow_blocks_type ON workflow_blocks(type);
			CREATE INDEX idx_workflow_blocks_parent_id ON workflow_blocks(workflow_id, parent_id);
		`,
		3: `
			-- Single-call writes for the PostgREST gateway. Each function runs in the
			-- caller's transaction, so the workflow row and its block rows commit together.
			CREATE OR REPLACE FUNCTION forgestate_replace_blocks(target UUID, block_rows JSONB)
			RETURNS VOID
			LANGUAGE plpgsql
			AS $$
			BEGIN
				DELETE FROM workflow_blocks WHERE workflow_id = target;

				INSERT INTO workflow_blocks
				SELECT
					target, b.id, b.type, b.name, COALESCE(b.position_x, 0), COALESCE(b.position_y, 0),
					COALESCE(b.enabled, true), COALESCE(b.horizontal_handles, true), COALESCE(b.is_wide, false),
					COALESCE(b.advanced_mode, false), COALESCE(b.height, 0), COALESCE(b.sub_blocks, '{}'),
					COALESCE(b.outputs, '{}'), b.data, b.parent_id, b.extent, b.created_at, b.updated_at
				FROM jsonb_populate_recordset(NULL::workflow_blocks, COALESCE(block_rows, '[]')) AS b;
			END;
			$$;

			CREATE OR REPLACE FUNCTION forgestate_insert_workflow(payload JSONB, block_rows JSONB DEFAULT '[]')
			RETURNS JSONB
			LANGUAGE plpgsql
			AS $$
			DECLARE
				rec workflow%ROWTYPE;
			BEGIN
				rec := jsonb_populate_record(NULL::workflow, payload);
				rec.color := COALESCE(rec.color, '#3972F6');
				rec.is_deployed := COALESCE(rec.is_deployed, false);
				rec.collaborators := COALESCE(rec.collaborators, '[]');
				rec.run_count := COALESCE(rec.run_count, 0);
				rec.variables := COALESCE(rec.variables, '{}');
				rec.is_published := COALESCE(rec.is_published, false);

				INSERT INTO workflow VALUES (rec.*);
				PERFORM forgestate_replace_blocks(rec.id, block_rows);

				RETURN to_jsonb(rec);
			END;
			$$;

			-- Returns NULL when no workflow has the target id. With block_rows NULL the
			-- block rows are left untouched.
			CREATE OR REPLACE FUNCTION forgestate_update_workflow(target UUID, changes JSONB, block_rows JSONB DEFAULT NULL)
			RETURNS JSONB
			LANGUAGE plpgsql
			AS $$
			DECLARE
				rec workflow%ROWTYPE;
			BEGIN
				SELECT * INTO rec FROM workflow WHERE id = target FOR UPDATE;
				IF NOT FOUND THEN
					RETURN NULL;
				END IF;

				rec := jsonb_populate_record(rec, changes - 'id' - 'user_id' - 'created_at');

				UPDATE workflow SET
					workspace_id = rec.workspace_id,
					folder_id = rec.folder_id,
					name = rec.name,
					description = rec.description,
					state = rec.state,
					color = rec.color,
					last_synced = rec.last_synced,
					updated_at = rec.updated_at,
					is_deployed = rec.is_deployed,
					deployed_state = rec.deployed_state,
					deployed_at = rec.deployed_at,
					collaborators = rec.collaborators,
					run_count = rec.run_count,
					last_run_at = rec.last_run_at,
					variables = rec.variables,
					is_published = rec.is_published,
					marketplace_data = rec.marketplace_data
				WHERE id = target;

				IF block_rows IS NOT NULL THEN
					PERFORM forgestate_replace_blocks(target, block_rows);
				END IF;

				RETURN to_jsonb(rec);
			END;
			$$;

			NOTIFY pgrst, 'reload schema';
		`,
	}
}
