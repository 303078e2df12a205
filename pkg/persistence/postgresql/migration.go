package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				group_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				version INTEGER NOT NULL DEFAULT 0,
				owner VARCHAR(255),
				definition JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				published_at TIMESTAMP WITH TIME ZONE,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_group_id ON workflows(group_id);
			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_owner ON workflows(owner);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);

			CREATE TABLE executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				trigger_type VARCHAR(50) NOT NULL,
				parent_id VARCHAR(255),
				wait_until TIMESTAMP WITH TIME ZONE,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_executions_workflow_id ON executions(workflow_id);
			CREATE INDEX idx_executions_status ON executions(status);
			CREATE INDEX idx_executions_wait_until ON executions(wait_until);
			CREATE INDEX idx_executions_created_at ON executions(created_at);

			CREATE TABLE tasks (
				id VARCHAR(255) PRIMARY KEY,
				execution_id VARCHAR(255) NOT NULL,
				workflow_id VARCHAR(255) NOT NULL,
				node_id VARCHAR(255) NOT NULL,
				type VARCHAR(50) NOT NULL,
				status VARCHAR(50) NOT NULL,
				claimed_by VARCHAR(255),
				due_date TIMESTAMP WITH TIME ZONE,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_tasks_execution_id ON tasks(execution_id);
			CREATE INDEX idx_tasks_status ON tasks(status);
			CREATE INDEX idx_tasks_due_date ON tasks(due_date);

			CREATE TABLE decision_tables (
				id VARCHAR(255) PRIMARY KEY,
				slug VARCHAR(255),
				name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				version INTEGER NOT NULL DEFAULT 0,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				published_at TIMESTAMP WITH TIME ZONE
			);

			CREATE UNIQUE INDEX idx_decision_tables_slug ON decision_tables(slug) WHERE slug IS NOT NULL AND slug != '';
			CREATE INDEX idx_decision_tables_status ON decision_tables(status);
		`,
	}
}
