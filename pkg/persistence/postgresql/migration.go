package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflow definitions. Nodes and edges stay JSONB documents:
			-- the engine always loads a definition whole.
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				variables JSONB,
				metadata JSONB,
				continue_on_failure BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_created_at ON workflows(created_at);

			-- Execution state. The plan is rewritten on every node
			-- transition, so it lives in one JSONB column.
			CREATE TABLE executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				tenant_id VARCHAR(255),
				requester_id VARCHAR(255),
				status VARCHAR(50) NOT NULL,
				trigger_data JSONB,
				variables JSONB,
				plan JSONB NOT NULL DEFAULT '[]',
				metrics JSONB NOT NULL DEFAULT '{}',
				error_details JSONB,
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_executions_workflow_id ON executions(workflow_id);
			CREATE INDEX idx_executions_status ON executions(status);
			CREATE INDEX idx_executions_tenant_id ON executions(tenant_id);
			CREATE INDEX idx_executions_created_at ON executions(created_at);

			-- Dispatch queue. Scalar columns carry everything the dequeue
			-- scan orders and filters by.
			CREATE TABLE queue_entries (
				id VARCHAR(255) PRIMARY KEY,
				execution_id VARCHAR(255) NOT NULL,
				queue_name VARCHAR(255) NOT NULL,
				priority INTEGER NOT NULL DEFAULT 2,
				attempts INTEGER NOT NULL DEFAULT 0,
				max_attempts INTEGER NOT NULL DEFAULT 3,
				scheduled_for TIMESTAMP WITH TIME ZONE NOT NULL,
				payload JSONB,
				status VARCHAR(50) NOT NULL,
				enqueued_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_queue_entries_dequeue
				ON queue_entries(queue_name, status, scheduled_for, priority DESC, enqueued_at);
			CREATE INDEX idx_queue_entries_execution_id ON queue_entries(execution_id);

			-- Append-only execution audit log. seq keeps entries ordered
			-- even when timestamps collide.
			CREATE TABLE execution_logs (
				seq BIGSERIAL PRIMARY KEY,
				id VARCHAR(255) NOT NULL,
				execution_id VARCHAR(255) NOT NULL,
				event_type VARCHAR(255) NOT NULL,
				node_id VARCHAR(255),
				message TEXT NOT NULL DEFAULT '',
				metadata JSONB,
				logged_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_execution_logs_execution_id ON execution_logs(execution_id, seq);

			-- Cron schedules polled by the activator.
			CREATE TABLE schedules (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				cron_expression VARCHAR(255) NOT NULL,
				next_due_at TIMESTAMP WITH TIME ZONE NOT NULL,
				trigger_data JSONB,
				active BOOLEAN NOT NULL DEFAULT true,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_schedules_due ON schedules(active, next_due_at);
		`,
	}
}
