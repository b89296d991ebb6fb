package postgresql

import "github.com/dukex/refiner/pkg/persistence/sqlbase"

func migrations() []sqlbase.Migration {
	return []sqlbase.Migration{
		{Version: 1, Name: "workflows and lineage", SQL: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				version VARCHAR(64) NOT NULL,
				parent_id VARCHAR(255),
				metadata JSONB,
				phases JSONB,
				graph JSONB,
				evaluation JSONB,
				notes JSONB,
				overall_score DOUBLE PRECISION,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_parent_id ON workflows(parent_id);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);

			CREATE TABLE lineage_records (
				seq BIGSERIAL PRIMARY KEY,
				id VARCHAR(255) NOT NULL UNIQUE,
				root_id VARCHAR(255) NOT NULL,
				cycle INTEGER NOT NULL,
				workflow_id VARCHAR(255) NOT NULL,
				parent_workflow_id VARCHAR(255),
				decision VARCHAR(32) NOT NULL CHECK (decision IN ('accepted', 'rejected', 'halted')),
				signal VARCHAR(32),
				score_delta DOUBLE PRECISION NOT NULL DEFAULT 0,
				semantic_delta DOUBLE PRECISION NOT NULL DEFAULT 0,
				evaluation JSONB,
				snapshot JSONB,
				reason TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_lineage_records_root_id ON lineage_records(root_id);
		`},
		{Version: 2, Name: "recursion snapshots", SQL: `
			CREATE TABLE recursion_snapshots (
				seq BIGSERIAL PRIMARY KEY,
				root_id VARCHAR(255) NOT NULL,
				parent_id VARCHAR(255),
				depth INTEGER NOT NULL,
				children_generated INTEGER NOT NULL,
				cost_spent DOUBLE PRECISION NOT NULL,
				remaining_budget DOUBLE PRECISION NOT NULL,
				termination_condition TEXT,
				outcome VARCHAR(32) NOT NULL CHECK (outcome IN ('authorized', 'denied', 'failed')),
				reason TEXT,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_recursion_snapshots_root_id ON recursion_snapshots(root_id);
		`},
		{Version: 3, Name: "workflow roots", SQL: `
			ALTER TABLE workflows ADD COLUMN root_id VARCHAR(255);

			CREATE INDEX idx_workflows_root_id ON workflows(root_id);
		`},
	}
}
