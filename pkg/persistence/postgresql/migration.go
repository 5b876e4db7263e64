package postgresql

// migrations returns the versioned schema for the scheduling core. The
// timeplans table deliberately carries no primary key on id: the source
// system allowed duplicate timeplan rows per reference, and the resolver
// must detect that as an ambiguity rather than mask it.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflow_definitions (
				id BIGINT PRIMARY KEY,
				name TEXT NOT NULL,
				master_package_id BIGINT NOT NULL,
				fallback_package_id BIGINT,
				exclusive BOOLEAN NOT NULL DEFAULT FALSE,
				takeover_from TIMESTAMP WITH TIME ZONE,
				takeover_to TIMESTAMP WITH TIME ZONE,
				takeover_days INTEGER NOT NULL DEFAULT 0,
				timeplan_id BIGINT NOT NULL,
				datasource_id BIGINT NOT NULL DEFAULT 0,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS timeplans (
				id BIGINT NOT NULL,
				kind TEXT NOT NULL,
				start_at TIMESTAMP WITH TIME ZONE NOT NULL,
				run_immediately BOOLEAN NOT NULL DEFAULT FALSE,
				end_at TIMESTAMP WITH TIME ZONE,
				weekdays JSONB NOT NULL DEFAULT '[]',
				months JSONB NOT NULL DEFAULT '[]',
				last_day_of_month BOOLEAN NOT NULL DEFAULT FALSE,
				week_of_month INTEGER NOT NULL DEFAULT 0,
				day_repetitions INTEGER NOT NULL DEFAULT 0,
				week_repetitions INTEGER NOT NULL DEFAULT 0,
				expression TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_timeplans_id ON timeplans (id);

			CREATE TABLE IF NOT EXISTS schedule_executions (
				id BIGSERIAL PRIMARY KEY,
				workflow_id BIGINT NOT NULL,
				timeplan_id BIGINT NOT NULL,
				requested_start TIMESTAMP WITH TIME ZONE NOT NULL,
				actual_start TIMESTAMP WITH TIME ZONE,
				actual_end TIMESTAMP WITH TIME ZONE,
				executed BOOLEAN NOT NULL DEFAULT FALSE,
				successful BOOLEAN NOT NULL DEFAULT FALSE,
				datasource_id BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_schedule_executions_pending
				ON schedule_executions (requested_start)
				WHERE NOT executed AND actual_start IS NULL;
			CREATE INDEX IF NOT EXISTS idx_schedule_executions_workflow
				ON schedule_executions (workflow_id);

			CREATE TABLE IF NOT EXISTS process_runs (
				run_id BIGSERIAL PRIMARY KEY,
				package_run_id BIGINT,
				realization_run_id BIGINT,
				step_run_id BIGINT,
				workflow_id BIGINT NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				ended_at TIMESTAMP WITH TIME ZONE,
				successful BOOLEAN NOT NULL DEFAULT FALSE,
				exclusive BOOLEAN NOT NULL DEFAULT FALSE
			);
			CREATE INDEX IF NOT EXISTS idx_process_runs_workflow
				ON process_runs (workflow_id);

			CREATE TABLE IF NOT EXISTS run_audits (
				id BIGSERIAL PRIMARY KEY,
				level TEXT NOT NULL,
				run_id BIGINT NOT NULL,
				workflow_id BIGINT NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				ended_at TIMESTAMP WITH TIME ZONE,
				successful BOOLEAN NOT NULL DEFAULT FALSE,
				message TEXT NOT NULL DEFAULT ''
			);
		`,
	}
}
