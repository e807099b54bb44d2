package store

// SQL query constants organized by entity.
// All SQL lives here; PostgresStore methods reference these constants.
// Entity-table queries are templates because the four read views share a
// column layout but live in separate tables; both substituted identifiers
// come from closed sets checked in postgres.go.

// Alert queries.
const (
	queryCreateAlert = `
		INSERT INTO alerts (entity_kind, entity_id, alert_kind, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entity_kind, entity_id, alert_kind) WHERE resolved = false DO NOTHING
		RETURNING id`

	queryFindActiveAlerts = `
		SELECT entity_id
		FROM alerts
		WHERE entity_kind = $1
		  AND alert_kind = $2
		  AND resolved = false
		  AND entity_id = ANY($3)`

	queryActiveAlertsOfKind = `
		SELECT id, entity_id
		FROM alerts
		WHERE entity_kind = $1
		  AND alert_kind = $2
		  AND resolved = false
		ORDER BY created_at`

	queryResolveAlerts = `
		UPDATE alerts SET
			resolved    = true,
			resolved_at = $2
		WHERE id = ANY($1) AND resolved = false`

	queryListAlertsAll = `
		SELECT id, entity_kind, entity_id, alert_kind, details,
			created_at, resolved, resolved_at
		FROM alerts
		ORDER BY created_at DESC
		LIMIT $1`

	queryListAlertsActive = `
		SELECT id, entity_kind, entity_id, alert_kind, details,
			created_at, resolved, resolved_at
		FROM alerts
		WHERE resolved = false
		ORDER BY created_at DESC
		LIMIT $1`

	queryCountActiveByKind = `
		SELECT alert_kind, COUNT(*)
		FROM alerts
		WHERE resolved = false
		GROUP BY alert_kind`
)

// Entity read-view query templates.
const (
	queryListEntitiesInStatusTmpl = `
		SELECT id, project_status, situational_status, status_since
		FROM %s
		WHERE %s = $1
		ORDER BY id`

	queryGetEntityStatusTmpl = `
		SELECT id, project_status, situational_status, status_since
		FROM %s
		WHERE id = $1`

	queryFirstEntityIDTmpl = `SELECT id FROM %s ORDER BY id LIMIT 1`
)

// Log event queries.
const (
	queryLatestEventTimes = `
		SELECT entity_id, MAX(occurred_at)
		FROM log_events
		WHERE entity_kind = $1 AND event_type = ANY($2)
		GROUP BY entity_id`

	queryInsertLogEvent = `
		INSERT INTO log_events (
			entity_kind, entity_id, event_type, occurred_at,
			comment, from_group_id, to_group_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
)

// Check run queries.
const (
	queryInsertCheckRun = `
		INSERT INTO check_runs (run_id)
		VALUES ($1)
		RETURNING id`

	queryCompleteCheckRun = `
		UPDATE check_runs SET
			completed_at   = now(),
			status         = $2,
			error_text     = NULLIF($3, ''),
			created_count  = $4,
			resolved_count = $5
		WHERE id = $1`

	queryListCheckRuns = `
		SELECT id, run_id, started_at, completed_at, status,
			COALESCE(error_text, ''), created_count, resolved_count
		FROM check_runs
		ORDER BY started_at DESC
		LIMIT $1`
)
