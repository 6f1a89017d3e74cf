package postgres

// SQL for the three core tables. The dedup verdict and the counter updates
// both live entirely in the database so that worker count never matters.

const (
	// queryInsertEvent is the idempotent write. ON CONFLICT DO NOTHING
	// returns no rows (sql.ErrNoRows) when the key is already taken, which
	// is how duplicates are detected without a check-then-act window.
	queryInsertEvent = `
		INSERT INTO events (topic, event_id, timestamp, source, payload, worker_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (topic, event_id) DO NOTHING
		RETURNING processed_at
	`

	// queryApplyOutcome folds one attempt into the singleton stats row.
	// received always moves by one; exactly one of the $1/$2 deltas is 1.
	// The increments execute inside the UPDATE, so concurrent workers
	// cannot lose updates.
	queryApplyOutcome = `
		UPDATE stats
		SET received = received + 1,
		    accepted = accepted + $1,
		    rejected_duplicate = rejected_duplicate + $2,
		    last_updated_at = NOW()
		WHERE id = 1
	`

	// queryEnsureStatsRow seeds the singleton on first startup and is a
	// no-op on every restart after that.
	queryEnsureStatsRow = `
		INSERT INTO stats (id) VALUES (1)
		ON CONFLICT (id) DO NOTHING
	`

	queryStatsSnapshot = `
		SELECT received, accepted, rejected_duplicate, started_at, last_updated_at
		FROM stats
		WHERE id = 1
	`

	// queryAppendAudit records one ingestion attempt. No uniqueness: the
	// audit trail intentionally keeps every duplicate delivery.
	queryAppendAudit = `
		INSERT INTO audit_log (topic, event_id, received_at, is_duplicate, worker_id)
		VALUES ($1, $2, $3, $4, $5)
	`

	queryListEvents = `
		SELECT topic, event_id, timestamp, source, payload, processed_at, worker_id
		FROM events
		ORDER BY timestamp DESC
		LIMIT $1 OFFSET $2
	`

	queryListEventsByTopic = `
		SELECT topic, event_id, timestamp, source, payload, processed_at, worker_id
		FROM events
		WHERE topic = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`

	queryCountEvents = `
		SELECT COUNT(*) FROM events
	`

	queryCountEventsByTopic = `
		SELECT COUNT(*) FROM events WHERE topic = $1
	`

	queryTopicBreakdown = `
		SELECT topic, COUNT(*) AS event_count
		FROM events
		GROUP BY topic
		ORDER BY event_count DESC
	`
)
