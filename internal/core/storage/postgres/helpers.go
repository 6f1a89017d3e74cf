package postgres

import (
	"encoding/json"
	"fmt"

	v1 "github.com/loghive/loghive/internal/api/v1"
)

// marshalPayload marshals the event payload to JSON for the JSONB column.
// A nil payload is stored as an empty object so reads never see SQL NULL.
func marshalPayload(payload map[string]interface{}) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return data, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanStoredEvent scans a database row into a StoredEvent.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanStoredEvent(row scanner) (*v1.StoredEvent, error) {
	var evt v1.StoredEvent
	var payloadJSON []byte

	err := row.Scan(
		&evt.Topic,
		&evt.EventID,
		&evt.Timestamp,
		&evt.Source,
		&payloadJSON,
		&evt.ProcessedAt,
		&evt.WorkerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan event row: %w", err)
	}

	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &evt.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	return &evt, nil
}
