package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	v1 "github.com/loghive/loghive/internal/api/v1"
	httperr "github.com/loghive/loghive/internal/core/errors"
	"github.com/gin-gonic/gin"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
	msgEnqueueFailed  = "Failed to enqueue events"
)

// apiError carries the structured HTTP error shape from a helper back to the
// handler. Helpers return this instead of writing to gin.Context directly.
type apiError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *apiError) Error() string {
	return e.message
}

// PublishHandler handles POST /v1/publish. The body is either one Event or
// {"events": [...]}; ?sync=true resolves dedup verdicts inline, the default
// enqueues for the worker pool.
func (s *Service) PublishHandler(c *gin.Context) {
	events, err := s.parseBatch(c)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := validateBatch(events); err != nil {
		writeError(c, err)
		return
	}

	sync := c.Query("sync") == "true"
	slog.Info("[Ingest] Publish request",
		"count", len(events),
		"sync", sync)

	if sync {
		summary := s.coordinator.Submit(c.Request.Context(), events)
		c.JSON(http.StatusOK, v1.PublishResponse{
			Success: summary.Failed == 0 && !summary.Incomplete,
			Message: fmt.Sprintf("Processed %d events, %d duplicates dropped",
				summary.Accepted, summary.RejectedDuplicate),
			BatchID:           summary.BatchID,
			Received:          summary.Received,
			Accepted:          summary.Accepted,
			RejectedDuplicate: summary.RejectedDuplicate,
			Failed:            summary.Failed,
			Incomplete:        summary.Incomplete,
			EventIDs:          summary.EventIDs,
		})
		return
	}

	summary, submitErr := s.coordinator.SubmitAsync(c.Request.Context(), events)
	if submitErr != nil {
		slog.Error("[Ingest] Async publish failed", "error", submitErr)
		writeError(c, &apiError{
			statusCode: http.StatusServiceUnavailable,
			errorType:  httperr.HttpQueueUnavailable,
			message:    msgEnqueueFailed,
		})
		return
	}

	c.JSON(http.StatusAccepted, v1.PublishResponse{
		Success:  true,
		Message:  fmt.Sprintf("Enqueued %d events", summary.Received),
		BatchID:  summary.BatchID,
		Received: summary.Received,
		EventIDs: summary.EventIDs,
	})
}

// parseBatch reads the size-limited body and normalizes it to a slice of
// events, accepting both the single-event and the batch shape.
func (s *Service) parseBatch(c *gin.Context) ([]v1.Event, *apiError) {
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		return nil, &apiError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return nil, &apiError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	// Batch shape first; a single-event body has no "events" key and falls
	// through to the second decode.
	var batch v1.BatchPublishRequest
	if err := json.Unmarshal(bodyBytes, &batch); err == nil && batch.Events != nil {
		if len(batch.Events) == 0 {
			return nil, &apiError{
				statusCode: http.StatusBadRequest,
				errorType:  httperr.HttpInvalidJsonError,
				message:    "events must not be empty",
			}
		}
		if len(batch.Events) > maxBatchEvents {
			return nil, &apiError{
				statusCode: http.StatusBadRequest,
				errorType:  httperr.HttpInvalidJsonError,
				message:    fmt.Sprintf("batch exceeds %d events", maxBatchEvents),
			}
		}
		return batch.Events, nil
	}

	var single v1.Event
	if err := json.Unmarshal(bodyBytes, &single); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return nil, &apiError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}
	return []v1.Event{single}, nil
}

// validateBatch rejects malformed envelopes before anything reaches the
// store or the queue. Reported to the immediate caller only.
func validateBatch(events []v1.Event) *apiError {
	for i := range events {
		if err := events[i].Validate(); err != nil {
			return &apiError{
				statusCode: http.StatusBadRequest,
				errorType:  httperr.HttpMalformedEvent,
				message:    err.Error(),
				details: map[string]interface{}{
					"index":    i,
					"event_id": events[i].EventID,
				},
			}
		}
	}
	return nil
}

// writeError serializes an apiError as the JSON HTTP response.
func writeError(c *gin.Context, err *apiError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
