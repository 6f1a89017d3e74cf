package ingest

import (
	"github.com/gin-gonic/gin"
)

const maxBatchEvents = 1000

// Service exposes the submission boundary over HTTP. It owns no state
// beyond the coordinator it delegates to.
type Service struct {
	coordinator      *Coordinator
	maxBodySizeBytes int
}

// NewService creates the HTTP-facing ingestion service.
func NewService(coordinator *Coordinator, maxBodySizeMB int) *Service {
	if coordinator == nil {
		panic("ingest: coordinator must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1
	}
	return &Service{
		coordinator:      coordinator,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the ingestion routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/publish", s.PublishHandler)
}
