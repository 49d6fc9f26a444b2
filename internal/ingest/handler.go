package ingest

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flixtube/catalog/internal/models"
	"github.com/flixtube/catalog/pkg/queue"
	"github.com/flixtube/catalog/pkg/response"
)

const maxImportItems = 500

// Ingester is what the handler needs from Service.
type Ingester interface {
	Ingest(ctx context.Context, req Request) (*Result, error)
}

// JobEnqueuer schedules background ingestion. A batch is queued whole or
// not at all.
type JobEnqueuer interface {
	EnqueueIngest(ctx context.Context, payloads ...queue.IngestPayload) ([]string, error)
}

// ImportRequest is the body for POST /videos/import.
type ImportRequest struct {
	Items []Request `json:"items" binding:"required,min=1,dive"`
}

// ErrorWriter renders a service error.
type ErrorWriter func(c *gin.Context, logger *zap.Logger, err error)

// Handler serves ingestion endpoints.
type Handler struct {
	svc      Ingester
	jobs     JobEnqueuer
	writeErr ErrorWriter
	logger   *zap.Logger
}

// NewHandler creates an ingestion handler. jobs may be nil, which disables bulk import.
func NewHandler(svc Ingester, jobs JobEnqueuer, writeErr ErrorWriter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, jobs: jobs, writeErr: writeErr, logger: logger}
}

// Create handles POST /videos.
func (h *Handler) Create(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.Ingest(c.Request.Context(), req)
	if err != nil {
		h.writeErr(c, h.logger, err)
		return
	}
	if res.Outcome == models.OutcomeCreated {
		response.Created(c, res)
		return
	}
	response.OK(c, res)
}

// Import handles POST /videos/import: one background job per item.
func (h *Handler) Import(c *gin.Context) {
	if h.jobs == nil {
		response.ServiceUnavailable(c, "bulk import requires the job queue")
		return
	}
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if len(req.Items) > maxImportItems {
		response.BadRequest(c, "too many items")
		return
	}

	payloads := make([]queue.IngestPayload, len(req.Items))
	for i, item := range req.Items {
		payloads[i] = queue.IngestPayload{
			VideoRef: item.VideoRef,
			Category: item.Category,
			Genre:    item.Genre,
			Summary:  item.Summary,
		}
	}
	jobIDs, err := h.jobs.EnqueueIngest(c.Request.Context(), payloads...)
	if err != nil {
		h.logger.Error("enqueue ingest jobs failed", zap.Int("items", len(payloads)), zap.Error(err))
		response.ServiceUnavailable(c, "job queue unavailable")
		return
	}
	response.Accepted(c, gin.H{"job_ids": jobIDs})
}
