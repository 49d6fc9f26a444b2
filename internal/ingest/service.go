// Package ingest adds videos to the catalog: normalize the reference, look up
// metadata upstream, then insert if absent.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/flixtube/catalog/internal/metrics"
	"github.com/flixtube/catalog/internal/models"
	"github.com/flixtube/catalog/internal/resolver"
	"github.com/flixtube/catalog/internal/videoid"
	"github.com/flixtube/catalog/pkg/queue"
)

// ErrInvalidInput is returned when a required field is missing.
var ErrInvalidInput = errors.New("invalid input")

// Store is the write side of the catalog.
type Store interface {
	Exists(ctx context.Context, externalID string) (bool, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.Video, error)
	InsertIfAbsent(ctx context.Context, v *models.Video) (models.InsertOutcome, error)
}

// Resolver fetches upstream metadata for an external id.
type Resolver interface {
	Resolve(ctx context.Context, externalID string) (resolver.Metadata, error)
}

// ThumbnailEnqueuer schedules a thumbnail mirror.
type ThumbnailEnqueuer interface {
	EnqueueThumbnail(ctx context.Context, payload queue.ThumbnailPayload) error
}

// Request is one video to add.
type Request struct {
	VideoRef string `json:"video_ref" binding:"required"`
	Category string `json:"category" binding:"required"`
	Genre    string `json:"genre"`
	Summary  string `json:"summary" binding:"required"`
}

// Result is the stored record and whether this call created it.
type Result struct {
	Video   *models.Video        `json:"video"`
	Outcome models.InsertOutcome `json:"outcome"`
}

// Service runs ingestion.
type Service struct {
	store      Store
	resolver   Resolver
	thumbnails ThumbnailEnqueuer
	logger     *zap.Logger
}

// NewService creates an ingestion service. thumbnails may be nil.
func NewService(store Store, res Resolver, thumbnails ThumbnailEnqueuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, resolver: res, thumbnails: thumbnails, logger: logger}
}

// Ingest adds one video. Nothing is written unless the resolver finds a title.
func (s *Service) Ingest(ctx context.Context, req Request) (*Result, error) {
	res, err := s.ingest(ctx, req)
	metrics.IngestTotal.WithLabelValues(outcomeLabel(res, err)).Inc()
	return res, err
}

func (s *Service) ingest(ctx context.Context, req Request) (*Result, error) {
	category := strings.TrimSpace(req.Category)
	summary := strings.TrimSpace(req.Summary)
	if strings.TrimSpace(req.VideoRef) == "" {
		return nil, fmt.Errorf("%w: video_ref is required", ErrInvalidInput)
	}
	if category == "" {
		return nil, fmt.Errorf("%w: category is required", ErrInvalidInput)
	}
	if summary == "" {
		return nil, fmt.Errorf("%w: summary is required", ErrInvalidInput)
	}
	id, err := videoid.Normalize(req.VideoRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	exists, err := s.store.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return s.existing(ctx, id)
	}

	md, err := s.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	v := &models.Video{
		ExternalID:   id,
		Title:        md.Title,
		ThumbnailURL: md.ThumbnailURL,
		Category:     category,
		Summary:      summary,
	}
	if g := strings.TrimSpace(req.Genre); g != "" {
		v.Genre = &g
	}
	outcome, err := s.store.InsertIfAbsent(ctx, v)
	if err != nil {
		return nil, err
	}
	if outcome == models.OutcomeAlreadyExists {
		// lost a race with a concurrent ingest of the same id
		return s.existing(ctx, id)
	}

	s.logger.Info("video ingested", zap.String("external_id", id), zap.Int64("id", v.ID))
	s.mirrorThumbnail(ctx, v)
	return &Result{Video: v, Outcome: models.OutcomeCreated}, nil
}

func (s *Service) existing(ctx context.Context, id string) (*Result, error) {
	v, err := s.store.GetByExternalID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Result{Video: v, Outcome: models.OutcomeAlreadyExists}, nil
}

func (s *Service) mirrorThumbnail(ctx context.Context, v *models.Video) {
	if s.thumbnails == nil || v.ThumbnailURL == "" {
		return
	}
	err := s.thumbnails.EnqueueThumbnail(ctx, queue.ThumbnailPayload{ExternalID: v.ExternalID, SourceURL: v.ThumbnailURL})
	if err != nil {
		s.logger.Warn("enqueue thumbnail mirror failed", zap.String("external_id", v.ExternalID), zap.Error(err))
	}
}

func outcomeLabel(res *Result, err error) string {
	switch {
	case err == nil:
		return string(res.Outcome)
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	case errors.Is(err, resolver.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
