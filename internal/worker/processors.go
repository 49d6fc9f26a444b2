package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/flixtube/catalog/internal/ingest"
	"github.com/flixtube/catalog/internal/resolver"
	"github.com/flixtube/catalog/pkg/queue"
	"github.com/flixtube/catalog/pkg/storage"
)

// Ingester is the ingestion entry point.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (*ingest.Result, error)
}

// IngestProcessor runs queued ingestion requests.
type IngestProcessor struct {
	svc    Ingester
	logger *zap.Logger
}

// NewIngestProcessor creates an ingest job processor.
func NewIngestProcessor(svc Ingester, logger *zap.Logger) *IngestProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestProcessor{svc: svc, logger: logger}
}

// Process ingests one video. Bad input and unresolvable videos are permanent;
// an unavailable host or an interrupted run is retried.
func (p *IngestProcessor) Process(ctx context.Context, job *queue.Job) error {
	var payload queue.IngestPayload
	if err := job.Decode(&payload); err != nil {
		return permanent(err)
	}
	res, err := p.svc.Ingest(ctx, ingest.Request{
		VideoRef: payload.VideoRef,
		Category: payload.Category,
		Genre:    payload.Genre,
		Summary:  payload.Summary,
	})
	if err != nil {
		switch {
		case ctx.Err() != nil, errors.Is(err, resolver.ErrUnavailable):
			return err
		case errors.Is(err, ingest.ErrInvalidInput), errors.Is(err, resolver.ErrNotFound):
			return permanent(err)
		}
		return err
	}
	p.logger.Info("queued ingest done",
		zap.String("external_id", res.Video.ExternalID), zap.String("outcome", string(res.Outcome)))
	return nil
}

// ThumbnailStore is where mirrored thumbnails live.
type ThumbnailStore interface {
	ThumbnailExists(ctx context.Context, externalID string) (bool, error)
	UploadThumbnail(ctx context.Context, externalID, contentType string, body io.Reader) (string, error)
}

// ThumbnailProcessor copies upstream thumbnails into object storage.
type ThumbnailProcessor struct {
	store      ThumbnailStore
	httpClient *http.Client
	logger     *zap.Logger
}

// NewThumbnailProcessor creates a thumbnail mirror processor.
func NewThumbnailProcessor(store ThumbnailStore, logger *zap.Logger) *ThumbnailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThumbnailProcessor{
		store:      store,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Process downloads the thumbnail and uploads it unless already mirrored.
func (p *ThumbnailProcessor) Process(ctx context.Context, job *queue.Job) error {
	var payload queue.ThumbnailPayload
	if err := job.Decode(&payload); err != nil {
		return permanent(err)
	}
	if payload.ExternalID == "" || payload.SourceURL == "" {
		return permanent(errors.New("thumbnail job missing external_id or source_url"))
	}

	exists, err := p.store.ThumbnailExists(ctx, payload.ExternalID)
	if err != nil {
		return err
	}
	if exists {
		p.logger.Debug("thumbnail already mirrored", zap.String("external_id", payload.ExternalID))
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, payload.SourceURL, nil)
	if err != nil {
		return permanent(fmt.Errorf("create request: %w", err))
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("download status: %d", resp.StatusCode)
		if resp.StatusCode == http.StatusNotFound {
			return permanent(err)
		}
		return err
	}

	url, err := p.store.UploadThumbnail(ctx, payload.ExternalID, resp.Header.Get("Content-Type"),
		io.LimitReader(resp.Body, storage.MaxThumbnailSize))
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	p.logger.Info("thumbnail mirrored", zap.String("external_id", payload.ExternalID), zap.String("url", url))
	return nil
}
