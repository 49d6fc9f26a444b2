package recommend

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/flixtube/catalog/internal/catalog"
	"github.com/flixtube/catalog/internal/metrics"
	"github.com/flixtube/catalog/internal/models"
)

// MaxK caps how many neighbours one query may ask for.
const MaxK = 50

// Catalog is the read side of the catalog store.
type Catalog interface {
	LoadAll(ctx context.Context) ([]models.Video, error)
	Version(ctx context.Context) (catalog.Version, error)
}

// Service answers recommendation queries against the current catalog.
type Service struct {
	catalog  Catalog
	cache    IndexCache
	cacheTTL time.Duration
	defaultK int
	logger   *zap.Logger
}

// NewService creates a recommendation service. cache may be nil.
func NewService(c Catalog, cache IndexCache, cacheTTL time.Duration, defaultK int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultK <= 0 {
		defaultK = 3
	}
	return &Service{catalog: c, cache: cache, cacheTTL: cacheTTL, defaultK: defaultK, logger: logger}
}

// ForVideo returns the videos most similar to the cataloged video externalID.
func (s *Service) ForVideo(ctx context.Context, externalID string, k int) ([]Neighbor, error) {
	defer observe("video", time.Now())
	ix, err := s.index(ctx)
	if err != nil {
		return nil, err
	}
	v, ok := ix.Lookup(externalID)
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return ix.Query(v.FeatureText(), s.clampK(k), v.ExternalID), nil
}

// ForTitle recommends from the first video titled title, falling back to a
// raw text query when no title matches.
func (s *Service) ForTitle(ctx context.Context, title string, k int) ([]Neighbor, error) {
	defer observe("title", time.Now())
	ix, err := s.index(ctx)
	if err != nil {
		return nil, err
	}
	if v, ok := ix.FirstByTitle(title); ok {
		return ix.Query(v.FeatureText(), s.clampK(k), v.ExternalID), nil
	}
	return ix.Query(title, s.clampK(k), ix.SelfOf(title)), nil
}

// ForText recommends for free text. A video whose feature text equals text
// is treated as the query itself and left out.
func (s *Service) ForText(ctx context.Context, text string, k int) ([]Neighbor, error) {
	defer observe("text", time.Now())
	ix, err := s.index(ctx)
	if err != nil {
		return nil, err
	}
	return ix.Query(text, s.clampK(k), ix.SelfOf(text)), nil
}

func (s *Service) clampK(k int) int {
	if k <= 0 {
		k = s.defaultK
	}
	if k > MaxK {
		k = MaxK
	}
	return k
}

// index fetches the index for the current catalog version, building it on a
// cache miss. Cache failures only cost a rebuild.
func (s *Service) index(ctx context.Context) (*Index, error) {
	var key string
	if s.cache != nil {
		ver, err := s.catalog.Version(ctx)
		if err != nil {
			return nil, err
		}
		if ver.Count == 0 {
			return nil, ErrEmptyCorpus
		}
		key = ver.String()
		ix, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			metrics.IndexCacheTotal.WithLabelValues("error").Inc()
			s.logger.Warn("index cache read failed", zap.String("version", key), zap.Error(err))
		case ix != nil:
			metrics.IndexCacheTotal.WithLabelValues("hit").Inc()
			return ix, nil
		default:
			metrics.IndexCacheTotal.WithLabelValues("miss").Inc()
		}
	}

	videos, err := s.catalog.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	ix, err := BuildIndex(videos)
	if err != nil {
		return nil, err
	}
	metrics.IndexSize.Set(float64(ix.Len()))

	if s.cache != nil {
		// key the entry by what was actually loaded, not by the earlier probe
		key = versionOf(videos).String()
		if err := s.cache.Set(ctx, key, ix, s.cacheTTL); err != nil {
			s.logger.Warn("index cache write failed", zap.String("version", key), zap.Error(err))
		}
	}
	return ix, nil
}

func versionOf(videos []models.Video) catalog.Version {
	v := catalog.Version{Count: int64(len(videos))}
	for i := range videos {
		if videos[i].ID > v.MaxID {
			v.MaxID = videos[i].ID
		}
	}
	return v
}

func observe(mode string, start time.Time) {
	metrics.RecommendDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}
