package catalog

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flixtube/catalog/internal/models"
	"github.com/flixtube/catalog/pkg/response"
)

// Reader is the read side of the catalog used by the browse endpoints.
type Reader interface {
	List(ctx context.Context, f Filter) ([]models.Video, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.Video, error)
	Categories(ctx context.Context) ([]string, error)
}

// ErrorWriter renders a repository error.
type ErrorWriter func(c *gin.Context, logger *zap.Logger, err error)

// Detail is a single video as served by GET /videos/:external_id.
type Detail struct {
	models.Video
	MirrorURL string `json:"mirror_url,omitempty"`
}

// Handler serves catalog browse endpoints.
type Handler struct {
	repo      Reader
	writeErr  ErrorWriter
	mirrorURL func(externalID string) string
	logger    *zap.Logger
}

// NewHandler creates a catalog handler.
func NewHandler(repo Reader, writeErr ErrorWriter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, writeErr: writeErr, logger: logger}
}

// WithMirrorURL makes Get report where the mirrored thumbnail is stored.
func (h *Handler) WithMirrorURL(fn func(externalID string) string) *Handler {
	h.mirrorURL = fn
	return h
}

// List handles GET /videos?category=&genre=.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context(), Filter{
		Category: c.Query("category"),
		Genre:    c.Query("genre"),
	})
	if err != nil {
		h.writeErr(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /videos/:external_id.
func (h *Handler) Get(c *gin.Context) {
	v, err := h.repo.GetByExternalID(c.Request.Context(), c.Param("external_id"))
	if err != nil {
		h.writeErr(c, h.logger, err)
		return
	}
	d := Detail{Video: *v}
	if h.mirrorURL != nil {
		d.MirrorURL = h.mirrorURL(v.ExternalID)
	}
	response.OK(c, d)
}

// Categories handles GET /categories: the known classification values
// merged with whatever categories are stored.
func (h *Handler) Categories(c *gin.Context) {
	stored, err := h.repo.Categories(c.Request.Context())
	if err != nil {
		h.writeErr(c, h.logger, err)
		return
	}
	seen := make(map[string]struct{}, len(models.KnownCategories)+len(stored))
	categories := make([]string, 0, len(models.KnownCategories)+len(stored))
	for _, list := range [][]string{models.KnownCategories, stored} {
		for _, cat := range list {
			if _, ok := seen[cat]; ok {
				continue
			}
			seen[cat] = struct{}{}
			categories = append(categories, cat)
		}
	}
	response.OK(c, gin.H{"categories": categories, "genres": models.KnownGenres})
}
