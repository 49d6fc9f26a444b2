package recommend

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flixtube/catalog/internal/models"
	"github.com/flixtube/catalog/internal/videoid"
	"github.com/flixtube/catalog/pkg/response"
)

// Recommender is what the handler needs from Service.
type Recommender interface {
	ForVideo(ctx context.Context, externalID string, k int) ([]Neighbor, error)
	ForTitle(ctx context.Context, title string, k int) ([]Neighbor, error)
	ForText(ctx context.Context, text string, k int) ([]Neighbor, error)
}

// Item is one recommendation as returned over HTTP.
type Item struct {
	models.Video
	Distance   float64 `json:"distance"`
	Similarity float64 `json:"similarity"`
	WatchURL   string  `json:"watch_url"`
	EmbedURL   string  `json:"embed_url"`
}

// ErrorWriter renders a service error.
type ErrorWriter func(c *gin.Context, logger *zap.Logger, err error)

// Handler serves recommendation endpoints.
type Handler struct {
	svc      Recommender
	writeErr ErrorWriter
	logger   *zap.Logger
}

// NewHandler creates a recommendation handler.
func NewHandler(svc Recommender, writeErr ErrorWriter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, writeErr: writeErr, logger: logger}
}

// ForVideo handles GET /videos/:external_id/recommendations.
func (h *Handler) ForVideo(c *gin.Context) {
	k, ok := parseK(c)
	if !ok {
		return
	}
	list, err := h.svc.ForVideo(c.Request.Context(), c.Param("external_id"), k)
	if err != nil {
		h.writeErr(c, h.logger, err)
		return
	}
	response.OK(c, toItems(list))
}

// Search handles GET /recommendations?title=&q=. title wins when both are set.
func (h *Handler) Search(c *gin.Context) {
	k, ok := parseK(c)
	if !ok {
		return
	}
	title, q := c.Query("title"), c.Query("q")
	var (
		list []Neighbor
		err  error
	)
	switch {
	case title != "":
		list, err = h.svc.ForTitle(c.Request.Context(), title, k)
	case q != "":
		list, err = h.svc.ForText(c.Request.Context(), q, k)
	default:
		response.BadRequest(c, "title or q is required")
		return
	}
	if err != nil {
		h.writeErr(c, h.logger, err)
		return
	}
	response.OK(c, toItems(list))
}

func parseK(c *gin.Context) (int, bool) {
	raw := c.Query("k")
	if raw == "" {
		return 0, true
	}
	k, err := strconv.Atoi(raw)
	if err != nil {
		response.BadRequest(c, "invalid k")
		return 0, false
	}
	return k, true
}

func toItems(list []Neighbor) []Item {
	items := make([]Item, len(list))
	for i, n := range list {
		items[i] = Item{
			Video:      n.Video,
			Distance:   n.Distance,
			Similarity: 1 - n.Distance,
			WatchURL:   videoid.WatchURL(n.Video.ExternalID),
			EmbedURL:   videoid.EmbedURL(n.Video.ExternalID),
		}
	}
	return items
}
