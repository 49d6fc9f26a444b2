// Package server assembles the HTTP routes.
package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/flixtube/catalog/internal/apierror"
	"github.com/flixtube/catalog/internal/auth"
	"github.com/flixtube/catalog/internal/catalog"
	"github.com/flixtube/catalog/internal/ingest"
	"github.com/flixtube/catalog/internal/middleware"
	"github.com/flixtube/catalog/internal/recommend"
	"github.com/flixtube/catalog/pkg/response"
)

// Deps are the services behind the routes.
type Deps struct {
	Catalog     catalog.Reader
	Ingest      ingest.Ingester
	Jobs        ingest.JobEnqueuer // nil disables bulk import
	Recommender recommend.Recommender
	JWT         *auth.JWTService // nil leaves write routes open
	// MirrorURL locates mirrored thumbnails; nil hides mirror_url.
	MirrorURL   func(externalID string) string
	CORSOrigins string
	Logger      *zap.Logger
}

// NewRouter builds the gin engine.
func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	catalogHandler := catalog.NewHandler(d.Catalog, apierror.Write, logger).WithMirrorURL(d.MirrorURL)
	ingestHandler := ingest.NewHandler(d.Ingest, d.Jobs, apierror.Write, logger)
	recommendHandler := recommend.NewHandler(d.Recommender, apierror.Write, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(d.CORSOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/categories", catalogHandler.Categories)
	router.GET("/videos", catalogHandler.List)
	router.GET("/videos/:external_id", catalogHandler.Get)
	router.GET("/videos/:external_id/recommendations", recommendHandler.ForVideo)
	router.GET("/recommendations", recommendHandler.Search)

	editors := router.Group("")
	if d.JWT != nil {
		editors.Use(middleware.JWT(d.JWT), middleware.RequireRole(auth.RoleEditor, auth.RoleAdmin))
	} else {
		logger.Warn("JWT_SECRET not set: write routes are unauthenticated")
	}
	{
		editors.POST("/videos", ingestHandler.Create)
		editors.POST("/videos/import", ingestHandler.Import)
	}
	return router
}
