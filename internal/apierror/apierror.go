// Package apierror maps domain errors onto HTTP responses.
package apierror

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flixtube/catalog/internal/catalog"
	"github.com/flixtube/catalog/internal/ingest"
	"github.com/flixtube/catalog/internal/recommend"
	"github.com/flixtube/catalog/internal/resolver"
	"github.com/flixtube/catalog/internal/videoid"
	"github.com/flixtube/catalog/pkg/response"
)

// Write sends the response matching err. Unexpected errors are logged and
// reported as a bare 500.
func Write(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, ingest.ErrInvalidInput), errors.Is(err, videoid.ErrInvalid):
		response.BadRequest(c, err.Error())
	case errors.Is(err, resolver.ErrNotFound):
		response.UnprocessableEntity(c, resolver.ErrNotFound.Error())
	case errors.Is(err, catalog.ErrNotFound):
		response.NotFound(c, catalog.ErrNotFound.Error())
	case errors.Is(err, recommend.ErrEmptyCorpus):
		response.NotFound(c, recommend.ErrEmptyCorpus.Error())
	case errors.Is(err, catalog.ErrStorage):
		logger.Error("storage failure", zap.String("path", c.FullPath()), zap.Error(err))
		response.ServiceUnavailable(c, "catalog storage unavailable")
	default:
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "internal error")
	}
}
