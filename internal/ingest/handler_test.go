package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flixtube/catalog/internal/models"
	"github.com/flixtube/catalog/pkg/queue"
	"github.com/flixtube/catalog/pkg/response"
)

type stubIngester struct {
	outcome models.InsertOutcome
	err     error
	got     Request
}

func (s *stubIngester) Ingest(_ context.Context, req Request) (*Result, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return &Result{Video: &models.Video{ID: 1, ExternalID: "ABC123", Title: "Cats"}, Outcome: s.outcome}, nil
}

type stubJobs struct {
	payloads []queue.IngestPayload
	err      error
}

func (s *stubJobs) EnqueueIngest(_ context.Context, payloads ...queue.IngestPayload) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	ids := make([]string, len(payloads))
	for i, p := range payloads {
		ids[i] = "job-" + p.VideoRef
	}
	s.payloads = append(s.payloads, payloads...)
	return ids, nil
}

func unprocessable(c *gin.Context, _ *zap.Logger, err error) {
	response.UnprocessableEntity(c, err.Error())
}

func router(svc Ingester, jobs JobEnqueuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(svc, jobs, unprocessable, nil)
	r.POST("/videos", h.Create)
	r.POST("/videos/import", h.Import)
	return r
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

const createBody = `{"video_ref":"https://youtu.be/ABC123","category":"Documentary","summary":"cute cats"}`

func TestCreate_StatusByOutcome(t *testing.T) {
	svc := &stubIngester{outcome: models.OutcomeCreated}
	w := post(router(svc, nil), "/videos", createBody)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Contains(t, w.Body.String(), `"outcome":"created"`)
	require.Equal(t, "https://youtu.be/ABC123", svc.got.VideoRef)

	svc.outcome = models.OutcomeAlreadyExists
	w = post(router(svc, nil), "/videos", createBody)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"outcome":"already_exists"`)
}

func TestCreate_MissingFieldIsBadRequest(t *testing.T) {
	w := post(router(&stubIngester{}, nil), "/videos", `{"video_ref":"ABC123"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreate_ServiceErrorIsDelegated(t *testing.T) {
	w := post(router(&stubIngester{err: errors.New("video could not be found")}, nil), "/videos", createBody)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestImport_EnqueuesEachItem(t *testing.T) {
	jobs := &stubJobs{}
	body := `{"items":[
		{"video_ref":"A1","category":"Drama","summary":"one"},
		{"video_ref":"B2","category":"Drama","genre":"Crime","summary":"two"}]}`
	w := post(router(&stubIngester{}, jobs), "/videos/import", body)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Contains(t, w.Body.String(), `"job_ids":["job-A1","job-B2"]`)
	require.Len(t, jobs.payloads, 2)
	require.Equal(t, "Crime", jobs.payloads[1].Genre)
}

func TestImport_QueueFailureQueuesNothing(t *testing.T) {
	jobs := &stubJobs{err: errors.New("down")}
	body := `{"items":[
		{"video_ref":"A1","category":"x","summary":"y"},
		{"video_ref":"B2","category":"x","summary":"z"}]}`
	w := post(router(&stubIngester{}, jobs), "/videos/import", body)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NotContains(t, w.Body.String(), "job_ids")
	require.Empty(t, jobs.payloads)
}

func TestImport_Errors(t *testing.T) {
	require.Equal(t, http.StatusServiceUnavailable,
		post(router(&stubIngester{}, nil), "/videos/import", `{"items":[]}`).Code)
	require.Equal(t, http.StatusBadRequest,
		post(router(&stubIngester{}, &stubJobs{}), "/videos/import", `{"items":[]}`).Code)
	require.Equal(t, http.StatusServiceUnavailable,
		post(router(&stubIngester{}, &stubJobs{err: errors.New("down")}), "/videos/import",
			`{"items":[{"video_ref":"A1","category":"x","summary":"y"}]}`).Code)
}
