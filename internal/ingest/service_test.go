package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flixtube/catalog/internal/catalog"
	"github.com/flixtube/catalog/internal/models"
	"github.com/flixtube/catalog/internal/resolver"
	"github.com/flixtube/catalog/pkg/queue"
)

type memStore struct {
	mu       sync.Mutex
	videos   map[string]*models.Video
	nextID   int64
	err      error
	raceLoss bool
}

func newMemStore() *memStore { return &memStore{videos: map[string]*models.Video{}} }

func (m *memStore) Exists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.videos[id]
	return ok, nil
}

func (m *memStore) GetByExternalID(_ context.Context, id string) (*models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *memStore) InsertIfAbsent(_ context.Context, v *models.Video) (models.InsertOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.raceLoss {
		// someone else stored it between Exists and insert
		m.nextID++
		m.videos[v.ExternalID] = &models.Video{ID: m.nextID, ExternalID: v.ExternalID, Title: "Winner"}
	}
	if _, ok := m.videos[v.ExternalID]; ok {
		return models.OutcomeAlreadyExists, nil
	}
	m.nextID++
	v.ID = m.nextID
	cp := *v
	m.videos[v.ExternalID] = &cp
	return models.OutcomeCreated, nil
}

type stubResolver struct {
	calls int
	md    resolver.Metadata
	err   error
}

func (s *stubResolver) Resolve(_ context.Context, id string) (resolver.Metadata, error) {
	s.calls++
	if s.err != nil {
		return resolver.Metadata{}, s.err
	}
	md := s.md
	if md.ThumbnailURL == "" {
		md.ThumbnailURL = "https://img.youtube.com/vi/" + id + "/0.jpg"
	}
	return md, nil
}

type recordingEnqueuer struct {
	payloads []queue.ThumbnailPayload
	err      error
}

func (r *recordingEnqueuer) EnqueueThumbnail(_ context.Context, p queue.ThumbnailPayload) error {
	r.payloads = append(r.payloads, p)
	return r.err
}

func validRequest() Request {
	return Request{VideoRef: "https://www.youtube.com/watch?v=ABC123&t=10", Category: "Documentary", Summary: "cute cats"}
}

func TestIngest_CreatesRecord(t *testing.T) {
	store, res, thumbs := newMemStore(), &stubResolver{md: resolver.Metadata{Title: "Cats"}}, &recordingEnqueuer{}
	svc := NewService(store, res, thumbs, nil)

	req := validRequest()
	req.Genre = " Thriller "
	out, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeCreated, out.Outcome)
	require.Equal(t, "ABC123", out.Video.ExternalID)
	require.Equal(t, "Cats", out.Video.Title)
	require.Equal(t, "Thriller", out.Video.GenreOrEmpty())
	require.NotZero(t, out.Video.ID)

	require.Len(t, thumbs.payloads, 1)
	require.Equal(t, "ABC123", thumbs.payloads[0].ExternalID)
	require.Equal(t, "https://img.youtube.com/vi/ABC123/0.jpg", thumbs.payloads[0].SourceURL)
}

func TestIngest_ExistingSkipsResolver(t *testing.T) {
	store, res := newMemStore(), &stubResolver{md: resolver.Metadata{Title: "Cats"}}
	svc := NewService(store, res, nil, nil)

	_, err := svc.Ingest(context.Background(), validRequest())
	require.NoError(t, err)

	req := validRequest()
	req.VideoRef = "https://youtu.be/ABC123"
	out, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeAlreadyExists, out.Outcome)
	require.Equal(t, "Cats", out.Video.Title)
	require.Equal(t, 1, res.calls)
	require.Len(t, store.videos, 1)
}

func TestIngest_LostRaceReportsAlreadyExists(t *testing.T) {
	store := newMemStore()
	store.raceLoss = true
	thumbs := &recordingEnqueuer{}
	svc := NewService(store, &stubResolver{md: resolver.Metadata{Title: "Cats"}}, thumbs, nil)

	out, err := svc.Ingest(context.Background(), validRequest())
	require.NoError(t, err)
	require.Equal(t, models.OutcomeAlreadyExists, out.Outcome)
	require.Equal(t, "Winner", out.Video.Title)
	require.Empty(t, thumbs.payloads)
}

func TestIngest_ResolverNotFoundWritesNothing(t *testing.T) {
	store := newMemStore()
	res := &stubResolver{err: fmt.Errorf("%w: no title", resolver.ErrNotFound)}
	svc := NewService(store, res, nil, nil)

	_, err := svc.Ingest(context.Background(), validRequest())
	require.ErrorIs(t, err, resolver.ErrNotFound)
	require.Empty(t, store.videos)
}

func TestIngest_InvalidInput(t *testing.T) {
	svc := NewService(newMemStore(), &stubResolver{}, nil, nil)
	cases := map[string]func(*Request){
		"no ref":      func(r *Request) { r.VideoRef = "  " },
		"no category": func(r *Request) { r.Category = "" },
		"no summary":  func(r *Request) { r.Summary = "\t" },
		"empty id":    func(r *Request) { r.VideoRef = "https://youtu.be/" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := validRequest()
			mutate(&req)
			_, err := svc.Ingest(context.Background(), req)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestIngest_StorageErrorPropagates(t *testing.T) {
	store := newMemStore()
	store.err = fmt.Errorf("%w: check video: conn refused", catalog.ErrStorage)
	res := &stubResolver{}
	svc := NewService(store, res, nil, nil)

	_, err := svc.Ingest(context.Background(), validRequest())
	require.ErrorIs(t, err, catalog.ErrStorage)
	require.Zero(t, res.calls)
}

func TestIngest_EnqueueFailureDoesNotFail(t *testing.T) {
	thumbs := &recordingEnqueuer{err: errors.New("redis down")}
	svc := NewService(newMemStore(), &stubResolver{md: resolver.Metadata{Title: "Cats"}}, thumbs, nil)

	out, err := svc.Ingest(context.Background(), validRequest())
	require.NoError(t, err)
	require.Equal(t, models.OutcomeCreated, out.Outcome)
}
