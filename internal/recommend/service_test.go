package recommend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flixtube/catalog/internal/catalog"
	"github.com/flixtube/catalog/internal/models"
)

type fakeCatalog struct {
	videos []models.Video
	err    error
	loads  int
}

func (f *fakeCatalog) LoadAll(ctx context.Context) ([]models.Video, error) {
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	return f.videos, nil
}

func (f *fakeCatalog) Version(ctx context.Context) (catalog.Version, error) {
	if f.err != nil {
		return catalog.Version{}, f.err
	}
	return versionOf(f.videos), nil
}

type memCache struct {
	entries map[string]*Index
	getErr  error
	sets    []string
}

func newMemCache() *memCache { return &memCache{entries: map[string]*Index{}} }

func (m *memCache) Get(ctx context.Context, version string) (*Index, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.entries[version], nil
}

func (m *memCache) Set(ctx context.Context, version string, ix *Index, ttl time.Duration) error {
	m.sets = append(m.sets, version)
	m.entries[version] = ix
	return nil
}

func ids(list []Neighbor) []string {
	out := make([]string, len(list))
	for i, n := range list {
		out[i] = n.Video.ExternalID
	}
	return out
}

func TestService_ForVideo(t *testing.T) {
	svc := NewService(&fakeCatalog{videos: petsCatalog()}, nil, 0, 3, nil)

	got, err := svc.ForVideo(context.Background(), "cats1", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"dogs1", "space1"}, ids(got))

	_, err = svc.ForVideo(context.Background(), "missing", 2)
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestService_DefaultAndMaxK(t *testing.T) {
	var videos []models.Video
	for i := 0; i < MaxK+5; i++ {
		videos = append(videos, rec(int64(i+1), "v"+string(rune('A'+i%26))+string(rune('a'+i/26)), "Title", "Other", "summary"))
	}
	svc := NewService(&fakeCatalog{videos: videos}, nil, 0, 2, nil)

	got, err := svc.ForText(context.Background(), "summary", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = svc.ForText(context.Background(), "summary", 1000)
	require.NoError(t, err)
	require.Len(t, got, MaxK)
}

func TestService_ForTitle(t *testing.T) {
	svc := NewService(&fakeCatalog{videos: petsCatalog()}, nil, 0, 3, nil)

	got, err := svc.ForTitle(context.Background(), "Dogs", 1)
	require.NoError(t, err)
	require.Equal(t, []string{"cats1"}, ids(got))

	// unknown title falls back to a text query over everything
	got, err = svc.ForTitle(context.Background(), "rockets", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, "space1", got[0].Video.ExternalID)
}

func TestService_ForTextExcludesExactMatch(t *testing.T) {
	svc := NewService(&fakeCatalog{videos: petsCatalog()}, nil, 0, 3, nil)

	got, err := svc.ForText(context.Background(), "Cats Documentary cute cats", 5)
	require.NoError(t, err)
	require.Equal(t, []string{"dogs1", "space1"}, ids(got))
}

func TestService_EmptyCatalog(t *testing.T) {
	svc := NewService(&fakeCatalog{videos: []models.Video{}}, nil, 0, 3, nil)
	_, err := svc.ForText(context.Background(), "cats", 3)
	require.ErrorIs(t, err, ErrEmptyCorpus)

	cached := NewService(&fakeCatalog{videos: []models.Video{}}, newMemCache(), time.Minute, 3, nil)
	_, err = cached.ForVideo(context.Background(), "cats1", 3)
	require.ErrorIs(t, err, ErrEmptyCorpus)
}

func TestService_StorageErrorPropagates(t *testing.T) {
	storageErr := errors.Join(catalog.ErrStorage, errors.New("conn refused"))
	svc := NewService(&fakeCatalog{err: storageErr}, nil, 0, 3, nil)
	_, err := svc.ForText(context.Background(), "cats", 3)
	require.ErrorIs(t, err, catalog.ErrStorage)
}

func TestService_CachesIndexByVersion(t *testing.T) {
	cat := &fakeCatalog{videos: petsCatalog()}
	cache := newMemCache()
	svc := NewService(cat, cache, time.Minute, 3, nil)

	_, err := svc.ForVideo(context.Background(), "cats1", 2)
	require.NoError(t, err)
	_, err = svc.ForVideo(context.Background(), "dogs1", 2)
	require.NoError(t, err)
	require.Equal(t, 1, cat.loads)
	require.Equal(t, []string{"3-3"}, cache.sets)

	// a new insert changes the version and forces a rebuild
	cat.videos = append(cat.videos, rec(4, "cats2", "More Cats", "Documentary", "cats again"))
	got, err := svc.ForVideo(context.Background(), "cats1", 1)
	require.NoError(t, err)
	require.Equal(t, []string{"cats2"}, ids(got))
	require.Equal(t, 2, cat.loads)
	require.Equal(t, []string{"3-3", "4-4"}, cache.sets)
}

func TestService_CacheFailureRebuilds(t *testing.T) {
	cache := newMemCache()
	cache.getErr = errors.New("redis down")
	svc := NewService(&fakeCatalog{videos: petsCatalog()}, cache, time.Minute, 3, nil)

	got, err := svc.ForVideo(context.Background(), "cats1", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"dogs1", "space1"}, ids(got))
}
