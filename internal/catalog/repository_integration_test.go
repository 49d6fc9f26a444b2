package catalog_test

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/flixtube/catalog/internal/catalog"
	"github.com/flixtube/catalog/internal/models"
	"github.com/flixtube/catalog/internal/videoid"
	"github.com/flixtube/catalog/pkg/database"
)

var (
	testPool      *pgxpool.Pool
	testContainer testcontainers.Container
)

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	if err := startPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres container unavailable, integration tests will skip: %v\n", err)
	}

	code := m.Run()

	if testPool != nil {
		testPool.Close()
	}
	if testContainer != nil {
		termCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = testContainer.Terminate(termCtx)
	}
	os.Exit(code)
}

func startPostgres(ctx context.Context) error {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_USER":     "postgres",
			"POSTGRES_DB":       "flixtube",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return err
	}
	testContainer = container

	host, err := container.Host(ctx)
	if err != nil {
		return err
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return err
	}

	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/flixtube?sslmode=disable", host, port.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return err
	}
	testPool = pool

	return database.Migrate(ctx, pool)
}

func newRepo(t *testing.T) *catalog.Repository {
	t.Helper()
	if testPool == nil {
		t.Skip("postgres not available")
	}
	_, err := testPool.Exec(context.Background(), `TRUNCATE TABLE videos RESTART IDENTITY`)
	require.NoError(t, err)
	return catalog.NewRepository(testPool)
}

func video(externalID, title, category, summary string) *models.Video {
	return &models.Video{
		ExternalID:   externalID,
		Title:        title,
		ThumbnailURL: videoid.ThumbnailURL(externalID),
		Category:     category,
		Summary:      summary,
	}
}

func TestMigrate_RecordsAndSkipsApplied(t *testing.T) {
	newRepo(t)
	ctx := context.Background()
	require.NoError(t, database.Migrate(ctx, testPool))

	var n int
	require.NoError(t, testPool.QueryRow(ctx,
		`SELECT COUNT(*) FROM schema_migrations WHERE name = '001_videos.sql'`).Scan(&n))
	require.Equal(t, 1, n)
}

func TestRepository_LoadAllEmpty(t *testing.T) {
	repo := newRepo(t)

	list, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, list)
	require.Empty(t, list)

	v, err := repo.Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, catalog.Version{}, v)
}

func TestRepository_InsertIfAbsentDuplicate(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	first := video("ABC123", "Cats", "Documentary", "cute cats")
	outcome, err := repo.InsertIfAbsent(ctx, first)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeCreated, outcome)
	require.NotZero(t, first.ID)
	require.False(t, first.CreatedAt.IsZero())

	outcome, err = repo.InsertIfAbsent(ctx, video("ABC123", "Other title", "Drama", "different"))
	require.NoError(t, err)
	require.Equal(t, models.OutcomeAlreadyExists, outcome)

	list, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Cats", list[0].Title)
}

func TestRepository_ConcurrentInsertKeepsOneRow(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	const writers = 8
	outcomes := make([]models.InsertOutcome, writers)
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = repo.InsertIfAbsent(ctx, video("RACE01", "Race", "Other", "same id"))
		}(i)
	}
	wg.Wait()

	created := 0
	for i, o := range outcomes {
		require.NoError(t, errs[i])
		if o == models.OutcomeCreated {
			created++
		}
	}
	require.Equal(t, 1, created)

	list, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestRepository_LoadAllInsertionOrderAndFilters(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	thriller := "Thriller"
	items := []*models.Video{
		video("v1", "Cats", "Documentary", "cute cats"),
		video("v2", "Dogs", "Documentary", "loyal dogs"),
		video("v3", "Space", "Sci-Fi", "stars and rockets"),
	}
	items[1].Genre = &thriller
	for _, v := range items {
		_, err := repo.InsertIfAbsent(ctx, v)
		require.NoError(t, err)
	}

	list, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, []string{"v1", "v2", "v3"}, []string{list[0].ExternalID, list[1].ExternalID, list[2].ExternalID})
	require.Nil(t, list[0].Genre)
	require.Equal(t, "Thriller", list[1].GenreOrEmpty())

	docs, err := repo.List(ctx, catalog.Filter{Category: "Documentary"})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	both, err := repo.List(ctx, catalog.Filter{Category: "Documentary", Genre: "Thriller"})
	require.NoError(t, err)
	require.Len(t, both, 1)
	require.Equal(t, "v2", both[0].ExternalID)

	cats, err := repo.Categories(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Documentary", "Sci-Fi"}, cats)

	ver, err := repo.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), ver.Count)
	require.Equal(t, "3-3", ver.String())
}

func TestRepository_GetByExternalID(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.GetByExternalID(ctx, "missing")
	require.ErrorIs(t, err, catalog.ErrNotFound)

	_, err = repo.InsertIfAbsent(ctx, video("ABC123", "Cats", "Documentary", "cute cats"))
	require.NoError(t, err)

	got, err := repo.GetByExternalID(ctx, "ABC123")
	require.NoError(t, err)
	require.Equal(t, "https://img.youtube.com/vi/ABC123/0.jpg", got.ThumbnailURL)

	exists, err := repo.Exists(ctx, "ABC123")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestRepository_StorageErrorWhenClosed(t *testing.T) {
	if testPool == nil {
		t.Skip("postgres not available")
	}
	pool, err := pgxpool.New(context.Background(), testPool.Config().ConnString())
	require.NoError(t, err)
	pool.Close()

	_, err = catalog.NewRepository(pool).LoadAll(context.Background())
	require.ErrorIs(t, err, catalog.ErrStorage)
}
