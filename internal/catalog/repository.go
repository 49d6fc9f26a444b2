// Package catalog persists video records in PostgreSQL.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flixtube/catalog/internal/models"
)

var (
	// ErrStorage wraps every failure of the underlying database.
	ErrStorage = errors.New("catalog storage error")
	// ErrNotFound is returned when no video has the requested external id.
	ErrNotFound = errors.New("video not found")
)

const videoColumns = `id, external_id, title, thumbnail_url, category, genre, summary, created_at`

// Filter narrows a listing. Empty fields match everything.
type Filter struct {
	Category string
	Genre    string
}

// Version identifies the catalog contents. Rows are never updated or deleted,
// so the pair changes on every successful insert and on nothing else.
type Version struct {
	Count int64
	MaxID int64
}

// String renders the version as a cache key fragment.
func (v Version) String() string {
	return fmt.Sprintf("%d-%d", v.Count, v.MaxID)
}

// Repository handles video persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a video repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertIfAbsent stores v unless its external id is already present. The
// uniqueness check and the write are one statement, so concurrent ingestion
// of the same id yields exactly one row. On OutcomeCreated, v.ID and
// v.CreatedAt are filled in.
func (r *Repository) InsertIfAbsent(ctx context.Context, v *models.Video) (models.InsertOutcome, error) {
	const q = `INSERT INTO videos (external_id, title, thumbnail_url, category, genre, summary)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (external_id) DO NOTHING
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, v.ExternalID, v.Title, v.ThumbnailURL, v.Category, v.Genre, v.Summary).
		Scan(&v.ID, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.OutcomeAlreadyExists, nil
	}
	if err != nil {
		return "", storageErr("insert video", err)
	}
	return models.OutcomeCreated, nil
}

// LoadAll returns every video in insertion order. An empty catalog yields an empty slice.
func (r *Repository) LoadAll(ctx context.Context) ([]models.Video, error) {
	return r.List(ctx, Filter{})
}

// List returns videos matching f in insertion order.
func (r *Repository) List(ctx context.Context, f Filter) ([]models.Video, error) {
	q := `SELECT ` + videoColumns + ` FROM videos`
	var args []interface{}
	var cond string
	if f.Category != "" {
		args = append(args, f.Category)
		cond = fmt.Sprintf(" WHERE category = $%d", len(args))
	}
	if f.Genre != "" {
		args = append(args, f.Genre)
		if cond == "" {
			cond = fmt.Sprintf(" WHERE genre = $%d", len(args))
		} else {
			cond += fmt.Sprintf(" AND genre = $%d", len(args))
		}
	}
	rows, err := r.pool.Query(ctx, q+cond+" ORDER BY id ASC", args...)
	if err != nil {
		return nil, storageErr("list videos", err)
	}
	defer rows.Close()

	list := make([]models.Video, 0)
	for rows.Next() {
		var v models.Video
		if err := rows.Scan(&v.ID, &v.ExternalID, &v.Title, &v.ThumbnailURL, &v.Category, &v.Genre, &v.Summary, &v.CreatedAt); err != nil {
			return nil, storageErr("scan video", err)
		}
		list = append(list, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list videos", err)
	}
	return list, nil
}

// GetByExternalID returns one video or ErrNotFound.
func (r *Repository) GetByExternalID(ctx context.Context, externalID string) (*models.Video, error) {
	q := `SELECT ` + videoColumns + ` FROM videos WHERE external_id = $1`
	var v models.Video
	err := r.pool.QueryRow(ctx, q, externalID).
		Scan(&v.ID, &v.ExternalID, &v.Title, &v.ThumbnailURL, &v.Category, &v.Genre, &v.Summary, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get video", err)
	}
	return &v, nil
}

// Exists reports whether an external id is already cataloged.
func (r *Repository) Exists(ctx context.Context, externalID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM videos WHERE external_id = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, q, externalID).Scan(&exists); err != nil {
		return false, storageErr("check video", err)
	}
	return exists, nil
}

// Categories returns the distinct stored categories, sorted.
func (r *Repository) Categories(ctx context.Context) ([]string, error) {
	const q = `SELECT DISTINCT category FROM videos WHERE category <> '' ORDER BY category`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, storageErr("list categories", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, storageErr("scan category", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list categories", err)
	}
	return out, nil
}

// Version returns the current catalog version.
func (r *Repository) Version(ctx context.Context) (Version, error) {
	const q = `SELECT COUNT(*), COALESCE(MAX(id), 0) FROM videos`
	var v Version
	if err := r.pool.QueryRow(ctx, q).Scan(&v.Count, &v.MaxID); err != nil {
		return Version{}, storageErr("catalog version", err)
	}
	return v, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
