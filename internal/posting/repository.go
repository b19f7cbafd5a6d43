package posting

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Queries is the set of statements the service runs, either directly or
// inside a transaction.
type Queries interface {
	CreatePosting(ctx context.Context, title, description string) (*Posting, error)
	UpdatePosting(ctx context.Context, id int64, title, description string) (*Posting, error)
	DeletePosting(ctx context.Context, id int64) error
	GetPosting(ctx context.Context, id int64) (*Posting, error)
	ListPostings(ctx context.Context) ([]Posting, error)

	CreateImage(ctx context.Context, in NewImage) (*Image, error)
	GetImage(ctx context.Context, id int64) (*Image, error)
	ListImages(ctx context.Context) ([]Image, error)
	ImagesByPostings(ctx context.Context, postingIDs []int64) ([]Image, error)
	ImagesByIDs(ctx context.Context, ids []int64) ([]Image, error)
	DeleteImages(ctx context.Context, ids []int64) (int64, error)
	ImagePaths(ctx context.Context) ([]string, error)
}

// Store is Queries plus a transaction boundary.
type Store interface {
	Queries
	// InTx runs fn inside one transaction. fn returning an error rolls back.
	InTx(ctx context.Context, fn func(q Queries) error) error
}

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository handles posting and image persistence in PostgreSQL.
type Repository struct {
	db DBTX
}

// NewRepository creates a new Repository over a pool (or a transaction).
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// InTx begins a transaction (a savepoint when already inside one), runs fn
// against it and commits.
func (r *Repository) InTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&Repository{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const postingColumns = `id, title, description, created_at, updated_at`

func scanPosting(row pgx.Row) (*Posting, error) {
	p := &Posting{}
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// CreatePosting inserts a posting and returns the stored record.
func (r *Repository) CreatePosting(ctx context.Context, title, description string) (*Posting, error) {
	p, err := scanPosting(r.db.QueryRow(ctx,
		`INSERT INTO postings (title, description)
		 VALUES ($1, $2)
		 RETURNING `+postingColumns,
		title, description,
	))
	if err != nil {
		return nil, fmt.Errorf("create posting: %w", err)
	}
	return p, nil
}

// UpdatePosting overwrites the scalar fields of a posting.
func (r *Repository) UpdatePosting(ctx context.Context, id int64, title, description string) (*Posting, error) {
	p, err := scanPosting(r.db.QueryRow(ctx,
		`UPDATE postings SET title = $2, description = $3, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+postingColumns,
		id, title, description,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update posting: %w", err)
	}
	return p, nil
}

// DeletePosting removes a posting row. Remaining image rows go with it via
// ON DELETE CASCADE.
func (r *Repository) DeletePosting(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM postings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete posting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetPosting fetches a posting without its images.
func (r *Repository) GetPosting(ctx context.Context, id int64) (*Posting, error) {
	p, err := scanPosting(r.db.QueryRow(ctx,
		`SELECT `+postingColumns+` FROM postings WHERE id = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get posting: %w", err)
	}
	return p, nil
}

// ListPostings returns all postings, newest first, without images.
func (r *Repository) ListPostings(ctx context.Context) ([]Posting, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+postingColumns+` FROM postings ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list postings: %w", err)
	}
	defer rows.Close()

	var out []Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan posting: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list postings: %w", err)
	}
	return out, nil
}

const imageColumns = `id, posting_id, title, description, path, url, original_name, mime_type, size, created_at, updated_at`

func scanImage(row pgx.Row) (*Image, error) {
	img := &Image{}
	err := row.Scan(&img.ID, &img.PostingID, &img.Title, &img.Description, &img.Path, &img.URL,
		&img.OriginalName, &img.MimeType, &img.Size, &img.CreatedAt, &img.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (r *Repository) queryImages(ctx context.Context, sql string, args ...any) ([]Image, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		out = append(out, *img)
	}
	return out, rows.Err()
}

// CreateImage inserts an image row.
func (r *Repository) CreateImage(ctx context.Context, in NewImage) (*Image, error) {
	img, err := scanImage(r.db.QueryRow(ctx,
		`INSERT INTO images (posting_id, title, description, path, url, original_name, mime_type, size)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+imageColumns,
		in.PostingID, in.Title, in.Description, in.Path, in.URL, in.OriginalName, in.MimeType, in.Size,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("create image: %w", err)
	}
	return img, nil
}

// GetImage fetches one image.
func (r *Repository) GetImage(ctx context.Context, id int64) (*Image, error) {
	img, err := scanImage(r.db.QueryRow(ctx,
		`SELECT `+imageColumns+` FROM images WHERE id = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	return img, nil
}

// ListImages returns every image, newest first.
func (r *Repository) ListImages(ctx context.Context) ([]Image, error) {
	images, err := r.queryImages(ctx,
		`SELECT `+imageColumns+` FROM images ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return images, nil
}

// ImagesByPostings returns the images owned by any of postingIDs in
// submission order.
func (r *Repository) ImagesByPostings(ctx context.Context, postingIDs []int64) ([]Image, error) {
	if len(postingIDs) == 0 {
		return nil, nil
	}
	images, err := r.queryImages(ctx,
		`SELECT `+imageColumns+` FROM images WHERE posting_id = ANY($1) ORDER BY id`,
		postingIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("images by postings: %w", err)
	}
	return images, nil
}

// ImagesByIDs returns the existing images among ids.
func (r *Repository) ImagesByIDs(ctx context.Context, ids []int64) ([]Image, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	images, err := r.queryImages(ctx,
		`SELECT `+imageColumns+` FROM images WHERE id = ANY($1) ORDER BY id`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("images by ids: %w", err)
	}
	return images, nil
}

// DeleteImages removes image rows and reports how many were deleted.
func (r *Repository) DeleteImages(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM images WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete images: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ImagePaths returns every storage key referenced by an image row.
func (r *Repository) ImagePaths(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT path FROM images WHERE path <> ''`)
	if err != nil {
		return nil, fmt.Errorf("image paths: %w", err)
	}
	paths, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("image paths: %w", err)
	}
	return paths, nil
}

// isForeignKeyViolation checks whether an error is a PostgreSQL foreign_key_violation (code 23503).
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
