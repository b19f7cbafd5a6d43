package posting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gallery/service/internal/middleware"
	"github.com/gallery/service/internal/storage"
)

// imageDirectory is the key prefix of every stored image.
const imageDirectory = "images"

// ObjectStore is the object store gateway as used by the service.
type ObjectStore interface {
	Put(ctx context.Context, disk storage.Disk, directory string, ownerID int64, f storage.File) (string, error)
	URL(ctx context.Context, disk storage.Disk, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, disk storage.Disk, key string) error
	DeleteMany(ctx context.Context, disk storage.Disk, keys []string) error
	List(ctx context.Context, disk storage.Disk, prefix string) ([]string, error)
}

// Options configures a Service.
type Options struct {
	Disk      storage.Disk
	URLExpiry time.Duration
	Logger    *slog.Logger
}

// Service keeps posting and image rows consistent with stored objects.
//
// Every mutation runs in one database transaction. Object writes and deletes
// happen inside the transaction's critical section but are not undone by a
// rollback: a failure after an upload leaves an orphaned object, and a
// failure after an object delete leaves a row without its object. Orphans
// can be collected out of band with SweepOrphans.
type Service struct {
	store     Store
	objects   ObjectStore
	disk      storage.Disk
	urlExpiry time.Duration
	log       *slog.Logger
}

// NewService creates a new posting Service.
func NewService(store Store, objects ObjectStore, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.URLExpiry <= 0 {
		opts.URLExpiry = 24 * time.Hour
	}
	return &Service{
		store:     store,
		objects:   objects,
		disk:      opts.Disk,
		urlExpiry: opts.URLExpiry,
		log:       opts.Logger,
	}
}

// CreateInput is a new posting with its images.
type CreateInput struct {
	Title       string
	Description string
	Images      []Upload
}

// UpdateInput replaces the scalar fields of a posting, removes
// DeleteImageIDs and then appends Images. FormErrors holds field errors found
// while decoding the request; they are reported with the remaining checks.
type UpdateInput struct {
	Title          string
	Description    string
	Images         []Upload
	DeleteImageIDs []int64
	FormErrors     *ValidationError
}

// UploadInput is a standalone image without a posting.
type UploadInput struct {
	Title       string
	Description string
	Image       *Upload
}

// CreatePosting validates the input, inserts the posting and stores every
// image in submission order.
func (s *Service) CreatePosting(ctx context.Context, in CreateInput) (*Posting, error) {
	title, description := normalizeText(in.Title, in.Description)

	ve := &ValidationError{}
	validateText(ve, title, description)
	validateUploads(ve, in.Images, 1, "Maximum 10 images allowed per posting.")
	if err := ve.errOrNil(); err != nil {
		return nil, err
	}

	var (
		created  *Posting
		uploaded []string
	)
	err := s.store.InTx(ctx, func(q Queries) error {
		p, err := q.CreatePosting(ctx, title, description)
		if err != nil {
			return err
		}
		images, err := s.storeImages(ctx, q, p.ID, in.Images, &uploaded)
		if err != nil {
			return err
		}
		p.Images = images
		created = p
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "posting creation failed", err, "uploaded_keys", uploaded)
		return nil, err
	}

	s.log.Info("posting created", "posting_id", created.ID, "images", len(created.Images))
	return created, nil
}

// UpdatePosting updates title and description, deletes the requested images
// (objects first, then rows) and then adds new ones. Deletes always run
// before adds.
func (s *Service) UpdatePosting(ctx context.Context, id int64, in UpdateInput) (*Posting, error) {
	title, description := normalizeText(in.Title, in.Description)

	ve := &ValidationError{}
	ve.merge(in.FormErrors)
	validateText(ve, title, description)
	validateUploads(ve, in.Images, 0, "Maximum 10 images allowed per posting.")
	if err := ve.errOrNil(); err != nil {
		return nil, err
	}

	var (
		updated  *Posting
		uploaded []string
	)
	err := s.store.InTx(ctx, func(q Queries) error {
		if _, err := q.GetPosting(ctx, id); err != nil {
			return err
		}
		toDelete, err := resolveDeleteSet(ctx, q, id, in.DeleteImageIDs)
		if err != nil {
			return err
		}

		p, err := q.UpdatePosting(ctx, id, title, description)
		if err != nil {
			return err
		}

		if len(toDelete) > 0 {
			if err := s.objects.DeleteMany(ctx, s.disk, ImagePaths(toDelete)); err != nil {
				return err
			}
			if _, err := q.DeleteImages(ctx, ImageIDs(toDelete)); err != nil {
				return err
			}
		}

		if _, err := s.storeImages(ctx, q, id, in.Images, &uploaded); err != nil {
			return err
		}

		images, err := q.ImagesByPostings(ctx, []int64{id})
		if err != nil {
			return err
		}
		p.Images = nonNil(images)
		updated = p
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "posting update failed", err, "posting_id", id, "uploaded_keys", uploaded)
		return nil, err
	}

	s.log.Info("posting updated", "posting_id", id,
		"deleted_images", len(in.DeleteImageIDs), "added_images", len(in.Images))
	return updated, nil
}

// AddImages appends images to an existing posting.
func (s *Service) AddImages(ctx context.Context, postingID int64, uploads []Upload) ([]Image, error) {
	ve := &ValidationError{}
	validateUploads(ve, uploads, 1, "Maximum 10 images allowed per request.")
	if err := ve.errOrNil(); err != nil {
		return nil, err
	}

	var (
		added    []Image
		uploaded []string
	)
	err := s.store.InTx(ctx, func(q Queries) error {
		if _, err := q.GetPosting(ctx, postingID); err != nil {
			return err
		}
		images, err := s.storeImages(ctx, q, postingID, uploads, &uploaded)
		if err != nil {
			return err
		}
		added = images
		return nil
	})
	if err != nil {
		s.logFailure(ctx, "adding images failed", err, "posting_id", postingID, "uploaded_keys", uploaded)
		return nil, err
	}
	return added, nil
}

// UploadImage stores a standalone image that belongs to no posting.
func (s *Service) UploadImage(ctx context.Context, in UploadInput) (*Image, error) {
	title, description := normalizeText(in.Title, in.Description)

	ve := &ValidationError{}
	validateText(ve, title, description)
	if in.Image == nil {
		ve.add("image", "The image field is required.")
	} else {
		validateUpload(ve, "image", in.Image)
	}
	if err := ve.errOrNil(); err != nil {
		return nil, err
	}

	key, url, err := s.putObject(ctx, 0, *in.Image)
	if err != nil {
		s.logFailure(ctx, "image upload failed", err)
		return nil, err
	}

	img, err := s.store.CreateImage(ctx, NewImage{
		Title:        title,
		Description:  description,
		Path:         key,
		URL:          url,
		OriginalName: in.Image.Filename,
		MimeType:     in.Image.MimeType,
		Size:         in.Image.Size,
	})
	if err != nil {
		s.logFailure(ctx, "image upload failed", err, "uploaded_keys", []string{key})
		return nil, err
	}
	return img, nil
}

// DeleteImage removes a standalone or posting-owned image and its object.
func (s *Service) DeleteImage(ctx context.Context, imageID int64) error {
	err := s.store.InTx(ctx, func(q Queries) error {
		img, err := q.GetImage(ctx, imageID)
		if err != nil {
			return err
		}
		return s.deleteImage(ctx, q, img)
	})
	if err != nil {
		s.logFailure(ctx, "image deletion failed", err, "image_id", imageID)
		return err
	}
	return nil
}

// DeletePostingImage removes an image through its posting. An image owned by
// another posting (or by none) is rejected with ErrForbidden.
func (s *Service) DeletePostingImage(ctx context.Context, postingID, imageID int64) error {
	err := s.store.InTx(ctx, func(q Queries) error {
		if _, err := q.GetPosting(ctx, postingID); err != nil {
			return err
		}
		img, err := q.GetImage(ctx, imageID)
		if err != nil {
			return err
		}
		if img.PostingID == nil || *img.PostingID != postingID {
			return ErrForbidden
		}
		return s.deleteImage(ctx, q, img)
	})
	if err != nil {
		s.logFailure(ctx, "deleting image from posting failed", err, "posting_id", postingID, "image_id", imageID)
		return err
	}
	return nil
}

func (s *Service) deleteImage(ctx context.Context, q Queries, img *Image) error {
	if img.Path != "" {
		if err := s.objects.Delete(ctx, s.disk, img.Path); err != nil {
			return err
		}
	}
	n, err := q.DeleteImages(ctx, []int64{img.ID})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePosting batch-deletes the posting's objects, then its image rows and
// finally the posting row.
func (s *Service) DeletePosting(ctx context.Context, id int64) error {
	err := s.store.InTx(ctx, func(q Queries) error {
		if _, err := s.deletePostingImages(ctx, q, id); err != nil {
			return err
		}
		return q.DeletePosting(ctx, id)
	})
	if err != nil {
		s.logFailure(ctx, "posting deletion failed", err, "posting_id", id)
		return err
	}
	s.log.Info("posting deleted", "posting_id", id)
	return nil
}

// DeleteAllPostingImages removes every image of a posting and keeps the
// posting. It returns the number of images removed.
func (s *Service) DeleteAllPostingImages(ctx context.Context, postingID int64) (int, error) {
	var deleted int
	err := s.store.InTx(ctx, func(q Queries) error {
		n, err := s.deletePostingImages(ctx, q, postingID)
		deleted = n
		return err
	})
	if err != nil {
		s.logFailure(ctx, "deleting all images from posting failed", err, "posting_id", postingID)
		return 0, err
	}
	return deleted, nil
}

func (s *Service) deletePostingImages(ctx context.Context, q Queries, postingID int64) (int, error) {
	if _, err := q.GetPosting(ctx, postingID); err != nil {
		return 0, err
	}
	images, err := q.ImagesByPostings(ctx, []int64{postingID})
	if err != nil {
		return 0, err
	}
	if len(images) == 0 {
		return 0, nil
	}
	if err := s.objects.DeleteMany(ctx, s.disk, ImagePaths(images)); err != nil {
		return 0, err
	}
	n, err := q.DeleteImages(ctx, ImageIDs(images))
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ListPostings returns all postings, newest first, with fresh image URLs.
func (s *Service) ListPostings(ctx context.Context) ([]Posting, error) {
	postings, err := s.store.ListPostings(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(postings))
	for i, p := range postings {
		ids[i] = p.ID
	}
	images, err := s.store.ImagesByPostings(ctx, ids)
	if err != nil {
		return nil, err
	}
	s.refreshURLs(ctx, images)

	byPosting := make(map[int64][]Image, len(postings))
	for _, img := range images {
		if img.PostingID != nil {
			byPosting[*img.PostingID] = append(byPosting[*img.PostingID], img)
		}
	}
	for i := range postings {
		postings[i].Images = nonNil(byPosting[postings[i].ID])
	}
	return postings, nil
}

// GetPosting returns one posting with fresh image URLs.
func (s *Service) GetPosting(ctx context.Context, id int64) (*Posting, error) {
	p, err := s.store.GetPosting(ctx, id)
	if err != nil {
		return nil, err
	}
	images, err := s.store.ImagesByPostings(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	s.refreshURLs(ctx, images)
	p.Images = nonNil(images)
	return p, nil
}

// ListImages returns every image, newest first, with fresh URLs.
func (s *Service) ListImages(ctx context.Context) ([]Image, error) {
	images, err := s.store.ListImages(ctx)
	if err != nil {
		return nil, err
	}
	s.refreshURLs(ctx, images)
	return nonNil(images), nil
}

// GetImage returns one image with a fresh URL.
func (s *Service) GetImage(ctx context.Context, id int64) (*Image, error) {
	img, err := s.store.GetImage(ctx, id)
	if err != nil {
		return nil, err
	}
	images := []Image{*img}
	s.refreshURLs(ctx, images)
	return &images[0], nil
}

// refreshURLs re-issues URLs from storage keys. A failed refresh keeps the
// last known URL.
func (s *Service) refreshURLs(ctx context.Context, images []Image) {
	for i := range images {
		if images[i].Path == "" {
			continue
		}
		url, err := s.objects.URL(ctx, s.disk, images[i].Path, s.urlExpiry)
		if err != nil {
			s.log.Warn("refreshing image url failed", "image_id", images[i].ID, "error", err)
			continue
		}
		images[i].URL = url
	}
}

// storeImages uploads each file under images/posting-<id> and inserts its
// row. Keys written so far are appended to uploaded even on failure.
func (s *Service) storeImages(ctx context.Context, q Queries, postingID int64, uploads []Upload, uploaded *[]string) ([]Image, error) {
	images := make([]Image, 0, len(uploads))
	for _, u := range uploads {
		key, url, err := s.putObject(ctx, postingID, u)
		if key != "" {
			*uploaded = append(*uploaded, key)
		}
		if err != nil {
			return nil, err
		}

		owner := postingID
		img, err := q.CreateImage(ctx, NewImage{
			PostingID:    &owner,
			Title:        u.Filename,
			Path:         key,
			URL:          url,
			OriginalName: u.Filename,
			MimeType:     u.MimeType,
			Size:         u.Size,
		})
		if err != nil {
			return nil, err
		}
		images = append(images, *img)
	}
	return images, nil
}

// putObject uploads one file and issues its URL. The key is returned
// whenever the object was written, even if signing failed.
func (s *Service) putObject(ctx context.Context, ownerID int64, u Upload) (string, string, error) {
	if u.Open == nil {
		return "", "", fmt.Errorf("open %q: no content", u.Filename)
	}
	f, err := u.Open()
	if err != nil {
		return "", "", fmt.Errorf("open %q: %w", u.Filename, err)
	}
	defer f.Close()

	key, err := s.objects.Put(ctx, s.disk, imageDirectory, ownerID, storage.File{
		Name:        u.Filename,
		ContentType: u.MimeType,
		Size:        u.Size,
		Body:        f,
	})
	if err != nil {
		return "", "", err
	}
	url, err := s.objects.URL(ctx, s.disk, key, s.urlExpiry)
	if err != nil {
		return key, "", err
	}
	return key, url, nil
}

// resolveDeleteSet loads the images named by ids and checks that each one
// exists and belongs to postingID.
func resolveDeleteSet(ctx context.Context, q Queries, postingID int64, ids []int64) ([]Image, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := q.ImagesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]Image, len(found))
	for _, img := range found {
		byID[img.ID] = img
	}

	ve := &ValidationError{}
	seen := make(map[int64]bool, len(ids))
	var out []Image
	for i, id := range ids {
		field := fmt.Sprintf("delete_images.%d", i)
		img, ok := byID[id]
		switch {
		case !ok:
			ve.add(field, "One or more selected images do not exist.")
		case img.PostingID == nil || *img.PostingID != postingID:
			ve.add(field, "The selected image does not belong to this posting.")
		case !seen[id]:
			seen[id] = true
			out = append(out, img)
		}
	}
	if err := ve.errOrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// logFailure logs unexpected errors; validation, not-found and ownership
// errors are the caller's to report.
func (s *Service) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	var ve *ValidationError
	if errors.As(err, &ve) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
		return
	}
	if sub := middleware.Subject(ctx); sub != "" {
		attrs = append(attrs, "subject", sub)
	}
	s.log.ErrorContext(ctx, msg, append(attrs, "error", err)...)
}

func normalizeText(title, description string) (string, string) {
	return strings.TrimSpace(title), strings.TrimSpace(description)
}

func nonNil(images []Image) []Image {
	if images == nil {
		return []Image{}
	}
	return images
}
