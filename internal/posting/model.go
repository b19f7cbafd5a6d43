// Package posting manages postings, their images and the synchronisation of
// image rows with the objects held in object storage.
package posting

import (
	"errors"
	"time"
)

// Posting is a titled group of images.
type Posting struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Images      []Image   `json:"images"`
}

// Image is the metadata of one stored picture. Path is the storage key and
// never changes; URL is the last issued link and is refreshed on read.
type Image struct {
	ID           int64     `json:"id"`
	PostingID    *int64    `json:"posting_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Path         string    `json:"path"`
	URL          string    `json:"url"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewImage holds the columns written when an image row is inserted.
type NewImage struct {
	PostingID    *int64
	Title        string
	Description  string
	Path         string
	URL          string
	OriginalName string
	MimeType     string
	Size         int64
}

// ErrNotFound is returned when a posting or image does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when an image does not belong to the posting it
// was addressed through.
var ErrForbidden = errors.New("image does not belong to this posting")

// ImageIDs returns the ids of images in order.
func ImageIDs(images []Image) []int64 {
	ids := make([]int64, len(images))
	for i, img := range images {
		ids[i] = img.ID
	}
	return ids
}

// ImagePaths returns the non-empty storage keys of images.
func ImagePaths(images []Image) []string {
	paths := make([]string, 0, len(images))
	for _, img := range images {
		if img.Path != "" {
			paths = append(paths, img.Path)
		}
	}
	return paths
}
