package storage

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Gateway routes object operations to the backend registered for a disk and
// owns the key layout. It keeps no state besides the backend table.
type Gateway struct {
	disks map[Disk]Storage
	now   func() time.Time
	token func() string
}

// NewGateway creates a Gateway over the given backends.
func NewGateway(disks map[Disk]Storage) *Gateway {
	table := make(map[Disk]Storage, len(disks))
	for d, s := range disks {
		table[d] = s
	}
	return &Gateway{disks: table, now: time.Now, token: newToken}
}

func (g *Gateway) backend(disk Disk) (Storage, error) {
	s, ok := g.disks[disk]
	if !ok || s == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDisk, disk)
	}
	return s, nil
}

// Put writes f under directory and returns the generated key:
//
//	<directory>[/posting-<ownerID>]/<unix seconds>_<token>_<filename>
//
// The token is random, so equal filenames uploaded within the same second
// still get distinct keys. ownerID 0 means the object has no owner.
func (g *Gateway) Put(ctx context.Context, disk Disk, directory string, ownerID int64, f File) (string, error) {
	s, err := g.backend(disk)
	if err != nil {
		return "", err
	}

	key := g.objectKey(directory, ownerID, f.Name)
	if err := s.Upload(ctx, key, f.Body, f.Size, f.ContentType); err != nil {
		return "", fmt.Errorf("upload %q: %w", key, err)
	}
	return key, nil
}

// URL returns a fresh URL for key. Nothing is cached: time-limited backends
// re-sign on every call.
func (g *Gateway) URL(ctx context.Context, disk Disk, key string, expiry time.Duration) (string, error) {
	s, err := g.backend(disk)
	if err != nil {
		return "", err
	}
	u, err := s.URL(ctx, key, expiry)
	if err != nil {
		return "", fmt.Errorf("url for %q: %w", key, err)
	}
	return u, nil
}

// Delete removes a single object. Backends treat a missing object as already
// deleted; other failures are returned to the caller and never retried.
func (g *Gateway) Delete(ctx context.Context, disk Disk, key string) error {
	s, err := g.backend(disk)
	if err != nil {
		return err
	}
	if err := s.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// DeleteMany removes keys in one batch. Empty keys are skipped.
func (g *Gateway) DeleteMany(ctx context.Context, disk Disk, keys []string) error {
	s, err := g.backend(disk)
	if err != nil {
		return err
	}
	batch := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			batch = append(batch, k)
		}
	}
	if len(batch) == 0 {
		return nil
	}
	if err := s.DeleteMany(ctx, batch); err != nil {
		return fmt.Errorf("delete %d objects: %w", len(batch), err)
	}
	return nil
}

// List returns the keys stored under prefix.
func (g *Gateway) List(ctx context.Context, disk Disk, prefix string) ([]string, error) {
	s, err := g.backend(disk)
	if err != nil {
		return nil, err
	}
	keys, err := s.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}
	return keys, nil
}

func (g *Gateway) objectKey(directory string, ownerID int64, filename string) string {
	dir := strings.Trim(directory, "/")
	if ownerID > 0 {
		dir = path.Join(dir, "posting-"+strconv.FormatInt(ownerID, 10))
	}
	name := strconv.FormatInt(g.now().Unix(), 10) + "_" + g.token() + "_" + baseName(filename)
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// newToken returns the first eight hex digits of a random UUID.
func newToken() string {
	return uuid.NewString()[:8]
}

// baseName strips any client-supplied directories from a filename.
func baseName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	switch name {
	case "", ".", "..", "/":
		return "file"
	}
	return name
}
