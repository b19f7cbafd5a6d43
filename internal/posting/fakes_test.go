package posting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gallery/service/internal/storage"
)

// memState is the committed content of memStore.
type memState struct {
	postings    map[int64]Posting
	images      map[int64]Image
	nextPosting int64
	nextImage   int64
}

func (s *memState) clone() *memState {
	c := &memState{
		postings:    make(map[int64]Posting, len(s.postings)),
		images:      make(map[int64]Image, len(s.images)),
		nextPosting: s.nextPosting,
		nextImage:   s.nextImage,
	}
	for k, v := range s.postings {
		c.postings[k] = v
	}
	for k, v := range s.images {
		c.images[k] = v
	}
	return c
}

// memStore is a Store whose transactions work on a copy of the state that
// replaces it on commit.
type memStore struct {
	mu    sync.Mutex
	state *memState
	fail  map[string]error
	base  time.Time
}

func newMemStore() *memStore {
	return &memStore{
		state: &memState{postings: map[int64]Posting{}, images: map[int64]Image{}},
		fail:  map[string]error{},
		base:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) queries(st *memState) *memQueries {
	return &memQueries{st: st, fail: s.fail, base: s.base}
}

func (s *memStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(s.queries(work)); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *memStore) direct() *memQueries {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries(s.state)
}

func (s *memStore) CreatePosting(ctx context.Context, title, description string) (*Posting, error) {
	return s.direct().CreatePosting(ctx, title, description)
}
func (s *memStore) UpdatePosting(ctx context.Context, id int64, title, description string) (*Posting, error) {
	return s.direct().UpdatePosting(ctx, id, title, description)
}
func (s *memStore) DeletePosting(ctx context.Context, id int64) error {
	return s.direct().DeletePosting(ctx, id)
}
func (s *memStore) GetPosting(ctx context.Context, id int64) (*Posting, error) {
	return s.direct().GetPosting(ctx, id)
}
func (s *memStore) ListPostings(ctx context.Context) ([]Posting, error) {
	return s.direct().ListPostings(ctx)
}
func (s *memStore) CreateImage(ctx context.Context, in NewImage) (*Image, error) {
	return s.direct().CreateImage(ctx, in)
}
func (s *memStore) GetImage(ctx context.Context, id int64) (*Image, error) {
	return s.direct().GetImage(ctx, id)
}
func (s *memStore) ListImages(ctx context.Context) ([]Image, error) {
	return s.direct().ListImages(ctx)
}
func (s *memStore) ImagesByPostings(ctx context.Context, ids []int64) ([]Image, error) {
	return s.direct().ImagesByPostings(ctx, ids)
}
func (s *memStore) ImagesByIDs(ctx context.Context, ids []int64) ([]Image, error) {
	return s.direct().ImagesByIDs(ctx, ids)
}
func (s *memStore) DeleteImages(ctx context.Context, ids []int64) (int64, error) {
	return s.direct().DeleteImages(ctx, ids)
}
func (s *memStore) ImagePaths(ctx context.Context) ([]string, error) {
	return s.direct().ImagePaths(ctx)
}

func (s *memStore) postingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.postings)
}

func (s *memStore) imageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.images)
}

func (s *memStore) setImageURL(id int64, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img := s.state.images[id]
	img.URL = url
	s.state.images[id] = img
}

type memQueries struct {
	st   *memState
	fail map[string]error
	base time.Time
}

func (q *memQueries) CreatePosting(_ context.Context, title, description string) (*Posting, error) {
	if err := q.fail["CreatePosting"]; err != nil {
		return nil, err
	}
	q.st.nextPosting++
	ts := q.base.Add(time.Duration(q.st.nextPosting) * time.Second)
	p := Posting{ID: q.st.nextPosting, Title: title, Description: description, CreatedAt: ts, UpdatedAt: ts}
	q.st.postings[p.ID] = p
	return &p, nil
}

func (q *memQueries) UpdatePosting(_ context.Context, id int64, title, description string) (*Posting, error) {
	if err := q.fail["UpdatePosting"]; err != nil {
		return nil, err
	}
	p, ok := q.st.postings[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.Title, p.Description = title, description
	q.st.postings[id] = p
	return &p, nil
}

func (q *memQueries) DeletePosting(_ context.Context, id int64) error {
	if err := q.fail["DeletePosting"]; err != nil {
		return err
	}
	if _, ok := q.st.postings[id]; !ok {
		return ErrNotFound
	}
	delete(q.st.postings, id)
	for imgID, img := range q.st.images {
		if img.PostingID != nil && *img.PostingID == id {
			delete(q.st.images, imgID)
		}
	}
	return nil
}

func (q *memQueries) GetPosting(_ context.Context, id int64) (*Posting, error) {
	p, ok := q.st.postings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (q *memQueries) ListPostings(context.Context) ([]Posting, error) {
	out := make([]Posting, 0, len(q.st.postings))
	for _, p := range q.st.postings {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (q *memQueries) CreateImage(_ context.Context, in NewImage) (*Image, error) {
	if err := q.fail["CreateImage"]; err != nil {
		return nil, err
	}
	if in.PostingID != nil {
		if _, ok := q.st.postings[*in.PostingID]; !ok {
			return nil, ErrNotFound
		}
	}
	q.st.nextImage++
	ts := q.base.Add(time.Duration(q.st.nextImage) * time.Second)
	img := Image{
		ID:           q.st.nextImage,
		PostingID:    in.PostingID,
		Title:        in.Title,
		Description:  in.Description,
		Path:         in.Path,
		URL:          in.URL,
		OriginalName: in.OriginalName,
		MimeType:     in.MimeType,
		Size:         in.Size,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	q.st.images[img.ID] = img
	return &img, nil
}

func (q *memQueries) GetImage(_ context.Context, id int64) (*Image, error) {
	img, ok := q.st.images[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &img, nil
}

func (q *memQueries) ListImages(context.Context) ([]Image, error) {
	out := q.filterImages(func(Image) bool { return true })
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (q *memQueries) ImagesByPostings(_ context.Context, ids []int64) ([]Image, error) {
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	return q.filterImages(func(img Image) bool {
		return img.PostingID != nil && want[*img.PostingID]
	}), nil
}

func (q *memQueries) ImagesByIDs(_ context.Context, ids []int64) ([]Image, error) {
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	return q.filterImages(func(img Image) bool { return want[img.ID] }), nil
}

func (q *memQueries) DeleteImages(_ context.Context, ids []int64) (int64, error) {
	if err := q.fail["DeleteImages"]; err != nil {
		return 0, err
	}
	var n int64
	for _, id := range ids {
		if _, ok := q.st.images[id]; ok {
			delete(q.st.images, id)
			n++
		}
	}
	return n, nil
}

func (q *memQueries) ImagePaths(context.Context) ([]string, error) {
	var out []string
	for _, img := range q.st.images {
		if img.Path != "" {
			out = append(out, img.Path)
		}
	}
	return out, nil
}

// filterImages returns matching images ordered by id.
func (q *memQueries) filterImages(keep func(Image) bool) []Image {
	var out []Image
	for _, img := range q.st.images {
		if keep(img) {
			out = append(out, img)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// memObjects is an in-memory storage.Storage backend.
type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    map[string]error
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}, fail: map[string]error{}}
}

func (m *memObjects) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["Upload"]; err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["Delete"]; err != nil {
		return err
	}
	delete(m.objects, key)
	return nil
}

func (m *memObjects) DeleteMany(_ context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["DeleteMany"]; err != nil {
		return err
	}
	for _, k := range keys {
		delete(m.objects, k)
	}
	return nil
}

func (m *memObjects) URL(_ context.Context, key string, expiry time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail["URL"]; err != nil {
		return "", err
	}
	return fmt.Sprintf("https://objects.test/%s?expires=%s", key, expiry), nil
}

func (m *memObjects) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memObjects) put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
}

func (m *memObjects) drop(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
}

func (m *memObjects) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

func (m *memObjects) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

var errBoom = errors.New("boom")

type fixture struct {
	svc     *Service
	store   *memStore
	objects *memObjects
	logs    *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	objects := newMemObjects()
	logs := &bytes.Buffer{}

	gw := storage.NewGateway(map[storage.Disk]storage.Storage{storage.DiskS3: objects})
	svc := NewService(store, gw, Options{
		Disk:   storage.DiskS3,
		Logger: slog.New(slog.NewTextHandler(logs, nil)),
	})
	return &fixture{svc: svc, store: store, objects: objects, logs: logs}
}

// Minimal magic-number prefixes recognised by content sniffing.
var (
	pngMagic  = []byte("\x89PNG\r\n\x1a\n")
	jpegMagic = []byte("\xff\xd8\xff\xe0")
	gifMagic  = []byte("GIF89a")
	webpMagic = []byte("RIFF\x00\x00\x00\x00WEBPVP8 ")
	bmpMagic  = []byte("BM")
)

func fileOf(magic []byte, size int) []byte {
	data := make([]byte, size)
	copy(data, magic)
	return data
}

func upload(name string, data []byte) Upload {
	return Upload{
		Filename: name,
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func pngUploads(n int) []Upload {
	out := make([]Upload, n)
	for i := range out {
		out[i] = upload(fmt.Sprintf("img-%d.png", i), fileOf(pngMagic, 1024))
	}
	return out
}
