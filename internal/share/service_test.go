package share

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmpdrop/service/internal/config"
	"github.com/tmpdrop/service/internal/slug"
	"github.com/tmpdrop/service/internal/storage"
)

// -------- test fake --------

// fakeStorage is an in-memory storage.Storage. listOrder, when set, pins
// the order List returns objects in; otherwise keys come back sorted.
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string

	listOrder []string

	putErr     error // overwrite-allowed Put (metadata)
	putNewErr  error // non-overwrite Put (primary)
	listErr    error
	getErr     error
	presignErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (f *fakeStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.write(key, r, contentType)
}

func (f *fakeStorage) PutNew(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if f.putNewErr != nil {
		return f.putNewErr
	}
	f.mu.Lock()
	_, exists := f.objects[key]
	f.mu.Unlock()
	if exists {
		return storage.ErrObjectExists
	}
	return f.write(key, r, contentType)
}

func (f *fakeStorage) write(key string, r io.Reader, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	f.types[key] = contentType
	return nil
}

func (f *fakeStorage) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := f.listOrder
	if keys == nil {
		for k := range f.objects {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}
	var out []storage.Object
	for _, k := range keys {
		data, ok := f.objects[k]
		if !ok || !strings.HasPrefix(k, prefix) {
			continue
		}
		out = append(out, storage.Object{
			Key:         k,
			Name:        k[strings.LastIndex(k, "/")+1:],
			Size:        int64(len(data)),
			ContentType: f.types[k],
		})
	}
	return out, nil
}

func (f *fakeStorage) Get(ctx context.Context, key string) (io.ReadCloser, storage.Object, error) {
	if f.getErr != nil {
		return nil, storage.Object{}, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.Object{}, storage.ErrObjectNotFound
	}
	obj := storage.Object{
		Key:         key,
		Name:        key[strings.LastIndex(key, "/")+1:],
		Size:        int64(len(data)),
		ContentType: f.types[key],
	}
	return io.NopCloser(bytes.NewReader(data)), obj, nil
}

func (f *fakeStorage) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return "https://storage.example/signed-get/" + key, nil
}

func (f *fakeStorage) PresignPut(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return "https://storage.example/signed-put/" + key, nil
}

func (f *fakeStorage) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func testConfig() *config.Config {
	return &config.Config{
		BaseURL:        "http://localhost:8080",
		MaxInlineSize:  4 << 20,
		MaxFileSize:    50 << 20,
		DownloadURLTTL: 10 * time.Minute,
		UploadURLTTL:   15 * time.Minute,
	}
}

// -------- upload --------

func TestUploadRoundTrip(t *testing.T) {
	store := newFakeStorage()
	svc := NewService(store, testConfig())
	content := bytes.Repeat([]byte("a"), 2048)

	res, err := svc.Upload(context.Background(), UploadInput{
		Name:        "notes.txt",
		Size:        int64(len(content)),
		ContentType: "text/plain",
		Body:        bytes.NewReader(content),
	})
	require.NoError(t, err)
	require.Len(t, res.Slug, slug.Length)
	assert.Equal(t, "notes.txt", res.FileName)
	assert.Equal(t, int64(2048), res.FileSize)
	assert.Equal(t, "http://localhost:8080/download/"+res.Slug, res.DownloadURL)

	// primary object and metadata record both written, in that layout
	assert.Equal(t, []string{res.Slug + "/metadata.json", res.Slug + "/notes.txt"}, store.keys())

	// the slug resolves straight back to the uploaded bytes and name
	rc, obj, err := svc.Open(context.Background(), res.Slug)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "notes.txt", obj.Name)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestUploadWritesMetadataRecord(t *testing.T) {
	store := newFakeStorage()
	svc := NewService(store, testConfig())

	res, err := svc.Upload(context.Background(), UploadInput{
		Name:        "report.pdf",
		Size:        10,
		ContentType: "application/pdf",
		Body:        strings.NewReader("0123456789"),
	})
	require.NoError(t, err)

	var meta FileMetadata
	require.NoError(t, json.Unmarshal(store.objects[res.Slug+"/metadata.json"], &meta))
	assert.Equal(t, "report.pdf", meta.OriginalName)
	assert.Equal(t, int64(10), meta.Size)
	assert.Equal(t, "application/pdf", meta.Type)
	assert.Equal(t, res.Slug, meta.Slug)
	assert.WithinDuration(t, time.Now(), meta.UploadedAt, time.Minute)
	assert.Equal(t, "application/json", store.types[res.Slug+"/metadata.json"])
}

func TestUploadOverLimitWritesNothing(t *testing.T) {
	cfg := testConfig()
	store := newFakeStorage()
	svc := NewService(store, cfg)

	for _, size := range []int64{cfg.MaxInlineSize + 1, cfg.MaxFileSize + 1} {
		_, err := svc.Upload(context.Background(), UploadInput{
			Name: "big.iso",
			Size: size,
			Body: strings.NewReader("x"),
		})
		require.ErrorIs(t, err, ErrTooLarge)
	}
	assert.Empty(t, store.keys(), "rejected uploads must not touch storage")
}

func TestUploadMetadataFailureStillSucceeds(t *testing.T) {
	store := newFakeStorage()
	store.putErr = errors.New("metadata write exploded")
	svc := NewService(store, testConfig())

	res, err := svc.Upload(context.Background(), UploadInput{
		Name:        "notes.txt",
		Size:        5,
		ContentType: "text/plain",
		Body:        strings.NewReader("hello"),
	})
	require.NoError(t, err, "primary write success is the sole success condition")
	assert.Equal(t, []string{res.Slug + "/notes.txt"}, store.keys())

	// retrieval works without the metadata record
	_, obj, err := svc.Open(context.Background(), res.Slug)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", obj.Name)
}

func TestUploadPrimaryFailureAborts(t *testing.T) {
	store := newFakeStorage()
	store.putNewErr = errors.New("backend down")
	svc := NewService(store, testConfig())

	_, err := svc.Upload(context.Background(), UploadInput{
		Name: "notes.txt",
		Size: 5,
		Body: strings.NewReader("hello"),
	})
	require.Error(t, err)
	assert.Empty(t, store.keys(), "no metadata after a failed primary write")
}

func TestUploadRejectsReservedNames(t *testing.T) {
	svc := NewService(newFakeStorage(), testConfig())
	for _, name := range []string{"", ".", "..", ".hidden", "metadata.json", "data.JSON"} {
		_, err := svc.Upload(context.Background(), UploadInput{
			Name: name,
			Size: 1,
			Body: strings.NewReader("x"),
		})
		assert.ErrorIs(t, err, ErrBadName, "name %q", name)
	}
}

func TestUploadStripsDirectoryComponents(t *testing.T) {
	store := newFakeStorage()
	svc := NewService(store, testConfig())

	res, err := svc.Upload(context.Background(), UploadInput{
		Name: `C:\Users\me\Desktop\notes.txt`,
		Size: 5,
		Body: strings.NewReader("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", res.FileName)
}

func TestUploadTypeAllowList(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedTypes = []string{"image/png", "text/plain"}
	svc := NewService(newFakeStorage(), cfg)

	tests := []struct {
		contentType string
		wantErr     error
	}{
		{"", nil}, // fail-open for a missing type
		{"text/plain", nil},
		{"text/plain; charset=utf-8", nil},
		{"IMAGE/PNG", nil},
		{"application/zip", ErrTypeNotAllowed}, // fail-closed when listed out
	}
	for _, tt := range tests {
		_, err := svc.Upload(context.Background(), UploadInput{
			Name:        "f.bin",
			Size:        1,
			ContentType: tt.contentType,
			Body:        strings.NewReader("x"),
		})
		if tt.wantErr != nil {
			assert.ErrorIs(t, err, tt.wantErr, "type %q", tt.contentType)
		} else {
			assert.NoError(t, err, "type %q", tt.contentType)
		}
	}
}

// -------- direct upload --------

func TestPresignUpload(t *testing.T) {
	cfg := testConfig()
	svc := NewService(newFakeStorage(), cfg)

	res, err := svc.PresignUpload(context.Background(), "backup.tar.gz", 20<<20)
	require.NoError(t, err)
	require.Len(t, res.Slug, slug.Length)
	assert.Equal(t, res.Slug+"/backup.tar.gz", res.Path)
	assert.Equal(t, "https://storage.example/signed-put/"+res.Path, res.SignedURL)
	assert.Equal(t, "backup.tar.gz", res.FileName)
	assert.Equal(t, int64(cfg.UploadURLTTL.Seconds()), res.ExpiresIn)
}

func TestPresignUploadValidation(t *testing.T) {
	cfg := testConfig()
	svc := NewService(newFakeStorage(), cfg)

	_, err := svc.PresignUpload(context.Background(), "big.iso", cfg.MaxFileSize+1)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = svc.PresignUpload(context.Background(), "big.iso", 0)
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = svc.PresignUpload(context.Background(), ".hidden", 10)
	assert.ErrorIs(t, err, ErrBadName)
}

func TestSaveMetadataOverwrites(t *testing.T) {
	store := newFakeStorage()
	svc := NewService(store, testConfig())

	in := MetadataInput{Slug: "aB3xY_z", FileName: "movie.mkv", Size: 42, Type: "video/x-matroska"}
	require.NoError(t, svc.SaveMetadata(context.Background(), in))
	// completion callbacks may be re-sent; the second write must not fail
	require.NoError(t, svc.SaveMetadata(context.Background(), in))

	var meta FileMetadata
	require.NoError(t, json.Unmarshal(store.objects["aB3xY_z/metadata.json"], &meta))
	assert.Equal(t, "movie.mkv", meta.OriginalName)
}

func TestSaveMetadataRejectsBadSlug(t *testing.T) {
	svc := NewService(newFakeStorage(), testConfig())
	err := svc.SaveMetadata(context.Background(), MetadataInput{Slug: "../escape", FileName: "f.bin"})
	assert.ErrorIs(t, err, ErrBadRequest)
}

// -------- resolution --------

func TestResolveFiltersForAnyListingOrder(t *testing.T) {
	names := []string{"metadata.json", ".emptyFolderPlaceholder", ".hidden", "photo.jpg"}
	orders := [][]int{
		{0, 1, 2, 3},
		{3, 2, 1, 0},
		{1, 3, 0, 2},
		{2, 0, 3, 1},
	}

	for _, order := range orders {
		store := newFakeStorage()
		for _, name := range names {
			store.objects["aB3xY_z/"+name] = []byte("data")
		}
		for _, i := range order {
			store.listOrder = append(store.listOrder, "aB3xY_z/"+names[i])
		}
		svc := NewService(store, testConfig())

		obj, err := svc.Resolve(context.Background(), "aB3xY_z")
		require.NoError(t, err, "order %v", order)
		assert.Equal(t, "photo.jpg", obj.Name, "order %v", order)
	}
}

func TestResolvePicksFirstInListingOrder(t *testing.T) {
	// Multiple qualifying objects should not occur under normal use; the
	// winner is whatever the backend lists first.
	store := newFakeStorage()
	store.objects["aB3xY_z/b.bin"] = []byte("b")
	store.objects["aB3xY_z/a.bin"] = []byte("a")
	store.listOrder = []string{"aB3xY_z/b.bin", "aB3xY_z/a.bin"}
	svc := NewService(store, testConfig())

	obj, err := svc.Resolve(context.Background(), "aB3xY_z")
	require.NoError(t, err)
	assert.Equal(t, "b.bin", obj.Name)
}

func TestResolveNotFoundCases(t *testing.T) {
	t.Run("no objects at all", func(t *testing.T) {
		svc := NewService(newFakeStorage(), testConfig())
		_, err := svc.Resolve(context.Background(), "aB3xY_z")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("metadata only", func(t *testing.T) {
		store := newFakeStorage()
		store.objects["aB3xY_z/metadata.json"] = []byte("{}")
		svc := NewService(store, testConfig())
		_, err := svc.Resolve(context.Background(), "aB3xY_z")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("listing error maps to not found", func(t *testing.T) {
		store := newFakeStorage()
		store.listErr = errors.New("backend unreachable")
		svc := NewService(store, testConfig())
		_, err := svc.Resolve(context.Background(), "aB3xY_z")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("invalid slug never hits the backend", func(t *testing.T) {
		store := newFakeStorage()
		store.listErr = errors.New("should not be called")
		svc := NewService(store, testConfig())
		_, err := svc.Resolve(context.Background(), "not a slug")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestOpenBackendErrorMapsToNotFound(t *testing.T) {
	store := newFakeStorage()
	store.objects["aB3xY_z/file.bin"] = []byte("data")
	store.getErr = errors.New("read failed")
	svc := NewService(store, testConfig())

	_, _, err := svc.Open(context.Background(), "aB3xY_z")
	assert.ErrorIs(t, err, ErrNotFound, "backend errors must not surface on public links")
}

func TestSignedDownloadURL(t *testing.T) {
	store := newFakeStorage()
	store.objects["aB3xY_z/photo.jpg"] = []byte("data")
	svc := NewService(store, testConfig())

	url, obj, err := svc.SignedDownloadURL(context.Background(), "aB3xY_z")
	require.NoError(t, err)
	assert.Equal(t, "https://storage.example/signed-get/aB3xY_z/photo.jpg", url)
	assert.Equal(t, "photo.jpg", obj.Name)

	store.presignErr = errors.New("signing failed")
	_, _, err = svc.SignedDownloadURL(context.Background(), "aB3xY_z")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMetadataIsBestEffort(t *testing.T) {
	store := newFakeStorage()
	svc := NewService(store, testConfig())

	meta, err := svc.Metadata(context.Background(), "aB3xY_z")
	require.NoError(t, err)
	assert.Nil(t, meta, "missing metadata is not an error")

	store.objects["aB3xY_z/metadata.json"] = []byte("not json at all")
	meta, err = svc.Metadata(context.Background(), "aB3xY_z")
	require.NoError(t, err)
	assert.Nil(t, meta, "malformed metadata is not an error")

	store.objects["aB3xY_z/metadata.json"] = []byte(`{"originalName":"notes.txt","size":5,"slug":"aB3xY_z"}`)
	meta, err = svc.Metadata(context.Background(), "aB3xY_z")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "notes.txt", meta.OriginalName)
}
