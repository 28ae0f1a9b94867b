// Package share implements the upload and slug-addressed retrieval
// protocol: files live at {slug}/{fileName} in object storage with a
// best-effort {slug}/metadata.json record beside them.
package share

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"github.com/tmpdrop/service/internal/config"
	"github.com/tmpdrop/service/internal/slug"
	"github.com/tmpdrop/service/internal/storage"
)

// Service contains the business logic for uploads and downloads.
type Service struct {
	store storage.Storage
	cfg   *config.Config
}

// NewService creates a new share Service.
func NewService(store storage.Storage, cfg *config.Config) *Service {
	return &Service{store: store, cfg: cfg}
}

// UploadInput is one in-band upload payload.
type UploadInput struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

// UploadResult reports a successful upload.
type UploadResult struct {
	Slug        string
	FileName    string
	FileSize    int64
	DownloadURL string
}

// PresignResult is a direct-upload authorization for the large-file path.
type PresignResult struct {
	SignedURL string
	Path      string
	Slug      string
	FileName  string
	ExpiresIn int64
}

// MetadataInput finalizes a direct upload.
type MetadataInput struct {
	Slug     string
	FileName string
	Size     int64
	Type     string
}

// Upload handles the in-band path: the bytes travel through the server.
// The primary object is written with a non-overwrite policy, then the
// metadata record is written best-effort — its failure downgrades to a
// warning and the upload still succeeds.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	name, err := cleanFileName(in.Name)
	if err != nil {
		return nil, err
	}
	if in.Size <= 0 {
		return nil, fmt.Errorf("%w: file size", ErrBadRequest)
	}
	if in.Size > s.cfg.MaxFileSize || in.Size > s.cfg.MaxInlineSize {
		return nil, ErrTooLarge
	}
	if !s.typeAllowed(in.ContentType) {
		return nil, ErrTypeNotAllowed
	}

	sl := slug.New()
	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.store.PutNew(ctx, sl+"/"+name, in.Body, in.Size, contentType); err != nil {
		return nil, fmt.Errorf("write primary object: %w", err)
	}

	if err := s.writeMetadata(ctx, FileMetadata{
		OriginalName: name,
		Size:         in.Size,
		Type:         in.ContentType,
		UploadedAt:   time.Now().UTC(),
		Slug:         sl,
	}); err != nil {
		log.Printf("share: metadata write failed for slug %s: %v", sl, err)
	}

	return &UploadResult{
		Slug:        sl,
		FileName:    name,
		FileSize:    in.Size,
		DownloadURL: s.cfg.BaseURL + "/download/" + sl,
	}, nil
}

// PresignUpload handles the large-file path: it mints a slug and issues a
// short-lived direct-upload URL without accepting any bytes. The caller
// transfers the file itself and then finalizes via SaveMetadata.
func (s *Service) PresignUpload(ctx context.Context, fileName string, size int64) (*PresignResult, error) {
	name, err := cleanFileName(fileName)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: fileSize", ErrBadRequest)
	}
	if size > s.cfg.MaxFileSize {
		return nil, ErrTooLarge
	}

	sl := slug.New()
	key := sl + "/" + name
	url, err := s.store.PresignPut(ctx, key, s.cfg.UploadURLTTL)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	return &PresignResult{
		SignedURL: url,
		Path:      key,
		Slug:      sl,
		FileName:  name,
		ExpiresIn: int64(s.cfg.UploadURLTTL.Seconds()),
	}, nil
}

// SaveMetadata writes the metadata record after a direct upload completed.
// Overwrite is allowed: completion callbacks may legitimately be re-sent.
func (s *Service) SaveMetadata(ctx context.Context, in MetadataInput) error {
	if !slug.IsValid(in.Slug) {
		return fmt.Errorf("%w: slug", ErrBadRequest)
	}
	name, err := cleanFileName(in.FileName)
	if err != nil {
		return err
	}
	return s.writeMetadata(ctx, FileMetadata{
		OriginalName: name,
		Size:         in.Size,
		Type:         in.Type,
		UploadedAt:   time.Now().UTC(),
		Slug:         in.Slug,
	})
}

// Resolve finds the primary object for a slug: list the prefix, drop
// metadata/placeholder/dotfile entries, take the first survivor. With
// multiple qualifying objects (not produced under normal use) the winner
// follows backend listing order and is implementation-defined.
func (s *Service) Resolve(ctx context.Context, sl string) (*storage.Object, error) {
	if !slug.IsValid(sl) {
		return nil, ErrNotFound
	}
	prefix := sl + "/"
	objects, err := s.store.List(ctx, prefix)
	if err != nil {
		log.Printf("share: listing %s failed: %v", prefix, err)
		return nil, ErrNotFound
	}
	for i := range objects {
		if isCandidate(prefix, objects[i]) {
			return &objects[i], nil
		}
	}
	return nil, ErrNotFound
}

// Open resolves a slug and opens the primary object for streaming. Every
// backend failure is reported as not-found so the public link never
// leaks storage error detail.
func (s *Service) Open(ctx context.Context, sl string) (io.ReadCloser, *storage.Object, error) {
	obj, err := s.Resolve(ctx, sl)
	if err != nil {
		return nil, nil, err
	}
	rc, info, err := s.store.Get(ctx, obj.Key)
	if err != nil {
		log.Printf("share: open %s failed: %v", obj.Key, err)
		return nil, nil, ErrNotFound
	}
	return rc, &info, nil
}

// SignedDownloadURL resolves a slug to a time-limited download URL for
// the share page.
func (s *Service) SignedDownloadURL(ctx context.Context, sl string) (string, *storage.Object, error) {
	obj, err := s.Resolve(ctx, sl)
	if err != nil {
		return "", nil, err
	}
	url, err := s.store.PresignGet(ctx, obj.Key, s.cfg.DownloadURLTTL)
	if err != nil {
		log.Printf("share: presign %s failed: %v", obj.Key, err)
		return "", nil, ErrNotFound
	}
	return url, obj, nil
}

// Metadata reads the metadata record for a slug. A missing or unreadable
// record returns (nil, nil): metadata is decorative, never load-bearing.
func (s *Service) Metadata(ctx context.Context, sl string) (*FileMetadata, error) {
	if !slug.IsValid(sl) {
		return nil, nil
	}
	rc, _, err := s.store.Get(ctx, sl+"/"+metadataName)
	if err != nil {
		return nil, nil
	}
	defer rc.Close()
	var meta FileMetadata
	if err := json.NewDecoder(rc).Decode(&meta); err != nil {
		log.Printf("share: malformed metadata for slug %s: %v", sl, err)
		return nil, nil
	}
	return &meta, nil
}

// IsNotFound returns true when the error indicates no file for a slug.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func (s *Service) writeMetadata(ctx context.Context, meta FileMetadata) error {
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	key := meta.Slug + "/" + metadataName
	if err := s.store.Put(ctx, key, bytes.NewReader(b), int64(len(b)), "application/json"); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// typeAllowed applies the optional content-type allow-list: a missing
// type is accepted (fail-open), an explicitly disallowed one is not.
func (s *Service) typeAllowed(contentType string) bool {
	if contentType == "" || len(s.cfg.AllowedTypes) == 0 {
		return true
	}
	declared := contentType
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = declared[:i]
	}
	declared = strings.TrimSpace(strings.ToLower(declared))
	for _, allowed := range s.cfg.AllowedTypes {
		if strings.EqualFold(strings.TrimSpace(allowed), declared) {
			return true
		}
	}
	return false
}

// cleanFileName reduces a browser-supplied filename to its base name and
// rejects names the download filter would hide: dotfiles and *.json would
// make the upload unreachable.
func cleanFileName(raw string) (string, error) {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(raw), "\\", "/"))
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", ErrBadName
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(strings.ToLower(name), ".json") {
		return "", ErrBadName
	}
	return name, nil
}

// isCandidate reports whether a listed object qualifies as the primary
// file: not the key-prefix marker itself, not a placeholder, not a
// dotfile, not any JSON record.
func isCandidate(prefix string, obj storage.Object) bool {
	if obj.Key == prefix || obj.Name == "" {
		return false
	}
	if obj.Name == placeholderName || strings.HasPrefix(obj.Name, ".") {
		return false
	}
	if strings.HasSuffix(strings.ToLower(obj.Name), ".json") {
		return false
	}
	return true
}
