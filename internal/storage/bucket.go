package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Kind is the coarse class of an accepted upload
type Kind string

const (
	KindImage Kind = "image"
	KindFile  Kind = "file"
)

// MaxUploadSize caps a single upload
const MaxUploadSize = 20 << 20

// sniffLen is how much of the upload is read for content detection
const sniffLen = 3072

var (
	ErrUnsupportedType = errors.New("only images and PDF documents can be uploaded")
	ErrFileNotFound    = errors.New("file not found")
	ErrTooLarge        = errors.New("file exceeds the upload limit")
)

// File describes a stored object
type File struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Kind        Kind   `json:"kind"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	URL         string `json:"url,omitempty"`
}

// BucketStore keeps uploads in a Cloud Storage bucket, the one Firebase Storage serves
type BucketStore struct {
	bucket     *gcs.BucketHandle
	bucketName string
	prefix     string
}

func NewBucketStore(bucket *gcs.BucketHandle, bucketName string) *BucketStore {
	return &BucketStore{bucket: bucket, bucketName: bucketName, prefix: "uploads/"}
}

// Classify maps a sniffed MIME type to an upload kind
func Classify(mime *mimetype.MIME) (Kind, error) {
	for m := mime; m != nil; m = m.Parent() {
		if m.Is("application/pdf") {
			return KindFile, nil
		}
		if strings.HasPrefix(m.String(), "image/") {
			return KindImage, nil
		}
	}
	return "", fmt.Errorf("%w: got %s", ErrUnsupportedType, mime.String())
}

// Sniff detects the content type of the upload without consuming it: the returned reader
// yields the full content again.
func Sniff(r io.Reader) (*mimetype.MIME, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, nil, err
	}
	head = head[:n]
	return mimetype.Detect(head), io.MultiReader(bytes.NewReader(head), r), nil
}

func (s *BucketStore) object(id string) *gcs.ObjectHandle {
	return s.bucket.Object(s.prefix + id)
}

// Upload stores the content under a fresh id after checking its type
func (s *BucketStore) Upload(ctx context.Context, r io.Reader, filename string) (*File, error) {
	mime, content, err := Sniff(r)
	if err != nil {
		return nil, err
	}
	kind, err := Classify(mime)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	w := s.object(id).NewWriter(ctx)
	w.ContentType = mime.String()
	w.Metadata = map[string]string{"original_name": filename, "kind": string(kind)}

	// one byte past the limit tells an exact fit from an overflow
	n, err := io.Copy(w, io.LimitReader(content, MaxUploadSize+1))
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("write object: %w", err)
	}
	if n > MaxUploadSize {
		_ = w.Close()
		_ = s.object(id).Delete(ctx)
		return nil, ErrTooLarge
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize object: %w", err)
	}

	return &File{
		ID:          id,
		Name:        filename,
		Kind:        kind,
		ContentType: mime.String(),
		Size:        n,
		URL:         s.PublicURL(id),
	}, nil
}

func (s *BucketStore) Stat(ctx context.Context, id string) (*File, error) {
	attrs, err := s.object(id).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("%s: %w", id, ErrFileNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &File{
		ID:          id,
		Name:        attrs.Metadata["original_name"],
		Kind:        Kind(attrs.Metadata["kind"]),
		ContentType: attrs.ContentType,
		Size:        attrs.Size,
		URL:         s.PublicURL(id),
	}, nil
}

func (s *BucketStore) Delete(ctx context.Context, id string) error {
	err := s.object(id).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("%s: %w", id, ErrFileNotFound)
	}
	return err
}

// SignedURL returns a time-limited download link for the object
func (s *BucketStore) SignedURL(_ context.Context, id string, ttl time.Duration) (string, error) {
	return s.bucket.SignedURL(s.prefix+id, &gcs.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
}

// PublicURL is the Firebase Storage media URL of the object. Access is governed by the
// bucket's security rules.
func (s *BucketStore) PublicURL(id string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media",
		s.bucketName, url.PathEscape(s.prefix+id))
}
