package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/kurin/blazer/b2"
	"github.com/rs/zerolog/log"

	"treevault/services"
)

// B2Store implements services.AssetStore on Backblaze B2. Object keys are
// built from owner and folder ids, not display names, so renames deeper in
// a subtree never force an object relabel.
type B2Store struct {
	client     *b2.Client
	bucketName string
	bucket     *b2.Bucket
}

func NewB2Store(ctx context.Context, keyID, applicationKey, bucketName string) (*B2Store, error) {
	client, err := b2.NewClient(ctx, keyID, applicationKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create B2 client: %w", err)
	}

	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket %s: %w", bucketName, err)
	}

	return &B2Store{
		client:     client,
		bucketName: bucketName,
		bucket:     bucket,
	}, nil
}

// Upload streams the reader into B2 under destPath/name, hashing as it goes
// so large files never sit in memory.
func (s *B2Store) Upload(ctx context.Context, r io.Reader, destPath, name, mimeType string) (*services.UploadResult, error) {
	objectName := path.Join(strings.TrimPrefix(destPath, "/"), name)

	obj := s.bucket.Object(objectName)
	writer := obj.NewWriter(ctx)

	hasher := sha1.New()
	multiWriter := io.MultiWriter(writer, hasher)

	size, err := io.Copy(multiWriter, r)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to upload object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close B2 writer: %w", err)
	}

	if mimeType == "" {
		mimeType = contentTypeFor(name)
	}

	return &services.UploadResult{
		Locator:      objectName,
		ResourceKind: resourceKindFor(mimeType),
		MimeType:     mimeType,
		SizeBytes:    size,
		SHA1:         hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Delete removes a single object. A missing object is treated as already
// deleted, which keeps retried cleanup jobs idempotent.
func (s *B2Store) Delete(ctx context.Context, locator, resourceKind string) error {
	obj := s.bucket.Object(locator)
	if err := obj.Delete(ctx); err != nil {
		if b2.IsNotExist(err) {
			log.Debug().Str("locator", locator).Msg("object already gone")
			return nil
		}
		return fmt.Errorf("failed to delete object %s: %w", locator, err)
	}
	return nil
}

// DeleteBatch deletes the given objects one by one; B2 has no bulk-delete
// call. Missing objects are skipped, the first real error aborts the batch
// so the caller can retry the remainder.
func (s *B2Store) DeleteBatch(ctx context.Context, locators []string) error {
	for _, locator := range locators {
		if err := s.Delete(ctx, locator, ""); err != nil {
			return err
		}
	}
	return nil
}

// Rename relocates an object to newParentPath/newName. B2 objects are
// immutable, so this is a server-side copy followed by a delete of the old
// key. Returns the new locator.
func (s *B2Store) Rename(ctx context.Context, locator, newParentPath, newName string) (string, error) {
	newLocator := path.Join(strings.TrimPrefix(newParentPath, "/"), newName)
	if newLocator == locator {
		return locator, nil
	}

	src := s.bucket.Object(locator)
	reader := src.NewReader(ctx)
	defer reader.Close()

	writer := s.bucket.Object(newLocator).NewWriter(ctx)
	if _, err := io.Copy(writer, reader); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to copy object to %s: %w", newLocator, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close B2 writer: %w", err)
	}

	if err := src.Delete(ctx); err != nil && !b2.IsNotExist(err) {
		return "", fmt.Errorf("failed to delete old object %s: %w", locator, err)
	}
	return newLocator, nil
}

// SignedURL generates a time-limited download URL for private buckets. With
// Attachment set the URL carries a content disposition that forces browsers
// to download under the object's file name instead of rendering inline.
func (s *B2Store) SignedURL(ctx context.Context, locator string, opts services.SignedURLOptions) (string, error) {
	obj := s.bucket.Object(locator)
	urlObj, err := obj.AuthURL(ctx, opts.ExpiresIn, contentDispositionFor(locator, opts))
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return urlObj.String(), nil
}

func contentDispositionFor(locator string, opts services.SignedURLOptions) string {
	if !opts.Attachment {
		return ""
	}
	return fmt.Sprintf("attachment; filename=%q", path.Base(locator))
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func resourceKindFor(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "video/"):
		return "video"
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	default:
		return "raw"
	}
}
