// Package storage keeps product images and database backups in MinIO.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"byteshop/internal/models"

	"github.com/minio/minio-go/v7"
)

const backupPrefix = "backups/"

type MinIO struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// New returns a store for bucket. publicURL is the externally reachable
// bucket root; when empty it is derived from the client endpoint.
func New(client *minio.Client, bucket, publicURL string) *MinIO {
	if publicURL == "" {
		publicURL = client.EndpointURL().String() + "/" + bucket
	}
	return &MinIO{client: client, bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}
}

func (m *MinIO) PublicURL(objectPath string) string {
	return m.publicURL + "/" + strings.TrimLeft(objectPath, "/")
}

// PathFromURL returns the object path behind a URL built by PublicURL.
func (m *MinIO) PathFromURL(u string) string {
	prefix := m.publicURL + "/"
	if !strings.HasPrefix(u, prefix) {
		return ""
	}
	p := strings.TrimPrefix(u, prefix)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	return p
}

func (m *MinIO) Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, objectPath, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000",
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", objectPath, err)
	}
	return m.PublicURL(objectPath), nil
}

func (m *MinIO) Delete(ctx context.Context, objectPath string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, objectPath, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", objectPath, err)
	}
	return nil
}

func (m *MinIO) List(ctx context.Context, prefix string) ([]models.StoredImage, error) {
	images := []models.StoredImage{}
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		images = append(images, models.StoredImage{
			Path:         obj.Key,
			URL:          m.PublicURL(obj.Key),
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return images, nil
}

// SignedURL returns a temporary download link for a private object.
func (m *MinIO) SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket, objectPath, ttl, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// UploadBackup stores a database dump under backups/ and returns its object path.
func (m *MinIO) UploadBackup(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	objectPath := backupPrefix + name
	_, err := m.client.PutObject(ctx, m.bucket, objectPath, r, size, minio.PutObjectOptions{
		ContentType: "application/x-ndjson",
	})
	if err != nil {
		return "", fmt.Errorf("put backup %s: %w", objectPath, err)
	}
	return objectPath, nil
}
