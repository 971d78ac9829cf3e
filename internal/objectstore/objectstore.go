// Package objectstore hands out presigned URLs for business images such as the
// payment QR code. Clients upload and fetch directly against the bucket.
package objectstore

import (
	"context"
	"errors"
	"time"
)

var ErrUnavailable = errors.New("object storage is not configured")

type ImageStore interface {
	PresignUpload(ctx context.Context, objectKey string) (string, time.Time, error)
	PresignView(ctx context.Context, objectKey string) (string, error)
}

// Unavailable is used when no bucket is configured.
type Unavailable struct{}

func (Unavailable) PresignUpload(_ context.Context, _ string) (string, time.Time, error) {
	return "", time.Time{}, ErrUnavailable
}

func (Unavailable) PresignView(_ context.Context, _ string) (string, error) {
	return "", ErrUnavailable
}
