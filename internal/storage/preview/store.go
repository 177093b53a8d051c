package preview

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/aliskhannn/image-insight/internal/model"
)

const (
	// maxDimension bounds the preview's longest side so the store never
	// holds a full-size copy of the user's image.
	maxDimension = 640
	jpegQuality  = 85
	contentType  = "image/jpeg"
)

// Store keeps the transient preview objects backing each record's display
// handle. A preview is created when a record is installed and removed
// exactly once when the record is retired; nothing else is ever persisted
// here.
type Store struct {
	client     *minio.Client
	bucketName string
}

// NewStore creates a Store connected to the specified MinIO server.
// If the bucket does not exist, it will be created automatically.
func NewStore(ctx context.Context, endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Store{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// Create renders a bounded JPEG preview of the asset and uploads it.
// Returns the object path the preview lives under.
func (s *Store) Create(ctx context.Context, id uuid.UUID, asset model.Asset) (string, error) {
	// Honor the container's orientation tag so the preview displays the
	// way the camera captured it.
	img, err := imaging.Decode(bytes.NewReader(asset.Bytes), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode asset for preview: %w", err)
	}

	if img.Bounds().Dx() > maxDimension || img.Bounds().Dy() > maxDimension {
		img = imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return "", fmt.Errorf("failed to encode preview: %w", err)
	}

	objectName := path.Join("previews", id.String()+".jpg")

	_, err = s.client.PutObject(ctx, s.bucketName, objectName, &buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to store preview: %w", err)
	}

	return objectName, nil
}

// Open retrieves the preview object and returns a reader for streaming it.
func (s *Store) Open(ctx context.Context, objectName string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open preview: %w", err)
	}

	// GetObject is lazy; force the lookup so a missing object fails here
	// instead of midway through the response stream.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("failed to stat preview: %w", err)
	}

	return obj, nil
}

// Remove deletes the preview object.
func (s *Store) Remove(ctx context.Context, objectName string) error {
	return s.client.RemoveObject(ctx, s.bucketName, objectName, minio.RemoveObjectOptions{})
}
