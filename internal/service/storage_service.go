package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	maxSourceSize    = 100 * 1024 * 1024 // 100 MB
	presignedURLTTL  = 15 * time.Minute
	sourcePathPrefix = "sources"
	outputPathPrefix = "outputs"

	pdfContentType = "application/pdf"
)

var (
	ErrFileTooBig           = errors.New("file size exceeds 100MB limit")
	ErrInvalidFileType      = errors.New("invalid file type, only PDF documents are accepted")
	ErrBucketCreationFailed = errors.New("failed to create storage bucket")
	ErrUploadFailed         = errors.New("failed to upload file")
	ErrCopyFailed           = errors.New("failed to copy object")
	ErrURLGenerationFailed  = errors.New("failed to generate presigned URL")
)

// BlobStore defines the object storage operations the conversion pipeline
// needs: accepting source PDFs, materializing outputs, and handing out
// short-lived download URLs.
type BlobStore interface {
	// UploadSource stores a source PDF under the user's namespace and
	// returns the object key.
	UploadSource(ctx context.Context, userID uint, file io.Reader, fileSize int64, contentType string) (string, error)

	// OutputKey derives the output object key for a source key and target
	// extension without touching storage.
	OutputKey(inputKey, extension string) string

	// CopyToOutput writes the converted artifact by copying the source
	// object to the output key.
	CopyToOutput(ctx context.Context, inputKey, outputKey string) error

	// PresignOutput generates a temporary GET URL for a finished output.
	PresignOutput(ctx context.Context, objectKey string) (string, error)
}

// MinIOBlobStore implements BlobStore on MinIO/S3-compatible storage.
type MinIOBlobStore struct {
	client     *minio.Client
	bucketName string
}

// NewMinIOBlobStore creates a MinIO-backed blob store and ensures the
// bucket exists.
func NewMinIOBlobStore(endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinIOBlobStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	store := &MinIOBlobStore{
		client:     client,
		bucketName: bucketName,
	}

	if err := store.ensureBucketExists(context.Background()); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *MinIOBlobStore) ensureBucketExists(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("%w: check bucket existence: %v", ErrBucketCreationFailed, err)
	}

	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("%w: create bucket: %v", ErrBucketCreationFailed, err)
		}
	}

	return nil
}

// UploadSource validates and stores a source PDF.
func (s *MinIOBlobStore) UploadSource(ctx context.Context, userID uint, file io.Reader, fileSize int64, contentType string) (string, error) {
	if fileSize > maxSourceSize {
		return "", ErrFileTooBig
	}

	normalized := strings.ToLower(strings.TrimSpace(contentType))
	if normalized != pdfContentType {
		return "", ErrInvalidFileType
	}

	objectKey := fmt.Sprintf("%s/user-%d/%s.pdf", sourcePathPrefix, userID, uuid.New().String())

	metadata := map[string]string{
		"User-ID":     fmt.Sprintf("%d", userID),
		"Uploaded-At": time.Now().UTC().Format(time.RFC3339),
	}

	_, err := s.client.PutObject(ctx, s.bucketName, objectKey, file, fileSize, minio.PutObjectOptions{
		ContentType:  pdfContentType,
		UserMetadata: metadata,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	return objectKey, nil
}

// OutputKey mirrors the source key into the outputs namespace with the
// target extension.
func (s *MinIOBlobStore) OutputKey(inputKey, extension string) string {
	trimmed := strings.TrimPrefix(inputKey, sourcePathPrefix+"/")
	trimmed = strings.TrimSuffix(trimmed, ".pdf")
	return fmt.Sprintf("%s/%s%s", outputPathPrefix, trimmed, extension)
}

// CopyToOutput server-side copies the source object to the output key.
func (s *MinIOBlobStore) CopyToOutput(ctx context.Context, inputKey, outputKey string) error {
	src := minio.CopySrcOptions{Bucket: s.bucketName, Object: inputKey}
	dst := minio.CopyDestOptions{Bucket: s.bucketName, Object: outputKey}
	if _, err := s.client.CopyObject(ctx, dst, src); err != nil {
		return fmt.Errorf("%w: %v", ErrCopyFailed, err)
	}
	return nil
}

// PresignOutput generates a presigned GET URL for a finished output.
func (s *MinIOBlobStore) PresignOutput(ctx context.Context, objectKey string) (string, error) {
	if strings.TrimSpace(objectKey) == "" {
		return "", fmt.Errorf("%w: empty object key", ErrURLGenerationFailed)
	}

	presigned, err := s.client.PresignedGetObject(ctx, s.bucketName, objectKey, presignedURLTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrURLGenerationFailed, err)
	}

	return presigned.String(), nil
}
