package bundlestore

import (
	"bytes"
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store uploads and retrieves zipped ArtifactBundles, keyed by content hash
// so the same bundle content always lands under the same key; Put uploads
// unconditionally, so recompiling a version rewrites that key.
type Store struct {
	client *s3.Client
	bucket string
}

// NewStore loads AWS config from the environment (credentials, region) and
// returns a Store bound to bucket.
func NewStore(ctx context.Context, bucket string) (*Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Store{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// key is the storage path for a bundle with the given content hash.
func key(contentHash string) string {
	return fmt.Sprintf("bundles/%s.zip", contentHash)
}

// Put uploads a zipped bundle under its content hash, using the multipart
// uploader so large promotion bundles (many environments' worth of scripts)
// don't have to fit in a single PutObject call.
func (s *Store) Put(ctx context.Context, contentHash string, zipped []byte) (string, error) {
	storageKey := key(contentHash)
	uploader := manager.NewUploader(s.client)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &storageKey,
		Body:        bytes.NewReader(zipped),
		ContentType: stringPtr("application/zip"),
	})
	if err != nil {
		return "", fmt.Errorf("upload bundle %s: %w", contentHash, err)
	}
	return storageKey, nil
}

// Get downloads a bundle's zipped contents by content hash.
func (s *Store) Get(ctx context.Context, contentHash string) ([]byte, error) {
	storageKey := key(contentHash)
	downloader := manager.NewDownloader(s.client)
	buf := manager.NewWriteAtBuffer(nil)
	if _, err := downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &storageKey,
	}); err != nil {
		return nil, fmt.Errorf("download bundle %s: %w", contentHash, err)
	}
	return buf.Bytes(), nil
}

// PutReport uploads an arbitrary report blob (a JUnit XML regression report,
// for instance) under an explicit key rather than a content hash, since a
// report's key is chosen by its caller (run ID, timestamp) and isn't
// content-addressed the way a compiled bundle is.
func (s *Store) PutReport(ctx context.Context, reportKey string, body []byte, contentType string) (string, error) {
	uploader := manager.NewUploader(s.client)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &reportKey,
		Body:        bytes.NewReader(body),
		ContentType: stringPtr(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload report %s: %w", reportKey, err)
	}
	return reportKey, nil
}

// Exists reports whether a bundle with the given content hash has already
// been uploaded. The compile processor does not call it; it uploads on every
// run.
func (s *Store) Exists(ctx context.Context, contentHash string) (bool, error) {
	storageKey := key(contentHash)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &storageKey,
	})
	if err != nil {
		return false, nil
	}
	return true, nil
}

func stringPtr(s string) *string { return &s }
