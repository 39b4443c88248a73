package catalog

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hologram-io/dash-updater/pkg/log"
	"github.com/hologram-io/dash-updater/pkg/options"
)

// objectGetter is the slice of the minio client used by S3Catalog.
type objectGetter interface {
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
}

// S3Catalog serves releases from an S3-compatible bucket. The manifest lives
// at <prefix>/version.json and artifact refs are object keys.
type S3Catalog struct {
	client objectGetter
	bucket string
	prefix string
}

var _ Catalog = (*S3Catalog)(nil)

// NewS3Catalog creates a catalog backed by the bucket described in opts.
func NewS3Catalog(opts *options.S3Options) (*S3Catalog, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify},
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure:    opts.UseSSL,
		Region:    opts.Region,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &S3Catalog{
		client: client,
		bucket: opts.BucketName,
		prefix: strings.Trim(opts.Prefix, "/"),
	}, nil
}

func (c *S3Catalog) Latest(ctx context.Context) (*Release, error) {
	data, err := c.Fetch(ctx, path.Join(c.prefix, ManifestName))
	if err != nil {
		return nil, err
	}

	m, err := DecodeManifest(data)
	if err != nil {
		return nil, err
	}

	return m.Release(c.prefix)
}

func (c *S3Catalog) Fetch(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: s3://%s/%s: %v", ErrRemoteFetch, c.bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: s3://%s/%s: %v", ErrRemoteFetch, c.bucket, key, err)
	}

	log.Debug("Downloaded object", "bucket", c.bucket, "key", key, "bytes", len(data))
	return data, nil
}
