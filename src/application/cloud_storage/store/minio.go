package store

import (
	"context"
	"io"
	"mime"
	"path"

	"stem-unmixer/src/application/cloud_storage/entity"
	"stem-unmixer/src/lib/cerr"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var _ entity.FileStore = MinioFileStore{}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// MinioFileStore addresses objects as "<scheme>://<endpoint>/<bucket>/<path>".
type MinioFileStore struct {
	client *minio.Client
	host   string
}

func NewMinioFileStore(config MinioConfig) (MinioFileStore, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return MinioFileStore{}, cerr.Field("endpoint", config.Endpoint).Wrap(err).Error("Failed to create MinIO client")
	}

	scheme := "http"
	if config.UseSSL {
		scheme = "https"
	}

	return MinioFileStore{
		client: client,
		host:   scheme + "://" + config.Endpoint,
	}, nil
}

func (m MinioFileStore) Host() string {
	return m.host
}

// EnsureBucket creates bucket when it doesn't exist yet.
func (m MinioFileStore) EnsureBucket(ctx context.Context, bucket string, region string) error {
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return cerr.Field("bucket", bucket).Wrap(err).Error("Failed to check bucket")
	}

	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return cerr.Field("bucket", bucket).Wrap(err).Error("Failed to create bucket")
	}

	return nil
}

func (m MinioFileStore) GetFile(ctx context.Context, fileURL string) ([]byte, error) {
	bucket, objectName, err := bucketAndPathFromURL(m.host, fileURL)
	if err != nil {
		return nil, cerr.Wrap(err).Error("Couldn't extract object name from URL")
	}

	object, err := m.client.GetObject(ctx, bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, cerr.Field("url", fileURL).Wrap(err).Error("Failed to get object")
	}
	defer object.Close()

	contents, err := io.ReadAll(object)
	if err != nil {
		return nil, cerr.Field("url", fileURL).Wrap(err).Error("Failed to read object")
	}

	return contents, nil
}

func (m MinioFileStore) WriteFile(ctx context.Context, fileURL string, content io.Reader) error {
	bucket, objectName, err := bucketAndPathFromURL(m.host, fileURL)
	if err != nil {
		return cerr.Wrap(err).Error("Couldn't extract object name from URL")
	}

	contentType := mime.TypeByExtension(path.Ext(objectName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// unknown size, minio-go switches to a multipart upload
	_, err = m.client.PutObject(ctx, bucket, objectName, content, -1, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return cerr.Field("url", fileURL).Wrap(err).Error("Failed to upload object")
	}

	return nil
}
