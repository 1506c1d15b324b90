package store

import (
	"context"
	"io"

	"stem-unmixer/src/application/cloud_storage/entity"
	"stem-unmixer/src/lib/cerr"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

var _ entity.FileStore = GoogleFileStore{}

const GoogleStorageHost = "https://storage.googleapis.com"

type GoogleFileStore struct {
	storageClient *storage.Client
}

func NewGoogleFileStore(jsonKey string) (GoogleFileStore, error) {
	googleStorageClient, err := storage.NewClient(context.Background(), option.WithCredentialsJSON([]byte(jsonKey)))
	if err != nil {
		return GoogleFileStore{}, cerr.Wrap(err).Error("Failed to create Google Cloud Storage client")
	}

	return GoogleFileStore{
		storageClient: googleStorageClient,
	}, nil
}

func (g GoogleFileStore) GetFile(ctx context.Context, fileURL string) ([]byte, error) {
	bucket, filePath, err := bucketAndPathFromURL(GoogleStorageHost, fileURL)
	if err != nil {
		return nil, cerr.Wrap(err).Error("Couldn't extract file path from URL")
	}

	reader, err := g.objectHandle(bucket, filePath).NewReader(ctx)
	if err != nil {
		return nil, cerr.Field("url", fileURL).Wrap(err).Error("Failed to create reader for Google object handle")
	}

	defer reader.Close()

	contents, err := io.ReadAll(reader)
	if err != nil {
		return nil, cerr.Field("url", fileURL).Wrap(err).Error("Failed to read remote file")
	}

	return contents, nil
}

func (g GoogleFileStore) WriteFile(ctx context.Context, fileURL string, content io.Reader) (err error) {
	bucket, filePath, err := bucketAndPathFromURL(GoogleStorageHost, fileURL)
	if err != nil {
		return cerr.Wrap(err).Error("Couldn't extract file path from URL")
	}

	writer := g.objectHandle(bucket, filePath).NewWriter(ctx)
	defer func() {
		closeErr := writer.Close()
		if err == nil && closeErr != nil {
			err = cerr.Field("url", fileURL).Wrap(closeErr).Error("Error occurred when closing the upload stream")
		}
	}()

	if _, err = io.Copy(writer, content); err != nil {
		return cerr.Field("url", fileURL).Wrap(err).Error("Error occurred when uploading file")
	}

	return nil
}

func (g GoogleFileStore) objectHandle(bucket string, filePath string) *storage.ObjectHandle {
	return g.storageClient.Bucket(bucket).Object(filePath)
}
