// Package cloud_storage copies finished artifacts to remote object storage.
package cloud_storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"stem-unmixer/src/application/cloud_storage/entity"
	"stem-unmixer/src/application/extraction"
	"stem-unmixer/src/lib/cerr"

	"github.com/apex/log"
)

// Mirror uploads artifacts under "<baseURL>/<run id>/<file name>".
type Mirror struct {
	fileStore entity.FileStore
	baseURL   string
}

func NewMirror(fileStore entity.FileStore, baseURL string) Mirror {
	return Mirror{
		fileStore: fileStore,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
	}
}

// MirrorArtifacts uploads every artifact concurrently and returns the remote
// URL of each, keyed by file name.
func (m Mirror) MirrorArtifacts(ctx context.Context, runID string, artifacts []extraction.Artifact) (map[string]string, error) {
	uploadResultChannels := []chan error{}
	remoteURLs := map[string]string{}

	log.WithFields(log.Fields{
		"runID":     runID,
		"artifacts": len(artifacts),
	}).Info("Spinning off upload threads")

	for _, artifact := range artifacts {
		resultChannel := make(chan error, 1)
		uploadResultChannels = append(uploadResultChannels, resultChannel)

		name := filepath.Base(artifact.Path)
		remoteURL := fmt.Sprintf("%s/%s/%s", m.baseURL, runID, name)
		remoteURLs[name] = remoteURL

		go m.uploadArtifact(ctx, resultChannel, artifact.Path, remoteURL)
	}

	var firstErr error
	for _, resultChannel := range uploadResultChannels {
		if err := <-resultChannel; err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		return nil, cerr.Field("run_id", runID).Wrap(firstErr).Error("Failed to mirror artifacts")
	}

	return remoteURLs, nil
}

func (m Mirror) uploadArtifact(ctx context.Context, done chan<- error, localPath string, remoteURL string) {
	logger := log.WithFields(log.Fields{
		"localPath": localPath,
		"remoteURL": remoteURL,
	})

	logger.Info("Uploading artifact")

	file, err := os.Open(localPath)
	if err != nil {
		logger.Error("Failed to open local file")
		done <- cerr.Field("local_path", localPath).Wrap(err).Error("Failed to open local file")
		return
	}
	defer file.Close()

	if err := m.fileStore.WriteFile(ctx, remoteURL, file); err != nil {
		logger.Error("Failed to upload artifact")
		done <- cerr.Field("remote_url", remoteURL).Wrap(err).Error("Failed to upload artifact")
		return
	}

	done <- nil
}
