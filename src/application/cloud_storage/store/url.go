package store

import (
	"strings"

	"stem-unmixer/src/lib/cerr"
)

// bucketAndPathFromURL splits "<host>/<bucket>/<path>" into bucket and path.
func bucketAndPathFromURL(host string, fileURL string) (string, string, error) {
	errctx := cerr.Field("url", fileURL).Field("host", host)

	if !strings.HasPrefix(fileURL, host+"/") {
		return "", "", errctx.Error("File path given not in the storage URL format")
	}

	bucketAndPath := strings.TrimPrefix(fileURL, host+"/")

	chunks := strings.SplitN(bucketAndPath, "/", 2)
	if len(chunks) != 2 || chunks[0] == "" || chunks[1] == "" {
		return "", "", errctx.Error("File path given not in the storage URL format")
	}

	return chunks[0], chunks[1], nil
}
