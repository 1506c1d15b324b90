package working_dir

import (
	"io"
	"os"
	"path/filepath"

	"stem-unmixer/src/lib/cerr"

	"github.com/apex/log"
)

const tempDirName = "tmp"

// WorkingDir is a directory that artifacts are written into. Files are staged
// under a tmp subdirectory and only appear in the root once fully written.
type WorkingDir struct {
	root string
}

func NewWorkingDir(root string) (WorkingDir, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return WorkingDir{}, cerr.Field("root", root).Wrap(err).Error("Failed to generate absolute path for working directory")
	}

	if err := os.MkdirAll(filepath.Join(absRoot, tempDirName), os.ModePerm); err != nil {
		return WorkingDir{}, cerr.Field("root", absRoot).Wrap(err).Error("Failed to create working directory")
	}

	return WorkingDir{
		root: absRoot,
	}, nil
}

func (w WorkingDir) Root() string {
	return w.root
}

func (w WorkingDir) TempDir() string {
	return filepath.Join(w.root, tempDirName)
}

// WriteFile streams content into <root>/<name> through a staged temp file,
// copying with a buffer of bufferSize bytes. It returns the final path.
func (w WorkingDir) WriteFile(name string, content io.Reader, bufferSize int) (string, error) {
	errctx := cerr.Field("root", w.root).Field("name", name)

	if name == "" || name != filepath.Base(name) {
		return "", errctx.Error("File name must not contain directory components")
	}

	staged, err := os.CreateTemp(w.TempDir(), name+".*.part")
	if err != nil {
		return "", errctx.Wrap(err).Error("Failed to create staging file")
	}

	stagedPath := staged.Name()
	removeStaged := func() {
		if err := os.Remove(stagedPath); err != nil && !os.IsNotExist(err) {
			log.WithField("stagedPath", stagedPath).Error("Failed to remove staging file")
		}
	}

	// hide ReaderFrom/WriterTo so the copy really goes through the fixed buffer
	dst := struct{ io.Writer }{staged}
	src := struct{ io.Reader }{content}
	if _, err := io.CopyBuffer(dst, src, make([]byte, bufferSize)); err != nil {
		_ = staged.Close()
		removeStaged()
		return "", errctx.Wrap(err).Error("Failed to write file contents")
	}

	if err := staged.Close(); err != nil {
		removeStaged()
		return "", errctx.Wrap(err).Error("Failed to flush staging file")
	}

	finalPath := filepath.Join(w.root, name)
	if err := os.Rename(stagedPath, finalPath); err != nil {
		removeStaged()
		return "", errctx.Wrap(err).Error("Failed to move staged file into place")
	}

	return finalPath, nil
}
