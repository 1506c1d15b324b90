package cloud_storage_test

import (
	"context"
	"os"
	"path/filepath"

	"stem-unmixer/src/application/cloud_storage"
	"stem-unmixer/src/application/extraction"
	"stem-unmixer/src/application/extraction/entity"
	"stem-unmixer/src/application/integration_test/dummy"
	"stem-unmixer/src/application/progress"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Mirror", func() {
	var (
		fileStore *dummy.FileStore
		mirror    cloud_storage.Mirror
		artifacts []extraction.Artifact
	)

	BeforeEach(func() {
		fileStore = dummy.NewDummyFileStore()
		mirror = cloud_storage.NewMirror(fileStore, "https://storage.example.com/stems/")

		dir, err := os.MkdirTemp(workingDir, "artifacts")
		Expect(err).NotTo(HaveOccurred())

		artifacts = []extraction.Artifact{}
		for name, contents := range map[string]string{
			"song_vocals.mp3":         "vocals",
			"song_all_but_vocals.mp3": "everything else",
		} {
			path := filepath.Join(dir, name)
			Expect(os.WriteFile(path, []byte(contents), os.ModePerm)).To(Succeed())
			artifacts = append(artifacts, extraction.Artifact{
				Kind: progress.StemTrack,
				Stem: entity.VocalsStem,
				Path: path,
			})
		}
	})

	It("uploads every artifact under the run", func() {
		urls, err := mirror.MirrorArtifacts(context.Background(), "run-id", artifacts)
		Expect(err).NotTo(HaveOccurred())

		Expect(urls).To(Equal(map[string]string{
			"song_vocals.mp3":         "https://storage.example.com/stems/run-id/song_vocals.mp3",
			"song_all_but_vocals.mp3": "https://storage.example.com/stems/run-id/song_all_but_vocals.mp3",
		}))

		Expect(fileStore.State["https://storage.example.com/stems/run-id/song_vocals.mp3"]).To(Equal([]byte("vocals")))
		Expect(fileStore.State["https://storage.example.com/stems/run-id/song_all_but_vocals.mp3"]).To(Equal([]byte("everything else")))
	})

	It("fails when the store is unavailable", func() {
		fileStore.Unavailable = true

		_, err := mirror.MirrorArtifacts(context.Background(), "run-id", artifacts)
		Expect(err).To(HaveOccurred())
	})

	It("fails when an artifact is missing locally", func() {
		artifacts = append(artifacts, extraction.Artifact{Path: filepath.Join(workingDir, "missing.mp3")})

		_, err := mirror.MirrorArtifacts(context.Background(), "run-id", artifacts)
		Expect(err).To(HaveOccurred())
	})

	It("has nothing to do without artifacts", func() {
		urls, err := mirror.MirrorArtifacts(context.Background(), "run-id", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(urls).To(BeEmpty())
	})
})
