package config_test

import (
	"os"
	"path/filepath"
	"time"

	"stem-unmixer/src/application/config"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	var configPath string

	BeforeEach(func() {
		dir, err := os.MkdirTemp(workingDir, "config")
		Expect(err).NotTo(HaveOccurred())
		configPath = filepath.Join(dir, "config.toml")
	})

	It("has usable defaults", func() {
		cfg := config.Default()

		Expect(cfg.Lalalai.BaseURL).To(Equal("https://www.lalal.ai/api/"))
		Expect(cfg.Extraction.PollInterval).To(Equal(10 * time.Second))
		Expect(cfg.Extraction.MaxWait).To(BeZero())
		Expect(cfg.Extraction.ChunkSize).To(Equal(8196))
		Expect(cfg.Storage.Backend).To(Equal(config.NoStorage))
		Expect(cfg.Validate()).To(Succeed())
	})

	It("overlays a file on the defaults", func() {
		contents := `
[extraction]
poll_interval = "2s"
max_wait = "15m"

[storage]
backend = "minio"
`
		Expect(os.WriteFile(configPath, []byte(contents), 0644)).To(Succeed())

		cfg, err := config.Load(configPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Extraction.PollInterval).To(Equal(2 * time.Second))
		Expect(cfg.Extraction.MaxWait).To(Equal(15 * time.Minute))
		Expect(cfg.Extraction.ChunkSize).To(Equal(8196))
		Expect(cfg.Storage.Backend).To(Equal(config.MinioStorage))
		Expect(cfg.Storage.Minio.Bucket).To(Equal("unmix"))
	})

	It("lets the environment override secrets", func() {
		Expect(os.Setenv("UNMIX_LICENSE", "fedcba9876543210")).To(Succeed())
		defer os.Unsetenv("UNMIX_LICENSE")

		cfg, err := config.Load("")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Lalalai.License).To(Equal("fedcba9876543210"))
	})

	It("rejects invalid values", func() {
		Expect(os.WriteFile(configPath, []byte("[log]\nformat = \"xml\"\n"), 0644)).To(Succeed())

		_, err := config.Load(configPath)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a missing file", func() {
		_, err := config.Load(filepath.Join(workingDir, "nope.toml"))
		Expect(err).To(HaveOccurred())
	})

	It("writes the example file once", func() {
		Expect(config.CreateFile(configPath)).To(Succeed())

		cfg, err := config.Load(configPath)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Extraction).To(Equal(config.Default().Extraction))
		Expect(cfg.Storage.Minio).To(Equal(config.Default().Storage.Minio))

		Expect(config.CreateFile(configPath)).NotTo(Succeed())
	})
})
