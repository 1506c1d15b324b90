package settings_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"stem-unmixer/src/application/extraction/entity"
	"stem-unmixer/src/application/settings"

	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("Store", func() {
	var (
		ctx    context.Context
		dbPath string
		store  settings.Store
	)

	BeforeEach(func() {
		ctx = context.Background()

		dir, err := os.MkdirTemp(workingDir, "db")
		Expect(err).NotTo(HaveOccurred())
		dbPath = filepath.Join(dir, "settings.db")

		store, err = settings.Open(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	It("reports missing keys without an error", func() {
		_, found, err := store.Get(ctx, settings.LicenseKey)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())
	})

	It("stores and replaces values", func() {
		Expect(store.Set(ctx, settings.OutputDirKey, "/tmp/first")).To(Succeed())
		Expect(store.Set(ctx, settings.OutputDirKey, "/tmp/second")).To(Succeed())

		value, found, err := store.Get(ctx, settings.OutputDirKey)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(value).To(Equal("/tmp/second"))
	})

	It("persists across handles", func() {
		Expect(store.Set(ctx, settings.LicenseKey, "0123456789ABCDEF")).To(Succeed())

		By("opening a second handle on the same file")
		other, err := settings.Open(dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer other.Close()

		value, found, err := other.Get(ctx, settings.LicenseKey)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(value).To(Equal("0123456789ABCDEF"))
	})

	It("normalizes filter and splitter values", func() {
		Expect(store.Set(ctx, settings.FilterKey, "aggressive")).To(Succeed())
		Expect(store.Set(ctx, settings.NetworkKey, "Cassiopeia")).To(Succeed())

		value, _, err := store.Get(ctx, settings.FilterKey)
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal("2"))

		value, _, err = store.Get(ctx, settings.NetworkKey)
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal("cassiopeia"))
	})

	It("rejects invalid values without storing them", func() {
		err := store.Set(ctx, settings.LicenseKey, "not-a-license")
		Expect(err).To(HaveOccurred())

		validationErr := entity.ValidationError{}
		Expect(errors.As(err, &validationErr)).To(BeTrue())
		Expect(validationErr.Field).To(Equal(entity.LicenseField))

		_, found, err := store.Get(ctx, settings.LicenseKey)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())

		Expect(store.Set(ctx, settings.FilterKey, "7")).NotTo(Succeed())
		Expect(store.Set(ctx, settings.NetworkKey, "orion")).NotTo(Succeed())
	})

	Describe("Defaults", func() {
		It("falls back to the built-in defaults", func() {
			defaults, err := store.Defaults(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(defaults).To(Equal(settings.Defaults{
				Filter:  entity.DefaultFilter,
				Network: entity.DefaultNetwork,
			}))
		})

		It("uses stored values", func() {
			Expect(store.Set(ctx, settings.LicenseKey, "abcdefabcdef0123")).To(Succeed())
			Expect(store.Set(ctx, settings.OutputDirKey, "/music/stems")).To(Succeed())
			Expect(store.Set(ctx, settings.FilterKey, "0")).To(Succeed())
			Expect(store.Set(ctx, settings.NetworkKey, "cassiopeia")).To(Succeed())

			defaults, err := store.Defaults(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(defaults).To(Equal(settings.Defaults{
				License:   "abcdefabcdef0123",
				OutputDir: "/music/stems",
				Filter:    entity.MildFilter,
				Network:   entity.CassiopeiaNetwork,
			}))
		})
	})
})

var _ = Describe("Keys", func() {
	It("converts known keys", func() {
		key, err := settings.ConvertToKey("splitter")
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(Equal(settings.NetworkKey))
	})

	It("rejects unknown keys", func() {
		_, err := settings.ConvertToKey("theme")
		Expect(errors.Is(err, settings.ErrUnknownKey)).To(BeTrue())
	})
})

var _ = Describe("ValidateLicense", func() {
	table.DescribeTable("license shapes",
		func(license string, valid bool) {
			err := settings.ValidateLicense(license)
			if valid {
				Expect(err).NotTo(HaveOccurred())
			} else {
				Expect(err).To(HaveOccurred())
			}
		},
		table.Entry("lowercase hex", "0123456789abcdef", true),
		table.Entry("uppercase hex", "0123456789ABCDEF", true),
		table.Entry("too short", "0123456789abcde", false),
		table.Entry("too long", "0123456789abcdef0", false),
		table.Entry("not hex", "0123456789abcdeg", false),
		table.Entry("empty", "", false),
	)
})
