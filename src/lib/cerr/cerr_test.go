package cerr_test

import (
	"errors"

	"stem-unmixer/src/lib/cerr"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Contextual errors", func() {
	cause := errors.New("disk on fire")

	It("renders the message alone without a cause", func() {
		err := cerr.Field("key", "value").Error("Something broke")
		Expect(err.Error()).To(Equal("Something broke"))
	})

	It("appends the cause to the message", func() {
		err := cerr.Wrap(cause).Error("Failed to write")
		Expect(err.Error()).To(Equal("Failed to write: disk on fire"))
		Expect(errors.Is(err, cause)).To(BeTrue())
	})

	It("hoists fields from wrapped contextual errors", func() {
		inner := cerr.Field("path", "/tmp/a").Wrap(cause).Error("Failed to write")
		outer := cerr.Field("run_id", "run").Wrap(inner).Error("Extraction failed")

		var ctxErr cerr.ContextualError
		Expect(errors.As(outer, &ctxErr)).To(BeTrue())
		Expect(ctxErr.Context.ContextFields).To(Equal(cerr.F{
			"path":   "/tmp/a",
			"run_id": "run",
		}))
		Expect(outer.Error()).To(Equal("Extraction failed: Failed to write: disk on fire"))
		Expect(errors.Is(outer, cause)).To(BeTrue())
	})

	It("lets outer fields win over inner ones", func() {
		inner := cerr.Field("stage", "upload").Error("Inner")
		outer := cerr.Field("stage", "split").Wrap(inner).Error("Outer")

		Expect(outer.(cerr.ContextualError).Context.ContextFields).To(HaveKeyWithValue("stage", "split"))
	})

	It("describes fields in a stable order", func() {
		err := cerr.Fields(cerr.F{"b": 2, "a": 1}).Error("Oops")
		Expect(err.(cerr.ContextualError).Describe()).To(Equal("Oops a=1 b=2"))
	})

	Describe("Logging", func() {
		var (
			handler *memory.Handler
			logger  *log.Logger
		)

		BeforeEach(func() {
			handler = memory.New()
			logger = &log.Logger{Handler: handler, Level: log.DebugLevel}
		})

		It("logs contextual fields alongside the message", func() {
			cerr.LogTo(logger, cerr.Field("run_id", "run").Wrap(cause).Error("Failed"))

			Expect(handler.Entries).To(HaveLen(1))
			Expect(handler.Entries[0].Level).To(Equal(log.ErrorLevel))
			Expect(handler.Entries[0].Message).To(Equal("Failed: disk on fire"))
			Expect(handler.Entries[0].Fields).To(HaveKeyWithValue("run_id", "run"))
		})

		It("logs plain errors as they are", func() {
			cerr.LogTo(logger, cause)

			Expect(handler.Entries).To(HaveLen(1))
			Expect(handler.Entries[0].Message).To(Equal("disk on fire"))
		})
	})
})
