package publish_test

import (
	"stem-unmixer/src/application/extraction/entity"
	"stem-unmixer/src/application/integration_test/dummy"
	"stem-unmixer/src/application/progress"
	"stem-unmixer/src/application/publish"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("ProgressSink", func() {
	var (
		rabbitMQ *dummy.RabbitMQ
		sink     publish.ProgressSink
	)

	BeforeEach(func() {
		rabbitMQ = dummy.NewRabbitMQ()
		sink = publish.NewProgressSink(rabbitMQ, "run-id")
	})

	It("publishes the event as a protocol line", func() {
		sink.Accept(progress.SplitProgress{Stem: entity.VocalsStem, Percent: 42})

		Expect(rabbitMQ.MessageChannel).To(HaveLen(1))
		message := <-rabbitMQ.MessageChannel
		Expect(message.Type).To(Equal("split_progress"))
		Expect(message.CorrelationId).To(Equal("run-id"))
		Expect(string(message.Body)).To(Equal("%split_progress vocals 42%"))
	})

	It("can be read back by the line parser", func() {
		sink.Accept(progress.DownloadComplete{Kind: progress.BackingTrack, Stem: entity.PianoStem})

		message := <-rabbitMQ.MessageChannel
		event, err := progress.Parse(string(message.Body))
		Expect(err).NotTo(HaveOccurred())
		Expect(event).To(Equal(progress.DownloadComplete{Kind: progress.BackingTrack, Stem: entity.PianoStem}))
	})

	It("drops events when the broker is unavailable", func() {
		rabbitMQ.Unavailable = true
		sink.Accept(progress.UnmixingComplete{})
		Expect(rabbitMQ.MessageChannel).To(BeEmpty())
	})
})
