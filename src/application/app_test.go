package application_test

import (
	"bytes"
	"context"
	"encoding/json"

	"stem-unmixer/src/application"
	"stem-unmixer/src/application/config"
	"stem-unmixer/src/application/integration_test/dummy"
	"stem-unmixer/src/application/jobs/extract"
	runentity "stem-unmixer/src/application/runs/entity"

	"github.com/apex/log"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Enqueue", func() {
	var (
		cfg      config.Config
		runStore *dummy.RunStore
		rabbitMQ *dummy.RabbitMQ
		params   extract.JobParams
	)

	BeforeEach(func() {
		cfg = config.Default()
		runStore = dummy.NewDummyRunStore()
		rabbitMQ = dummy.NewRabbitMQ()
		params = extract.JobParams{
			InputPath: "/music/song.mp3",
			Stems:     []string{"vocals"},
		}
	})

	It("records a requested run and publishes its job", func() {
		runID, err := application.Enqueue(context.Background(), cfg, runStore, rabbitMQ, params)
		Expect(err).NotTo(HaveOccurred())
		Expect(runID).NotTo(BeEmpty())

		run, err := runStore.GetRun(context.Background(), runID)
		Expect(err).NotTo(HaveOccurred())
		Expect(run.Status).To(Equal(runentity.RequestedStatus))
		Expect(run.InputPath).To(Equal("/music/song.mp3"))
		Expect(run.Stems).To(Equal([]string{"vocals"}))

		deliveries := rabbitMQ.Drain()
		Expect(deliveries).To(HaveLen(1))
		Expect(deliveries[0].Type).To(Equal(extract.JobType))

		var published extract.JobParams
		Expect(json.Unmarshal(deliveries[0].Body, &published)).To(Succeed())
		Expect(published.RunID).To(Equal(runID))
		Expect(published.InputPath).To(Equal("/music/song.mp3"))
	})

	It("keeps a run ID chosen by the caller", func() {
		params.RunID = "chosen"
		runID, err := application.Enqueue(context.Background(), cfg, runStore, rabbitMQ, params)
		Expect(err).NotTo(HaveOccurred())
		Expect(runID).To(Equal("chosen"))
	})

	It("does not publish when the run cannot be recorded", func() {
		runStore.Unavailable = true

		_, err := application.Enqueue(context.Background(), cfg, runStore, rabbitMQ, params)
		Expect(err).To(HaveOccurred())
		Expect(rabbitMQ.Drain()).To(BeEmpty())
	})

	It("fails when the queue is down", func() {
		rabbitMQ.Unavailable = true

		_, err := application.Enqueue(context.Background(), cfg, runStore, rabbitMQ, params)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("SetupLogging", func() {
	AfterEach(func() {
		log.SetLevel(log.InfoLevel)
	})

	It("writes JSON entries at the configured level", func() {
		out := bytes.Buffer{}
		err := application.SetupLogging(config.LogConfig{Level: "warn", Format: "json"}, &out)
		Expect(err).NotTo(HaveOccurred())

		log.Info("quiet")
		log.WithField("run_id", "run").Warn("loud")

		Expect(out.String()).NotTo(ContainSubstring("quiet"))
		Expect(out.String()).To(ContainSubstring(`"message":"loud"`))
		Expect(out.String()).To(ContainSubstring(`"run_id":"run"`))
	})

	It("rejects unknown levels", func() {
		err := application.SetupLogging(config.LogConfig{Level: "chatty"}, &bytes.Buffer{})
		Expect(err).To(HaveOccurred())
	})
})
