package extract_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"stem-unmixer/src/application/cloud_storage"
	"stem-unmixer/src/application/extraction"
	"stem-unmixer/src/application/extraction/entity"
	"stem-unmixer/src/application/integration_test/dummy"
	"stem-unmixer/src/application/jobs/extract"
	"stem-unmixer/src/application/jobs/job_message"
	"stem-unmixer/src/application/lalalai"
	runentity "stem-unmixer/src/application/runs/entity"
	"stem-unmixer/src/application/settings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Extract handler", func() {
	var (
		caseDir      string
		settingsPath string
		runID        string

		transport *dummy.LalalTransport
		runStore  *dummy.RunStore
		fileStore *dummy.FileStore
		rabbitMQ  *dummy.RabbitMQ

		handler extract.JobHandler
		params  extract.JobParams
		message []byte
	)

	currentRun := func() runentity.Run {
		run, err := runStore.GetRun(context.Background(), runID)
		Expect(err).NotTo(HaveOccurred())
		return run
	}

	BeforeEach(func() {
		var err error
		caseDir, err = os.MkdirTemp(workingDir, "case")
		Expect(err).NotTo(HaveOccurred())

		inputPath := filepath.Join(caseDir, "song.mp3")
		Expect(os.WriteFile(inputPath, []byte("song"), os.ModePerm)).To(Succeed())

		By("Saving defaults to the settings store", func() {
			settingsPath = filepath.Join(caseDir, "settings.db")
			store, err := settings.Open(settingsPath)
			Expect(err).NotTo(HaveOccurred())
			defer store.Close()

			Expect(store.Set(context.Background(), settings.LicenseKey, "0123456789abcdef")).To(Succeed())
			Expect(store.Set(context.Background(), settings.OutputDirKey, filepath.Join(caseDir, "out"))).To(Succeed())
		})

		runID = "run-id"
		transport = dummy.NewDummyLalalTransport()
		runStore = dummy.NewDummyRunStore()
		fileStore = dummy.NewDummyFileStore()
		rabbitMQ = dummy.NewRabbitMQ()

		Expect(runStore.SetRun(context.Background(), runentity.Run{
			ID:     runID,
			Status: runentity.RequestedStatus,
		})).To(Succeed())

		params = extract.JobParams{
			RunIdentifier: job_message.RunIdentifier{RunID: runID},
			InputPath:     inputPath,
			Stems:         []string{"vocals", "drum"},
			BackingTracks: []string{"vocals"},
		}
	})

	JustBeforeEach(func() {
		orchestrator := extraction.NewOrchestrator(transport, extraction.Options{PollInterval: time.Millisecond})
		mirror := cloud_storage.NewMirror(fileStore, "https://storage.example.com/unmix")
		handler = extract.NewJobHandler(orchestrator, runStore, rabbitMQ, mirror, settingsPath)

		var err error
		message, err = json.Marshal(params)
		Expect(err).NotTo(HaveOccurred())
	})

	It("handles extract_stems jobs", func() {
		Expect(handler.JobType()).To(Equal(extract.JobType))
	})

	Describe("When the extraction succeeds", func() {
		It("marks the run as successful with mirrored artifact URLs", func() {
			err := handler.HandleMessage(message)
			Expect(err).NotTo(HaveOccurred())

			run := currentRun()
			Expect(run.Status).To(Equal(runentity.SuccessStatus))
			Expect(run.Progress).To(Equal(100))
			Expect(run.FileID).To(Equal(dummy.DummyFileID))
			Expect(run.ArtifactURLs).To(HaveLen(3))
			Expect(run.ArtifactURLs).To(HaveKeyWithValue(
				dummy.ArtifactName(entity.VocalsStem, true),
				"https://storage.example.com/unmix/run-id/"+dummy.ArtifactName(entity.VocalsStem, true),
			))
			Expect(fileStore.State).To(HaveLen(3))
		})

		It("writes artifacts to the output directory from settings", func() {
			_ = handler.HandleMessage(message)

			_, err := os.Stat(filepath.Join(caseDir, "out", dummy.ArtifactName(entity.DrumStem, false)))
			Expect(err).NotTo(HaveOccurred())
		})

		It("publishes every progress event for the run", func() {
			_ = handler.HandleMessage(message)

			deliveries := rabbitMQ.Drain()
			Expect(deliveries).NotTo(BeEmpty())
			for _, delivery := range deliveries {
				Expect(delivery.CorrelationId).To(Equal(runID))
			}
			Expect(string(deliveries[0].Body)).To(HavePrefix("%uploading"))
			Expect(string(deliveries[len(deliveries)-1].Body)).To(Equal("%unmixing_complete"))
		})
	})

	Describe("When the service rejects the split", func() {
		BeforeEach(func() {
			transport.Scripts[entity.VocalsStem] = []lalalai.SplitStatus{
				{State: lalalai.ErrorState, ErrorMessage: "not enough minutes"},
			}
		})

		It("returns an error and records it on the run", func() {
			err := handler.HandleMessage(message)
			Expect(err).To(HaveOccurred())

			run := currentRun()
			Expect(run.Status).To(Equal(runentity.ErrorStatus))
			Expect(run.DebugLog).To(ContainSubstring("not enough minutes"))
			Expect(fileStore.State).To(BeEmpty())
		})
	})

	Describe("When the run was already picked up", func() {
		BeforeEach(func() {
			Expect(runStore.SetRun(context.Background(), runentity.Run{
				ID:     runID,
				Status: runentity.ProcessingStatus,
			})).To(Succeed())
		})

		It("refuses to run it again", func() {
			err := handler.HandleMessage(message)
			Expect(err).To(HaveOccurred())
			Expect(transport.Calls()).To(BeEmpty())
		})
	})

	Describe("Invalid messages", func() {
		It("rejects unknown stems before touching the service", func() {
			params.Stems = []string{"kazoo"}
			body, err := json.Marshal(params)
			Expect(err).NotTo(HaveOccurred())

			Expect(handler.HandleMessage(body)).NotTo(Succeed())
			Expect(transport.Calls()).To(BeEmpty())
			Expect(currentRun().Status).To(Equal(runentity.RequestedStatus))
		})

		It("rejects a message without a run ID", func() {
			Expect(handler.HandleMessage([]byte(`{"input_path": "a.mp3", "stems": ["vocals"]}`))).NotTo(Succeed())
		})

		It("rejects an empty selection", func() {
			params.Stems = nil
			params.BackingTracks = nil
			body, err := json.Marshal(params)
			Expect(err).NotTo(HaveOccurred())

			Expect(handler.HandleMessage(body)).NotTo(Succeed())
		})
	})
})

var _ = Describe("RequestFromParams", func() {
	defaults := settings.Defaults{
		License:   "0123456789abcdef",
		OutputDir: "/stems",
		Filter:    entity.DefaultFilter,
		Network:   entity.DefaultNetwork,
	}

	It("lets message values override the defaults", func() {
		request, err := extract.RequestFromParams(extract.JobParams{
			InputPath: "/in/song.mp3",
			OutputDir: "/elsewhere",
			Stems:     []string{"bass"},
			Filter:    "aggressive",
			Splitter:  "cassiopeia",
		}, defaults)
		Expect(err).NotTo(HaveOccurred())

		Expect(request).To(Equal(entity.ExtractionRequest{
			License:       "0123456789abcdef",
			InputPath:     "/in/song.mp3",
			OutputDir:     "/elsewhere",
			Stems:         []entity.Stem{entity.BassStem},
			BackingTracks: []entity.Stem{},
			Filter:        entity.AggressiveFilter,
			Network:       entity.CassiopeiaNetwork,
		}))
	})

	It("requires a well-formed license", func() {
		_, err := extract.RequestFromParams(extract.JobParams{
			InputPath: "/in/song.mp3",
			Stems:     []string{"bass"},
			License:   "nope",
		}, defaults)
		Expect(err).To(HaveOccurred())
	})

	It("attributes bad backing tracks to the backing track field", func() {
		_, err := extract.RequestFromParams(extract.JobParams{
			InputPath:     "/in/song.mp3",
			BackingTracks: []string{"cowbell"},
		}, defaults)
		Expect(err).To(MatchError(entity.ValidationError{Field: entity.BackingTracksField, Value: "cowbell"}))
	})
})
