package runs_test

import (
	"context"

	extractionentity "stem-unmixer/src/application/extraction/entity"
	"stem-unmixer/src/application/integration_test/dummy"
	"stem-unmixer/src/application/progress"
	"stem-unmixer/src/application/runs"
	"stem-unmixer/src/application/runs/entity"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Recorder", func() {
	var (
		runID    string
		runStore *dummy.RunStore
		recorder runs.Recorder
	)

	currentRun := func() entity.Run {
		run, err := runStore.GetRun(context.Background(), runID)
		Expect(err).NotTo(HaveOccurred())
		return run
	}

	BeforeEach(func() {
		runID = "run-id"
		runStore = dummy.NewDummyRunStore()
		err := runStore.SetRun(context.Background(), entity.Run{
			ID:     runID,
			Status: entity.ProcessingStatus,
		})
		Expect(err).NotTo(HaveOccurred())

		recorder = runs.NewRecorder(runStore, runID, []extractionentity.Stem{
			extractionentity.VocalsStem,
			extractionentity.DrumStem,
		})
	})

	It("records the file ID once uploaded", func() {
		recorder.Accept(progress.Uploaded{FileID: "file-id"})

		run := currentRun()
		Expect(run.FileID).To(Equal("file-id"))
		Expect(run.Progress).To(Equal(10))
	})

	It("spreads split progress over the stems", func() {
		recorder.Accept(progress.SplitProgress{Stem: extractionentity.VocalsStem, Percent: 50})
		Expect(currentRun().Progress).To(Equal(30))

		recorder.Accept(progress.SplitProgress{Stem: extractionentity.DrumStem, Percent: 50})
		Expect(currentRun().Progress).To(Equal(70))
		Expect(currentRun().StatusMessage).To(Equal("Splitting drum"))
	})

	It("never moves progress backwards", func() {
		recorder.Accept(progress.SplitComplete{Stem: extractionentity.DrumStem})
		recorder.Accept(progress.SplitWaiting{Stem: extractionentity.VocalsStem})

		Expect(currentRun().Progress).To(Equal(90))
	})

	It("marks the run as failed on an error event", func() {
		recorder.Accept(progress.Error{Context: "split", Message: "license expired"})

		run := currentRun()
		Expect(run.Status).To(Equal(entity.ErrorStatus))
		Expect(run.DebugLog).To(Equal("license expired"))
	})

	It("ignores events that carry nothing to record", func() {
		recorder.Accept(progress.SplitStart{Stem: extractionentity.VocalsStem})
		Expect(currentRun().Version).To(Equal(0))
	})

	It("survives an unavailable store", func() {
		runStore.Unavailable = true
		Expect(func() {
			recorder.Accept(progress.UnmixingComplete{})
		}).NotTo(Panic())
	})
})
