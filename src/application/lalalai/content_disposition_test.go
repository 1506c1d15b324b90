package lalalai_test

import (
	"stem-unmixer/src/application/filename"
	"stem-unmixer/src/application/lalalai"

	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("MakeContentDisposition", func() {
	table.DescribeTable("header values",
		func(name string, expected string) {
			Expect(lalalai.MakeContentDisposition(name, "attachment")).To(Equal(expected))
		},
		table.Entry("ASCII name", "song.mp3", `attachment; filename="song.mp3"`),
		table.Entry("ASCII name with spaces", "my song.mp3", `attachment; filename="my song.mp3"`),
		table.Entry("non-ASCII name", "ümläut.wav", "attachment; filename*=utf-8''%C3%BCml%C3%A4ut.wav"),
		table.Entry("non-ASCII name with reserved characters", "日本 (live).mp3",
			"attachment; filename*=utf-8''%E6%97%A5%E6%9C%AC%20%28live%29.mp3"),
	)

	It("round trips through the filename resolver", func() {
		header := lalalai.MakeContentDisposition("café_vocals.mp3", "attachment")
		name, err := filename.Extract(header)
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("café_vocals.mp3"))
	})
})
