package source_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/modelmachine/asm"
	"github.com/sarchlab/modelmachine/cell"
	"github.com/sarchlab/modelmachine/memory"
	"github.com/sarchlab/modelmachine/source"
)

var _ = Describe("Parse", func() {
	It("rejects a file with no .cpu directive", func() {
		_, err := source.Parse(".code 0\n0000\n")
		Expect(err).To(HaveOccurred())
	})

	It("rejects an unknown cpu name", func() {
		_, err := source.Parse(".cpu mm-9\n.code 0\n0000\n")
		Expect(err).To(HaveOccurred())
	})

	It("rejects body text with no open .code/.asm block", func() {
		_, err := source.Parse(".cpu mm-1\nstray text\n.code 0\n0000\n")
		Expect(err).To(HaveOccurred())
	})

	It("collects .input, .output and .enter directives", func() {
		p, err := source.Parse(".cpu mm-1\n.input 5 first, 6 second\n.output 7\n.enter 1 -2\n.code 0\n000000\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(p.CPUName).To(Equal("mm-1"))
		Expect(p.Inputs).To(HaveLen(2))
		Expect(p.Inputs[0].Ref).To(Equal("5"))
		Expect(p.Inputs[0].Message).To(Equal("first"))
		Expect(p.Inputs[1].Ref).To(Equal("6"))
		Expect(p.Inputs[1].Message).To(Equal("second"))
		Expect(p.Outputs).To(HaveLen(1))
		Expect(p.Outputs[0].Ref).To(Equal("7"))
		Expect(p.Enter).To(Equal([]int64{1, -2}))
	})
})

var _ = Describe("Build", func() {
	It("assembles a .code block of raw hex into RAM", func() {
		p, err := source.Parse(".cpu mm-1\n.code 0\n009900\n")
		Expect(err).NotTo(HaveOccurred())

		ram := memory.New(24, 16)
		built, err := source.Build(p, ram, 24)
		Expect(err).NotTo(HaveOccurred())
		Expect(built.CPUName).To(Equal("mm-1"))

		w, err := ram.Fetch(cell.New(0, 16), 24, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Unsigned()).To(Equal(uint64(0x009900)))
	})

	It("assembles a .asm block and resolves an .output label reference", func() {
		text := ".cpu mm-1\n" +
			".output sum\n" +
			".enter 2 3\n" +
			".asm 0\n" +
			"  move 10\n" +
			"  add 11\n" +
			"sum:\n" +
			"  store 12\n" +
			"  halt\n"
		p, err := source.Parse(text)
		Expect(err).NotTo(HaveOccurred())

		ram := memory.New(24, 16)
		built, err := source.Build(p, ram, 24)
		Expect(err).NotTo(HaveOccurred())

		Expect(built.Outputs).To(HaveLen(1))
		Expect(built.Outputs[0].Address).To(Equal(int64(2)))
		Expect(built.Enter).To(Equal([]int64{2, 3}))

		store, err := ram.Fetch(cell.New(2, 16), 24, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(store.Unsigned() >> 16).To(Equal(uint64(0x10)))

		halt, err := ram.Fetch(cell.New(3, 16), 24, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(halt.Unsigned()).To(Equal(uint64(0x990000)))
	})

	It("rejects a local label used as an .output reference", func() {
		text := ".cpu mm-1\n.output .local\n.asm 0\nhalt\n"
		p, err := source.Parse(text)
		Expect(err).NotTo(HaveOccurred())

		ram := memory.New(24, 16)
		_, err = source.Build(p, ram, 24)
		Expect(err).To(HaveOccurred())
		var ue *asm.UnexpectedLocalLabelError
		Expect(errors.As(err, &ue)).To(BeTrue())
	})

	It("rejects an undefined .input reference", func() {
		text := ".cpu mm-1\n.input ghost\n.asm 0\nhalt\n"
		p, err := source.Parse(text)
		Expect(err).NotTo(HaveOccurred())

		ram := memory.New(24, 16)
		_, err = source.Build(p, ram, 24)
		Expect(err).To(HaveOccurred())
		var ue *asm.UndefinedLabelError
		Expect(errors.As(err, &ue)).To(BeTrue())
	})
})

var _ = Describe("Dump", func() {
	It("round-trips a built program through Dump, Parse and Build", func() {
		text := ".cpu mm-1\n" +
			".output sum\n" +
			".enter 4\n" +
			".asm 0\n" +
			"  move 10\n" +
			"sum:\n" +
			"  store 11\n" +
			"  halt\n"
		p, err := source.Parse(text)
		Expect(err).NotTo(HaveOccurred())

		ram := memory.New(24, 16)
		built, err := source.Build(p, ram, 24)
		Expect(err).NotTo(HaveOccurred())

		dumped := source.Dump(built)

		p2, err := source.Parse(dumped)
		Expect(err).NotTo(HaveOccurred())
		Expect(p2.CPUName).To(Equal("mm-1"))
		Expect(p2.Enter).To(Equal(built.Enter))

		ram2 := memory.New(24, 16)
		built2, err := source.Build(p2, ram2, 24)
		Expect(err).NotTo(HaveOccurred())

		for _, iv := range built.RAM.FilledIntervals() {
			for addr := iv.Start; addr < iv.Stop; addr++ {
				w1, err := built.RAM.Fetch(cell.New(int64(addr), 16), 24, false)
				Expect(err).NotTo(HaveOccurred())
				w2, err := built2.RAM.Fetch(cell.New(int64(addr), 16), 24, false)
				Expect(err).NotTo(HaveOccurred())
				Expect(w2.Unsigned()).To(Equal(w1.Unsigned()))
			}
		}
		Expect(built2.Outputs).To(Equal(built.Outputs))
	})
})
