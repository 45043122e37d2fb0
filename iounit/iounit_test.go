package iounit_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/modelmachine/cell"
	"github.com/sarchlab/modelmachine/iounit"
	"github.com/sarchlab/modelmachine/memory"
)

var _ = Describe("CheckWord", func() {
	It("accepts values within the asymmetric io_bits range", func() {
		Expect(iounit.CheckWord(-128, 8)).To(Succeed())
		Expect(iounit.CheckWord(255, 8)).To(Succeed())
	})

	It("rejects values outside the range", func() {
		Expect(iounit.CheckWord(-129, 8)).To(HaveOccurred())
		Expect(iounit.CheckWord(256, 8)).To(HaveOccurred())
	})
})

var _ = Describe("LoadSource", func() {
	It("writes consecutive hex words into memory", func() {
		ram := memory.New(16, 16)
		Expect(iounit.LoadSource(ram, cell.New(0, 16), "00ab00cd")).To(Succeed())

		w0, err := ram.Fetch(cell.New(0, 16), 16, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(w0.Unsigned()).To(Equal(uint64(0x00ab)))

		w1, err := ram.Fetch(cell.New(1, 16), 16, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(w1.Unsigned()).To(Equal(uint64(0x00cd)))
	})

	It("rejects a source whose length is not a multiple of the word's nibble width", func() {
		ram := memory.New(16, 16)
		Expect(iounit.LoadSource(ram, cell.New(0, 16), "abc")).To(HaveOccurred())
	})

	It("rejects overlapping an already-filled word", func() {
		ram := memory.New(16, 16)
		Expect(iounit.LoadSource(ram, cell.New(0, 16), "0001")).To(Succeed())
		Expect(iounit.LoadSource(ram, cell.New(0, 16), "0002")).To(HaveOccurred())
	})
})

var _ = Describe("IOUnit", func() {
	It("reads one signed decimal integer and stores it at address", func() {
		ram := memory.New(16, 16)
		u := &iounit.IOUnit{RAM: ram, IOBits: 16}
		Expect(u.Input(cell.New(5, 16), strings.NewReader("-42\n"))).To(Succeed())

		v, err := ram.Fetch(cell.New(5, 16), 16, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(v.Signed()).To(Equal(int64(-42)))
	})

	It("rejects an out-of-range input", func() {
		ram := memory.New(8, 16)
		u := &iounit.IOUnit{RAM: ram, IOBits: 8}
		Expect(u.Input(cell.New(0, 16), strings.NewReader("300"))).To(HaveOccurred())
	})

	It("prints the word at address as signed decimal", func() {
		ram := memory.New(16, 16)
		Expect(ram.Put(cell.New(3, 16), cell.New(-7, 16), true)).To(Succeed())
		u := &iounit.IOUnit{RAM: ram, IOBits: 16}

		var buf bytes.Buffer
		Expect(u.Output(cell.New(3, 16), &buf)).To(Succeed())
		Expect(strings.TrimSpace(buf.String())).To(Equal("-7"))
	})
})

type fakeStack struct{ values []cell.Cell }

func (s *fakeStack) Push(v cell.Cell) error {
	s.values = append(s.values, v)
	return nil
}

func (s *fakeStack) Pop() (cell.Cell, error) {
	v := s.values[len(s.values)-1]
	s.values = s.values[:len(s.values)-1]
	return v, nil
}

var _ = Describe("IOUnit with a stack port", func() {
	It("pushes input and pops output instead of addressing RAM", func() {
		st := &fakeStack{}
		u := &iounit.IOUnit{IOBits: 16, Stack: st}
		Expect(u.Input(cell.Cell{}, strings.NewReader("9"))).To(Succeed())

		var buf bytes.Buffer
		Expect(u.Output(cell.Cell{}, &buf)).To(Succeed())
		Expect(strings.TrimSpace(buf.String())).To(Equal("9"))
	})
})
