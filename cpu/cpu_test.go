package cpu_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/modelmachine/cpu"
	"github.com/sarchlab/modelmachine/cu"
	"github.com/sarchlab/modelmachine/source"
)

var _ = Describe("Cpu", func() {
	It("reads .enter, runs a mm-1 accumulator program, and prints the output slot", func() {
		text := ".cpu mm-1\n" +
			".input val\n" +
			".output result\n" +
			".enter 5\n" +
			".asm 0\n" +
			"  move val\n" +
			"  add ten\n" +
			"  store result\n" +
			"  halt\n" +
			"val: .word 0\n" +
			"ten: .word 10\n" +
			"result: .word 0\n"
		p, err := source.Parse(text)
		Expect(err).NotTo(HaveOccurred())

		c, err := cpu.New(p, strings.NewReader(""))
		Expect(err).NotTo(HaveOccurred())

		var out bytes.Buffer
		Expect(c.Run(&out)).To(Succeed())
		Expect(strings.TrimSpace(out.String())).To(Equal("15"))
		Expect(c.Status()).To(Equal(cu.Halted))
		Expect(c.InstructionCount()).To(Equal(uint64(4)))
	})

	It("falls back to stdin once .enter tokens run out", func() {
		text := ".cpu mm-1\n" +
			".input a, b\n" +
			".output sum\n" +
			".enter 5\n" +
			".asm 0\n" +
			"  move a\n" +
			"  add b\n" +
			"  store sum\n" +
			"  halt\n" +
			"a: .word 0\n" +
			"b: .word 0\n" +
			"sum: .word 0\n"
		p, err := source.Parse(text)
		Expect(err).NotTo(HaveOccurred())

		c, err := cpu.New(p, strings.NewReader("7"))
		Expect(err).NotTo(HaveOccurred())

		var out bytes.Buffer
		Expect(c.Run(&out)).To(Succeed())
		Expect(strings.TrimSpace(out.String())).To(Equal("12"))
	})

	It("adds through the stack on mm-0", func() {
		text := ".cpu mm-0\n" +
			".asm 0\n" +
			"  push 5\n" +
			"  push 3\n" +
			"  add 1\n" +
			"  halt\n"
		p, err := source.Parse(text)
		Expect(err).NotTo(HaveOccurred())

		c, err := cpu.New(p, strings.NewReader(""))
		Expect(err).NotTo(HaveOccurred())
		c.Unit.Run()
		Expect(c.Status()).To(Equal(cu.Halted))

		top, err := c.PeekStack()
		Expect(err).NotTo(HaveOccurred())
		Expect(top.Signed()).To(Equal(int64(8)))
	})

	It("subtracts in push order on mm-0, keeping the deeper operand as R1", func() {
		text := ".cpu mm-0\n" +
			".asm 0\n" +
			"  push 5\n" +
			"  push 3\n" +
			"  sub 1\n" +
			"  halt\n"
		p, err := source.Parse(text)
		Expect(err).NotTo(HaveOccurred())

		c, err := cpu.New(p, strings.NewReader(""))
		Expect(err).NotTo(HaveOccurred())
		c.Unit.Run()
		Expect(c.Status()).To(Equal(cu.Halted))

		top, err := c.PeekStack()
		Expect(err).NotTo(HaveOccurred())
		Expect(top.Signed()).To(Equal(int64(2)))
	})

	DescribeTable("a lone halt instruction halts within one step with no RAM writes",
		func(cpuName string) {
			text := ".cpu " + cpuName + "\n.asm 0\nhalt\n"
			p, err := source.Parse(text)
			Expect(err).NotTo(HaveOccurred())

			c, err := cpu.New(p, strings.NewReader(""))
			Expect(err).NotTo(HaveOccurred())

			before := c.Unit.RAM.FilledIntervals()
			c.Step()
			after := c.Unit.RAM.FilledIntervals()

			Expect(c.Status()).To(Equal(cu.Halted))
			Expect(c.InstructionCount()).To(Equal(uint64(1)))
			Expect(after).To(Equal(before))
		},
		Entry("mm-0", "mm-0"),
		Entry("mm-1", "mm-1"),
		Entry("mm-2", "mm-2"),
		Entry("mm-3", "mm-3"),
		Entry("mm-v", "mm-v"),
		Entry("mm-s", "mm-s"),
		Entry("mm-r", "mm-r"),
		Entry("mm-m", "mm-m"),
	)
})
