package asm_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/modelmachine/asm"
	"github.com/sarchlab/modelmachine/cell"
	"github.com/sarchlab/modelmachine/memory"
)

func fetch(ram *memory.RAM, addr int64, bits int) uint64 {
	v, err := ram.Fetch(cell.New(addr, ram.AddressBits), bits, false)
	Expect(err).NotTo(HaveOccurred())
	return v.Unsigned()
}

var _ = Describe("Assemble mm-1", func() {
	It("encodes a one-address accumulator program", func() {
		d, err := asm.Lookup("mm-1")
		Expect(err).NotTo(HaveOccurred())

		ram := memory.New(d.WordBits, d.AddressBits)
		lines := []string{
			"move 100",
			"add 101",
			"store 102",
			"halt",
		}
		_, err = asm.Assemble(d, lines, 0, 0, ram)
		Expect(err).NotTo(HaveOccurred())

		Expect(fetch(ram, 0, 24)).To(Equal(uint64(0x00)<<16 | 100))
		Expect(fetch(ram, 1, 24)).To(Equal(uint64(0x01)<<16 | 101))
		Expect(fetch(ram, 2, 24)).To(Equal(uint64(0x10)<<16 | 102))
		Expect(fetch(ram, 3, 24)).To(Equal(uint64(0x99) << 16))
	})
})

var _ = Describe("Assemble mm-3", func() {
	It("resolves a top-level label for a three-address jump", func() {
		d, err := asm.Lookup("mm-3")
		Expect(err).NotTo(HaveOccurred())

		ram := memory.New(d.WordBits, d.AddressBits)
		lines := []string{
			"start:",
			"  add 10, 11, 12",
			"  jump start",
			"  halt",
		}
		result, err := asm.Assemble(d, lines, 0, 0, ram)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Symbols["start"]).To(Equal(int64(0)))

		wantAdd := uint64(0x01)<<48 | uint64(10)<<32 | uint64(11)<<16 | uint64(12)
		Expect(fetch(ram, 0, 56)).To(Equal(wantAdd))

		wantJump := uint64(0x80) << 48 // target (start=0) in the low 16 bits is zero
		Expect(fetch(ram, 1, 56)).To(Equal(wantJump))
	})
})

var _ = Describe("Assemble mm-0", func() {
	It("resolves a PC-relative backward jump", func() {
		d, err := asm.Lookup("mm-0")
		Expect(err).NotTo(HaveOccurred())

		ram := memory.New(d.WordBits, d.AddressBits)
		lines := []string{
			"  push 5",
			"loop:",
			"  push 1",
			"  sub 1",
			"  jump loop",
			"  halt",
		}
		_, err = asm.Assemble(d, lines, 0, 0, ram)
		Expect(err).NotTo(HaveOccurred())

		// jump is at address 3; PC after it is 4; loop is at address 1;
		// offset = 1 - 4 = -3 = 0xfd in an unsigned 8-bit field.
		Expect(fetch(ram, 3, 16)).To(Equal(uint64(0x80)<<8 | 0xfd))
		Expect(fetch(ram, 4, 16)).To(Equal(uint64(0x99) << 8))
	})

	It("rejects an immediate that overflows the 8-bit field", func() {
		d, _ := asm.Lookup("mm-0")
		ram := memory.New(d.WordBits, d.AddressBits)
		_, err := asm.Assemble(d, []string{"push 1000"}, 0, 0, ram)
		Expect(err).To(HaveOccurred())
		var tooLong *asm.TooLongImmediateError
		Expect(errors.As(err, &tooLong)).To(BeTrue())
	})
})

var _ = Describe("Assembler errors", func() {
	It("rejects a duplicate top-level label", func() {
		d, _ := asm.Lookup("mm-1")
		ram := memory.New(d.WordBits, d.AddressBits)
		lines := []string{"foo: halt", "foo: halt"}
		_, err := asm.Assemble(d, lines, 0, 0, ram)
		var dup *asm.DuplicateLabelError
		Expect(errors.As(err, &dup)).To(BeTrue())
	})

	It("rejects a reference to an undefined label", func() {
		d, _ := asm.Lookup("mm-1")
		ram := memory.New(d.WordBits, d.AddressBits)
		_, err := asm.Assemble(d, []string{"jump nowhere"}, 0, 0, ram)
		var undef *asm.UndefinedLabelError
		Expect(errors.As(err, &undef)).To(BeTrue())
	})

	It("rejects a local label with no enclosing scope", func() {
		d, _ := asm.Lookup("mm-1")
		ram := memory.New(d.WordBits, d.AddressBits)
		_, err := asm.Assemble(d, []string{".local: halt"}, 0, 0, ram)
		var local *asm.UnexpectedLocalLabelError
		Expect(errors.As(err, &local)).To(BeTrue())
	})

	It("rejects two .asm segments that overlap", func() {
		d, _ := asm.Lookup("mm-1")
		ram := memory.New(d.WordBits, d.AddressBits)
		_, err := asm.Assemble(d, []string{"halt"}, 0, 0, ram)
		Expect(err).NotTo(HaveOccurred())
		_, err = asm.Assemble(d, []string{"halt"}, 0, 0, ram)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Assemble mm-m", func() {
	It("encodes an indexed memory operand and a register move", func() {
		d, err := asm.Lookup("mm-m")
		Expect(err).NotTo(HaveOccurred())

		ram := memory.New(d.WordBits, d.AddressBits)
		lines := []string{
			"rmove r1, r0",
			"move r2, 100[r1]",
			"halt",
		}
		_, err = asm.Assemble(d, lines, 0, 0, ram)
		Expect(err).NotTo(HaveOccurred())

		Expect(fetch(ram, 0, 16)).To(Equal(uint64(0x20)<<8 | 1<<4 | 0))
		wantMove := uint64(0x00)<<24 | uint64(2)<<20 | uint64(1)<<16 | uint64(100)
		Expect(fetch(ram, 1, 32)).To(Equal(wantMove))
	})
})
