package alu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/modelmachine/alu"
	"github.com/sarchlab/modelmachine/cell"
	"github.com/sarchlab/modelmachine/register"
)

func flagsOf(regs *register.File) uint64 {
	return regs.MustGet(register.FLAGS).Unsigned()
}

var _ = Describe("ALU", func() {
	var (
		regs *register.File
		a    *alu.ALU
		regNames = alu.AluRegisters{R1: register.R1, R2: register.R2, S: register.S, RES: register.R}
	)

	BeforeEach(func() {
		regs = register.NewFile()
		var err error
		a, err = alu.New(regs, regNames, 8, 16)
		Expect(err).NotTo(HaveOccurred())
	})

	setOperands := func(r1, r2 int64) {
		Expect(regs.Set(register.R1, cell.New(r1, 8))).To(Succeed())
		Expect(regs.Set(register.R2, cell.New(r2, 8))).To(Succeed())
	}

	Describe("Add", func() {
		It("computes the sum and clears flags on an ordinary result", func() {
			setOperands(2, 3)
			a.Add()
			Expect(regs.MustGet(register.S).Signed()).To(Equal(int64(5)))
			Expect(flagsOf(regs)).To(Equal(uint64(0)))
		})

		It("sets ZF on a zero result", func() {
			setOperands(5, -5)
			a.Add()
			Expect(flagsOf(regs) & alu.ZF).To(Equal(alu.ZF))
		})

		It("sets SF on a negative result", func() {
			setOperands(-1, -1)
			a.Add()
			Expect(flagsOf(regs) & alu.SF).To(Equal(alu.SF))
		})

		It("sets OF on signed overflow", func() {
			setOperands(120, 100) // 220 doesn't fit in int8 (-128..127)
			a.Add()
			Expect(flagsOf(regs) & alu.OF).To(Equal(alu.OF))
		})

		It("sets CF on unsigned overflow", func() {
			setOperands(-1, -1) // 0xff + 0xff = 0x1fe, doesn't fit in uint8
			a.Add()
			Expect(flagsOf(regs) & alu.CF).To(Equal(alu.CF))
		})
	})

	Describe("Sub and Comp", func() {
		It("Comp computes flags without writing S", func() {
			Expect(regs.Set(register.S, cell.New(42, 8))).To(Succeed())
			setOperands(5, 5)
			a.Comp()
			Expect(regs.MustGet(register.S).Signed()).To(Equal(int64(42)))
			Expect(flagsOf(regs) & alu.ZF).To(Equal(alu.ZF))
		})
	})

	Describe("signed division, round toward zero", func() {
		It("rounds -7/2 to -3 remainder -1", func() {
			setOperands(-7, 2)
			Expect(a.SDivMod()).To(Succeed())
			Expect(regs.MustGet(register.S).Signed()).To(Equal(int64(-3)))
			Expect(regs.MustGet(register.R).Signed()).To(Equal(int64(-1)))
		})

		It("errors on division by zero", func() {
			setOperands(10, 0)
			err := a.SDivMod()
			Expect(err).To(HaveOccurred())
			Expect(err).To(BeAssignableToTypeOf(&alu.ZeroDivisionError{}))
		})
	})

	Describe("Swap", func() {
		It("exchanges S and RES", func() {
			Expect(regs.Set(register.S, cell.New(1, 8))).To(Succeed())
			Expect(regs.Set(register.R, cell.New(2, 8))).To(Succeed())
			a.Swap()
			Expect(regs.MustGet(register.S).Signed()).To(Equal(int64(2)))
			Expect(regs.MustGet(register.R).Signed()).To(Equal(int64(1)))
		})
	})

	Describe("Jump and CondJump", func() {
		BeforeEach(func() {
			Expect(regs.Set(register.ADDR, cell.New(0x100, 16))).To(Succeed())
			Expect(regs.Set(register.PC, cell.New(0, 16))).To(Succeed())
		})

		It("Jump moves PC to ADDR", func() {
			a.Jump()
			Expect(regs.MustGet(register.PC).Unsigned()).To(Equal(uint64(0x100)))
		})

		It("CondJump(EQUAL, true) jumps iff ZF is set", func() {
			setOperands(5, -5)
			a.Add() // sets ZF
			a.CondJump(true, alu.Equal, true)
			Expect(regs.MustGet(register.PC).Unsigned()).To(Equal(uint64(0x100)))
		})

		It("CondJump(EQUAL, true) does not jump when ZF is clear", func() {
			setOperands(1, 2)
			a.Add()
			a.CondJump(true, alu.Equal, true)
			Expect(regs.MustGet(register.PC).Unsigned()).To(Equal(uint64(0)))
		})

		It("signed LESS jumps when the true result is negative", func() {
			setOperands(1, 5) // 1 - 5 = -4
			a.Sub()
			a.CondJump(true, alu.Less, false)
			Expect(regs.MustGet(register.PC).Unsigned()).To(Equal(uint64(0x100)))
		})

		It("unsigned LESS uses CF instead of SF/OF", func() {
			setOperands(1, 5) // unsigned 1 - 5 wraps, setting CF
			a.Sub()
			a.CondJump(false, alu.Less, false)
			Expect(regs.MustGet(register.PC).Unsigned()).To(Equal(uint64(0x100)))
		})
	})

	Describe("Halt", func() {
		It("sets HALT and overwrites other flags", func() {
			setOperands(5, -5)
			a.Add() // sets ZF
			a.Halt()
			Expect(flagsOf(regs)).To(Equal(alu.HALT))
			Expect(a.IsHalted()).To(BeTrue())
		})
	})
})
