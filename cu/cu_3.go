package cu

import (
	"github.com/sarchlab/modelmachine/alu"
	"github.com/sarchlab/modelmachine/cell"
	"github.com/sarchlab/modelmachine/memory"
	"github.com/sarchlab/modelmachine/register"
)

// CU3 is mm-3: a three-address memory-to-memory machine. Every instruction
// is exactly one word wide: opcode(8) ∥ A1(16) ∥ A2(16) ∥ A3(16, the ADDR
// register). Binary ops read operands from [A1] and [A2] and write the
// result to [A3]; move copies [A1] to [A3].
type CU3 struct {
	*ControlUnit
}

// NewCU3 wires RAM, register file, ALU and control unit for mm-3. word_bits
// equals ir_bits (56): the whole instruction and every memory cell are the
// same width, per the ALU's operand_bits == ir_bits invariant.
func NewCU3(ramOpts ...memory.Option) (*CU3, error) {
	const addressBits = 16
	const wordBits = OpcodeBits + 3*addressBits

	ram := memory.New(wordBits, addressBits, ramOpts...)
	regs := register.NewFile()
	a, err := alu.New(regs, alu.AluRegisters{R1: register.R1, R2: register.R2, S: register.S, RES: register.R1}, wordBits, addressBits)
	if err != nil {
		return nil, err
	}
	base, err := New(regs, ram, a, wordBits, wordBits, addressBits)
	if err != nil {
		return nil, err
	}
	if err := regs.Add(register.A1, addressBits); err != nil {
		return nil, err
	}
	if err := regs.Add(register.A2, addressBits); err != nil {
		return nil, err
	}

	c := &CU3{ControlUnit: base}
	c.Bind(c)
	return c, nil
}

func (c *CU3) Name() string { return "mm-3" }

func (c *CU3) InstructionBits(op Opcode) (int, error) {
	switch op {
	case Move, Add, Sub, SMul, SDiv, Comp, UMul, UDiv, Jump, Halt:
		return c.IRBits, nil
	}
	if CondJumpOpcodes[op] {
		return c.IRBits, nil
	}
	return 0, &WrongOpcodeError{Variant: c.Name(), Opcode: byte(op)}
}

func (c *CU3) Decode(op Opcode) error {
	if op == Halt {
		c.ExpectZero(op, 0, 3*c.AddressBits)
	}
	ir := c.IR()
	a1 := ir.Slice(2*c.AddressBits, 3*c.AddressBits)
	a2 := ir.Slice(c.AddressBits, 2*c.AddressBits)
	a3 := ir.Slice(0, c.AddressBits)
	if err := c.Registers.Set(register.A1, a1); err != nil {
		return err
	}
	if err := c.Registers.Set(register.A2, a2); err != nil {
		return err
	}
	return c.Registers.Set(register.ADDR, a3)
}

func (c *CU3) needsR1R2(op Opcode) bool {
	return ArithmeticOpcodes[op] || CondJumpOpcodes[op] || op == Comp
}

func (c *CU3) Load(op Opcode) error {
	switch {
	case op == Move:
		a1 := c.Registers.MustGet(register.A1)
		v, err := c.RAM.Fetch(a1, c.WordBits, true)
		if err != nil {
			return err
		}
		return c.Registers.Set(register.S, v)
	case c.needsR1R2(op):
		a1 := c.Registers.MustGet(register.A1)
		v1, err := c.RAM.Fetch(a1, c.WordBits, true)
		if err != nil {
			return err
		}
		if err := c.Registers.Set(register.R1, v1); err != nil {
			return err
		}
		a2 := c.Registers.MustGet(register.A2)
		v2, err := c.RAM.Fetch(a2, c.WordBits, true)
		if err != nil {
			return err
		}
		return c.Registers.Set(register.R2, v2)
	}
	return nil
}

func (c *CU3) Execute(op Opcode) error {
	if op == Move {
		return nil
	}
	if op == Comp {
		c.ALU.Comp()
		return nil
	}
	if CondJumpOpcodes[op] {
		c.ALU.Sub()
	}
	handled, err := c.DispatchCommon(op)
	if err != nil {
		return err
	}
	if !handled {
		return &WrongOpcodeError{Variant: c.Name(), Opcode: byte(op)}
	}
	return nil
}

func (c *CU3) WriteBack(op Opcode) error {
	if op == Halt || op == Comp || JumpOpcodes[op] {
		return nil
	}
	addr3 := c.Registers.MustGet(register.ADDR)
	s, err := c.Registers.Get(register.S)
	if err != nil {
		return err
	}
	if err := c.RAM.Put(addr3, s, true); err != nil {
		return err
	}
	if DwordWriteBack[op] {
		res, err := c.Registers.Get(register.R1) // RES aliases R1 for mm-3
		if err != nil {
			return err
		}
		addr2 := addr3.Add(cell.New(1, c.AddressBits))
		return c.RAM.Put(addr2, res, true)
	}
	return nil
}
