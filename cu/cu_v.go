package cu

import (
	"github.com/sarchlab/modelmachine/alu"
	"github.com/sarchlab/modelmachine/cell"
	"github.com/sarchlab/modelmachine/memory"
	"github.com/sarchlab/modelmachine/register"
)

// CUV is mm-v: mm-2's two-address memory model but byte-addressed with a
// variable instruction width: halt is 1 byte (opcode only), the jumps are
// 3 bytes (opcode + a single 16-bit address), and every other opcode is
// 5 bytes (opcode + A1 + A2, exactly mm-2's layout). IR_BITS (and the
// ALU's operand width) is the widest case, 40 bits; fetch left-justifies
// shorter instructions into the high bits of IR.
type CUV struct {
	*ControlUnit
}

func NewCUV(ramOpts ...memory.Option) (*CUV, error) {
	const addressBits = 16
	const wordBits = 8
	const irBits = OpcodeBits + 2*addressBits // 40, the widest instruction

	ram := memory.New(wordBits, addressBits, ramOpts...)
	regs := register.NewFile()
	a, err := alu.New(regs, alu.AluRegisters{R1: register.R1, R2: register.R2, S: register.S, RES: register.R1}, irBits, addressBits)
	if err != nil {
		return nil, err
	}
	base, err := New(regs, ram, a, irBits, wordBits, addressBits)
	if err != nil {
		return nil, err
	}
	if err := regs.Add(register.A1, addressBits); err != nil {
		return nil, err
	}

	c := &CUV{ControlUnit: base}
	c.Bind(c)
	return c, nil
}

func (c *CUV) Name() string { return "mm-v" }

func (c *CUV) InstructionBits(op Opcode) (int, error) {
	switch {
	case op == Halt:
		return OpcodeBits, nil
	case op == Jump || CondJumpOpcodes[op]:
		return OpcodeBits + c.AddressBits, nil
	case op == Move || op == Comp || ArithmeticOpcodes[op]:
		return OpcodeBits + 2*c.AddressBits, nil
	}
	return 0, &WrongOpcodeError{Variant: c.Name(), Opcode: byte(op)}
}

// operandField returns the bits of IR belonging to the operand area of an
// instruction that is instructionBits wide, once fetch has left-justified
// it into the (wider) IR register.
func (c *CUV) operandField(instructionBits int) cell.Cell {
	return c.IR().Slice(c.IRBits-instructionBits, c.IRBits-OpcodeBits)
}

func (c *CUV) Decode(op Opcode) error {
	switch {
	case op == Halt:
		return nil
	case op == Jump || CondJumpOpcodes[op]:
		addr := c.operandField(OpcodeBits + c.AddressBits)
		return c.Registers.Set(register.ADDR, addr)
	default:
		operands := c.operandField(OpcodeBits + 2*c.AddressBits)
		a1 := operands.Slice(c.AddressBits, 2*c.AddressBits)
		a2 := operands.Slice(0, c.AddressBits)
		if err := c.Registers.Set(register.A1, a1); err != nil {
			return err
		}
		return c.Registers.Set(register.ADDR, a2)
	}
}

func (c *CUV) needsR1R2(op Opcode) bool {
	return ArithmeticOpcodes[op] || op == Comp
}

func (c *CUV) Load(op Opcode) error {
	if op == Halt || op == Jump || CondJumpOpcodes[op] {
		return nil
	}
	a1 := c.Registers.MustGet(register.A1)
	a2 := c.Registers.MustGet(register.ADDR)
	if op == Move {
		return c.loadOperandWord(a2, register.S)
	}
	if c.needsR1R2(op) {
		if err := c.loadOperandWord(a1, register.R1); err != nil {
			return err
		}
		return c.loadOperandWord(a2, register.R2)
	}
	return nil
}

// loadOperandWord fetches one full operand (2*address_bits wide, matching
// the ALU's operand width) from addr into dest.
func (c *CUV) loadOperandWord(addr cell.Cell, dest register.Name) error {
	v, err := c.RAM.Fetch(addr, 2*c.AddressBits, true)
	if err != nil {
		return err
	}
	return c.Registers.Set(dest, v)
}

func (c *CUV) Execute(op Opcode) error {
	if op == Move {
		return nil
	}
	if op == Comp {
		c.ALU.Comp()
		return nil
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

func (c *CUV) WriteBack(op Opcode) error {
	if op == Halt || op == Comp || op == Jump || CondJumpOpcodes[op] {
		return nil
	}
	a1 := c.Registers.MustGet(register.A1)
	s, err := c.Registers.Get(register.S)
	if err != nil {
		return err
	}
	if err := c.RAM.Put(a1, s, true); err != nil {
		return err
	}
	if DwordWriteBack[op] {
		res, err := c.Registers.Get(register.R1)
		if err != nil {
			return err
		}
		operandWords := int64(2 * c.AddressBits / c.WordBits)
		return c.RAM.Put(a1.Add(cell.New(operandWords, c.AddressBits)), res, true)
	}
	return nil
}
