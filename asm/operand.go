package asm

// Mode is the addressing mode of one operand field, per spec.md §4.7.
type Mode int

const (
	// Absolute substitutes the symbol's resolved address directly.
	Absolute Mode = iota
	// PCRelative substitutes target - address_of_next_instruction (mm-0
	// jumps only).
	PCRelative
	// Register is a general-register index in [0, 15] (mm-r, mm-m).
	Register
	// ImmediateSigned is a literal checked to fit the field as signed.
	ImmediateSigned
	// ImmediateUnsigned is a literal checked to fit the field as unsigned.
	ImmediateUnsigned
)

// Field is one fixed-position bit range within an encoded instruction,
// offsets counted from the LSB (bit 0) exactly as cu's Decode methods
// slice the IR.
type Field struct {
	Offset int
	Width  int
	Mode   Mode
}

// ArgKind classifies one parsed assembly operand token.
type ArgKind int

const (
	ArgLabel ArgKind = iota
	ArgImmediate
	ArgRegister
	ArgIndexed
)

// Arg is one parsed operand, before it is matched against a Field.
type Arg struct {
	Kind    ArgKind
	Label   string // ArgLabel, ArgIndexed's base label
	IsLocal bool   // ArgLabel/ArgIndexed: label started with '.'
	Value   int64  // ArgImmediate
	Reg     int    // ArgRegister, or ArgIndexed's index register
	Line    int
}

// Operand pairs one parsed assembly position with the instruction Field(s)
// it fills. Index is mm-m's optional `label[rN]` modifier field.
type Operand struct {
	Field Field
	Index *Field // non-nil only for mm-m's indexed memory operands
}
