package asm

import "fmt"

// ParsingError wraps every assembler/linker failure with the source line
// it was raised against, per spec.md §4.7: "all surface as ParsingError
// with source location."
type ParsingError struct {
	Line int
	Err  error
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("asm: line %d: %s", e.Line, e.Err)
}

func (e *ParsingError) Unwrap() error { return e.Err }

func parseErrorf(line int, format string, args ...any) error {
	return &ParsingError{Line: line, Err: fmt.Errorf(format, args...)}
}

// DuplicateLabelError: same label defined twice in the same scope.
type DuplicateLabelError struct {
	Label string
}

func (e *DuplicateLabelError) Error() string {
	return fmt.Sprintf("label %q is already defined in this scope", e.Label)
}

// UndefinedLabelError: reference to an unknown label from code or an I/O
// directive.
type UndefinedLabelError struct {
	Label string
}

func (e *UndefinedLabelError) Error() string {
	return fmt.Sprintf("undefined label %q", e.Label)
}

// UnexpectedLocalLabelError: a `.x` local label with no enclosing scope,
// or a local label passed to an I/O directive.
type UnexpectedLocalLabelError struct {
	Label string
}

func (e *UnexpectedLocalLabelError) Error() string {
	return fmt.Sprintf("local label %q has no enclosing scope here", e.Label)
}

// TooLongJumpError: a PC-relative offset does not fit in the operand's
// signed field (mm-0 only).
type TooLongJumpError struct {
	Label  string
	Offset int64
	Bits   int
}

func (e *TooLongJumpError) Error() string {
	return fmt.Sprintf("jump to %q has offset %d, which does not fit in a signed %d-bit field", e.Label, e.Offset, e.Bits)
}

// TooLongImmediateError: a literal is out of range for its operand width.
type TooLongImmediateError struct {
	Value  int64
	Bits   int
	Signed bool
}

func (e *TooLongImmediateError) Error() string {
	kind := "unsigned"
	if e.Signed {
		kind = "signed"
	}
	return fmt.Sprintf("value %d does not fit in a %s %d-bit field", e.Value, kind, e.Bits)
}

// TooLongWordError: a `.word` literal exceeds the RAM word width.
type TooLongWordError struct {
	Value int64
	Bits  int
}

func (e *TooLongWordError) Error() string {
	return fmt.Sprintf(".word value %d does not fit in a %d-bit word", e.Value, e.Bits)
}
