// Package source implements the directive-based program text every model
// machine loads: `.cpu`, `.input`, `.output`, `.enter`, `.code` and `.asm`,
// per spec.md §6.1, plus the dump/load round trip of §6.3.
package source

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sarchlab/modelmachine/asm"
	"github.com/sarchlab/modelmachine/cell"
	"github.com/sarchlab/modelmachine/iounit"
	"github.com/sarchlab/modelmachine/memory"
)

// KnownCPUs is the full set of recognized `.cpu` names.
var KnownCPUs = map[string]bool{
	"mm-0": true, "mm-1": true, "mm-2": true, "mm-3": true,
	"mm-v": true, "mm-s": true, "mm-r": true, "mm-m": true,
}

// IOSlot is one `.input`/`.output` register: an address (possibly still a
// label reference until Build resolves it) and an optional free-text
// prompt/description.
type IOSlot struct {
	Ref     string
	Message string
	Line    int
}

type segment struct {
	isAsm    bool
	hasBase  bool
	base     int64
	lines    []string
	lineNo   int // 1-based source line of the first body line
}

// Program is the parsed, not-yet-linked contents of one source file.
type Program struct {
	CPUName  string
	Inputs   []IOSlot
	Outputs  []IOSlot
	Enter    []int64
	segments []segment
}

var directiveRE = regexp.MustCompile(`(?i)^\.(cpu|input|output|enter|code|asm)\b\s*(.*)$`)

// Parse reads a full `.cpu` program's text into a Program, without
// resolving any label or assembling any `.asm` block yet.
func Parse(text string) (*Program, error) {
	lines := strings.Split(text, "\n")
	p := &Program{}
	var cur *segment

	flush := func() {
		if cur != nil {
			p.segments = append(p.segments, *cur)
			cur = nil
		}
	}

	for i, raw := range lines {
		lineNo := i + 1
		stripped := strings.TrimSpace(stripComment(raw))

		if m := directiveRE.FindStringSubmatch(stripped); m != nil {
			flush()
			keyword := strings.ToLower(m[1])
			rest := strings.TrimSpace(m[2])
			if err := p.applyDirective(keyword, rest, lineNo, &cur); err != nil {
				return nil, err
			}
			continue
		}

		if stripped == "" {
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("source: line %d: text %q outside any .code/.asm block", lineNo, stripped)
		}
		if len(cur.lines) == 0 {
			cur.lineNo = lineNo
		}
		cur.lines = append(cur.lines, raw)
	}
	flush()

	if p.CPUName == "" {
		return nil, fmt.Errorf("source: missing required .cpu directive")
	}
	if len(p.segments) == 0 {
		return nil, fmt.Errorf("source: at least one .code or .asm segment is required")
	}
	return p, nil
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		return line[:i]
	}
	return line
}

func (p *Program) applyDirective(keyword, rest string, lineNo int, cur **segment) error {
	switch keyword {
	case "cpu":
		if p.CPUName != "" {
			return fmt.Errorf("source: line %d: duplicate .cpu directive", lineNo)
		}
		name := strings.ToLower(strings.TrimSpace(rest))
		if !KnownCPUs[name] {
			return fmt.Errorf("source: line %d: unknown cpu %q", lineNo, rest)
		}
		p.CPUName = name
		return nil

	case "input":
		slots, err := parseIOSlots(rest, lineNo)
		if err != nil {
			return err
		}
		p.Inputs = append(p.Inputs, slots...)
		return nil

	case "output":
		slots, err := parseIOSlots(rest, lineNo)
		if err != nil {
			return err
		}
		p.Outputs = append(p.Outputs, slots...)
		return nil

	case "enter":
		for _, tok := range strings.Fields(rest) {
			v, err := strconv.ParseInt(tok, 10, 64)
			if err != nil {
				return fmt.Errorf("source: line %d: bad .enter token %q: %w", lineNo, tok, err)
			}
			p.Enter = append(p.Enter, v)
		}
		return nil

	case "code", "asm":
		seg := segment{isAsm: keyword == "asm"}
		if rest != "" {
			base, err := strconv.ParseInt(rest, 0, 64)
			if err != nil {
				return fmt.Errorf("source: line %d: bad .%s address %q: %w", lineNo, keyword, rest, err)
			}
			seg.base = base
			seg.hasBase = true
		}
		*cur = &seg
		return nil
	}
	return nil
}

func parseIOSlots(rest string, lineNo int) ([]IOSlot, error) {
	if rest == "" {
		return nil, fmt.Errorf("source: line %d: .input/.output requires at least one address", lineNo)
	}
	parts := strings.Split(rest, ",")
	slots := make([]IOSlot, len(parts))
	for i, part := range parts {
		trimmed := strings.TrimSpace(part)
		fields := strings.SplitN(trimmed, " ", 2)
		slots[i].Ref = fields[0]
		if len(fields) == 2 {
			slots[i].Message = strings.TrimSpace(fields[1])
		}
		slots[i].Line = lineNo
		if slots[i].Ref == "" {
			return nil, fmt.Errorf("source: line %d: empty .input/.output address", lineNo)
		}
	}
	return slots, nil
}

// Built is the linked result of assembling a Program into a concrete RAM:
// every `.code`/`.asm` segment written, and every I/O slot resolved to a
// numeric address.
type Built struct {
	CPUName string
	RAM     *memory.RAM
	Inputs  []ResolvedIO
	Outputs []ResolvedIO
	Enter   []int64
	IOBits  int
}

// ResolvedIO is one input/output slot after label resolution.
type ResolvedIO struct {
	Address int64
	Message string
}

// Build assembles every segment into ram (in source order) and resolves
// every `.input`/`.output` reference against the combined symbol table
// produced by any `.asm` segments. ioBits is the width input/output
// range-checks against (the target CPU's IR/stack-element width).
func Build(p *Program, ram *memory.RAM, ioBits int) (*Built, error) {
	symbols := map[string]int64{}

	for _, seg := range p.segments {
		base := int64(0)
		if seg.hasBase {
			base = seg.base
		}
		body := strings.Join(seg.lines, "\n")

		if seg.isAsm {
			d, err := asm.Lookup(p.CPUName)
			if err != nil {
				return nil, err
			}
			result, err := asm.Assemble(d, seg.lines, seg.lineNo-1, base, ram)
			if err != nil {
				return nil, err
			}
			for k, v := range result.Symbols {
				symbols[k] = v
			}
			continue
		}

		hex := stripHexWhitespace(body)
		addrCell := cell.New(base, ram.AddressBits)
		if err := iounit.LoadSource(ram, addrCell, hex); err != nil {
			return nil, fmt.Errorf("source: line %d: %w", seg.lineNo, err)
		}
	}

	built := &Built{CPUName: p.CPUName, RAM: ram, Enter: p.Enter, IOBits: ioBits}
	var err error
	built.Inputs, err = resolveSlots(p.Inputs, symbols)
	if err != nil {
		return nil, err
	}
	built.Outputs, err = resolveSlots(p.Outputs, symbols)
	if err != nil {
		return nil, err
	}
	return built, nil
}

func resolveSlots(slots []IOSlot, symbols map[string]int64) ([]ResolvedIO, error) {
	out := make([]ResolvedIO, len(slots))
	for i, s := range slots {
		addr, err := resolveRef(s.Ref, symbols, s.Line)
		if err != nil {
			return nil, err
		}
		out[i] = ResolvedIO{Address: addr, Message: s.Message}
	}
	return out, nil
}

func resolveRef(ref string, symbols map[string]int64, line int) (int64, error) {
	if v, err := strconv.ParseInt(ref, 0, 64); err == nil {
		return v, nil
	}
	if strings.HasPrefix(ref, ".") {
		return 0, &asm.ParsingError{Line: line, Err: &asm.UnexpectedLocalLabelError{Label: ref}}
	}
	addr, ok := symbols[ref]
	if !ok {
		return 0, &asm.ParsingError{Line: line, Err: &asm.UndefinedLabelError{Label: ref}}
	}
	return addr, nil
}

func stripHexWhitespace(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
