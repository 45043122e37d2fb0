package asm

import (
	"regexp"
	"strconv"
	"strings"
)

// Statement is one parsed assembly line: zero or more label declarations,
// followed by either a mnemonic-and-operands instruction or a `.word`
// data directive.
type Statement struct {
	Line     int
	Labels   []LabelDecl
	Mnemonic string // lower-cased; empty when Word is true
	Word     bool
	Args     []Arg
}

// LabelDecl is one label attached to a Statement's address.
type LabelDecl struct {
	Name    string
	IsLocal bool
}

var labelDeclRE = regexp.MustCompile(`^([A-Za-z_.][A-Za-z0-9_.]*)\s*:\s*(.*)$`)
var registerRE = regexp.MustCompile(`^[rR]([0-9a-fA-F])$`)
var indexedRE = regexp.MustCompile(`^(.*)\[[rR]([0-9a-fA-F])\]$`)

// stripComment removes a `;`-to-end-of-line comment.
func stripComment(line string) string {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		return line[:i]
	}
	return line
}

// ParseLines tokenizes raw assembly source into Statements, skipping blank
// and comment-only lines. lineOffset is added to 1-based in-block line
// numbers so error locations refer to the original source file.
func ParseLines(lines []string, lineOffset int) ([]Statement, error) {
	var out []Statement
	for i, raw := range lines {
		lineNo := lineOffset + i + 1
		text := strings.TrimSpace(stripComment(raw))
		if text == "" {
			continue
		}

		var labels []LabelDecl
		for {
			m := labelDeclRE.FindStringSubmatch(text)
			if m == nil {
				break
			}
			name := m[1]
			labels = append(labels, LabelDecl{Name: name, IsLocal: strings.HasPrefix(name, ".")})
			text = strings.TrimSpace(m[2])
		}
		if text == "" {
			// A label with nothing after it still needs somewhere to attach;
			// fold it onto the next non-blank statement.
			if len(out) > 0 {
				// no-op: handled by caller via dangling-label accumulation below
			}
			out = append(out, Statement{Line: lineNo, Labels: labels})
			continue
		}

		fields := strings.SplitN(text, " ", 2)
		head := strings.ToLower(fields[0])
		rest := ""
		if len(fields) == 2 {
			rest = strings.TrimSpace(fields[1])
		}

		stmt := Statement{Line: lineNo, Labels: labels}
		if head == ".word" {
			stmt.Word = true
		} else {
			stmt.Mnemonic = head
		}
		if rest != "" {
			args, err := parseOperands(rest, lineNo)
			if err != nil {
				return nil, err
			}
			stmt.Args = args
		}
		out = append(out, stmt)
	}
	return mergeDanglingLabels(out), nil
}

// mergeDanglingLabels folds a label-only statement (a bare "foo:" line)
// onto the next real statement, so the label addresses the instruction or
// .word that follows it rather than consuming its own address slot.
func mergeDanglingLabels(stmts []Statement) []Statement {
	var out []Statement
	var pending []LabelDecl
	for _, s := range stmts {
		if s.Mnemonic == "" && !s.Word && len(s.Args) == 0 {
			pending = append(pending, s.Labels...)
			continue
		}
		s.Labels = append(pending, s.Labels...)
		pending = nil
		out = append(out, s)
	}
	if len(pending) > 0 {
		// Trailing labels with nothing to attach to: keep as a label-only
		// statement; the assembler treats it as addressing one past the
		// end of the segment.
		out = append(out, Statement{Labels: pending})
	}
	return out
}

func parseOperands(rest string, lineNo int) ([]Arg, error) {
	parts := strings.Split(rest, ",")
	args := make([]Arg, 0, len(parts))
	for _, p := range parts {
		tok := strings.TrimSpace(p)
		if tok == "" {
			continue
		}
		arg, err := parseArg(tok, lineNo)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return args, nil
}

func parseArg(tok string, lineNo int) (Arg, error) {
	if strings.HasPrefix(strings.ToLower(tok), ".imm(") && strings.HasSuffix(tok, ")") {
		inner := tok[len(".imm(") : len(tok)-1]
		v, err := parseInt(strings.TrimSpace(inner))
		if err != nil {
			return Arg{}, parseErrorf(lineNo, "bad .imm(...) literal %q: %s", inner, err)
		}
		return Arg{Kind: ArgImmediate, Value: v, Line: lineNo}, nil
	}
	if m := registerRE.FindStringSubmatch(tok); m != nil {
		idx, _ := strconv.ParseInt(m[1], 16, 64)
		return Arg{Kind: ArgRegister, Reg: int(idx), Line: lineNo}, nil
	}
	if m := indexedRE.FindStringSubmatch(tok); m != nil {
		base := strings.TrimSpace(m[1])
		idx, _ := strconv.ParseInt(m[2], 16, 64)
		a := Arg{Kind: ArgIndexed, Reg: int(idx), Line: lineNo}
		if v, err := parseInt(base); err == nil {
			a.Value = v
		} else {
			a.Label = base
			a.IsLocal = strings.HasPrefix(base, ".")
		}
		return a, nil
	}
	if v, err := parseInt(tok); err == nil {
		return Arg{Kind: ArgImmediate, Value: v, Line: lineNo}, nil
	}
	return Arg{Kind: ArgLabel, Label: tok, IsLocal: strings.HasPrefix(tok, "."), Line: lineNo}, nil
}

func parseInt(tok string) (int64, error) {
	neg := false
	if strings.HasPrefix(tok, "-") {
		neg = true
		tok = tok[1:]
	}
	var v int64
	var err error
	lower := strings.ToLower(tok)
	if strings.HasPrefix(lower, "0x") {
		v, err = strconv.ParseInt(tok[2:], 16, 64)
	} else {
		v, err = strconv.ParseInt(tok, 10, 64)
	}
	if err != nil {
		return 0, err
	}
	if neg {
		v = -v
	}
	return v, nil
}
