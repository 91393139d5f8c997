// Package mirparse parses a textual SSA-style MIR grammar into a raw-program
// value graph modeled on Koopa IR's own koopa_raw_program_t: every
// instruction line is resolved against a table of already-defined names
// (allocs and temporaries), and every operand reference records a used_by
// edge back onto the value it names, mirroring how a koopa raw value
// exposes its own used_by list.
package mirparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tinyrange/rvcc/internal/compileerr"
)

// Type is a raw-program type tag.
type Type int

const (
	TypeI32 Type = iota
	TypeUnit
)

// ValueKind tags the raw-program value kinds.
type ValueKind int

const (
	KindInteger ValueKind = iota
	KindAlloc
	KindLoad
	KindStore
	KindBinary
	KindBranch
	KindJump
	KindReturn
)

// Value is a node in the raw-program graph. Every value a consumer
// references — an alloc slot, a load/binary result, or a freshly parsed
// immediate — is represented by one of these, with UsedBy recording every
// later value that names it as an operand. This mirrors koopa's own
// koopa_raw_value_t, which carries a used_by list regardless of whether the
// value is itself an instruction result or a bare integer constant.
type Value struct {
	Kind ValueKind
	Type Type
	Name string // defining name ("@x_3" or "%5"); empty for Integer and terminators

	Imm int32  // meaningful iff Kind == KindInteger
	Op  string // binop mnemonic; meaningful iff Kind == KindBinary

	LHS, RHS *Value // KindBinary operands
	Src      *Value // KindLoad source alloc
	Dest     *Value // KindStore destination alloc
	StoreVal *Value // KindStore value operand
	Cond     *Value // KindBranch condition

	TrueLabel, FalseLabel string // KindBranch targets (label names, no sigil)
	JumpLabel             string // KindJump target

	RetVal *Value // KindReturn operand; nil for `ret` with no value

	UsedBy []*Value
}

// Block is one labeled basic block; Values is ordered and its last element
// is always the block's terminator.
type Block struct {
	Label  string
	Values []*Value
}

// Function is one MIR function.
type Function struct {
	Name    string
	RetType Type
	Blocks  []*Block
}

// Program is the parsed raw-program graph, the sole output of this package
// and the input to the code generator.
type Program struct {
	Funcs []*Function
}

var (
	reFunc   = regexp.MustCompile(`^fun @([A-Za-z_][A-Za-z0-9_]*)\(\): (i32|void) \{$`)
	reLabel  = regexp.MustCompile(`^%([A-Za-z_][A-Za-z0-9_]*):$`)
	reAlloc  = regexp.MustCompile(`^@([A-Za-z_][A-Za-z0-9_]*) = alloc (i32|void)$`)
	reStore  = regexp.MustCompile(`^store (.+), @([A-Za-z_][A-Za-z0-9_]*)$`)
	reLoad   = regexp.MustCompile(`^%(\d+) = load @([A-Za-z_][A-Za-z0-9_]*)$`)
	reBinary = regexp.MustCompile(`^%(\d+) = (add|sub|mul|div|mod|eq|ne|lt|le|gt|ge|and|or) (.+), (.+)$`)
	reRet    = regexp.MustCompile(`^ret(?: (.+))?$`)
	reJump   = regexp.MustCompile(`^jump %([A-Za-z_][A-Za-z0-9_]*)$`)
	reBr     = regexp.MustCompile(`^br (.+), %([A-Za-z_][A-Za-z0-9_]*), %([A-Za-z_][A-Za-z0-9_]*)$`)
)

// Parse reads src as a sequence of MIR functions and returns the
// corresponding raw-program graph, failing fast (no recovery) on the first
// malformed line, unresolved operand, or missing terminator.
func Parse(src string) (*Program, error) {
	lines := strings.Split(src, "\n")
	prog := &Program{}

	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			i++
			continue
		}
		m := reFunc.FindStringSubmatch(line)
		if m == nil {
			return nil, compileerr.New(compileerr.StageMIRParse, "expected function header, got %q", line)
		}
		fn := &Function{Name: "@" + m[1], RetType: parseType(m[2])}
		i++

		next, err := parseFunctionBody(lines, i, fn)
		if err != nil {
			return nil, err
		}
		i = next

		prog.Funcs = append(prog.Funcs, fn)
	}
	return prog, nil
}

func parseType(s string) Type {
	if s == "void" {
		return TypeUnit
	}
	return TypeI32
}

// parseFunctionBody consumes labeled blocks until the function's closing
// brace, enforcing "every block ends with exactly one terminator, no
// instruction follows it before the next label" structurally: block is nil
// whenever we are not inside an open block, and any instruction line seen
// with block == nil is rejected.
func parseFunctionBody(lines []string, i int, fn *Function) (int, error) {
	defs := map[string]*Value{}
	var block *Block

	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		i++
		if line == "" {
			continue
		}
		if line == "}" {
			if block != nil {
				return i, compileerr.New(compileerr.StageMIRParse, "block %q ends without a terminator", block.Label)
			}
			return i, nil
		}
		if m := reLabel.FindStringSubmatch(line); m != nil {
			if block != nil {
				return i, compileerr.New(compileerr.StageMIRParse, "block %q ends without a terminator", block.Label)
			}
			block = &Block{Label: m[1]}
			fn.Blocks = append(fn.Blocks, block)
			continue
		}
		if block == nil {
			return i, compileerr.New(compileerr.StageMIRParse, "instruction %q outside any block", line)
		}
		v, terminates, err := parseInstruction(line, defs)
		if err != nil {
			return i, err
		}
		block.Values = append(block.Values, v)
		if terminates {
			block = nil
		}
	}
	return i, compileerr.New(compileerr.StageMIRParse, "unexpected end of input inside function %q", fn.Name)
}

func parseInstruction(line string, defs map[string]*Value) (*Value, bool, error) {
	switch {
	case strings.HasPrefix(line, "@"):
		if m := reAlloc.FindStringSubmatch(line); m != nil {
			name := "@" + m[1]
			v := &Value{Kind: KindAlloc, Type: parseType(m[2]), Name: name}
			defs[name] = v
			return v, false, nil
		}

	case strings.HasPrefix(line, "store "):
		if m := reStore.FindStringSubmatch(line); m != nil {
			val, err := resolveOperand(m[1], defs)
			if err != nil {
				return nil, false, err
			}
			destName := "@" + m[2]
			dest, ok := defs[destName]
			if !ok {
				return nil, false, compileerr.New(compileerr.StageMIRParse, "store to undefined alloc %q", destName)
			}
			v := &Value{Kind: KindStore, Type: TypeUnit, StoreVal: val, Dest: dest}
			markUsedBy(val, v)
			markUsedBy(dest, v)
			return v, false, nil
		}

	case strings.HasPrefix(line, "%"):
		if m := reLoad.FindStringSubmatch(line); m != nil {
			name := "%" + m[1]
			srcName := "@" + m[2]
			src, ok := defs[srcName]
			if !ok {
				return nil, false, compileerr.New(compileerr.StageMIRParse, "load from undefined alloc %q", srcName)
			}
			v := &Value{Kind: KindLoad, Type: TypeI32, Name: name, Src: src}
			markUsedBy(src, v)
			defs[name] = v
			return v, false, nil
		}
		if m := reBinary.FindStringSubmatch(line); m != nil {
			name := "%" + m[1]
			lhs, err := resolveOperand(m[3], defs)
			if err != nil {
				return nil, false, err
			}
			rhs, err := resolveOperand(m[4], defs)
			if err != nil {
				return nil, false, err
			}
			v := &Value{Kind: KindBinary, Type: TypeI32, Name: name, Op: m[2], LHS: lhs, RHS: rhs}
			markUsedBy(lhs, v)
			markUsedBy(rhs, v)
			defs[name] = v
			return v, false, nil
		}

	case strings.HasPrefix(line, "ret"):
		if m := reRet.FindStringSubmatch(line); m != nil {
			v := &Value{Kind: KindReturn, Type: TypeUnit}
			if m[1] != "" {
				rv, err := resolveOperand(m[1], defs)
				if err != nil {
					return nil, false, err
				}
				v.RetVal = rv
				markUsedBy(rv, v)
			}
			return v, true, nil
		}

	case strings.HasPrefix(line, "jump "):
		if m := reJump.FindStringSubmatch(line); m != nil {
			return &Value{Kind: KindJump, Type: TypeUnit, JumpLabel: m[1]}, true, nil
		}

	case strings.HasPrefix(line, "br "):
		if m := reBr.FindStringSubmatch(line); m != nil {
			cond, err := resolveOperand(m[1], defs)
			if err != nil {
				return nil, false, err
			}
			v := &Value{Kind: KindBranch, Type: TypeUnit, Cond: cond, TrueLabel: m[2], FalseLabel: m[3]}
			markUsedBy(cond, v)
			return v, true, nil
		}
	}
	return nil, false, compileerr.New(compileerr.StageMIRParse, "malformed instruction %q", line)
}

// resolveOperand looks tok up as a previously defined name (a temporary or
// alloc); if it isn't one, it must parse as a decimal immediate, which
// allocates a fresh, un-shared KindInteger value — matching koopa's own raw
// integer values, which are not interned across occurrences.
func resolveOperand(tok string, defs map[string]*Value) (*Value, error) {
	tok = strings.TrimSpace(tok)
	if v, ok := defs[tok]; ok {
		return v, nil
	}
	n, err := strconv.ParseInt(tok, 10, 32)
	if err != nil {
		return nil, compileerr.New(compileerr.StageMIRParse, "undefined operand %q", tok)
	}
	return &Value{Kind: KindInteger, Type: TypeI32, Imm: int32(n)}, nil
}

func markUsedBy(operand, consumer *Value) {
	operand.UsedBy = append(operand.UsedBy, consumer)
}
