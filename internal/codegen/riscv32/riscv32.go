// Package riscv32 implements an RV32 RISC-V code generator: stack-frame
// layout by a static slot count, a value-to-location map built while
// walking instructions in program order, round-robin t0-t2 temporaries, and
// a table of arithmetic peepholes for identity/absorption cases.
package riscv32

import (
	"fmt"
	"strings"

	"github.com/tinyrange/rvcc/internal/compileerr"
	"github.com/tinyrange/rvcc/internal/mirparse"
)

// Emit walks prog and returns the complete RV32 assembly text: a `.text`
// section, one `.globl` per function, then each function's label, prologue,
// body, and epilogue-before-every-ret.
func Emit(prog *mirparse.Program) (string, error) {
	var b strings.Builder
	b.WriteString(".text\n")
	for _, fn := range prog.Funcs {
		fmt.Fprintf(&b, ".globl %s\n", stripSigil(fn.Name))
	}
	for _, fn := range prog.Funcs {
		g := newFuncGen(fn)
		if err := g.run(); err != nil {
			return "", err
		}
		b.WriteString(strings.Join(g.lines, "\n"))
		b.WriteString("\n")
	}
	return b.String(), nil
}

type funcGen struct {
	fn        *mirparse.Function
	lines     []string
	loc       map[*mirparse.Value]string // value -> "tK" | "<off>(sp)" | "x0"
	frameSize int
	nextSlot  int
	regSeq    int
	err       error
}

func newFuncGen(fn *mirparse.Function) *funcGen {
	return &funcGen{fn: fn, loc: map[*mirparse.Value]string{}}
}

func (g *funcGen) fail(format string, args ...any) {
	if g.err == nil {
		g.err = compileerr.New(compileerr.StageCodegen, format, args...)
	}
}

func (g *funcGen) emit(format string, args ...any) {
	g.lines = append(g.lines, "  "+fmt.Sprintf(format, args...))
}

func (g *funcGen) newTemp() string {
	reg := fmt.Sprintf("t%d", g.regSeq%3)
	g.regSeq++
	return reg
}

func (g *funcGen) newSlot() int {
	off := g.nextSlot
	g.nextSlot += 4
	return off
}

func alignTo(x, alignment int) int {
	return (x + alignment - 1) / alignment * alignment
}

func stripSigil(s string) string {
	return strings.TrimLeft(s, "@%")
}

// countSlots statically counts the stack slots this function could ever
// need: one per alloc, one per other non-unit-typed, non-return, non-store
// value — a conservative over-count since some results never reach a spill.
func countSlots(fn *mirparse.Function) int {
	slots := 0
	for _, blk := range fn.Blocks {
		for _, v := range blk.Values {
			if v.Kind == mirparse.KindAlloc {
				slots++
				continue
			}
			if v.Kind != mirparse.KindReturn && v.Kind != mirparse.KindStore && v.Type != mirparse.TypeUnit {
				slots++
			}
		}
	}
	return slots
}

func (g *funcGen) run() error {
	g.frameSize = alignTo(countSlots(g.fn)*4, 16)

	g.lines = append(g.lines, stripSigil(g.fn.Name)+":")
	g.emitPrologue()

	for _, blk := range g.fn.Blocks {
		g.genBlock(blk)
		if g.err != nil {
			return g.err
		}
	}
	return g.err
}

func (g *funcGen) emitPrologue() {
	if g.frameSize == 0 {
		return
	}
	if g.frameSize <= 2047 {
		g.emit("addi sp, sp, -%d", g.frameSize)
		return
	}
	g.emit("li t0, -%d", g.frameSize)
	g.emit("add sp, sp, t0")
}

func (g *funcGen) emitEpilogue() {
	if g.frameSize == 0 {
		return
	}
	if g.frameSize <= 2047 {
		g.emit("addi sp, sp, %d", g.frameSize)
		return
	}
	g.emit("li t0, %d", g.frameSize)
	g.emit("add sp, sp, t0")
}

func (g *funcGen) genBlock(blk *mirparse.Block) {
	g.lines = append(g.lines, stripSigil(blk.Label)+":")
	for _, v := range blk.Values {
		if g.err != nil {
			return
		}
		g.genValue(v)
	}
}

func (g *funcGen) genValue(v *mirparse.Value) {
	switch v.Kind {
	case mirparse.KindAlloc:
		off := g.newSlot()
		g.loc[v] = fmt.Sprintf("%d(sp)", off)

	case mirparse.KindLoad:
		addr := g.valueToken(v.Src)
		t := g.newTemp()
		g.emit("lw %s, %s", t, addr)
		g.finishResult(v, t)

	case mirparse.KindStore:
		val := g.operandInReg(v.StoreVal)
		addr := g.valueToken(v.Dest)
		g.emit("sw %s, %s", val, addr)

	case mirparse.KindBinary:
		tok := g.genBinaryToken(v)
		g.finishResult(v, tok)

	case mirparse.KindBranch:
		cond := g.operandInReg(v.Cond)
		g.emit("bnez %s, %s", cond, stripSigil(v.TrueLabel))
		g.emit("j %s", stripSigil(v.FalseLabel))

	case mirparse.KindJump:
		g.emit("j %s", stripSigil(v.JumpLabel))

	case mirparse.KindReturn:
		g.genReturn(v)

	default:
		g.fail("codegen: unsupported value kind %v", v.Kind)
	}
}

// valueToken resolves v to its current location string. An immediate zero
// is the literal register x0 and needs no slot or register of its own; any
// other immediate is materialized with `li` into a fresh temporary. A
// previously computed value (alloc address, load/binary result) must
// already be in loc.
func (g *funcGen) valueToken(v *mirparse.Value) string {
	if v.Kind == mirparse.KindInteger {
		if v.Imm == 0 {
			return "x0"
		}
		t := g.newTemp()
		g.emit("li %s, %d", t, v.Imm)
		return t
	}
	loc, ok := g.loc[v]
	if !ok {
		g.fail("codegen: value %q used before it is computed", v.Name)
		return "x0"
	}
	return loc
}

// operandInReg is valueToken plus a reload: an operand that currently lives
// in a spilled stack slot is loaded into a fresh register first, since
// binary ops, branch conditions, and store's source value must all name a
// register or x0, never a memory operand directly.
func (g *funcGen) operandInReg(v *mirparse.Value) string {
	tok := g.valueToken(v)
	if strings.HasSuffix(tok, "(sp)") {
		t := g.newTemp()
		g.emit("lw %s, %s", t, tok)
		return t
	}
	return tok
}

// finishResult records tok as the location of a freshly computed
// load/binary result, spilling it to a new stack slot immediately if it has
// more than one consumer.
func (g *funcGen) finishResult(v *mirparse.Value, tok string) {
	if len(v.UsedBy) > 1 {
		off := g.newSlot()
		g.emit("sw %s, %d(sp)", tok, off)
		g.loc[v] = fmt.Sprintf("%d(sp)", off)
		return
	}
	g.loc[v] = tok
}

func immOf(v *mirparse.Value) (int32, bool) {
	if v.Kind == mirparse.KindInteger {
		return v.Imm, true
	}
	return 0, false
}

// genBinaryToken applies the arithmetic peephole table and otherwise falls
// back to the general emission, returning the token the result lives in
// (never itself spilling — the caller does that uniformly).
func (g *funcGen) genBinaryToken(v *mirparse.Value) string {
	switch v.Op {
	case "sub":
		lhs, rhs := g.operandInReg(v.LHS), g.operandInReg(v.RHS)
		if lhs == "x0" {
			t := g.newTemp()
			g.emit("sub %s, x0, %s", t, rhs)
			return t
		}
		if rhs == "x0" {
			return lhs
		}
		t := g.newTemp()
		g.emit("sub %s, %s, %s", t, lhs, rhs)
		return t

	case "add":
		lhs, rhs := g.operandInReg(v.LHS), g.operandInReg(v.RHS)
		if lhs == "x0" {
			return rhs
		}
		if rhs == "x0" {
			return lhs
		}
		t := g.newTemp()
		g.emit("add %s, %s, %s", t, lhs, rhs)
		return t

	case "mul":
		lhs := g.operandInReg(v.LHS)
		if lhs == "x0" {
			return "x0"
		}
		if imm, ok := immOf(v.RHS); ok {
			if imm == 0 {
				return "x0"
			}
			if imm == 1 {
				return lhs
			}
		}
		rhs := g.operandInReg(v.RHS)
		if rhs == "x0" {
			return "x0"
		}
		t := g.newTemp()
		g.emit("mul %s, %s, %s", t, lhs, rhs)
		return t

	case "div":
		lhs := g.operandInReg(v.LHS)
		if lhs == "x0" {
			return "x0"
		}
		rhs := g.operandInReg(v.RHS)
		if rhs == "x0" {
			g.fail("division by zero")
			return "x0"
		}
		t := g.newTemp()
		g.emit("div %s, %s, %s", t, lhs, rhs)
		return t

	case "mod":
		lhs, rhs := g.operandInReg(v.LHS), g.operandInReg(v.RHS)
		if rhs == "x0" {
			g.fail("division by zero")
			return "x0"
		}
		t := g.newTemp()
		g.emit("rem %s, %s, %s", t, lhs, rhs)
		return t

	case "eq", "ne":
		lhs, rhs := g.operandInReg(v.LHS), g.operandInReg(v.RHS)
		mnemonic := "seqz"
		if v.Op == "ne" {
			mnemonic = "snez"
		}
		t := g.newTemp()
		if rhs == "x0" {
			g.emit("%s %s, %s", mnemonic, t, lhs)
			return t
		}
		g.emit("xor %s, %s, %s", t, lhs, rhs)
		g.emit("%s %s, %s", mnemonic, t, t)
		return t

	case "lt":
		lhs, rhs := g.operandInReg(v.LHS), g.operandInReg(v.RHS)
		t := g.newTemp()
		g.emit("slt %s, %s, %s", t, lhs, rhs)
		return t

	case "gt":
		lhs, rhs := g.operandInReg(v.LHS), g.operandInReg(v.RHS)
		t := g.newTemp()
		g.emit("sgt %s, %s, %s", t, lhs, rhs)
		return t

	case "le":
		lhs, rhs := g.operandInReg(v.LHS), g.operandInReg(v.RHS)
		t := g.newTemp()
		g.emit("sgt %s, %s, %s", t, lhs, rhs)
		g.emit("seqz %s, %s", t, t)
		return t

	case "ge":
		lhs, rhs := g.operandInReg(v.LHS), g.operandInReg(v.RHS)
		t := g.newTemp()
		g.emit("slt %s, %s, %s", t, lhs, rhs)
		g.emit("seqz %s, %s", t, t)
		return t

	case "and":
		lhs, rhs := g.operandInReg(v.LHS), g.operandInReg(v.RHS)
		t := g.newTemp()
		g.emit("and %s, %s, %s", t, lhs, rhs)
		return t

	case "or":
		lhs, rhs := g.operandInReg(v.LHS), g.operandInReg(v.RHS)
		t := g.newTemp()
		g.emit("or %s, %s, %s", t, lhs, rhs)
		return t
	}
	g.fail("codegen: unsupported binary op %q", v.Op)
	return "x0"
}

func (g *funcGen) genReturn(v *mirparse.Value) {
	if v.RetVal != nil {
		tok := g.valueToken(v.RetVal)
		switch {
		case tok == "x0":
			g.emit("li a0, 0")
		case strings.HasSuffix(tok, "(sp)"):
			g.emit("lw a0, %s", tok)
		case strings.HasPrefix(tok, "t"):
			g.emit("mv a0, %s", tok)
		default:
			g.emit("li a0, %s", tok)
		}
	}
	g.emitEpilogue()
	g.emit("ret")
}
