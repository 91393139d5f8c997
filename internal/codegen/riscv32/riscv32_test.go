package riscv32

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyrange/rvcc/internal/mirparse"
)

func emitSrc(t *testing.T, src string) string {
	t.Helper()
	prog, err := mirparse.Parse(src)
	require.NoError(t, err)
	out, err := Emit(prog)
	require.NoError(t, err)
	return out
}

func TestEmitHeaderAndReturnZero(t *testing.T) {
	out := emitSrc(t, "fun @main(): i32 {\n%entry:\n  ret 0\n}\n")
	assert.Contains(t, out, ".text\n")
	assert.Contains(t, out, ".globl main\n")
	assert.Contains(t, out, "main:\n")
	assert.Contains(t, out, "entry:\n")
	assert.Contains(t, out, "li a0, 0")
	assert.Contains(t, out, "ret")
	// no alloc in this function, so no stack frame is ever touched.
	assert.NotContains(t, out, "addi sp")
}

func TestEmitReturnNonzeroImmediateMaterializes(t *testing.T) {
	out := emitSrc(t, "fun @main(): i32 {\n%entry:\n  ret 5\n}\n")
	assert.Contains(t, out, "li t0, 5")
	assert.Contains(t, out, "mv a0, t0")
}

func TestEmitAllocStoreLoadFrameSize(t *testing.T) {
	src := "fun @main(): i32 {\n" +
		"%entry:\n" +
		"  @x_0 = alloc i32\n" +
		"  store 5, @x_0\n" +
		"  %0 = load @x_0\n" +
		"  ret %0\n" +
		"}\n"
	out := emitSrc(t, src)
	// one alloc slot + one load-result slot = 8 bytes, aligned up to 16.
	assert.Contains(t, out, "addi sp, sp, -16")
	assert.Contains(t, out, "addi sp, sp, 16")
	assert.Contains(t, out, "sw t0, 0(sp)")
	assert.Contains(t, out, "lw ")
}

func TestAddIdentityWithZeroLHS(t *testing.T) {
	src := "fun @main(): i32 {\n" +
		"%entry:\n" +
		"  @x_0 = alloc i32\n" +
		"  store 5, @x_0\n" +
		"  %0 = load @x_0\n" +
		"  %1 = add 0, %0\n" +
		"  ret %1\n" +
		"}\n"
	out := emitSrc(t, src)
	assert.NotContains(t, out, "\n  add ")
}

func TestAddIdentityWithZeroRHS(t *testing.T) {
	src := "fun @main(): i32 {\n" +
		"%entry:\n" +
		"  @x_0 = alloc i32\n" +
		"  store 5, @x_0\n" +
		"  %0 = load @x_0\n" +
		"  %1 = add %0, 0\n" +
		"  ret %1\n" +
		"}\n"
	out := emitSrc(t, src)
	assert.NotContains(t, out, "\n  add ")
}

func TestSubIdentityWithZeroRHS(t *testing.T) {
	src := "fun @main(): i32 {\n" +
		"%entry:\n" +
		"  @x_0 = alloc i32\n" +
		"  store 7, @x_0\n" +
		"  %0 = load @x_0\n" +
		"  %1 = sub %0, 0\n" +
		"  ret %1\n" +
		"}\n"
	out := emitSrc(t, src)
	assert.NotContains(t, out, "\n  sub ")
}

func TestSubNegatesWithZeroLHS(t *testing.T) {
	src := "fun @main(): i32 {\n" +
		"%entry:\n" +
		"  @x_0 = alloc i32\n" +
		"  store 7, @x_0\n" +
		"  %0 = load @x_0\n" +
		"  %1 = sub 0, %0\n" +
		"  ret %1\n" +
		"}\n"
	out := emitSrc(t, src)
	assert.Contains(t, out, "sub t")
}

func TestMulByOneNeverMaterializesTheImmediate(t *testing.T) {
	src := "fun @main(): i32 {\n" +
		"%entry:\n" +
		"  @x_0 = alloc i32\n" +
		"  store 9, @x_0\n" +
		"  %0 = load @x_0\n" +
		"  %1 = mul %0, 1\n" +
		"  ret %1\n" +
		"}\n"
	out := emitSrc(t, src)
	assert.NotContains(t, out, "\n  mul ")
	assert.NotContains(t, out, "li t2, 1")
}

func TestMulByZeroShortCircuitsWithoutTouchingRHS(t *testing.T) {
	src := "fun @main(): i32 {\n" +
		"%entry:\n" +
		"  @x_0 = alloc i32\n" +
		"  store 9, @x_0\n" +
		"  %0 = load @x_0\n" +
		"  %1 = mul 0, %0\n" +
		"  ret %1\n" +
		"}\n"
	out := emitSrc(t, src)
	assert.NotContains(t, out, "\n  mul ")
	assert.Contains(t, out, "li a0, 0")
}

func TestDivisionByZeroFails(t *testing.T) {
	src := "fun @main(): i32 {\n%entry:\n  %0 = div 5, 0\n  ret %0\n}\n"
	prog, err := mirparse.Parse(src)
	require.NoError(t, err)
	_, err = Emit(prog)
	assert.Error(t, err)
}

func TestComparisonPeepholes(t *testing.T) {
	cases := []struct {
		op   string
		want string
	}{
		{"eq", "seqz"},
		{"ne", "snez"},
		{"lt", "slt"},
		{"gt", "sgt"},
		{"le", "sgt"},
		{"ge", "slt"},
	}
	for _, c := range cases {
		src := "fun @main(): i32 {\n%entry:\n  %0 = " + c.op + " 3, 4\n  ret %0\n}\n"
		out := emitSrc(t, src)
		assert.Contains(t, out, c.want, "op %s", c.op)
	}
}

func TestMultiUseValueSpillsAndReloads(t *testing.T) {
	src := "fun @main(): i32 {\n" +
		"%entry:\n" +
		"  %0 = add 1, 2\n" +
		"  %1 = add %0, %0\n" +
		"  ret %1\n" +
		"}\n"
	out := emitSrc(t, src)
	assert.Contains(t, out, "sw t")
	assert.GreaterOrEqual(t, strings.Count(out, "lw "), 2)
}

func TestBranchAndJumpEmission(t *testing.T) {
	src := "fun @main(): i32 {\n" +
		"%entry:\n" +
		"  %0 = add 1, 0\n" +
		"  br %0, %then_0, %else_0\n" +
		"%then_0:\n" +
		"  jump %end_0\n" +
		"%else_0:\n" +
		"  jump %end_0\n" +
		"%end_0:\n" +
		"  ret 0\n" +
		"}\n"
	out := emitSrc(t, src)
	assert.Contains(t, out, "bnez ")
	assert.Contains(t, out, "j else_0")
	assert.Contains(t, out, "then_0:")
	assert.Contains(t, out, "else_0:")
	assert.Contains(t, out, "end_0:")
	assert.Equal(t, 2, strings.Count(out, "j end_0"))
}

func TestLargeFrameUsesTwoInstructionPrologue(t *testing.T) {
	g := &funcGen{fn: &mirparse.Function{Name: "@big"}, loc: map[*mirparse.Value]string{}}
	g.frameSize = 4096
	g.emitPrologue()
	g.emitEpilogue()
	joined := strings.Join(g.lines, "\n")
	assert.Contains(t, joined, "li t0, -4096")
	assert.Contains(t, joined, "add sp, sp, t0")
	assert.Contains(t, joined, "li t0, 4096")
}

func TestZeroFrameEmitsNoPrologue(t *testing.T) {
	g := &funcGen{fn: &mirparse.Function{Name: "@f"}, loc: map[*mirparse.Value]string{}}
	g.emitPrologue()
	g.emitEpilogue()
	assert.Empty(t, g.lines)
}

func TestAlignTo(t *testing.T) {
	assert.Equal(t, 0, alignTo(0, 16))
	assert.Equal(t, 16, alignTo(1, 16))
	assert.Equal(t, 16, alignTo(16, 16))
	assert.Equal(t, 32, alignTo(17, 16))
}
