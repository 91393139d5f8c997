package mirparse_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/tinyrange/rvcc/internal/codegen/riscv32"
	"github.com/tinyrange/rvcc/internal/lower"
	"github.com/tinyrange/rvcc/internal/mirparse"
	"github.com/tinyrange/rvcc/internal/parser"
)

// golden bundles one source program alongside the MIR text it must
// deterministically lower to, in a single txtar archive: "src.c" is the
// program under test, "want.koopa" its expected MIR. Keeping both in one
// file makes it easy to eyeball a pipeline fixture in one place, the way a
// lit-style test would.
const golden = `
-- src.c --
int main() {
	int a = 0;
	int i = 1;
	while (i <= 5) {
		a = a + i;
		i = i + 1;
	}
	return a;
}
-- want.koopa --
fun @main(): i32 {
%entry:
  @a_0 = alloc i32
  store 0, @a_0
  @i_1 = alloc i32
  store 1, @i_1
  jump %while_entry_0
%while_entry_0:
  %0 = load @i_1
  %1 = le %0, 5
  br %1, %while_body_0, %while_end_0
%while_body_0:
  %2 = load @a_0
  %3 = load @i_1
  %4 = add %2, %3
  store %4, @a_0
  %5 = load @i_1
  %6 = add %5, 1
  store %6, @i_1
  jump %while_entry_0
%while_continue_0:
  jump %while_entry_0
%while_end_0:
  %7 = load @a_0
  ret %7
}
`

func TestFullPipelineIsDeterministic(t *testing.T) {
	ar := txtar.Parse([]byte(golden))
	require.Len(t, ar.Files, 2)

	var src, wantMIR string
	for _, f := range ar.Files {
		switch f.Name {
		case "src.c":
			src = string(f.Data)
		case "want.koopa":
			wantMIR = string(f.Data)
		}
	}
	require.NotEmpty(t, src)
	require.NotEmpty(t, wantMIR)

	file, err := parser.ParseFile("golden.c", src)
	require.NoError(t, err)

	mir1, err := lower.LowerFile(file)
	require.NoError(t, err)
	mir2, err := lower.LowerFile(file)
	require.NoError(t, err)
	assert.Equal(t, mir1, mir2, "lowering the same AST twice must produce byte-identical MIR")
	assert.Equal(t, strings.TrimSpace(wantMIR), strings.TrimSpace(mir1))

	prog, err := mirparse.Parse(mir1)
	require.NoError(t, err)

	asm1, err := riscv32.Emit(prog)
	require.NoError(t, err)

	prog2, err := mirparse.Parse(mir1)
	require.NoError(t, err)
	asm2, err := riscv32.Emit(prog2)
	require.NoError(t, err)
	assert.Equal(t, asm1, asm2, "re-parsing and re-emitting the same MIR must produce byte-identical assembly")

	assert.Contains(t, asm1, ".globl main")
	assert.Contains(t, asm1, "while_entry_0:")
	assert.Contains(t, asm1, "while_body_0:")
	assert.Contains(t, asm1, "while_end_0:")
}
