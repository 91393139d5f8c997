package lower

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyrange/rvcc/internal/parser"
)

func lowerSource(t *testing.T, src string) string {
	t.Helper()
	file, err := parser.ParseFile("test.c", src)
	require.NoError(t, err)
	mir, err := LowerFile(file)
	require.NoError(t, err)
	return mir
}

// S1: return 0; -> ret 0 inside %entry.
func TestS1ReturnZero(t *testing.T) {
	mir := lowerSource(t, "int main() { return 0; }")
	assert.Contains(t, mir, "fun @main(): i32 {")
	assert.Contains(t, mir, "%entry:")
	assert.Contains(t, mir, "ret 0")
}

// S2: a var initializer that folds at compile time stores the literal,
// never a chain of arithmetic instructions.
func TestS2ConstantInitializerFolds(t *testing.T) {
	mir := lowerSource(t, "int main() { int x = 1 + 2 * 3; return x; }")
	assert.Contains(t, mir, "store 7, @x_0")
	assert.NotContains(t, mir, "mul")
	assert.NotContains(t, mir, "add")
}

// S3: the branch survives even though its condition is compile-time
// decidable; exactly one jump per then/else arm after cleaning.
func TestS3BranchSurvivesConstantCondition(t *testing.T) {
	mir := lowerSource(t, `int main() {
		const int c = 5;
		int a = 0;
		if (c > 3) a = c; else a = -c;
		return a;
	}`)
	require.Contains(t, mir, "br ")
	assert.Contains(t, mir, "%then_0:")
	assert.Contains(t, mir, "%else_0:")
	assert.Contains(t, mir, "%end_0:")

	lines := strings.Split(mir, "\n")
	jumpsToEnd := 0
	for _, ln := range lines {
		if strings.TrimSpace(ln) == "jump %end_0" {
			jumpsToEnd++
		}
	}
	assert.Equal(t, 2, jumpsToEnd)
}

// S4: break binds to the innermost enclosing while's label set.
func TestS4BreakBindsInnermostLoop(t *testing.T) {
	mir := lowerSource(t, `int main() {
		int i = 0;
		int s = 0;
		while (i < 10) {
			if (i == 5) break;
			s = s + i;
			i = i + 1;
		}
		return s;
	}`)
	assert.Contains(t, mir, "%while_entry_0:")
	assert.Contains(t, mir, "%while_body_0:")
	assert.Contains(t, mir, "%while_continue_0:")
	assert.Contains(t, mir, "%while_end_0:")
	assert.Contains(t, mir, "jump %while_end_0")
}

// S5: two variables sharing a source name get distinct scope-mangled names.
func TestS5ShadowingProducesDistinctNames(t *testing.T) {
	mir := lowerSource(t, `int main() {
		int a;
		a = 3;
		{
			int a;
			a = 4;
		}
		return a;
	}`)
	assert.Contains(t, mir, "@a_0 = alloc i32")
	assert.Contains(t, mir, "@a_1 = alloc i32")
	assert.Contains(t, mir, "store 3, @a_0")
	assert.Contains(t, mir, "store 4, @a_1")
	assert.Contains(t, mir, "ret %")
}

// S6: `1 && 0` always lowers to real ne/ne/and instructions, never folds to
// a bare literal, even though it is fully constant-foldable.
func TestS6LogicalAndNeverFolds(t *testing.T) {
	mir := lowerSource(t, "int main() { return 1 && 0; }")
	assert.Contains(t, mir, "= ne 1, 0")
	assert.Contains(t, mir, "= ne 0, 0")
	assert.Contains(t, mir, "= and ")
}

func TestBreakOutsideLoopFails(t *testing.T) {
	file, err := parser.ParseFile("t.c", "int main() { break; return 0; }")
	require.NoError(t, err)
	_, err = LowerFile(file)
	assert.Error(t, err)
}

func TestContinueOutsideLoopFails(t *testing.T) {
	file, err := parser.ParseFile("t.c", "int main() { continue; return 0; }")
	require.NoError(t, err)
	_, err = LowerFile(file)
	assert.Error(t, err)
}

func TestDuplicateDeclarationFails(t *testing.T) {
	file, err := parser.ParseFile("t.c", "int main() { int a; int a; return 0; }")
	require.NoError(t, err)
	_, err = LowerFile(file)
	assert.Error(t, err)
}

func TestAssignToConstFails(t *testing.T) {
	file, err := parser.ParseFile("t.c", "int main() { const int c = 1; c = 2; return 0; }")
	require.NoError(t, err)
	_, err = LowerFile(file)
	assert.Error(t, err)
}

func TestUndeclaredIdentifierFails(t *testing.T) {
	file, err := parser.ParseFile("t.c", "int main() { return x; }")
	require.NoError(t, err)
	_, err = LowerFile(file)
	assert.Error(t, err)
}

func TestNonConstantConstInitializerFails(t *testing.T) {
	file, err := parser.ParseFile("t.c", "int main() { int a; const int c = a; return 0; }")
	require.NoError(t, err)
	_, err = LowerFile(file)
	assert.Error(t, err)
}
