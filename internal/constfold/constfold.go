// Package constfold implements a pure compile-time constant evaluator: every
// expression-tier node folds to an optional int32, propagating "not
// constant" (ok == false) through any sub-expression that touches a
// non-const l-value or divides/mods by a folded zero.
package constfold

import (
	"github.com/tinyrange/rvcc/internal/ast"
	"github.com/tinyrange/rvcc/internal/symtab"
)

// Eval attempts to fold e to a compile-time int32 using the bindings in tab.
// It returns ok == false for anything that isn't a compile-time constant: an
// unbound or non-const l-value, or a fold-time divide/modulus by zero.
// Evaluation is pure — it never mutates tab — and idempotent.
func Eval(e ast.Expr, tab *symtab.Table) (int32, bool) {
	switch n := e.(type) {
	case *ast.Number:
		return n.Value, true

	case *ast.ParenExpr:
		return Eval(n.X, tab)

	case *ast.LVal:
		sym, ok := tab.Lookup(n.Name)
		if !ok || !sym.IsConst {
			return 0, false
		}
		return sym.Value, true

	case *ast.UnaryExpr:
		v, ok := Eval(n.X, tab)
		if !ok {
			return 0, false
		}
		switch n.Op {
		case ast.UnaryPlus:
			return v, true
		case ast.UnaryMinus:
			return -v, true
		case ast.UnaryNot:
			if v == 0 {
				return 1, true
			}
			return 0, true
		}
		return 0, false

	case *ast.BinaryExpr:
		return evalBinary(n, tab)
	}
	return 0, false
}

func evalBinary(n *ast.BinaryExpr, tab *symtab.Table) (int32, bool) {
	l, lok := Eval(n.Left, tab)
	r, rok := Eval(n.Right, tab)
	if !lok || !rok {
		return 0, false
	}
	switch n.Op {
	case ast.Add:
		return l + r, true
	case ast.Sub:
		return l - r, true
	case ast.Mul:
		return l * r, true
	case ast.Div:
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case ast.Mod:
		if r == 0 {
			return 0, false
		}
		return l % r, true
	case ast.Eq:
		return boolInt(l == r), true
	case ast.Ne:
		return boolInt(l != r), true
	case ast.Lt:
		return boolInt(l < r), true
	case ast.Le:
		return boolInt(l <= r), true
	case ast.Gt:
		return boolInt(l > r), true
	case ast.Ge:
		return boolInt(l >= r), true
	case ast.LAnd:
		// Both sides must fold; no compile-time short-circuit.
		return boolInt(l != 0 && r != 0), true
	case ast.LOr:
		return boolInt(l != 0 || r != 0), true
	}
	return 0, false
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
