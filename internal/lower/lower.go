// Package lower implements the AST-to-MIR lowering pass: a linear
// recursive-descent walk over the AST that appends textual MIR instructions
// and basic-block labels to a per-function line buffer, in the style of the
// C++ reference compiler's toKoopa methods, which append onto a shared
// vector of generated instruction strings.
package lower

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tinyrange/rvcc/internal/ast"
	"github.com/tinyrange/rvcc/internal/compileerr"
	"github.com/tinyrange/rvcc/internal/constfold"
	"github.com/tinyrange/rvcc/internal/symtab"
)

// evalConst is a thin wrapper over constfold.Eval. Lowering calls it only
// for const declarations and var initializers; every other expression is
// lowered structurally by lowerExpr, which does not call it.
func evalConst(e ast.Expr, tab *symtab.Table) (int32, bool) {
	return constfold.Eval(e, tab)
}

// ctx carries every piece of mutable state owned by one compilation as
// explicit fields, rather than package-level globals.
type ctx struct {
	tab        *symtab.Table
	tempSeq    int // %k counter, reset per function
	labelSeq   int // basic-block label counter, reset per function
	loopIDs    []int
	lines      []string // linear MIR instruction/label stream for the current function
	err        error
}

func newCtx(tab *symtab.Table) *ctx {
	return &ctx{tab: tab}
}

func (c *ctx) fail(format string, args ...any) {
	if c.err == nil {
		c.err = compileerr.New(compileerr.StageLower, format, args...)
	}
}

func (c *ctx) failed() bool { return c.err != nil }

func (c *ctx) newTemp() string {
	k := c.tempSeq
	c.tempSeq++
	return "%" + strconv.Itoa(k)
}

func (c *ctx) newLabelID() int {
	k := c.labelSeq
	c.labelSeq++
	return k
}

func (c *ctx) emit(format string, args ...any) {
	c.lines = append(c.lines, fmt.Sprintf(format, args...))
}

func (c *ctx) currentTerminated() bool {
	if len(c.lines) == 0 {
		return false
	}
	last := c.lines[len(c.lines)-1]
	return isTerminatorLine(last)
}

func isTerminatorLine(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "ret") ||
		strings.HasPrefix(line, "jump ") ||
		strings.HasPrefix(line, "br ")
}

// binopMIR maps a source binary operator to its MIR mnemonic.
func binopMIR(op ast.BinOp) string {
	switch op {
	case ast.Add:
		return "add"
	case ast.Sub:
		return "sub"
	case ast.Mul:
		return "mul"
	case ast.Div:
		return "div"
	case ast.Mod:
		return "mod"
	case ast.Eq:
		return "eq"
	case ast.Ne:
		return "ne"
	case ast.Lt:
		return "lt"
	case ast.Le:
		return "le"
	case ast.Gt:
		return "gt"
	case ast.Ge:
		return "ge"
	}
	return "?"
}

// LowerFile lowers file to a complete textual MIR program. It is the sole
// entry point of this package; every other function here is a private
// worker over one ctx.
func LowerFile(file *ast.File) (string, error) {
	fd := file.Func
	tab := symtab.New()
	c := newCtx(tab)

	tab.EnterScope()
	defer tab.ExitScope()

	isEntry := fd.Name == "main" && fd.Ret == ast.TypeInt
	if isEntry {
		c.emit("%%entry:")
	}

	c.lowerBlockBody(fd.Body)
	if c.failed() {
		return "", c.err
	}

	// A function whose body falls off the end without an explicit return
	// still needs a terminator, since every block must end with exactly one.
	if !c.currentTerminated() {
		if fd.Ret == ast.TypeVoid {
			c.emit("ret")
		} else {
			c.emit("ret 0")
		}
	}

	cleaned := Clean(c.lines)

	var b strings.Builder
	fmt.Fprintf(&b, "fun @%s(): %s {\n", fd.Name, mirType(fd.Ret))
	for _, ln := range cleaned {
		if strings.HasSuffix(ln, ":") {
			fmt.Fprintf(&b, "%s\n", ln)
		} else {
			fmt.Fprintf(&b, "  %s\n", ln)
		}
	}
	b.WriteString("}\n")
	return b.String(), nil
}

func mirType(t ast.BasicType) string {
	if t == ast.TypeVoid {
		return "void"
	}
	return "i32"
}

// lowerBlockBody lowers the items of a block without pushing a new scope;
// used for the function body itself, whose scope is the function's own
// top-level scope (already pushed by the caller).
func (c *ctx) lowerBlockBody(b *ast.BlockStmt) {
	for _, item := range b.Items {
		if c.failed() {
			return
		}
		switch {
		case item.Decl != nil:
			c.lowerDecl(item.Decl)
		case item.Stmt != nil:
			c.lowerStmt(item.Stmt, -1)
		}
	}
}

func (c *ctx) lowerDecl(d ast.Decl) {
	switch n := d.(type) {
	case *ast.ConstDecl:
		for _, def := range n.Defs {
			c.lowerConstDef(def)
		}
	case *ast.VarDecl:
		for _, def := range n.Defs {
			c.lowerVarDef(def)
		}
	}
}

func (c *ctx) lowerConstDef(def ast.ConstDef) {
	v, ok := evalConst(def.Init, c.tab)
	if !ok {
		c.fail("constant %q initializer is not a compile-time constant", def.Name)
		return
	}
	ok = c.tab.Add(symtab.Symbol{
		Kind:       symtab.KindConst,
		Type:       symtab.TypeI32,
		Identifier: def.Name,
		Value:      v,
		IsConst:    true,
	})
	if !ok {
		c.fail("redeclaration of %q", def.Name)
	}
}

func (c *ctx) lowerVarDef(def ast.VarDef) {
	sym := symtab.Symbol{
		Kind:       symtab.KindVar,
		Type:       symtab.TypeI32,
		Identifier: def.Name,
	}
	if !c.tab.Add(sym) {
		c.fail("redeclaration of %q", def.Name)
		return
	}
	sym, _ = c.tab.Lookup(def.Name)
	c.emit("@%s = alloc i32", sym.MangledName())
	if def.Init == nil {
		return
	}
	if v, ok := evalConst(def.Init, c.tab); ok {
		c.emit("store %d, @%s", v, sym.MangledName())
		return
	}
	val := c.lowerExpr(def.Init)
	if c.failed() {
		return
	}
	c.emit("store %s, @%s", val, sym.MangledName())
}

// lowerStmt lowers s. loopID is the id of the innermost enclosing while
// loop, or -1 if none; it is threaded down explicitly as a parameter rather
// than stamped onto AST nodes by a pre-pass, so break/continue binding falls
// out of ordinary recursive-descent structure.
func (c *ctx) lowerStmt(s ast.Stmt, loopID int) {
	if c.failed() {
		return
	}
	switch n := s.(type) {
	case *ast.BlockStmt:
		c.tab.EnterScope()
		for _, item := range n.Items {
			if c.failed() {
				break
			}
			if item.Decl != nil {
				c.lowerDecl(item.Decl)
			} else {
				c.lowerStmt(item.Stmt, loopID)
			}
		}
		c.tab.ExitScope()

	case *ast.AssignStmt:
		sym, ok := c.tab.Lookup(n.Name)
		if !ok {
			c.fail("assignment to undeclared identifier %q", n.Name)
			return
		}
		if sym.IsConst {
			c.fail("assignment to constant %q", n.Name)
			return
		}
		val := c.lowerExpr(n.Value)
		if c.failed() {
			return
		}
		c.emit("store %s, @%s", val, sym.MangledName())

	case *ast.ReturnStmt:
		if n.Expr == nil {
			c.emit("ret")
			return
		}
		val := c.lowerExpr(n.Expr)
		if c.failed() {
			return
		}
		c.emit("ret %s", val)

	case *ast.ExprStmt:
		if n.Expr == nil {
			return
		}
		// The value of a bare expression statement is dropped; its
		// instructions are still emitted so any nested loads/stores execute
		// in source order.
		c.lowerExpr(n.Expr)

	case *ast.IfStmt:
		c.lowerIf(n, loopID)

	case *ast.WhileStmt:
		c.lowerWhile(n)

	case *ast.BreakStmt:
		if loopID < 0 {
			c.fail("break outside loop")
			return
		}
		c.emit("jump %%while_end_%d", loopID)

	case *ast.ContinueStmt:
		if loopID < 0 {
			c.fail("continue outside loop")
			return
		}
		c.emit("jump %%while_continue_%d", loopID)

	default:
		c.fail("unsupported statement type %T", s)
	}
}

func (c *ctx) lowerIf(n *ast.IfStmt, loopID int) {
	condVal := c.lowerExpr(n.Cond)
	if c.failed() {
		return
	}
	k := c.newLabelID()
	c.emit("br %s, %%then_%d, %%else_%d", condVal, k, k)

	c.emit("%%then_%d:", k)
	c.tab.EnterScope()
	c.lowerStmt(n.Then, loopID)
	c.tab.ExitScope()
	if !c.currentTerminated() {
		c.emit("jump %%end_%d", k)
	}

	c.emit("%%else_%d:", k)
	if n.Else != nil {
		c.tab.EnterScope()
		c.lowerStmt(n.Else, loopID)
		c.tab.ExitScope()
	}
	if !c.currentTerminated() {
		c.emit("jump %%end_%d", k)
	}

	c.emit("%%end_%d:", k)
}

func (c *ctx) lowerWhile(n *ast.WhileStmt) {
	k := c.newLabelID()

	c.emit("jump %%while_entry_%d", k)
	c.emit("%%while_entry_%d:", k)
	c.tab.EnterScope()
	condVal := c.lowerExpr(n.Cond)
	if c.failed() {
		c.tab.ExitScope()
		return
	}
	c.emit("br %s, %%while_body_%d, %%while_end_%d", condVal, k, k)

	c.emit("%%while_body_%d:", k)
	c.lowerStmt(n.Body, k)
	c.tab.ExitScope()
	if !c.currentTerminated() {
		c.emit("jump %%while_entry_%d", k)
	}

	c.emit("%%while_continue_%d:", k)
	c.emit("jump %%while_entry_%d", k)
	c.emit("%%while_end_%d:", k)
}

// lowerExpr lowers e and returns a MIR operand token (a decimal literal or
// a %k temporary). Only an l-value that resolves to a const symbol folds to
// a literal here; general sub-expressions are lowered structurally even
// when every operand happens to be a literal (`return 1 && 0;` still emits
// real ne/ne/and instructions rather than folding to the constant 0). Full
// constant folding is applied only at two sites: const declarations
// (lowerConstDef) and var declaration initializers (lowerVarDef).
func (c *ctx) lowerExpr(e ast.Expr) string {
	if c.failed() {
		return "0"
	}
	switch n := e.(type) {
	case *ast.Number:
		return strconv.FormatInt(int64(n.Value), 10)

	case *ast.ParenExpr:
		return c.lowerExpr(n.X)

	case *ast.LVal:
		sym, ok := c.tab.Lookup(n.Name)
		if !ok {
			c.fail("undeclared identifier %q", n.Name)
			return "0"
		}
		if sym.IsConst {
			return strconv.FormatInt(int64(sym.Value), 10)
		}
		t := c.newTemp()
		c.emit("%s = load @%s", t, sym.MangledName())
		return t

	case *ast.UnaryExpr:
		return c.lowerUnary(n)

	case *ast.BinaryExpr:
		return c.lowerBinary(n)
	}
	c.fail("unsupported expression type %T", e)
	return "0"
}

func (c *ctx) lowerUnary(n *ast.UnaryExpr) string {
	switch n.Op {
	case ast.UnaryPlus:
		return c.lowerExpr(n.X)
	case ast.UnaryMinus:
		v := c.lowerExpr(n.X)
		t := c.newTemp()
		c.emit("%s = sub 0, %s", t, v)
		return t
	case ast.UnaryNot:
		v := c.lowerExpr(n.X)
		t := c.newTemp()
		c.emit("%s = eq %s, 0", t, v)
		return t
	}
	c.fail("unsupported unary operator")
	return "0"
}

func (c *ctx) lowerBinary(n *ast.BinaryExpr) string {
	switch n.Op {
	case ast.LAnd:
		l := c.lowerExpr(n.Left)
		lb := c.newTemp()
		c.emit("%s = ne %s, 0", lb, l)
		r := c.lowerExpr(n.Right)
		rb := c.newTemp()
		c.emit("%s = ne %s, 0", rb, r)
		res := c.newTemp()
		c.emit("%s = and %s, %s", res, lb, rb)
		return res
	case ast.LOr:
		l := c.lowerExpr(n.Left)
		lb := c.newTemp()
		c.emit("%s = ne %s, 0", lb, l)
		r := c.lowerExpr(n.Right)
		rb := c.newTemp()
		c.emit("%s = ne %s, 0", rb, r)
		res := c.newTemp()
		c.emit("%s = or %s, %s", res, lb, rb)
		return res
	default:
		l := c.lowerExpr(n.Left)
		r := c.lowerExpr(n.Right)
		t := c.newTemp()
		c.emit("%s = %s %s, %s", t, binopMIR(n.Op), l, r)
		return t
	}
}
