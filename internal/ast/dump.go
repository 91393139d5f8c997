package ast

import (
	"fmt"
	"strings"
)

// Dump renders file as an indented tree, for the `-dump-ast` debugging flag
// on the rvcc command. It is display-only: nothing in the compiler pipeline
// reads it back.
func Dump(file *File) string {
	var b strings.Builder
	dumpFunc(&b, file.Func, 0)
	return b.String()
}

func indent(b *strings.Builder, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
}

func dumpFunc(b *strings.Builder, fd *FuncDecl, depth int) {
	indent(b, depth)
	fmt.Fprintf(b, "FuncDecl %s %s\n", fd.Ret, fd.Name)
	dumpBlock(b, fd.Body, depth+1)
}

func dumpBlock(b *strings.Builder, block *BlockStmt, depth int) {
	indent(b, depth)
	b.WriteString("Block\n")
	for _, item := range block.Items {
		switch {
		case item.Decl != nil:
			dumpDecl(b, item.Decl, depth+1)
		case item.Stmt != nil:
			dumpStmt(b, item.Stmt, depth+1)
		}
	}
}

func dumpDecl(b *strings.Builder, d Decl, depth int) {
	indent(b, depth)
	switch n := d.(type) {
	case *ConstDecl:
		fmt.Fprintf(b, "ConstDecl %d defs\n", len(n.Defs))
	case *VarDecl:
		fmt.Fprintf(b, "VarDecl %d defs\n", len(n.Defs))
	default:
		fmt.Fprintf(b, "<unknown decl %T>\n", d)
	}
}

func dumpStmt(b *strings.Builder, s Stmt, depth int) {
	switch n := s.(type) {
	case *BlockStmt:
		dumpBlock(b, n, depth)
	case *AssignStmt:
		indent(b, depth)
		fmt.Fprintf(b, "Assign %s\n", n.Name)
	case *ReturnStmt:
		indent(b, depth)
		b.WriteString("Return\n")
	case *ExprStmt:
		indent(b, depth)
		b.WriteString("ExprStmt\n")
	case *IfStmt:
		indent(b, depth)
		b.WriteString("If\n")
		dumpStmt(b, n.Then, depth+1)
		if n.Else != nil {
			indent(b, depth)
			b.WriteString("Else\n")
			dumpStmt(b, n.Else, depth+1)
		}
	case *WhileStmt:
		indent(b, depth)
		b.WriteString("While\n")
		dumpStmt(b, n.Body, depth+1)
	case *BreakStmt:
		indent(b, depth)
		b.WriteString("Break\n")
	case *ContinueStmt:
		indent(b, depth)
		b.WriteString("Continue\n")
	default:
		indent(b, depth)
		fmt.Fprintf(b, "<unknown stmt %T>\n", s)
	}
}
