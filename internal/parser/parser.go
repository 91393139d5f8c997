// Package parser implements a recursive-descent parser over a small C-like
// source grammar: a cursor advanced by next() with terminals consumed by
// expect(), extended to a two-token lookahead so an assignment statement
// can be told apart from an expression statement without backtracking, and
// built around a full six-tier expression precedence chain.
package parser

import (
	"fmt"
	"strconv"

	"github.com/tinyrange/rvcc/internal/ast"
	"github.com/tinyrange/rvcc/internal/lexer"
)

type Parser struct {
	lx      *lexer.Lexer
	tok     lexer.Token
	peekTok lexer.Token
}

// ParseFile parses src as one compilation unit: a single function
// declaration. filename is accepted for future diagnostics but not
// currently attached to any node.
func ParseFile(filename, src string) (*ast.File, error) {
	p := &Parser{lx: lexer.New(src)}
	p.next()
	p.next()

	fd, err := p.parseFuncDecl()
	if err != nil {
		return nil, err
	}
	return &ast.File{Func: fd}, nil
}

func (p *Parser) next() {
	p.tok = p.peekTok
	p.peekTok = p.lx.Next()
}

func (p *Parser) expect(tt lexer.TokenType) (lexer.Token, error) {
	if p.tok.Type != tt {
		return lexer.Token{}, fmt.Errorf("parser: expected token %v, got %v (%q) at %d:%d", tt, p.tok.Type, p.tok.Lex, p.tok.Line, p.tok.Col)
	}
	t := p.tok
	p.next()
	return t, nil
}

func (p *Parser) parseFuncDecl() (*ast.FuncDecl, error) {
	var ret ast.BasicType
	switch p.tok.Type {
	case lexer.KW_INT:
		ret = ast.TypeInt
	case lexer.KW_VOID:
		ret = ast.TypeVoid
	default:
		return nil, fmt.Errorf("parser: expected a return type, got %v at %d:%d", p.tok.Type, p.tok.Line, p.tok.Col)
	}
	p.next()

	nameTok, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FuncDecl{Name: nameTok.Lex, Ret: ret, Body: body}, nil
}

func (p *Parser) parseBlock() (*ast.BlockStmt, error) {
	if _, err := p.expect(lexer.LBRACE); err != nil {
		return nil, err
	}
	var items []ast.BlockItem
	for p.tok.Type != lexer.RBRACE && p.tok.Type != lexer.EOF {
		item, err := p.parseBlockItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if _, err := p.expect(lexer.RBRACE); err != nil {
		return nil, err
	}
	return &ast.BlockStmt{Items: items}, nil
}

func (p *Parser) parseBlockItem() (ast.BlockItem, error) {
	switch p.tok.Type {
	case lexer.KW_CONST:
		d, err := p.parseConstDecl()
		if err != nil {
			return ast.BlockItem{}, err
		}
		return ast.BlockItem{Decl: d}, nil
	case lexer.KW_INT:
		d, err := p.parseVarDecl()
		if err != nil {
			return ast.BlockItem{}, err
		}
		return ast.BlockItem{Decl: d}, nil
	default:
		s, err := p.parseStmt()
		if err != nil {
			return ast.BlockItem{}, err
		}
		return ast.BlockItem{Stmt: s}, nil
	}
}

func (p *Parser) parseConstDecl() (*ast.ConstDecl, error) {
	if _, err := p.expect(lexer.KW_CONST); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.KW_INT); err != nil {
		return nil, err
	}
	decl := &ast.ConstDecl{}
	for {
		nameTok, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.ASSIGN); err != nil {
			return nil, err
		}
		init, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		decl.Defs = append(decl.Defs, ast.ConstDef{Name: nameTok.Lex, Init: init})
		if p.tok.Type == lexer.COMMA {
			p.next()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.SEMI); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) parseVarDecl() (*ast.VarDecl, error) {
	if _, err := p.expect(lexer.KW_INT); err != nil {
		return nil, err
	}
	decl := &ast.VarDecl{}
	for {
		nameTok, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		var init ast.Expr
		if p.tok.Type == lexer.ASSIGN {
			p.next()
			init, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		decl.Defs = append(decl.Defs, ast.VarDef{Name: nameTok.Lex, Init: init})
		if p.tok.Type == lexer.COMMA {
			p.next()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.SEMI); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	switch p.tok.Type {
	case lexer.LBRACE:
		return p.parseBlock()

	case lexer.KW_RETURN:
		p.next()
		if p.tok.Type == lexer.SEMI {
			p.next()
			return &ast.ReturnStmt{}, nil
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.SEMI); err != nil {
			return nil, err
		}
		return &ast.ReturnStmt{Expr: e}, nil

	case lexer.KW_IF:
		return p.parseIf()

	case lexer.KW_WHILE:
		return p.parseWhile()

	case lexer.KW_BREAK:
		p.next()
		if _, err := p.expect(lexer.SEMI); err != nil {
			return nil, err
		}
		return &ast.BreakStmt{}, nil

	case lexer.KW_CONTINUE:
		p.next()
		if _, err := p.expect(lexer.SEMI); err != nil {
			return nil, err
		}
		return &ast.ContinueStmt{}, nil

	case lexer.SEMI:
		p.next()
		return &ast.ExprStmt{}, nil

	case lexer.IDENT:
		if p.peekTok.Type == lexer.ASSIGN {
			nameTok := p.tok
			p.next()
			p.next()
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.SEMI); err != nil {
				return nil, err
			}
			return &ast.AssignStmt{Name: nameTok.Lex, Value: v}, nil
		}
		fallthrough

	default:
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.SEMI); err != nil {
			return nil, err
		}
		return &ast.ExprStmt{Expr: e}, nil
	}
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	p.next()
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	then, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	var elseStmt ast.Stmt
	if p.tok.Type == lexer.KW_ELSE {
		p.next()
		elseStmt, err = p.parseStmt()
		if err != nil {
			return nil, err
		}
	}
	return &ast.IfStmt{Cond: cond, Then: then, Else: elseStmt}, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	p.next()
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Cond: cond, Body: body}, nil
}

// Expression precedence chain, loosest to tightest:
// lor <- land <- eq <- rel <- add <- mul <- unary <- primary

func (p *Parser) parseExpr() (ast.Expr, error) { return p.parseLOr() }

func (p *Parser) parseLOr() (ast.Expr, error) {
	left, err := p.parseLAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == lexer.OROR {
		p.next()
		right, err := p.parseLAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: ast.LOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseLAnd() (ast.Expr, error) {
	left, err := p.parseEq()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == lexer.ANDAND {
		p.next()
		right, err := p.parseEq()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: ast.LAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseEq() (ast.Expr, error) {
	left, err := p.parseRel()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == lexer.EQEQ || p.tok.Type == lexer.NEQ {
		op := p.tok.Type
		p.next()
		right, err := p.parseRel()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: eqOp(op), Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseRel() (ast.Expr, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	for isRelOp(p.tok.Type) {
		op := p.tok.Type
		p.next()
		right, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: relOp(op), Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAdd() (ast.Expr, error) {
	left, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for p.tok.Type == lexer.PLUS || p.tok.Type == lexer.MINUS {
		op := p.tok.Type
		p.next()
		right, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: addOp(op), Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMul() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for isMulOp(p.tok.Type) {
		op := p.tok.Type
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: mulOp(op), Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	switch p.tok.Type {
	case lexer.PLUS:
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: ast.UnaryPlus, X: x}, nil
	case lexer.MINUS:
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: ast.UnaryMinus, X: x}, nil
	case lexer.BANG:
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: ast.UnaryNot, X: x}, nil
	default:
		return p.parsePrimary()
	}
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	switch p.tok.Type {
	case lexer.INT:
		v, err := strconv.ParseInt(p.tok.Lex, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parser: malformed integer literal %q at %d:%d", p.tok.Lex, p.tok.Line, p.tok.Col)
		}
		p.next()
		return &ast.Number{Value: int32(v)}, nil
	case lexer.IDENT:
		name := p.tok.Lex
		p.next()
		return &ast.LVal{Name: name}, nil
	case lexer.LPAREN:
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		return &ast.ParenExpr{X: e}, nil
	default:
		return nil, fmt.Errorf("parser: unexpected token %v (%q) at %d:%d", p.tok.Type, p.tok.Lex, p.tok.Line, p.tok.Col)
	}
}

func isRelOp(t lexer.TokenType) bool {
	return t == lexer.LT || t == lexer.LE || t == lexer.GT || t == lexer.GE
}

func isMulOp(t lexer.TokenType) bool {
	return t == lexer.STAR || t == lexer.SLASH || t == lexer.PERCENT
}

func eqOp(t lexer.TokenType) ast.BinOp {
	if t == lexer.EQEQ {
		return ast.Eq
	}
	return ast.Ne
}

func relOp(t lexer.TokenType) ast.BinOp {
	switch t {
	case lexer.LT:
		return ast.Lt
	case lexer.LE:
		return ast.Le
	case lexer.GT:
		return ast.Gt
	default:
		return ast.Ge
	}
}

func addOp(t lexer.TokenType) ast.BinOp {
	if t == lexer.PLUS {
		return ast.Add
	}
	return ast.Sub
}

func mulOp(t lexer.TokenType) ast.BinOp {
	switch t {
	case lexer.STAR:
		return ast.Mul
	case lexer.SLASH:
		return ast.Div
	default:
		return ast.Mod
	}
}
