package parser

import (
	"fmt"
	"strconv"
	"strings"

	"goa.design/federator/dsl/lexer"
	"goa.design/federator/errs"
)

// Parser consumes a token stream produced by dsl/lexer and builds a
// Program, collecting diagnostics rather than stopping at the first
// error so a snippet can be reported with everything wrong with it at
// once (spec.md §4.2's "multiple errors per snippet" requirement).
type Parser struct {
	toks   []lexer.Token
	pos    int
	what   string
	diags  []errs.SourceDiagnostic
	atEOF  bool // set when a token was consumed past EOF, signals "needs more input"
}

// New builds a Parser over toks. what labels diagnostics (the caller's
// snippet identifier, since the core is file-less).
func New(toks []lexer.Token, what string) *Parser {
	return &Parser{toks: toks, what: what}
}

// Parse consumes the whole token stream and returns a Program plus any
// diagnostics. If any diagnostic has error severity, the Program is
// still returned (best-effort) but must not be lowered.
func (p *Parser) Parse() (Program, []errs.SourceDiagnostic) {
	var prog Program
	for !p.check(lexer.EOF) {
		stmt, ok := p.parseStmt()
		if !ok {
			p.recover()
			continue
		}
		prog.Stmts = append(prog.Stmts, stmt)
	}
	return prog, p.diags
}

// NeedsMoreInput reports whether parsing stopped because the token
// stream ended mid-construct (the Eof() sum-type case of spec.md §4.2),
// as opposed to a genuine syntax error.
func (p *Parser) NeedsMoreInput() bool { return p.atEOF }

func (p *Parser) recover() {
	// Skip to the next statement boundary so one bad statement doesn't
	// cascade into spurious follow-on diagnostics.
	for !p.check(lexer.EOF) && !p.check(lexer.Semicolon) && !p.check(lexer.RBrace) {
		p.advance()
	}
	if p.check(lexer.Semicolon) {
		p.advance()
	}
}

func (p *Parser) parseStmt() (Stmt, bool) {
	attrs := p.parseAttributes()

	switch {
	case p.check(lexer.KwImport):
		return p.parseImport()
	case p.check(lexer.KwLet):
		return p.parseLet(attrs)
	case p.check(lexer.LBrace):
		b, ok := p.parseBlock()
		return b, ok
	case p.check(lexer.KwIf):
		return p.parseIf()
	case p.check(lexer.KwFor):
		return p.parseFor()
	case p.check(lexer.KwWhile):
		return p.parseWhile()
	case p.check(lexer.KwParallel):
		return p.parseParallel()
	case p.check(lexer.KwClass):
		return p.parseClass()
	case p.check(lexer.KwReturn):
		return p.parseReturn()
	case p.check(lexer.Ident) && p.peekIsFuncDef():
		return p.parseFuncDef()
	default:
		return p.parseExprOrAssignStmt()
	}
}

// parseAttributes consumes zero or more leading #[...] / #![...]
// annotations, parsing their `key=value`/`key(v1,v2)` inner syntax.
func (p *Parser) parseAttributes() []Attribute {
	var attrs []Attribute
	for p.check(lexer.Attribute) || p.check(lexer.InnerAttribute) {
		inner := p.check(lexer.InnerAttribute)
		tok := p.advance()
		attrs = append(attrs, parseAttributeBody(inner, tok.Text))
	}
	return attrs
}

func parseAttributeBody(inner bool, body string) Attribute {
	body = strings.TrimSpace(body)
	if i := strings.IndexByte(body, '='); i >= 0 {
		return Attribute{Inner: inner, Key: strings.TrimSpace(body[:i]), Values: []string{strings.Trim(strings.TrimSpace(body[i+1:]), `"`)}}
	}
	if i := strings.IndexByte(body, '('); i >= 0 && strings.HasSuffix(body, ")") {
		key := strings.TrimSpace(body[:i])
		args := strings.Split(body[i+1:len(body)-1], ",")
		for j := range args {
			args[j] = strings.Trim(strings.TrimSpace(args[j]), `"`)
		}
		return Attribute{Inner: inner, Key: key, Values: args}
	}
	return Attribute{Inner: inner, Key: body}
}

func (p *Parser) parseImport() (Stmt, bool) {
	line := p.cur().Line
	p.advance() // import
	name, ok := p.expect(lexer.Ident, "expected package name after 'import'")
	if !ok {
		return nil, false
	}
	p.expectSemicolon()
	return ImportStmt{Name: name.Text, Line: line}, true
}

func (p *Parser) parseLet(attrs []Attribute) (Stmt, bool) {
	line := p.cur().Line
	p.advance() // let
	name, ok := p.expect(lexer.Ident, "expected identifier after 'let'")
	if !ok {
		return nil, false
	}
	if !p.expectKind(lexer.Assign, "expected ':=' in let statement") {
		return nil, false
	}
	value, ok := p.parseExpr()
	if !ok {
		return nil, false
	}
	p.expectSemicolon()
	return LetStmt{Name: name.Text, Value: value, Attrs: attrs, Line: line}, true
}

func (p *Parser) parseExprOrAssignStmt() (Stmt, bool) {
	line := p.cur().Line
	if p.check(lexer.Ident) && p.peekKind(1) == lexer.Assign {
		name := p.advance()
		p.advance() // :=
		value, ok := p.parseExpr()
		if !ok {
			return nil, false
		}
		p.expectSemicolon()
		return AssignStmt{Name: name.Text, Value: value, Line: line}, true
	}
	value, ok := p.parseExpr()
	if !ok {
		return nil, false
	}
	p.expectSemicolon()
	return ExprStmt{Value: value, Line: line}, true
}

func (p *Parser) parseBlock() (BlockStmt, bool) {
	p.advance() // {
	attrs := p.parseAttributes() // inner attributes, if written first
	var block BlockStmt
	block.Attrs = attrs
	for !p.check(lexer.RBrace) && !p.check(lexer.EOF) {
		stmt, ok := p.parseStmt()
		if !ok {
			p.recover()
			continue
		}
		block.Stmts = append(block.Stmts, stmt)
	}
	if !p.expectKind(lexer.RBrace, "expected '}' to close block") {
		return block, false
	}
	return block, true
}

func (p *Parser) parseIf() (Stmt, bool) {
	line := p.cur().Line
	p.advance() // if
	if !p.expectKind(lexer.LParen, "expected '(' after 'if'") {
		return nil, false
	}
	cond, ok := p.parseExpr()
	if !ok {
		return nil, false
	}
	if !p.expectKind(lexer.RParen, "expected ')' after if-condition") {
		return nil, false
	}
	then, ok := p.parseBlock()
	if !ok {
		return nil, false
	}
	stmt := IfStmt{Cond: cond, Then: then, Line: line}
	if p.check(lexer.KwElse) {
		p.advance()
		elseBlock, ok := p.parseBlock()
		if !ok {
			return nil, false
		}
		stmt.Else = &elseBlock
	}
	return stmt, true
}

func (p *Parser) parseFor() (Stmt, bool) {
	line := p.cur().Line
	p.advance() // for
	if !p.expectKind(lexer.LParen, "expected '(' after 'for'") {
		return nil, false
	}
	initStmt, ok := p.parseStmt()
	if !ok {
		return nil, false
	}
	cond, ok := p.parseExpr()
	if !ok {
		return nil, false
	}
	if !p.expectKind(lexer.Semicolon, "expected ';' after for-condition") {
		return nil, false
	}
	postStmt, ok := p.parseExprOrAssignStmt()
	if !ok {
		return nil, false
	}
	if !p.expectKind(lexer.RParen, "expected ')' to close for-clause") {
		return nil, false
	}
	body, ok := p.parseBlock()
	if !ok {
		return nil, false
	}
	return ForStmt{Init: initStmt, Cond: cond, Post: postStmt, Body: body, Line: line}, true
}

func (p *Parser) parseWhile() (Stmt, bool) {
	line := p.cur().Line
	p.advance() // while
	if !p.expectKind(lexer.LParen, "expected '(' after 'while'") {
		return nil, false
	}
	cond, ok := p.parseExpr()
	if !ok {
		return nil, false
	}
	if !p.expectKind(lexer.RParen, "expected ')' after while-condition") {
		return nil, false
	}
	body, ok := p.parseBlock()
	if !ok {
		return nil, false
	}
	return WhileStmt{Cond: cond, Body: body, Line: line}, true
}

func (p *Parser) parseParallel() (Stmt, bool) {
	line := p.cur().Line
	p.advance() // parallel
	if !p.expectKind(lexer.LBracket, "expected '[' after 'parallel'") {
		return nil, false
	}
	var branches []BlockStmt
	for !p.check(lexer.RBracket) && !p.check(lexer.EOF) {
		b, ok := p.parseBlock()
		if !ok {
			return nil, false
		}
		branches = append(branches, b)
		if p.check(lexer.Comma) {
			p.advance()
		}
	}
	if !p.expectKind(lexer.RBracket, "expected ']' to close parallel block") {
		return nil, false
	}
	p.expectSemicolon()
	return ParallelStmt{Branches: branches, Line: line}, true
}

func (p *Parser) parseClass() (Stmt, bool) {
	line := p.cur().Line
	p.advance() // class
	name, ok := p.expect(lexer.Ident, "expected class name")
	if !ok {
		return nil, false
	}
	if !p.expectKind(lexer.LBrace, "expected '{' after class name") {
		return nil, false
	}
	cls := ClassStmt{Name: name.Text, Line: line}
	for !p.check(lexer.RBrace) && !p.check(lexer.EOF) {
		if p.peekIsFuncDef() {
			m, ok := p.parseFuncDef()
			if !ok {
				return nil, false
			}
			fd := m.(FuncDefStmt)
			cls.Methods = append(cls.Methods, MethodDecl{Name: fd.Name, Params: fd.Params, Body: fd.Body})
			continue
		}
		propName, ok := p.expect(lexer.Ident, "expected property or method declaration")
		if !ok {
			return nil, false
		}
		p.expectSemicolon()
		cls.Properties = append(cls.Properties, PropertyDecl{Name: propName.Text})
	}
	if !p.expectKind(lexer.RBrace, "expected '}' to close class") {
		return nil, false
	}
	return cls, true
}

// peekIsFuncDef looks ahead for `ident ( ... ) {`, the shape distinguishing
// a method/function declaration from a property declaration or
// expression statement.
func (p *Parser) peekIsFuncDef() bool {
	if !p.check(lexer.Ident) {
		return false
	}
	i := p.pos + 1
	if i >= len(p.toks) || p.toks[i].Kind != lexer.LParen {
		return false
	}
	depth := 1
	i++
	for i < len(p.toks) && depth > 0 {
		switch p.toks[i].Kind {
		case lexer.LParen:
			depth++
		case lexer.RParen:
			depth--
		}
		i++
	}
	return i < len(p.toks) && p.toks[i].Kind == lexer.LBrace
}

func (p *Parser) parseFuncDef() (Stmt, bool) {
	line := p.cur().Line
	name := p.advance()
	p.advance() // (
	var params []string
	for !p.check(lexer.RParen) && !p.check(lexer.EOF) {
		param, ok := p.expect(lexer.Ident, "expected parameter name")
		if !ok {
			return nil, false
		}
		params = append(params, param.Text)
		if p.check(lexer.Comma) {
			p.advance()
		}
	}
	if !p.expectKind(lexer.RParen, "expected ')' to close parameter list") {
		return nil, false
	}
	body, ok := p.parseBlock()
	if !ok {
		return nil, false
	}
	return FuncDefStmt{Name: name.Text, Params: params, Body: body, Line: line}, true
}

func (p *Parser) parseReturn() (Stmt, bool) {
	line := p.cur().Line
	p.advance() // return
	if p.check(lexer.Semicolon) {
		p.advance()
		return ReturnStmt{Line: line}, true
	}
	value, ok := p.parseExpr()
	if !ok {
		return nil, false
	}
	p.expectSemicolon()
	return ReturnStmt{Value: value, Line: line}, true
}

// ---- expressions ----

func (p *Parser) parseExpr() (Expr, bool) {
	return p.parseBinary(0)
}

var precedence = map[lexer.Kind]int{
	lexer.OrOr: 1, lexer.AndAnd: 1,
	lexer.Eq: 2, lexer.Neq: 2, lexer.Lt: 2, lexer.Gt: 2, lexer.Le: 2, lexer.Ge: 2,
	lexer.Plus: 3, lexer.Minus: 3,
	lexer.Star: 4, lexer.Slash: 4,
}

func (p *Parser) parseBinary(minPrec int) (Expr, bool) {
	left, ok := p.parseUnary()
	if !ok {
		return nil, false
	}
	for {
		prec, isOp := precedence[p.cur().Kind]
		if !isOp || prec < minPrec {
			return left, true
		}
		opTok := p.advance()
		right, ok := p.parseBinary(prec + 1)
		if !ok {
			return nil, false
		}
		left = BinaryExpr{Op: opTok.Text, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() (Expr, bool) {
	if p.check(lexer.Bang) || p.check(lexer.Minus) {
		op := p.advance()
		operand, ok := p.parseUnary()
		if !ok {
			return nil, false
		}
		return BinaryExpr{Op: op.Text, Left: IntExpr{Value: 0}, Right: operand}, true
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expr, bool) {
	tok := p.cur()
	switch tok.Kind {
	case lexer.Int:
		p.advance()
		v, _ := strconv.ParseInt(tok.Text, 10, 64)
		return IntExpr{Value: v}, true
	case lexer.Real:
		p.advance()
		v, _ := strconv.ParseFloat(tok.Text, 64)
		return RealExpr{Value: v}, true
	case lexer.String:
		p.advance()
		return StrExpr{Value: tok.Text}, true
	case lexer.KwNew:
		return p.parseNew()
	case lexer.Ident:
		return p.parseIdentOrCall()
	case lexer.LParen:
		p.advance()
		inner, ok := p.parseExpr()
		if !ok {
			return nil, false
		}
		if !p.expectKind(lexer.RParen, "expected ')' to close expression") {
			return nil, false
		}
		return inner, true
	default:
		p.errorf("unexpected token %q in expression", tok.Text)
		return nil, false
	}
}

func (p *Parser) parseIdentOrCall() (Expr, bool) {
	name := p.advance()
	if name.Text == "true" {
		return BoolExpr{Value: true}, true
	}
	if name.Text == "false" {
		return BoolExpr{Value: false}, true
	}
	if !p.check(lexer.LParen) {
		return IdentExpr{Name: name.Text}, true
	}
	p.advance() // (
	var args []Expr
	for !p.check(lexer.RParen) && !p.check(lexer.EOF) {
		arg, ok := p.parseExpr()
		if !ok {
			return nil, false
		}
		args = append(args, arg)
		if p.check(lexer.Comma) {
			p.advance()
		}
	}
	if !p.expectKind(lexer.RParen, "expected ')' to close call arguments") {
		return nil, false
	}
	return CallExpr{Target: name.Text, Args: args}, true
}

func (p *Parser) parseNew() (Expr, bool) {
	p.advance() // new
	name, ok := p.expect(lexer.Ident, "expected class name after 'new'")
	if !ok {
		return nil, false
	}
	if !p.expectKind(lexer.LBrace, "expected '{' after class name in 'new' expression") {
		return nil, false
	}
	args := make(map[string]Expr)
	for !p.check(lexer.RBrace) && !p.check(lexer.EOF) {
		field, ok := p.expect(lexer.Ident, "expected field name")
		if !ok {
			return nil, false
		}
		if !p.expectKind(lexer.Colon, "expected ':' after field name") {
			return nil, false
		}
		value, ok := p.parseExpr()
		if !ok {
			return nil, false
		}
		args[field.Text] = value
		if p.check(lexer.Comma) {
			p.advance()
		}
	}
	if !p.expectKind(lexer.RBrace, "expected '}' to close 'new' expression") {
		return nil, false
	}
	return NewExpr{Class: name.Text, Args: args}, true
}

// ---- token-stream helpers ----

func (p *Parser) cur() lexer.Token {
	if p.pos >= len(p.toks) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) peekKind(ahead int) lexer.Kind {
	i := p.pos + ahead
	if i >= len(p.toks) {
		return lexer.EOF
	}
	return p.toks[i].Kind
}

func (p *Parser) check(k lexer.Kind) bool { return p.cur().Kind == k }

func (p *Parser) advance() lexer.Token {
	tok := p.cur()
	if tok.Kind == lexer.EOF {
		p.atEOF = true
		return tok
	}
	p.pos++
	return tok
}

func (p *Parser) expect(k lexer.Kind, message string) (lexer.Token, bool) {
	if !p.check(k) {
		p.errorf("%s, found %q", message, p.cur().Text)
		return lexer.Token{}, false
	}
	return p.advance(), true
}

func (p *Parser) expectKind(k lexer.Kind, message string) bool {
	_, ok := p.expect(k, message)
	return ok
}

func (p *Parser) expectSemicolon() {
	if p.check(lexer.Semicolon) {
		p.advance()
	}
}

func (p *Parser) errorf(format string, args ...any) {
	tok := p.cur()
	if tok.Kind == lexer.EOF {
		p.atEOF = true
	}
	p.diags = append(p.diags, errs.SourceDiagnostic{
		Range: errs.TextRange{
			What:      p.what,
			StartLine: tok.Line,
			StartCol:  tok.Col,
		},
		Severity: errs.SeverityError,
		Message:  fmt.Sprintf(format, args...),
	})
}
