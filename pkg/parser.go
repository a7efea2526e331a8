package minic

import (
	"strconv"
	"unicode/utf8"

	"tlog.app/go/tlog"
)

// Binary operator precedence levels, lowest first. All binary operators are
// left associative. Assignment is handled by identifier and binds looser than
// all of them.
const (
	precOr = iota + 1
	precAnd
	precEquality
	precRelational
	precAdditive
	precMultiplicative
)

var precedenceTable = map[TokenType]int{
	TokenOr:     precOr,
	TokenAnd:    precAnd,
	TokenEq:     precEquality,
	TokenNe:     precEquality,
	TokenLe:     precRelational,
	TokenLt:     precRelational,
	TokenGe:     precRelational,
	TokenGt:     precRelational,
	TokenPlus:   precAdditive,
	TokenMinus:  precAdditive,
	TokenTimes:  precMultiplicative,
	TokenDivide: precMultiplicative,
	TokenMod:    precMultiplicative,
}

var binaryOps = map[TokenType]BinaryOp{
	TokenOr:     BinaryOr,
	TokenAnd:    BinaryAnd,
	TokenEq:     BinaryEqual,
	TokenNe:     BinaryNotEqual,
	TokenLe:     BinaryLessEqual,
	TokenLt:     BinaryLess,
	TokenGe:     BinaryGreaterEqual,
	TokenGt:     BinaryGreater,
	TokenPlus:   BinaryAddition,
	TokenMinus:  BinarySubtraction,
	TokenTimes:  BinaryMultiplication,
	TokenDivide: BinaryDivision,
	TokenMod:    BinaryModulo,
}

var assignOps = map[TokenType]AssignOp{
	TokenAssign:    AssignSet,
	TokenAddAssign: AssignAdd,
	TokenSubAssign: AssignSub,
	TokenMulAssign: AssignMul,
	TokenDivAssign: AssignDiv,
	TokenModAssign: AssignMod,
}

var prefixOps = map[TokenType]UnaryOp{
	TokenNot:   UnaryNot,
	TokenMinus: UnaryNegative,
	TokenPlus:  UnaryPositive,
	TokenInc:   UnaryIncrement,
	TokenDec:   UnaryDecrement,
}

var typeSpecs = map[TokenType]bool{
	TokenVoid:  true,
	TokenBool:  true,
	TokenInt:   true,
	TokenFloat: true,
	TokenChar:  true,
}

// recoveryTokens is how many tokens must be shifted after a syntax error
// before the next one is reported.
const recoveryTokens = 3

// bailout unwinds the parser to the nearest recovery point after a syntax
// error has been reported.
type bailout struct{}

type Parser struct {
	filename  string
	tokenizer Tokenizer
	diag      *Diagnostics
	buf       *Token

	consumed int

	// quiet counts the tokens still to be shifted before another syntax
	// error is reported.
	quiet int
}

func NewParser(tokenizer Tokenizer, diag *Diagnostics) *Parser {
	return &Parser{
		tokenizer: tokenizer,
		filename:  tokenizer.GetFilename(),
		diag:      diag,
	}
}

func (p *Parser) GetFilename() string {
	return p.filename
}

// Run parses the whole token stream. Errors are reported to the Diagnostics
// and never abort the parse; the returned tree holds every declaration that
// parsed cleanly and is nil if there are none.
func (p *Parser) Run() (prog *Program) {
	go p.tokenizer.Do()

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
		}

		tlog.V("parser").Printw("parsed", "file", p.filename, "decls", len(prog.Decls), "errors", p.diag.Count())

		if len(prog.Decls) == 0 {
			prog = nil
		}
	}()

	prog = &Program{Pos: Pos{p.peek().Line}}

	if !p.peek().isValid() {
		p.syntaxError(p.peek())
	}

	for p.peek().isValid() {
		if d := p.declaration(); d != nil {
			prog.Decls = append(prog.Decls, d)
		}
	}

	return prog
}

func (p *Parser) peek() Token {
	if p.buf == nil {
		tok := p.fetch()
		p.buf = &tok
	}

	return *p.buf
}

func (p *Parser) next() Token {
	tok := p.discard()
	if tok.isValid() && p.quiet > 0 {
		p.quiet--
	}

	return tok
}

// discard drops the next token during recovery. It does not count towards
// the quiet window.
func (p *Parser) discard() Token {
	tok := p.peek()
	if tok.isValid() {
		// EOF stays buffered since no more tokens are expected
		p.buf = nil
		p.consumed++
	}

	return tok
}

func (p *Parser) fetch() Token {
	for {
		tok := p.tokenizer.Get()

		switch tok.Typ {
		case TokenComment:
			continue
		case TokenError:
			p.diag.Error(tok.Line, tok.Value)
			continue
		}

		return tok
	}
}

func (p *Parser) check(typ TokenType) bool {
	return p.peek().Typ == typ
}

// expect consumes the next token only if it has the given type.
func (p *Parser) expect(typ TokenType) Token {
	if tok := p.peek(); tok.Typ != typ {
		p.syntaxError(tok)
	}

	return p.next()
}

// syntaxError reports tok and unwinds. Errors hit while still inside the
// quiet window of the previous one are follow-ons and only restart the window.
func (p *Parser) syntaxError(tok Token) {
	switch {
	case p.quiet > 0:
	case tok.Typ == TokenEOF:
		p.diag.ErrorEOF("Syntax error. No more input.")
	default:
		p.diag.Errorf(tok.Line, "Syntax error in input at token '%s'", tok.Value)
	}

	p.quiet = recoveryTokens

	panic(bailout{})
}

func (p *Parser) errorf(line int, format string, args ...interface{}) {
	p.diag.Errorf(line, format, args...)
	p.quiet = recoveryTokens

	panic(bailout{})
}

// recoverDecl is deferred by declaration. At end of input the bailout keeps
// unwinding to Run; otherwise tokens are dropped up to the end of the broken
// declaration.
func (p *Parser) recoverDecl(start int) {
	r := recover()
	if r == nil {
		return
	}

	if _, ok := r.(bailout); !ok || !p.peek().isValid() {
		panic(r)
	}

	if p.consumed == start {
		p.discard()
	}

	depth := 0
	for tok := p.peek(); tok.isValid(); tok = p.peek() {
		switch {
		case tok.Typ == TokenOpenCurly:
			depth++
		case tok.Typ == TokenCloseCurly:
			depth--
			if depth <= 0 {
				p.discard()
				return
			}
		case tok.Typ == TokenSemicolon && depth == 0:
			p.discard()
			return
		case typeSpecs[tok.Typ] && depth == 0:
			return
		}

		p.discard()
	}
}

// recoverStmt is deferred by statement and localDecl. A closing brace is
// left for the enclosing block even when nothing else was consumed.
func (p *Parser) recoverStmt(start int) {
	r := recover()
	if r == nil {
		return
	}

	if _, ok := r.(bailout); !ok || !p.peek().isValid() {
		panic(r)
	}

	if p.consumed == start && !p.check(TokenCloseCurly) {
		p.discard()
	}

	for tok := p.peek(); tok.isValid(); tok = p.peek() {
		switch tok.Typ {
		case TokenSemicolon:
			p.discard()
			return
		case TokenCloseCurly, TokenOpenCurly,
			TokenIf, TokenWhile, TokenFor, TokenReturn, TokenBreak, TokenPrint,
			TokenVoid, TokenBool, TokenInt, TokenFloat, TokenChar:
			return
		}

		p.discard()
	}
}

func (p *Parser) declaration() (d Decl) {
	defer p.recoverDecl(p.consumed)

	typ := p.typeSpec()
	name := p.expect(TokenIdentifier)

	switch tok := p.peek(); tok.Typ {
	case TokenSemicolon:
		p.next()

		return &StaticVarDecl{decl: declAt(typ.Line), Type: typ, Name: name.Value}
	case TokenAssign:
		p.next()
		init := p.expression()
		p.expect(TokenSemicolon)

		return &StaticVarDecl{decl: declAt(typ.Line), Type: typ, Name: name.Value, Init: init}
	case TokenOpenBracket:
		p.next()
		size := p.expression()
		p.expect(TokenCloseBracket)
		p.expect(TokenSemicolon)

		return &StaticArrayDecl{decl: declAt(typ.Line), Type: typ, Name: name.Value, Size: size}
	case TokenOpenParentheses:
		return p.funcDecl(typ, name)
	default:
		p.syntaxError(tok)
	}

	return nil // Unreachable
}

func (p *Parser) typeSpec() *SimpleType {
	tok := p.peek()
	if !typeSpecs[tok.Typ] {
		p.syntaxError(tok)
	}

	p.next()

	return &SimpleType{Pos: Pos{tok.Line}, Name: tok.Value}
}

func (p *Parser) funcDecl(typ *SimpleType, name Token) *FuncDecl {
	p.expect(TokenOpenParentheses)
	params := p.params()
	p.expect(TokenCloseParentheses)

	return &FuncDecl{
		decl:       declAt(typ.Line),
		ReturnType: typ,
		Name:       name.Value,
		Params:     params,
		Body:       p.compoundStmt(),
	}
}

func (p *Parser) params() []*FuncParameter {
	if p.check(TokenCloseParentheses) {
		return []*FuncParameter{}
	}

	params := []*FuncParameter{}
	for {
		typ := p.typeSpec()
		if typ.Name == "void" && len(params) == 0 && p.check(TokenCloseParentheses) {
			return params
		}

		name := p.expect(TokenIdentifier)
		param := &FuncParameter{Pos: Pos{typ.Line}, Type: typ, Name: name.Value}

		if p.check(TokenOpenBracket) {
			p.next()
			p.expect(TokenCloseBracket)
			param.IsArray = true
		}

		params = append(params, param)

		if !p.check(TokenComma) {
			return params
		}

		p.next() // Skip the comma
	}
}

func (p *Parser) compoundStmt() *CompoundStmt {
	open := p.expect(TokenOpenCurly)

	c := &CompoundStmt{stmt: stmtAt(open.Line), Locals: []Stmt{}, Stmts: []Stmt{}}

	for typeSpecs[p.peek().Typ] {
		if d := p.localDecl(); d != nil {
			c.Locals = append(c.Locals, d)
		}
	}

	for tok := p.peek(); tok.isValid() && tok.Typ != TokenCloseCurly; tok = p.peek() {
		if s := p.statement(); s != nil {
			c.Stmts = append(c.Stmts, s)
		}
	}

	p.expect(TokenCloseCurly)

	return c
}

func (p *Parser) localDecl() (s Stmt) {
	defer p.recoverStmt(p.consumed)

	typ := p.typeSpec()
	name := p.expect(TokenIdentifier)

	switch tok := p.peek(); tok.Typ {
	case TokenSemicolon:
		p.next()

		return &LocalVarDecl{stmt: stmtAt(typ.Line), Type: typ, Name: name.Value}
	case TokenAssign:
		p.next()
		init := p.expression()
		p.expect(TokenSemicolon)

		return &LocalVarDecl{stmt: stmtAt(typ.Line), Type: typ, Name: name.Value, Init: init}
	case TokenOpenBracket:
		p.next()
		size := p.expression()
		p.expect(TokenCloseBracket)
		p.expect(TokenSemicolon)

		return &LocalArrayDecl{stmt: stmtAt(typ.Line), Type: typ, Name: name.Value, Size: size}
	default:
		p.syntaxError(tok)
	}

	return nil // Unreachable
}

func (p *Parser) statement() (s Stmt) {
	defer p.recoverStmt(p.consumed)

	switch tok := p.peek(); tok.Typ {
	case TokenOpenCurly:
		return p.compoundStmt()
	case TokenIf:
		return p.ifStmt()
	case TokenWhile:
		return p.whileStmt()
	case TokenFor:
		return p.forStmt()
	case TokenReturn:
		return p.returnStmt()
	case TokenBreak:
		p.next()
		p.expect(TokenSemicolon)

		return &BreakStmt{stmt: stmtAt(tok.Line)}
	case TokenPrint:
		return p.printStmt()
	case TokenSemicolon:
		p.next()

		return &NullStmt{stmt: stmtAt(tok.Line)}
	default:
		e := p.expression()
		p.expect(TokenSemicolon)

		return &ExprStmt{stmt: stmtAt(e.GetLine()), Expr: e}
	}
}

// ifStmt always takes a trailing else, which binds it to the innermost if.
func (p *Parser) ifStmt() *IfStmt {
	start := p.expect(TokenIf)
	p.expect(TokenOpenParentheses)
	cond := p.expression()
	p.expect(TokenCloseParentheses)

	s := &IfStmt{stmt: stmtAt(start.Line), Cond: cond, Then: p.statement()}

	if p.check(TokenElse) {
		p.next()
		s.Else = p.statement()
	}

	return s
}

func (p *Parser) whileStmt() *WhileStmt {
	start := p.expect(TokenWhile)
	p.expect(TokenOpenParentheses)
	cond := p.expression()
	p.expect(TokenCloseParentheses)

	return &WhileStmt{stmt: stmtAt(start.Line), Cond: cond, Body: p.statement()}
}

func (p *Parser) forStmt() *ForStmt {
	start := p.expect(TokenFor)
	p.expect(TokenOpenParentheses)
	init := p.args(TokenSemicolon)
	p.expect(TokenSemicolon)
	cond := p.args(TokenSemicolon)
	p.expect(TokenSemicolon)
	update := p.args(TokenCloseParentheses)
	p.expect(TokenCloseParentheses)

	return &ForStmt{
		stmt:   stmtAt(start.Line),
		Init:   init,
		Cond:   cond,
		Update: update,
		Body:   p.statement(),
	}
}

func (p *Parser) returnStmt() *ReturnStmt {
	start := p.expect(TokenReturn)
	s := &ReturnStmt{stmt: stmtAt(start.Line)}

	if !p.check(TokenSemicolon) {
		s.Value = p.expression()
	}

	p.expect(TokenSemicolon)

	return s
}

func (p *Parser) printStmt() *PrintStmt {
	start := p.expect(TokenPrint)
	p.expect(TokenOpenParentheses)
	args := p.args(TokenCloseParentheses)
	p.expect(TokenCloseParentheses)
	p.expect(TokenSemicolon)

	return &PrintStmt{stmt: stmtAt(start.Line), Args: args}
}

// args parses a possibly empty comma separated list ending before closer.
func (p *Parser) args(closer TokenType) []Expr {
	args := []Expr{}
	if p.check(closer) {
		return args
	}

	for {
		args = append(args, p.expression())

		if !p.check(TokenComma) {
			return args
		}

		p.next() // Skip the comma
	}
}

func (p *Parser) expression() Expr {
	return p.binary(precOr)
}

// binary is a precedence climber over the binary operators of
// precedenceTable. All of them are left associative.
func (p *Parser) binary(minPrec int) Expr {
	lhs := p.unary()

	for {
		tok := p.peek()

		op, ok := binaryOps[tok.Typ]
		if !ok || precedenceTable[tok.Typ] < minPrec {
			return lhs
		}

		p.next()

		rhs := p.binary(precedenceTable[tok.Typ] + 1)
		lhs = &BinaryExpr{
			expr:  exprAt(lhs.GetLine()),
			Op:    op,
			Left:  lhs,
			Right: rhs,
		}
	}
}

func (p *Parser) unary() Expr {
	tok := p.peek()

	if op, ok := prefixOps[tok.Typ]; ok {
		p.next()

		return &UnaryExpr{
			expr:    exprAt(tok.Line),
			Op:      op,
			Operand: p.unary(),
		}
	}

	return p.postfix(p.primary())
}

func (p *Parser) postfix(e Expr) Expr {
	for {
		switch p.peek().Typ {
		case TokenInc:
			p.next()
			e = &UnaryExpr{expr: exprAt(e.GetLine()), Op: UnaryIncrement, Operand: e, Postfix: true}
		case TokenDec:
			p.next()
			e = &UnaryExpr{expr: exprAt(e.GetLine()), Op: UnaryDecrement, Operand: e, Postfix: true}
		default:
			return e
		}
	}
}

func (p *Parser) primary() Expr {
	switch tok := p.peek(); tok.Typ {
	case TokenIdentifier:
		return p.identifier()
	case TokenOpenParentheses:
		p.next()
		e := p.expression()
		p.expect(TokenCloseParentheses)

		return e
	case TokenTrue, TokenFalse:
		p.next()

		return &BoolLit{expr: exprAt(tok.Line), Value: tok.Typ == TokenTrue}
	case TokenIntLit:
		p.next()

		v, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			p.errorf(tok.Line, "Integer literal out of range '%s'", tok.Value)
		}

		return &IntLit{expr: exprAt(tok.Line), Value: v}
	case TokenFloatLit:
		p.next()

		v, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			p.errorf(tok.Line, "Float literal out of range '%s'", tok.Value)
		}

		return &FloatLit{expr: exprAt(tok.Line), Value: v}
	case TokenCharLit:
		p.next()

		r, _ := utf8.DecodeRuneInString(tok.Value)

		return &CharLit{expr: exprAt(tok.Line), Value: r}
	case TokenStringLit:
		p.next()

		return &StringLit{expr: exprAt(tok.Line), Value: tok.Value}
	case TokenNew:
		p.next()
		typ := p.typeSpec()
		p.expect(TokenOpenBracket)
		size := p.expression()
		p.expect(TokenCloseBracket)

		return &NewArrayExpr{expr: exprAt(tok.Line), Type: typ, Size: size}
	default:
		p.syntaxError(tok)
	}

	return nil // Unreachable
}

// identifier parses everything that starts with a name. An assignment is only
// recognized when the target name (or name[index]) is directly followed by an
// assignment operator, so "a + b = 1" groups as "a + (b = 1)".
func (p *Parser) identifier() Expr {
	id := p.expect(TokenIdentifier)

	switch tok := p.peek(); tok.Typ {
	case TokenOpenParentheses:
		p.next()
		args := p.args(TokenCloseParentheses)
		p.expect(TokenCloseParentheses)

		return &CallExpr{expr: exprAt(id.Line), Name: id.Value, Args: args}
	case TokenOpenBracket:
		p.next()
		index := p.expression()
		p.expect(TokenCloseBracket)

		if op, ok := assignOps[p.peek().Typ]; ok {
			p.next()

			return &ArrayAssign{
				expr:  exprAt(id.Line),
				Op:    op,
				Name:  id.Value,
				Index: index,
				Value: p.assignmentValue(),
			}
		}

		return &ArrayExpr{expr: exprAt(id.Line), Name: id.Value, Index: index}
	case TokenDot:
		p.next()
		p.expect(TokenSize)

		return &ArraySizeExpr{expr: exprAt(id.Line), Name: id.Value}
	}

	if op, ok := assignOps[p.peek().Typ]; ok {
		p.next()

		return &VarAssign{
			expr:  exprAt(id.Line),
			Op:    op,
			Name:  id.Value,
			Value: p.assignmentValue(),
		}
	}

	return &VarExpr{expr: exprAt(id.Line), Name: id.Value}
}

// assignmentValue parses the right-hand side of an assignment operator.
// Assignment is right associative and binds looser than every binary
// operator, so the whole remaining expression belongs to it.
func (p *Parser) assignmentValue() Expr {
	return p.expression()
}
