package minic

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type BufferedTokenizerMocker struct {
	buf []Token
	pos int
}

func NewBufferedTokenizerMocker(toks []Token) *BufferedTokenizerMocker {
	return &BufferedTokenizerMocker{
		buf: toks,
		pos: 0,
	}
}

func (b *BufferedTokenizerMocker) Do() {
	return
}

func (b *BufferedTokenizerMocker) Get() Token {
	if len(b.buf) <= b.pos {
		return Token{Typ: TokenEOF}
	}

	tok := b.buf[b.pos]
	b.pos++

	return tok
}

func (b *BufferedTokenizerMocker) GetFilename() string {
	return "testing"
}

func parseSource(src string) (*Program, *Diagnostics) {
	diag := NewDiagnostics()
	prog := NewParser(NewLexerFromReader(strings.NewReader(src)), diag).Run()

	return prog, diag
}

// parseExpr parses src as the only statement of a function body.
func parseExpr(t *testing.T, src string) Expr {
	t.Helper()

	prog, diag := parseSource("void f() { " + src + "; }")
	require.False(t, diag.HasErrors(), "%s: %v", src, diag.Errors())
	require.NotNil(t, prog)

	body := prog.Decls[0].(*FuncDecl).Body
	require.Len(t, body.Stmts, 1)

	return body.Stmts[0].(*ExprStmt).Expr
}

// sexpr prints an expression fully parenthesized.
func sexpr(e Expr) string {
	switch e := e.(type) {
	case *BinaryExpr:
		return fmt.Sprintf("(%s %s %s)", e.Op, sexpr(e.Left), sexpr(e.Right))
	case *UnaryExpr:
		if e.Postfix {
			return fmt.Sprintf("(%s %s)", sexpr(e.Operand), e.Op)
		}

		return fmt.Sprintf("(%s %s)", e.Op, sexpr(e.Operand))
	case *VarAssign:
		return fmt.Sprintf("(%s %s %s)", e.Op, e.Name, sexpr(e.Value))
	case *ArrayAssign:
		return fmt.Sprintf("(%s %s[%s] %s)", e.Op, e.Name, sexpr(e.Index), sexpr(e.Value))
	case *VarExpr:
		return e.Name
	case *ArrayExpr:
		return fmt.Sprintf("%s[%s]", e.Name, sexpr(e.Index))
	case *ArraySizeExpr:
		return e.Name + ".size"
	case *CallExpr:
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			args[i] = sexpr(a)
		}

		return fmt.Sprintf("%s(%s)", e.Name, strings.Join(args, ", "))
	case *NewArrayExpr:
		return fmt.Sprintf("new %s[%s]", e.Type.Name, sexpr(e.Size))
	case *IntLit:
		return fmt.Sprint(e.Value)
	case *FloatLit:
		return fmt.Sprint(e.Value)
	case *BoolLit:
		return fmt.Sprint(e.Value)
	case *CharLit:
		return fmt.Sprintf("%q", e.Value)
	case *StringLit:
		return fmt.Sprintf("%q", e.Value)
	}

	return fmt.Sprintf("%T", e)
}

func TestParser(t *testing.T) {
	cases := []struct {
		data   []Token
		expect *Program
	}{
		{
			[]Token{
				{TokenInt, "int", 1},
				{TokenIdentifier, "main", 1},
				{TokenOpenParentheses, "(", 1},
				{TokenCloseParentheses, ")", 1},
				{TokenOpenCurly, "{", 1},
				{TokenCloseCurly, "}", 2},
			},
			&Program{
				Pos: Pos{1},
				Decls: []Decl{
					&FuncDecl{
						decl:       declAt(1),
						ReturnType: &SimpleType{Pos: Pos{1}, Name: "int"},
						Name:       "main",
						Params:     []*FuncParameter{},
						Body:       &CompoundStmt{stmt: stmtAt(1), Locals: []Stmt{}, Stmts: []Stmt{}},
					},
				},
			},
		},
		{
			[]Token{
				{TokenComment, "this is a comment", 1},
				{TokenFloat, "float", 2},
				{TokenIdentifier, "x", 2},
				{TokenAssign, "=", 2},
				{TokenFloatLit, "1.5", 2},
				{TokenSemicolon, ";", 2},
			},
			&Program{
				Pos: Pos{2},
				Decls: []Decl{
					&StaticVarDecl{
						decl: declAt(2),
						Type: &SimpleType{Pos: Pos{2}, Name: "float"},
						Name: "x",
						Init: &FloatLit{expr: exprAt(2), Value: 1.5},
					},
				},
			},
		},
		{
			[]Token{
				{TokenChar, "char", 1},
				{TokenIdentifier, "buf", 1},
				{TokenOpenBracket, "[", 1},
				{TokenIntLit, "16", 1},
				{TokenCloseBracket, "]", 1},
				{TokenSemicolon, ";", 1},
			},
			&Program{
				Pos: Pos{1},
				Decls: []Decl{
					&StaticArrayDecl{
						decl: declAt(1),
						Type: &SimpleType{Pos: Pos{1}, Name: "char"},
						Name: "buf",
						Size: &IntLit{expr: exprAt(1), Value: 16},
					},
				},
			},
		},
		{
			[]Token{
				{TokenVoid, "void", 1},
				{TokenIdentifier, "f", 1},
				{TokenOpenParentheses, "(", 1},
				{TokenInt, "int", 1},
				{TokenIdentifier, "a", 1},
				{TokenOpenBracket, "[", 1},
				{TokenCloseBracket, "]", 1},
				{TokenComma, ",", 1},
				{TokenBool, "bool", 1},
				{TokenIdentifier, "ok", 1},
				{TokenCloseParentheses, ")", 1},
				{TokenOpenCurly, "{", 1},
				{TokenReturn, "return", 2},
				{TokenSemicolon, ";", 2},
				{TokenCloseCurly, "}", 3},
			},
			&Program{
				Pos: Pos{1},
				Decls: []Decl{
					&FuncDecl{
						decl:       declAt(1),
						ReturnType: &SimpleType{Pos: Pos{1}, Name: "void"},
						Name:       "f",
						Params: []*FuncParameter{
							{Pos: Pos{1}, Type: &SimpleType{Pos: Pos{1}, Name: "int"}, Name: "a", IsArray: true},
							{Pos: Pos{1}, Type: &SimpleType{Pos: Pos{1}, Name: "bool"}, Name: "ok"},
						},
						Body: &CompoundStmt{
							stmt:   stmtAt(1),
							Locals: []Stmt{},
							Stmts:  []Stmt{&ReturnStmt{stmt: stmtAt(2)}},
						},
					},
				},
			},
		},
	}

	for _, c := range cases {
		diag := NewDiagnostics()
		p := NewParser(NewBufferedTokenizerMocker(c.data), diag)

		got := p.Run()

		assert.False(t, diag.HasErrors(), diag.Errors())
		assert.Equal(t, c.expect, got)
	}
}

func TestParserExpressions(t *testing.T) {
	cases := []struct {
		src    string
		expect string
	}{
		{"2 + 3 * 4", "(+ 2 (* 3 4))"},
		{"2 * 3 + 4", "(+ (* 2 3) 4)"},
		{"1 - 2 - 3", "(- (- 1 2) 3)"},
		{"a / b % c", "(% (/ a b) c)"},
		{"(1 + 2) * 3", "(* (+ 1 2) 3)"},
		{"a || b && c", "(|| a (&& b c))"},
		{"a && b || c", "(|| (&& a b) c)"},
		{"a < b == c > d", "(== (< a b) (> c d))"},
		{"a + 1 <= b - 1", "(<= (+ a 1) (- b 1))"},
		{"-a * b", "(* (- a) b)"},
		{"!a && b", "(&& (! a) b)"},
		{"- -x", "(- (- x))"},
		{"i++ + --j", "(+ (i ++) (-- j))"},
		{"a = b = 3", "(= a (= b 3))"},
		{"a = 1 + 2", "(= a (+ 1 2))"},
		{"a + b = 3", "(+ a (= b 3))"},
		{"x += y *= 2", "(+= x (*= y 2))"},
		{"arr[0] = 5", "(= arr[0] 5)"},
		{"arr[i] += 1", "(+= arr[i] 1)"},
		{"arr[i + 1] - arr[i]", "(- arr[(+ i 1)] arr[i])"},
		{"f(1, x + 2)", "f(1, (+ x 2))"},
		{"g()", "g()"},
		{"a.size * 2", "(* a.size 2)"},
		{"x = new int[10]", "(= x new int[10])"},
		{"c = 'z'", "(= c 'z')"},
		{"ok = true && !false", "(= ok (&& true (! false)))"},
	}

	for _, c := range cases {
		assert.Equal(t, c.expect, sexpr(parseExpr(t, c.src)), c.src)
	}
}

func TestParserDanglingElse(t *testing.T) {
	prog, diag := parseSource(`
void f() {
	if (a)
		if (b) x = 1;
		else x = 2;
}
`)
	require.False(t, diag.HasErrors(), diag.Errors())

	body := prog.Decls[0].(*FuncDecl).Body
	require.Len(t, body.Stmts, 1)

	outer := body.Stmts[0].(*IfStmt)
	assert.Nil(t, outer.Else)

	inner := outer.Then.(*IfStmt)
	require.NotNil(t, inner.Else)
	assert.Equal(t, "(= x 2)", sexpr(inner.Else.(*ExprStmt).Expr))

	prog, diag = parseSource(`
void f() {
	if (a) { if (b) x = 1; } else x = 2;
}
`)
	require.False(t, diag.HasErrors(), diag.Errors())

	outer = prog.Decls[0].(*FuncDecl).Body.Stmts[0].(*IfStmt)
	assert.NotNil(t, outer.Else)
	assert.Nil(t, outer.Then.(*CompoundStmt).Stmts[0].(*IfStmt).Else)
}

func TestParserStatements(t *testing.T) {
	prog, diag := parseSource(`
int total;
float scale = 2.5;
int data[8];

int sum(int a[], int n) {
	int i;
	int s = 0;
	for (i = 0; i < n; i++)
		s += a[i];
	return s;
}

void main(void) {
	bool done = false;
	while (!done) {
		print("loop", total);
		if (total > 10) break;
		total = total + 1;
		;
	}
	for (;;) break;
}
`)
	require.False(t, diag.HasErrors(), diag.Errors())
	require.Len(t, prog.Decls, 5)

	sum := prog.Decls[3].(*FuncDecl)
	assert.Equal(t, "sum", sum.Name)
	assert.Equal(t, 6, sum.GetLine())
	assert.Len(t, sum.Params, 2)
	assert.Len(t, sum.Body.Locals, 2)
	require.Len(t, sum.Body.Stmts, 2)

	loop := sum.Body.Stmts[0].(*ForStmt)
	assert.Equal(t, 9, loop.GetLine())
	assert.Equal(t, "(= i 0)", sexpr(loop.Init[0]))
	assert.Equal(t, "(< i n)", sexpr(loop.Cond[0]))
	assert.Equal(t, "(i ++)", sexpr(loop.Update[0]))
	assert.Equal(t, 10, loop.Body.GetLine())

	main := prog.Decls[4].(*FuncDecl)
	assert.Empty(t, main.Params)

	while := main.Body.Stmts[0].(*WhileStmt)
	block := while.Body.(*CompoundStmt)
	require.Len(t, block.Stmts, 4)
	assert.IsType(t, &PrintStmt{}, block.Stmts[0])
	assert.Len(t, block.Stmts[0].(*PrintStmt).Args, 2)
	assert.IsType(t, &BreakStmt{}, block.Stmts[1].(*IfStmt).Then)
	assert.IsType(t, &NullStmt{}, block.Stmts[3])

	forever := main.Body.Stmts[1].(*ForStmt)
	assert.Empty(t, forever.Init)
	assert.Empty(t, forever.Cond)
	assert.Empty(t, forever.Update)
}

func TestParserLines(t *testing.T) {
	prog, diag := parseSource(`// header

int g = 1;

int f(int a) {
	int x = a
		+ 2;
	return
		x;
}
`)
	require.False(t, diag.HasErrors(), diag.Errors())

	for _, n := range Flatten(prog) {
		assert.NotZero(t, n.Node.GetLine(), Repr(n.Node))
	}

	f := prog.Decls[1].(*FuncDecl)
	local := f.Body.Locals[0].(*LocalVarDecl)
	assert.Equal(t, 6, local.GetLine())
	assert.Equal(t, 6, local.Init.GetLine(), "binary expression takes the line of its left operand")
	assert.Equal(t, 7, local.Init.(*BinaryExpr).Right.GetLine())

	ret := f.Body.Stmts[0].(*ReturnStmt)
	assert.Equal(t, 8, ret.GetLine())
	assert.Equal(t, 9, ret.Value.GetLine())
}

func TestParserErrors(t *testing.T) {
	cases := []struct {
		src    string
		errors []string
		decls  int
	}{
		{
			"int x = ;",
			[]string{"1: Syntax error in input at token ';'"},
			0,
		},
		{
			"void f() { x = ; }\nvoid g() { y = 1; }",
			[]string{"1: Syntax error in input at token ';'"},
			2,
		},
		{
			"void f() {\n x = 1\n y = 2;\n z = 3;\n}",
			[]string{"3: Syntax error in input at token 'y'"},
			1,
		},
		{
			"void f() { x = 1; int y; }",
			[]string{"1: Syntax error in input at token 'int'"},
			1,
		},
		{
			"x = 1;\nint y;",
			[]string{"1: Syntax error in input at token 'x'"},
			1,
		},
		{
			"void f() {\n x = (1 + ;\n}\nvoid g() {\n y = );\n}",
			[]string{
				"2: Syntax error in input at token ';'",
				"5: Syntax error in input at token ')'",
			},
			2,
		},
		{
			"int x = ;\nint y = ;",
			[]string{
				"1: Syntax error in input at token ';'",
				"2: Syntax error in input at token ';'",
			},
			0,
		},
		{
			"void f() { for (i = 0; i < ; i++) x = 1; }",
			[]string{"1: Syntax error in input at token ';'"},
			1,
		},
		{
			"void f() { if (x) y = 1; else }",
			[]string{"1: Syntax error in input at token '}'"},
			1,
		},
		{
			"void f() { while (x) }\nint y;",
			[]string{"1: Syntax error in input at token '}'"},
			2,
		},
		{
			"void f() { x = 1;",
			[]string{"EOF: Syntax error. No more input."},
			0,
		},
		{
			"int x = 1 +",
			[]string{"EOF: Syntax error. No more input."},
			0,
		},
		{
			"",
			[]string{"EOF: Syntax error. No more input."},
			0,
		},
		{
			"int x = 1 @;",
			[]string{"1: Illegal character '@'"},
			1,
		},
		{
			"int x = 99999999999999999999;",
			[]string{"1: Integer literal out of range '99999999999999999999'"},
			0,
		},
	}

	for _, c := range cases {
		prog, diag := parseSource(c.src)

		var got []string
		for _, e := range diag.Errors() {
			got = append(got, e.Error())
		}

		assert.Equal(t, c.errors, got, c.src)

		if c.decls == 0 {
			assert.Nil(t, prog, c.src)
		} else if assert.NotNil(t, prog, c.src) {
			assert.Len(t, prog.Decls, c.decls, c.src)
		}
	}
}

func TestParserFilename(t *testing.T) {
	p := NewParser(NewBufferedTokenizerMocker(nil), NewDiagnostics())
	assert.Equal(t, "testing", p.GetFilename())
}
