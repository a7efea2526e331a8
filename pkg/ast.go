package minic

// Node is implemented by every AST node. The set of implementations is closed:
// the unexported marker keeps other packages from adding node kinds.
type Node interface {
	GetLine() int
	node()
}

type Decl interface {
	Node
	declNode()
}

type Stmt interface {
	Node
	stmtNode()
}

type Expr interface {
	Node
	exprNode()
}

// Pos is the source line of a node's leftmost token.
type Pos struct {
	Line int
}

func (p Pos) GetLine() int { return p.Line }
func (Pos) node()          {}

type decl struct{ Pos }
type stmt struct{ Pos }
type expr struct{ Pos }

func (decl) declNode() {}
func (stmt) stmtNode() {}
func (expr) exprNode() {}

func declAt(line int) decl { return decl{Pos{line}} }
func stmtAt(line int) stmt { return stmt{Pos{line}} }
func exprAt(line int) expr { return expr{Pos{line}} }

type Program struct {
	Pos
	Decls []Decl
}

type SimpleType struct {
	Pos
	Name string
}

type StaticVarDecl struct {
	decl
	Type *SimpleType
	Name string
	Init Expr
}

type StaticArrayDecl struct {
	decl
	Type *SimpleType
	Name string
	Size Expr
}

type FuncDecl struct {
	decl
	ReturnType *SimpleType
	Name       string
	Params     []*FuncParameter
	Body       *CompoundStmt
}

type FuncParameter struct {
	Pos
	Type    *SimpleType
	Name    string
	IsArray bool
}

type CompoundStmt struct {
	stmt
	Locals []Stmt
	Stmts  []Stmt
}

type LocalVarDecl struct {
	stmt
	Type *SimpleType
	Name string
	Init Expr
}

type LocalArrayDecl struct {
	stmt
	Type *SimpleType
	Name string
	Size Expr
}

type ExprStmt struct {
	stmt
	Expr Expr
}

type NullStmt struct {
	stmt
}

type IfStmt struct {
	stmt
	Cond Expr
	Then Stmt
	Else Stmt
}

type WhileStmt struct {
	stmt
	Cond Expr
	Body Stmt
}

type ForStmt struct {
	stmt
	Init   []Expr
	Cond   []Expr
	Update []Expr
	Body   Stmt
}

type ReturnStmt struct {
	stmt
	Value Expr
}

type BreakStmt struct {
	stmt
}

type PrintStmt struct {
	stmt
	Args []Expr
}

type AssignOp string

const (
	AssignSet AssignOp = "="
	AssignAdd AssignOp = "+="
	AssignSub AssignOp = "-="
	AssignMul AssignOp = "*="
	AssignDiv AssignOp = "/="
	AssignMod AssignOp = "%="
)

// Binary returns the arithmetic operator of a compound assignment.
func (op AssignOp) Binary() (BinaryOp, bool) {
	switch op {
	case AssignAdd:
		return BinaryAddition, true
	case AssignSub:
		return BinarySubtraction, true
	case AssignMul:
		return BinaryMultiplication, true
	case AssignDiv:
		return BinaryDivision, true
	case AssignMod:
		return BinaryModulo, true
	}

	return "", false
}

type VarAssign struct {
	expr
	Op    AssignOp
	Name  string
	Value Expr
}

type ArrayAssign struct {
	expr
	Op    AssignOp
	Name  string
	Index Expr
	Value Expr
}

type BinaryOp string

const (
	BinaryOr             BinaryOp = "||"
	BinaryAnd            BinaryOp = "&&"
	BinaryEqual          BinaryOp = "=="
	BinaryNotEqual       BinaryOp = "!="
	BinaryLess           BinaryOp = "<"
	BinaryLessEqual      BinaryOp = "<="
	BinaryGreater        BinaryOp = ">"
	BinaryGreaterEqual   BinaryOp = ">="
	BinaryAddition       BinaryOp = "+"
	BinarySubtraction    BinaryOp = "-"
	BinaryMultiplication BinaryOp = "*"
	BinaryDivision       BinaryOp = "/"
	BinaryModulo         BinaryOp = "%"
)

type BinaryExpr struct {
	expr
	Op    BinaryOp
	Left  Expr
	Right Expr
}

type UnaryOp string

const (
	UnaryNot       UnaryOp = "!"
	UnaryNegative  UnaryOp = "-"
	UnaryPositive  UnaryOp = "+"
	UnaryIncrement UnaryOp = "++"
	UnaryDecrement UnaryOp = "--"
)

// UnaryExpr covers prefix operators and postfix ++/--.
type UnaryExpr struct {
	expr
	Op      UnaryOp
	Operand Expr
	Postfix bool
}

type VarExpr struct {
	expr
	Name string
}

type ArrayExpr struct {
	expr
	Name  string
	Index Expr
}

type CallExpr struct {
	expr
	Name string
	Args []Expr
}

type ArraySizeExpr struct {
	expr
	Name string
}

type BoolLit struct {
	expr
	Value bool
}

type IntLit struct {
	expr
	Value int64
}

type FloatLit struct {
	expr
	Value float64
}

type CharLit struct {
	expr
	Value rune
}

type StringLit struct {
	expr
	Value string
}

type NewArrayExpr struct {
	expr
	Type *SimpleType
	Size Expr
}
