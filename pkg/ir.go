package minic

import (
	"fmt"
)

// GlobalsFunc names the function body that declares and initializes globals.
// It is emitted first so every global exists before user functions run.
const GlobalsFunc = "$globals"

type SymbolTable struct {
	Entries map[string]string
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		Entries: make(map[string]string),
	}
}

func (t *SymbolTable) Add(name string, typ string) {
	t.Entries[name] = typ
}

func (t *SymbolTable) Get(name string) (string, bool) {
	typ, ok := t.Entries[name]
	return typ, ok
}

func (t *SymbolTable) Clone() *SymbolTable {
	c := NewSymbolTable()
	for name, typ := range t.Entries {
		c.Entries[name] = typ
	}

	return c
}

type UndefinedError struct {
	Line int
	Name string
}

func (e *UndefinedError) Error() string {
	return fmt.Sprintf("%d: undefined: %s", e.Line, e.Name)
}

type IncompatibleTypesError struct {
	Line  int
	Type1 string
	Type2 string
}

func (e *IncompatibleTypesError) Error() string {
	return fmt.Sprintf("%d: incompatible types: '%s' and '%s'", e.Line, e.Type1, e.Type2)
}

type UndefinedOperationError struct {
	Line int
	Type string
	Op   string
}

func (e *UndefinedOperationError) Error() string {
	return fmt.Sprintf("%d: undefined operation: '%s' has no operator '%s'", e.Line, e.Type, e.Op)
}

// UnsupportedError is returned for constructs that need branches, calls or
// memory, none of which the instruction set has.
type UnsupportedError struct {
	Line int
	What string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%d: not supported by the interpreter: %s", e.Line, e.What)
}

var (
	movOps   = [...]Opcode{KindInt: OpMOVI, KindFloat: OpMOVF, KindBool: OpMOVB}
	varOps   = [...]Opcode{KindInt: OpVARI, KindFloat: OpVARF, KindBool: OpVARB}
	allocOps = [...]Opcode{KindInt: OpALLOCI, KindFloat: OpALLOCF, KindBool: OpALLOCB}
	loadOps  = [...]Opcode{KindInt: OpLOADI, KindFloat: OpLOADF, KindBool: OpLOADB}
	storeOps = [...]Opcode{KindInt: OpSTOREI, KindFloat: OpSTOREF, KindBool: OpSTOREB}

	intOps = map[BinaryOp]Opcode{
		BinaryAddition:       OpADDI,
		BinarySubtraction:    OpSUBI,
		BinaryMultiplication: OpMULI,
		BinaryDivision:       OpDIVI,
		BinaryModulo:         OpREMI,
	}

	floatOps = map[BinaryOp]Opcode{
		BinaryAddition:       OpADDF,
		BinarySubtraction:    OpSUBF,
		BinaryMultiplication: OpMULF,
		BinaryDivision:       OpDIVF,
	}
)

// kindOf maps a MiniC scalar type to its value kind. char is an int.
func kindOf(typ string) (Kind, bool) {
	switch typ {
	case "int", "char":
		return KindInt, true
	case "float":
		return KindFloat, true
	case "bool":
		return KindBool, true
	}

	return 0, false
}

func isIntLike(typ string) bool {
	return typ == "int" || typ == "char"
}

// resultType is the type of a binary operation on t1 and t2.
func resultType(t1, t2 string) (string, bool) {
	switch {
	case t1 == t2:
		return t1, true
	case isIntLike(t1) && isIntLike(t2):
		return "int", true
	}

	return "", false
}

// Generator lowers the straight-line subset of MiniC to Code. Registers are
// numbered uniquely across the whole program.
//
// A function has a single frame, so a local declared in a nested block gets
// its own frame name (x.1, x.2, ...) when the plain name is already taken by
// an outer local or by a global the rest of the function may still read.
type Generator struct {
	code    *Code
	fn      *Function
	globals *SymbolTable
	locals  *SymbolTable
	nextReg Register

	names map[string]Name // visible locals to frame names
	taken map[Name]bool   // frame names allocated in fn
}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(prog *Program) (*Code, error) {
	g.code = &Code{}
	g.globals = NewSymbolTable()
	g.locals = NewSymbolTable()
	g.fn = &Function{Name: GlobalsFunc}

	for _, d := range prog.Decls {
		switch d := d.(type) {
		case *StaticVarDecl:
			if err := g.staticVar(d); err != nil {
				return nil, err
			}
		case *StaticArrayDecl:
			return nil, &UnsupportedError{Line: d.GetLine(), What: "array " + d.Name}
		}
	}

	if len(g.fn.Body) != 0 {
		g.code.Funcs = append(g.code.Funcs, g.fn)
	}

	for _, d := range prog.Decls {
		if f, ok := d.(*FuncDecl); ok {
			if err := g.function(f); err != nil {
				return nil, err
			}
		}
	}

	return g.code, nil
}

func (g *Generator) newReg() Register {
	g.nextReg++
	return g.nextReg
}

// lookup resolves a source name to the name used by LOAD and STORE.
func (g *Generator) lookup(line int, name string) (Name, string, Kind, error) {
	ref := Name(name)

	typ, ok := g.locals.Get(name)
	if ok {
		ref = g.names[name]
	} else {
		typ, ok = g.globals.Get(name)
	}

	if !ok {
		return "", "", 0, &UndefinedError{Line: line, Name: name}
	}

	k, _ := kindOf(typ)

	return ref, typ, k, nil
}

// frameName picks the frame name for a new local.
func (g *Generator) frameName(name string, nested bool) Name {
	ref := Name(name)

	_, global := g.globals.Get(name)
	for n := 1; g.taken[ref] || nested && global; n++ {
		ref = Name(fmt.Sprintf("%s.%d", name, n))
		global = false
	}

	g.taken[ref] = true

	return ref
}

func (g *Generator) staticVar(d *StaticVarDecl) error {
	k, ok := kindOf(d.Type.Name)
	if !ok {
		return &UnsupportedError{Line: d.GetLine(), What: d.Type.Name + " variable " + d.Name}
	}

	g.fn.Emit(varOps[k], Name(d.Name))
	g.globals.Add(d.Name, d.Type.Name)

	return g.initialize(d.GetLine(), Name(d.Name), d.Type.Name, d.Init)
}

func (g *Generator) localVar(line int, name, typ string, init Expr, nested bool) error {
	k, ok := kindOf(typ)
	if !ok {
		return &UnsupportedError{Line: line, What: typ + " variable " + name}
	}

	ref := g.frameName(name, nested)

	g.fn.Emit(allocOps[k], ref)
	g.locals.Add(name, typ)
	g.names[name] = ref

	return g.initialize(line, ref, typ, init)
}

func (g *Generator) initialize(line int, name Name, typ string, init Expr) error {
	if init == nil {
		return nil
	}

	r, t, err := g.expr(init)
	if err != nil {
		return err
	}

	if _, ok := resultType(typ, t); !ok {
		return &IncompatibleTypesError{Line: line, Type1: typ, Type2: t}
	}

	k, _ := kindOf(typ)
	g.fn.Emit(storeOps[k], r, name)

	return nil
}

func (g *Generator) function(f *FuncDecl) error {
	g.fn = &Function{Name: f.Name}
	g.locals = NewSymbolTable()
	g.names = make(map[string]Name)
	g.taken = make(map[Name]bool)

	for _, p := range f.Params {
		if p.IsArray {
			return &UnsupportedError{Line: p.GetLine(), What: "array parameter " + p.Name}
		}

		if err := g.localVar(p.GetLine(), p.Name, p.Type.Name, nil, false); err != nil {
			return err
		}
	}

	if err := g.block(f.Body, true); err != nil {
		return err
	}

	g.code.Funcs = append(g.code.Funcs, g.fn)

	return nil
}

// block lowers a compound statement. Locals of a nested block go out of
// scope when it ends. A return is only accepted as the last statement of the
// function body.
func (g *Generator) block(c *CompoundStmt, top bool) error {
	if !top {
		locals, names := g.locals, g.names
		defer func() { g.locals, g.names = locals, names }()

		g.locals = locals.Clone()
		g.names = make(map[string]Name, len(names))
		for name, ref := range names {
			g.names[name] = ref
		}
	}

	for _, s := range c.Locals {
		switch d := s.(type) {
		case *LocalVarDecl:
			if err := g.localVar(d.GetLine(), d.Name, d.Type.Name, d.Init, !top); err != nil {
				return err
			}
		case *LocalArrayDecl:
			return &UnsupportedError{Line: d.GetLine(), What: "array " + d.Name}
		}
	}

	for i, s := range c.Stmts {
		ret, ok := s.(*ReturnStmt)
		if !ok {
			if err := g.statement(s); err != nil {
				return err
			}

			continue
		}

		if !top || i != len(c.Stmts)-1 {
			return &UnsupportedError{Line: ret.GetLine(), What: "return before the end of a function"}
		}

		if ret.Value != nil {
			if _, _, err := g.expr(ret.Value); err != nil {
				return err
			}
		}
	}

	return nil
}

func (g *Generator) statement(s Stmt) error {
	switch s := s.(type) {
	case *ExprStmt:
		_, _, err := g.expr(s.Expr)
		return err
	case *NullStmt:
		return nil
	case *CompoundStmt:
		return g.block(s, false)
	case *PrintStmt:
		return g.print(s)
	default:
		kind, _ := describe(s)
		return &UnsupportedError{Line: s.GetLine(), What: kind}
	}
}

func (g *Generator) print(s *PrintStmt) error {
	for _, arg := range s.Args {
		if str, ok := arg.(*StringLit); ok {
			for _, c := range str.Value {
				r := g.newReg()
				g.fn.Emit(OpMOVI, IntValue(int64(c)), r)
				g.fn.Emit(OpPRINTB, r)
			}

			continue
		}

		r, t, err := g.expr(arg)
		if err != nil {
			return err
		}

		switch t {
		case "int":
			g.fn.Emit(OpPRINTI, r)
		case "float":
			g.fn.Emit(OpPRINTF, r)
		case "char":
			g.fn.Emit(OpPRINTB, r)
		default:
			return &UndefinedOperationError{Line: arg.GetLine(), Type: t, Op: "print"}
		}
	}

	return nil
}

// expr emits the instructions computing e and returns the register holding
// the result and its MiniC type.
func (g *Generator) expr(e Expr) (Register, string, error) {
	switch e := e.(type) {
	case *IntLit:
		return g.constant(IntValue(e.Value), "int")
	case *FloatLit:
		return g.constant(FloatValue(e.Value), "float")
	case *BoolLit:
		return g.constant(BoolValue(e.Value), "bool")
	case *CharLit:
		return g.constant(IntValue(int64(e.Value)), "char")
	case *VarExpr:
		ref, typ, k, err := g.lookup(e.GetLine(), e.Name)
		if err != nil {
			return 0, "", err
		}

		r := g.newReg()
		g.fn.Emit(loadOps[k], ref, r)

		return r, typ, nil
	case *BinaryExpr:
		return g.binary(e)
	case *UnaryExpr:
		return g.unary(e)
	case *VarAssign:
		return g.assign(e)
	default:
		kind, _ := describe(e)
		return 0, "", &UnsupportedError{Line: e.GetLine(), What: kind}
	}
}

func (g *Generator) constant(v Value, typ string) (Register, string, error) {
	r := g.newReg()
	g.fn.Emit(movOps[v.Kind], v, r)

	return r, typ, nil
}

func (g *Generator) binary(e *BinaryExpr) (Register, string, error) {
	l, lt, err := g.expr(e.Left)
	if err != nil {
		return 0, "", err
	}

	r, rt, err := g.expr(e.Right)
	if err != nil {
		return 0, "", err
	}

	typ, ok := resultType(lt, rt)
	if !ok {
		return 0, "", &IncompatibleTypesError{Line: e.GetLine(), Type1: lt, Type2: rt}
	}

	return g.arith(e.GetLine(), e.Op, typ, l, r)
}

func (g *Generator) arith(line int, op BinaryOp, typ string, l, r Register) (Register, string, error) {
	var opc Opcode
	var ok bool

	switch k, _ := kindOf(typ); k {
	case KindInt:
		opc, ok = intOps[op]
	case KindFloat:
		opc, ok = floatOps[op]
	}

	if !ok {
		if _, arithmetic := intOps[op]; !arithmetic {
			return 0, "", &UnsupportedError{Line: line, What: "operator " + string(op)}
		}

		return 0, "", &UndefinedOperationError{Line: line, Type: typ, Op: string(op)}
	}

	dst := g.newReg()
	g.fn.Emit(opc, l, r, dst)

	return dst, typ, nil
}

func (g *Generator) unary(e *UnaryExpr) (Register, string, error) {
	if e.Op == UnaryIncrement || e.Op == UnaryDecrement {
		return g.step(e)
	}

	v, typ, err := g.expr(e.Operand)
	if err != nil {
		return 0, "", err
	}

	k, _ := kindOf(typ)

	switch {
	case e.Op == UnaryNot && k == KindBool:
		one, _, _ := g.constant(BoolValue(true), "bool")
		dst := g.newReg()
		g.fn.Emit(OpXOR, v, one, dst)

		return dst, typ, nil
	case e.Op == UnaryPositive && k != KindBool:
		return v, typ, nil
	case e.Op == UnaryNegative && k != KindBool:
		zero, _, _ := g.constant(ZeroValue(k), typ)
		return g.arith(e.GetLine(), BinarySubtraction, typ, zero, v)
	}

	return 0, "", &UndefinedOperationError{Line: e.GetLine(), Type: typ, Op: string(e.Op)}
}

// step lowers ++ and --. The prefix form yields the new value, the postfix
// form the old one.
func (g *Generator) step(e *UnaryExpr) (Register, string, error) {
	v, ok := e.Operand.(*VarExpr)
	if !ok {
		return 0, "", &UnsupportedError{Line: e.GetLine(), What: string(e.Op) + " on a non-variable"}
	}

	ref, _, _, err := g.lookup(v.GetLine(), v.Name)
	if err != nil {
		return 0, "", err
	}

	old, typ, err := g.expr(v)
	if err != nil {
		return 0, "", err
	}

	k, _ := kindOf(typ)
	if k == KindBool {
		return 0, "", &UndefinedOperationError{Line: e.GetLine(), Type: typ, Op: string(e.Op)}
	}

	one := IntValue(1)
	if k == KindFloat {
		one = FloatValue(1)
	}

	r, _, _ := g.constant(one, typ)

	op := BinaryAddition
	if e.Op == UnaryDecrement {
		op = BinarySubtraction
	}

	updated, _, err := g.arith(e.GetLine(), op, typ, old, r)
	if err != nil {
		return 0, "", err
	}

	g.fn.Emit(storeOps[k], updated, ref)

	if e.Postfix {
		return old, typ, nil
	}

	return updated, typ, nil
}

func (g *Generator) assign(e *VarAssign) (Register, string, error) {
	ref, typ, k, err := g.lookup(e.GetLine(), e.Name)
	if err != nil {
		return 0, "", err
	}

	v, vt, err := g.expr(e.Value)
	if err != nil {
		return 0, "", err
	}

	if _, ok := resultType(typ, vt); !ok {
		return 0, "", &IncompatibleTypesError{Line: e.GetLine(), Type1: typ, Type2: vt}
	}

	if op, compound := e.Op.Binary(); compound {
		cur := g.newReg()
		g.fn.Emit(loadOps[k], ref, cur)

		v, _, err = g.arith(e.GetLine(), op, typ, cur, v)
		if err != nil {
			return 0, "", err
		}
	}

	g.fn.Emit(storeOps[k], v, ref)

	return v, typ, nil
}
