package minic

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"
)

type child struct {
	Field string
	Node  Node
}

type childList []child

type attr struct {
	Key   string
	Value interface{}
}

func (c *childList) add(field string, n Node) {
	if n != nil {
		*c = append(*c, child{field, n})
	}
}

func (c *childList) addStmts(field string, list []Stmt) {
	for _, n := range list {
		c.add(field, n)
	}
}

func (c *childList) addExprs(field string, list []Expr) {
	for _, n := range list {
		c.add(field, n)
	}
}

// children lists the direct subtrees of n in source order.
func children(n Node) childList {
	var c childList

	switch n := n.(type) {
	case *Program:
		for _, d := range n.Decls {
			c.add("decls", d)
		}
	case *StaticVarDecl:
		c.add("type", n.Type)
		c.add("init", n.Init)
	case *StaticArrayDecl:
		c.add("type", n.Type)
		c.add("size", n.Size)
	case *FuncDecl:
		c.add("return_type", n.ReturnType)
		for _, param := range n.Params {
			c.add("params", param)
		}
		c.add("body", n.Body)
	case *FuncParameter:
		c.add("type", n.Type)
	case *CompoundStmt:
		c.addStmts("locals", n.Locals)
		c.addStmts("stmts", n.Stmts)
	case *LocalVarDecl:
		c.add("type", n.Type)
		c.add("init", n.Init)
	case *LocalArrayDecl:
		c.add("type", n.Type)
		c.add("size", n.Size)
	case *ExprStmt:
		c.add("expr", n.Expr)
	case *IfStmt:
		c.add("cond", n.Cond)
		c.add("then", n.Then)
		c.add("else", n.Else)
	case *WhileStmt:
		c.add("cond", n.Cond)
		c.add("body", n.Body)
	case *ForStmt:
		c.addExprs("init", n.Init)
		c.addExprs("cond", n.Cond)
		c.addExprs("update", n.Update)
		c.add("body", n.Body)
	case *ReturnStmt:
		c.add("value", n.Value)
	case *PrintStmt:
		c.addExprs("args", n.Args)
	case *VarAssign:
		c.add("value", n.Value)
	case *ArrayAssign:
		c.add("index", n.Index)
		c.add("value", n.Value)
	case *BinaryExpr:
		c.add("left", n.Left)
		c.add("right", n.Right)
	case *UnaryExpr:
		c.add("operand", n.Operand)
	case *ArrayExpr:
		c.add("index", n.Index)
	case *CallExpr:
		c.addExprs("args", n.Args)
	case *NewArrayExpr:
		c.add("type", n.Type)
		c.add("size", n.Size)
	}

	return c
}

// describe returns the node kind and its scalar fields.
func describe(n Node) (string, []attr) {
	switch n := n.(type) {
	case *Program:
		return "Program", nil
	case *SimpleType:
		return "SimpleType", []attr{{"name", n.Name}}
	case *StaticVarDecl:
		return "StaticVarDecl", []attr{{"name", n.Name}}
	case *StaticArrayDecl:
		return "StaticArrayDecl", []attr{{"name", n.Name}}
	case *FuncDecl:
		return "FuncDecl", []attr{{"name", n.Name}}
	case *FuncParameter:
		return "FuncParameter", []attr{{"name", n.Name}, {"array", n.IsArray}}
	case *CompoundStmt:
		return "CompoundStmt", nil
	case *LocalVarDecl:
		return "LocalVarDecl", []attr{{"name", n.Name}}
	case *LocalArrayDecl:
		return "LocalArrayDecl", []attr{{"name", n.Name}}
	case *ExprStmt:
		return "ExprStmt", nil
	case *NullStmt:
		return "NullStmt", nil
	case *IfStmt:
		return "IfStmt", nil
	case *WhileStmt:
		return "WhileStmt", nil
	case *ForStmt:
		return "ForStmt", nil
	case *ReturnStmt:
		return "ReturnStmt", nil
	case *BreakStmt:
		return "BreakStmt", nil
	case *PrintStmt:
		return "PrintStmt", nil
	case *VarAssign:
		return "VarAssign", []attr{{"op", string(n.Op)}, {"name", n.Name}}
	case *ArrayAssign:
		return "ArrayAssign", []attr{{"op", string(n.Op)}, {"name", n.Name}}
	case *BinaryExpr:
		return "BinaryExpr", []attr{{"op", string(n.Op)}}
	case *UnaryExpr:
		return "UnaryExpr", []attr{{"op", string(n.Op)}, {"postfix", n.Postfix}}
	case *VarExpr:
		return "VarExpr", []attr{{"name", n.Name}}
	case *ArrayExpr:
		return "ArrayExpr", []attr{{"name", n.Name}}
	case *CallExpr:
		return "CallExpr", []attr{{"name", n.Name}}
	case *ArraySizeExpr:
		return "ArraySizeExpr", []attr{{"name", n.Name}}
	case *BoolLit:
		return "BoolLit", []attr{{"value", n.Value}}
	case *IntLit:
		return "IntLit", []attr{{"value", n.Value}}
	case *FloatLit:
		return "FloatLit", []attr{{"value", n.Value}}
	case *CharLit:
		return "CharLit", []attr{{"value", string(n.Value)}}
	case *StringLit:
		return "StringLit", []attr{{"value", n.Value}}
	case *NewArrayExpr:
		return "NewArrayExpr", nil
	}

	return fmt.Sprintf("%T", n), nil
}

// Repr renders a single node without its subtrees, e.g. BinaryExpr(op="+").
func Repr(n Node) string {
	kind, attrs := describe(n)
	if len(attrs) == 0 {
		return kind
	}

	var b strings.Builder
	b.WriteString(kind)
	b.WriteByte('(')

	for i, a := range attrs {
		if i != 0 {
			b.WriteString(", ")
		}

		b.WriteString(a.Key)
		b.WriteByte('=')

		switch v := a.Value.(type) {
		case string:
			b.WriteString(strconv.Quote(v))
		default:
			fmt.Fprintf(&b, "%v", v)
		}
	}

	b.WriteByte(')')

	return b.String()
}

type FlatNode struct {
	Depth int
	Node  Node
}

// Flatten lists the tree in pre-order with nesting depth.
func Flatten(n Node) []FlatNode {
	var out []FlatNode

	var walk func(n Node, depth int)
	walk = func(n Node, depth int) {
		out = append(out, FlatNode{depth, n})

		for _, c := range children(n) {
			walk(c.Node, depth+1)
		}
	}

	if n != nil {
		walk(n, 0)
	}

	return out
}

// Dump writes one "<line>: <indent><repr>" line per node.
func Dump(w io.Writer, n Node) error {
	for _, f := range Flatten(n) {
		_, err := fmt.Fprintf(w, "%d: %s%s\n", f.Node.GetLine(), strings.Repeat(" ", 4*f.Depth), Repr(f.Node))
		if err != nil {
			return err
		}
	}

	return nil
}

type astDoc struct {
	Node     string                 `yaml:"node"`
	Field    string                 `yaml:"field,omitempty"`
	Line     int                    `yaml:"line"`
	Attrs    map[string]interface{} `yaml:"attrs,omitempty"`
	Children []*astDoc              `yaml:"children,omitempty"`
}

func newASTDoc(field string, n Node) *astDoc {
	kind, attrs := describe(n)

	doc := &astDoc{
		Node:  kind,
		Field: field,
		Line:  n.GetLine(),
	}

	if len(attrs) != 0 {
		doc.Attrs = make(map[string]interface{}, len(attrs))
		for _, a := range attrs {
			doc.Attrs[a.Key] = a.Value
		}
	}

	for _, c := range children(n) {
		doc.Children = append(doc.Children, newASTDoc(c.Field, c.Node))
	}

	return doc
}

func MarshalAST(n Node) ([]byte, error) {
	if n == nil {
		return nil, errors.New("empty tree")
	}

	data, err := yaml.Marshal(newASTDoc("", n))
	if err != nil {
		return nil, errors.Wrap(err, "marshal ast")
	}

	return data, nil
}

func WriteASTFile(path string, n Node) error {
	data, err := MarshalAST(n)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "write %v", path)
	}

	return nil
}
