package minic

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

type InterpreterOptions struct {
	// Output receives PRINT* output.
	Output io.Writer

	// Trace receives the locals snapshot after every function and the
	// globals snapshot at the end. Nil disables tracing.
	Trace io.Writer

	// SharedRegisters keeps the register file across functions instead of
	// clearing it at every function entry.
	SharedRegisters bool
}

// Interpreter executes Code. It trusts the generator: every fault it reports
// is a broken instruction stream and aborts the run.
type Interpreter struct {
	opts InterpreterOptions
	out  *bufio.Writer

	registers map[Register]Value
	globals   map[Name]Value
	locals    map[Name]Value
}

type handler func(in *Interpreter, inst Instruction) error

var handlers [numOpcodes]handler

func init() {
	handlers = [numOpcodes]handler{
		OpMOVI: (*Interpreter).mov,
		OpMOVF: (*Interpreter).mov,
		OpMOVB: (*Interpreter).mov,

		OpADDI: intOp(func(a, b int64) int64 { return a + b }),
		OpADDF: floatOp(func(a, b float64) float64 { return a + b }),
		OpSUBI: intOp(func(a, b int64) int64 { return a - b }),
		OpSUBF: floatOp(func(a, b float64) float64 { return a - b }),
		OpMULI: intOp(func(a, b int64) int64 { return a * b }),
		OpMULF: floatOp(func(a, b float64) float64 { return a * b }),
		OpDIVI: intOp(floorDiv),
		OpDIVF: floatOp(func(a, b float64) float64 { return a / b }),
		OpREMI: intOp(floorMod),
		OpXOR:  (*Interpreter).xor,

		OpPRINTI: (*Interpreter).print,
		OpPRINTF: (*Interpreter).print,
		OpPRINTB: (*Interpreter).printByte,

		OpVARI: (*Interpreter).declareGlobal,
		OpVARF: (*Interpreter).declareGlobal,
		OpVARB: (*Interpreter).declareGlobal,

		OpALLOCI: (*Interpreter).alloc,
		OpALLOCF: (*Interpreter).alloc,
		OpALLOCB: (*Interpreter).alloc,

		OpLOADI: (*Interpreter).load,
		OpLOADF: (*Interpreter).load,
		OpLOADB: (*Interpreter).load,

		OpSTOREI: (*Interpreter).store,
		OpSTOREF: (*Interpreter).store,
		OpSTOREB: (*Interpreter).store,
	}
}

func NewInterpreter(opts InterpreterOptions) *Interpreter {
	if opts.Output == nil {
		opts.Output = io.Discard
	}

	return &Interpreter{
		opts:      opts,
		out:       bufio.NewWriter(opts.Output),
		registers: make(map[Register]Value),
		globals:   make(map[Name]Value),
		locals:    make(map[Name]Value),
	}
}

// Execute runs every function of code in order. Locals are reset at every
// function entry; globals live for the whole run.
func (in *Interpreter) Execute(ctx context.Context, code *Code) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "execute", "funcs", len(code.Funcs))
	defer func() {
		if ferr := in.out.Flush(); err == nil && ferr != nil {
			err = errors.Wrap(ferr, "flush output")
		}

		tr.Finish("err", err)
	}()

	for _, f := range code.Funcs {
		if err := ctx.Err(); err != nil {
			return err
		}

		in.locals = make(map[Name]Value)
		if !in.opts.SharedRegisters {
			in.registers = make(map[Register]Value)
		}

		for pc, inst := range f.Body {
			if err := in.Step(inst); err != nil {
				return errors.Wrap(err, "%v: %d: %v", f.Name, pc, inst)
			}
		}

		tlog.V("interp").Printw("function done", "func", f.Name, "instructions", len(f.Body), "locals", len(in.locals))

		if err := in.trace("locals", in.locals); err != nil {
			return err
		}
	}

	return in.trace("globals", in.globals)
}

// Step executes a single instruction in the current frame.
func (in *Interpreter) Step(inst Instruction) error {
	if err := inst.validate(); err != nil {
		return err
	}

	h := handlers[inst.Op]
	if h == nil {
		return &UnknownOpcodeError{Opcode: inst.Op.String()}
	}

	return h(in, inst)
}

// Globals returns a copy of the global variables.
func (in *Interpreter) Globals() map[Name]Value {
	return copyVars(in.globals)
}

// Locals returns a copy of the current frame.
func (in *Interpreter) Locals() map[Name]Value {
	return copyVars(in.locals)
}

func (in *Interpreter) Register(r Register) (Value, bool) {
	v, ok := in.registers[r]
	return v, ok
}

func copyVars(vars map[Name]Value) map[Name]Value {
	c := make(map[Name]Value, len(vars))
	for k, v := range vars {
		c[k] = v
	}

	return c
}

func (in *Interpreter) trace(label string, vars map[Name]Value) error {
	if in.opts.Trace == nil {
		return nil
	}

	// keep trace lines after the program output they follow
	if err := in.out.Flush(); err != nil {
		return errors.Wrap(err, "flush output")
	}

	_, err := fmt.Fprintf(in.opts.Trace, "%s: %s\n", label, formatVars(vars))
	if err != nil {
		return errors.Wrap(err, "write trace")
	}

	return nil
}

func formatVars(vars map[Name]Value) string {
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, string(k))
	}

	sort.Strings(names)

	var b strings.Builder
	b.WriteByte('{')

	for i, name := range names {
		if i != 0 {
			b.WriteString(", ")
		}

		fmt.Fprintf(&b, "%s: %v", name, vars[Name(name)])
	}

	b.WriteByte('}')

	return b.String()
}

func (in *Interpreter) reg(r Operand) (Value, error) {
	v, ok := in.registers[r.(Register)]
	if !ok {
		return Value{}, &UndefinedRegisterError{Register: r.(Register)}
	}

	return v, nil
}

func (in *Interpreter) regKind(op Opcode, r Operand, want Kind) (Value, error) {
	v, err := in.reg(r)
	if err != nil {
		return Value{}, err
	}

	if v.Kind != want {
		return Value{}, &TypeMismatchError{Op: op, Want: want, Got: v.Kind}
	}

	return v, nil
}

func (in *Interpreter) mov(inst Instruction) error {
	v := inst.Args[0].(Value)
	if v.Kind != inst.Op.Kind() {
		return &TypeMismatchError{Op: inst.Op, Want: inst.Op.Kind(), Got: v.Kind}
	}

	in.registers[inst.Args[1].(Register)] = v

	return nil
}

func intOp(f func(a, b int64) int64) handler {
	return func(in *Interpreter, inst Instruction) error {
		a, err := in.regKind(inst.Op, inst.Args[0], KindInt)
		if err != nil {
			return err
		}

		b, err := in.regKind(inst.Op, inst.Args[1], KindInt)
		if err != nil {
			return err
		}

		if b.Int == 0 && (inst.Op == OpDIVI || inst.Op == OpREMI) {
			return &DivisionByZeroError{Op: inst.Op}
		}

		in.registers[inst.Args[2].(Register)] = IntValue(f(a.Int, b.Int))

		return nil
	}
}

func floatOp(f func(a, b float64) float64) handler {
	return func(in *Interpreter, inst Instruction) error {
		a, err := in.regKind(inst.Op, inst.Args[0], KindFloat)
		if err != nil {
			return err
		}

		b, err := in.regKind(inst.Op, inst.Args[1], KindFloat)
		if err != nil {
			return err
		}

		if b.Float == 0 && inst.Op == OpDIVF {
			return &DivisionByZeroError{Op: inst.Op}
		}

		in.registers[inst.Args[2].(Register)] = FloatValue(f(a.Float, b.Float))

		return nil
	}
}

// floorDiv rounds toward negative infinity: -7 / 2 == -4.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}

	return q
}

// floorMod takes the sign of the divisor: -7 % 2 == 1.
func floorMod(a, b int64) int64 {
	r := a % b
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}

	return r
}

// xor is bitwise on ints and logical on bools; both operands must agree.
func (in *Interpreter) xor(inst Instruction) error {
	a, err := in.reg(inst.Args[0])
	if err != nil {
		return err
	}

	b, err := in.regKind(inst.Op, inst.Args[1], a.Kind)
	if err != nil {
		return err
	}

	dst := inst.Args[2].(Register)

	switch a.Kind {
	case KindInt:
		in.registers[dst] = IntValue(a.Int ^ b.Int)
	case KindBool:
		in.registers[dst] = BoolValue(a.Bool != b.Bool)
	default:
		return &TypeMismatchError{Op: inst.Op, Want: KindInt, Got: a.Kind}
	}

	return nil
}

func (in *Interpreter) print(inst Instruction) error {
	v, err := in.regKind(inst.Op, inst.Args[0], inst.Op.Kind())
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(in.out, v)

	return err
}

// printByte writes the character with the register's code point and flushes.
func (in *Interpreter) printByte(inst Instruction) error {
	v, err := in.regKind(inst.Op, inst.Args[0], KindInt)
	if err != nil {
		return err
	}

	if v.Int < 0 || v.Int > unicode.MaxRune || !utf8.ValidRune(rune(v.Int)) {
		return &InvalidCharacterError{Code: v.Int}
	}

	if _, err := in.out.WriteRune(rune(v.Int)); err != nil {
		return err
	}

	return in.out.Flush()
}

func (in *Interpreter) declareGlobal(inst Instruction) error {
	in.globals[inst.Args[0].(Name)] = ZeroValue(inst.Op.Kind())

	return nil
}

func (in *Interpreter) alloc(inst Instruction) error {
	in.locals[inst.Args[0].(Name)] = ZeroValue(inst.Op.Kind())

	return nil
}

// load reads a local if the frame has one by that name, else the global.
func (in *Interpreter) load(inst Instruction) error {
	name := inst.Args[0].(Name)

	v, ok := in.locals[name]
	if !ok {
		v, ok = in.globals[name]
	}

	if !ok {
		return &UndefinedNameError{Name: name}
	}

	if v.Kind != inst.Op.Kind() {
		return &TypeMismatchError{Op: inst.Op, Want: inst.Op.Kind(), Got: v.Kind}
	}

	in.registers[inst.Args[1].(Register)] = v

	return nil
}

// store writes the local if the frame has one by that name, else the global.
// A global that was never declared is created.
func (in *Interpreter) store(inst Instruction) error {
	v, err := in.regKind(inst.Op, inst.Args[0], inst.Op.Kind())
	if err != nil {
		return err
	}

	name := inst.Args[1].(Name)

	if _, ok := in.locals[name]; ok {
		in.locals[name] = v
	} else {
		in.globals[name] = v
	}

	return nil
}
