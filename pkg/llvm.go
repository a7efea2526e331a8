package minic

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

type ValueLookup struct {
	vals map[string]value.Value
}

func NewValueLookup() *ValueLookup {
	return &ValueLookup{
		vals: make(map[string]value.Value),
	}
}

func (l *ValueLookup) Get(id string) (value.Value, bool) {
	val, ok := l.vals[id]
	return val, ok
}

func (l *ValueLookup) Set(id string, val value.Value) {
	l.vals[id] = val
}

// LLVMBuilder translates interpreter Code into an LLVM module: one void
// function per Code function and a main that calls them in order. Numbers
// print as the interpreter prints them. PRINTB writes a single byte through
// putchar.
type LLVMBuilder struct {
	mod   *ir.Module
	block *ir.Block

	regs     map[Register]value.Value
	globals  *ValueLookup
	locals   *ValueLookup
	builtins *ValueLookup
}

func NewLLVMBuilder() *LLVMBuilder {
	builder := &LLVMBuilder{
		mod:      ir.NewModule(),
		globals:  NewValueLookup(),
		builtins: NewValueLookup(),
	}

	defineBuiltins(builder)

	return builder
}

func llvmType(k Kind) types.Type {
	switch k {
	case KindFloat:
		return types.Double
	case KindBool:
		return types.I1
	default:
		return types.I64
	}
}

func llvmConst(v Value) constant.Constant {
	switch v.Kind {
	case KindFloat:
		return constant.NewFloat(types.Double, v.Float)
	case KindBool:
		return constant.NewBool(v.Bool)
	default:
		return constant.NewInt(types.I64, v.Int)
	}
}

// Lower builds the module for code.
func (b *LLVMBuilder) Lower(code *Code) (*ir.Module, error) {
	var funcs []*ir.Func

	for _, fn := range code.Funcs {
		f, err := b.function(fn)
		if err != nil {
			return nil, err
		}

		funcs = append(funcs, f)
	}

	main := b.mod.NewFunc("main", types.I32)
	entry := main.NewBlock("")

	for _, f := range funcs {
		entry.NewCall(f)
	}

	entry.NewRet(constant.NewInt(types.I32, 0))

	return b.mod, nil
}

func (b *LLVMBuilder) function(fn *Function) (*ir.Func, error) {
	f := b.mod.NewFunc("minic."+fn.Name, types.Void)
	b.block = f.NewBlock("")

	// registers and locals do not outlive their function
	b.regs = make(map[Register]value.Value)
	b.locals = NewValueLookup()

	for _, inst := range fn.Body {
		if err := inst.validate(); err != nil {
			return nil, err
		}

		if err := b.instruction(inst); err != nil {
			return nil, err
		}
	}

	b.block.NewRet(nil)

	return f, nil
}

func (b *LLVMBuilder) reg(r Operand) (value.Value, error) {
	v, ok := b.regs[r.(Register)]
	if !ok {
		return nil, &UndefinedRegisterError{Register: r.(Register)}
	}

	return v, nil
}

func (b *LLVMBuilder) regs2(inst Instruction) (value.Value, value.Value, error) {
	x, err := b.reg(inst.Args[0])
	if err != nil {
		return nil, nil, err
	}

	y, err := b.reg(inst.Args[1])
	if err != nil {
		return nil, nil, err
	}

	return x, y, nil
}

func (b *LLVMBuilder) global(name Name, k Kind) value.Value {
	if g, ok := b.globals.Get(string(name)); ok {
		return g
	}

	g := b.mod.NewGlobalDef(string(name), llvmConst(ZeroValue(k)))
	b.globals.Set(string(name), g)

	return g
}

// variable resolves a name the way the interpreter does: local first.
func (b *LLVMBuilder) variable(name Name, k Kind) value.Value {
	if v, ok := b.locals.Get(string(name)); ok {
		return v
	}

	return b.global(name, k)
}

func (b *LLVMBuilder) instruction(inst Instruction) error {
	k := inst.Op.Kind()

	switch inst.Op {
	case OpMOVI, OpMOVF, OpMOVB:
		b.regs[inst.Args[1].(Register)] = llvmConst(inst.Args[0].(Value))

		return nil
	case OpVARI, OpVARF, OpVARB:
		b.global(inst.Args[0].(Name), k)

		return nil
	case OpALLOCI, OpALLOCF, OpALLOCB:
		slot := b.block.NewAlloca(llvmType(k))
		b.block.NewStore(llvmConst(ZeroValue(k)), slot)
		b.locals.Set(string(inst.Args[0].(Name)), slot)

		return nil
	case OpLOADI, OpLOADF, OpLOADB:
		src := b.variable(inst.Args[0].(Name), k)
		b.regs[inst.Args[1].(Register)] = b.block.NewLoad(llvmType(k), src)

		return nil
	case OpSTOREI, OpSTOREF, OpSTOREB:
		v, err := b.reg(inst.Args[0])
		if err != nil {
			return err
		}

		b.block.NewStore(v, b.variable(inst.Args[1].(Name), k))

		return nil
	case OpPRINTI, OpPRINTF, OpPRINTB:
		v, err := b.reg(inst.Args[0])
		if err != nil {
			return err
		}

		b.print(inst.Op, v)

		return nil
	}

	x, y, err := b.regs2(inst)
	if err != nil {
		return err
	}

	var res value.Value

	switch inst.Op {
	case OpADDI:
		res = b.block.NewAdd(x, y)
	case OpADDF:
		res = b.block.NewFAdd(x, y)
	case OpSUBI:
		res = b.block.NewSub(x, y)
	case OpSUBF:
		res = b.block.NewFSub(x, y)
	case OpMULI:
		res = b.block.NewMul(x, y)
	case OpMULF:
		res = b.block.NewFMul(x, y)
	case OpDIVF:
		res = b.block.NewFDiv(x, y)
	case OpDIVI, OpREMI:
		res = b.floorDivMod(inst.Op, x, y)
	case OpXOR:
		res = b.block.NewXor(x, y)
	default:
		return &UnknownOpcodeError{Opcode: inst.Op.String()}
	}

	b.regs[inst.Args[2].(Register)] = res

	return nil
}

// floorDivMod corrects sdiv/srem, which truncate, to floor semantics: when
// the remainder is nonzero and its sign differs from the divisor the
// quotient is one less and the remainder gains the divisor.
func (b *LLVMBuilder) floorDivMod(op Opcode, x, y value.Value) value.Value {
	zero := constant.NewInt(types.I64, 0)

	q := b.block.NewSDiv(x, y)
	r := b.block.NewSRem(x, y)

	nonzero := b.block.NewICmp(enum.IPredNE, r, zero)
	signs := b.block.NewXor(r, y)
	differ := b.block.NewICmp(enum.IPredSLT, signs, zero)
	fix := b.block.NewAnd(nonzero, differ)

	if op == OpDIVI {
		return b.block.NewSub(q, b.block.NewZExt(fix, types.I64))
	}

	return b.block.NewAdd(r, b.block.NewSelect(fix, y, zero))
}
