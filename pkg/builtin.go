package minic

import (
	"math"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

func defineBuiltins(b *LLVMBuilder) {
	printf := b.mod.NewFunc("printf", types.I32, ir.NewParam("format", types.I8Ptr))
	printf.Sig.Variadic = true
	b.builtins.Set("printf", printf)

	putchar := b.mod.NewFunc("putchar", types.I32, ir.NewParam("c", types.I32))
	b.builtins.Set("putchar", putchar)

	snprintf := b.mod.NewFunc("snprintf", types.I32,
		ir.NewParam("buf", types.I8Ptr), ir.NewParam("size", types.I64), ir.NewParam("format", types.I8Ptr))
	snprintf.Sig.Variadic = true
	b.builtins.Set("snprintf", snprintf)

	b.builtins.Set("strtod", b.mod.NewFunc("strtod", types.Double,
		ir.NewParam("s", types.I8Ptr), ir.NewParam("end", types.NewPointer(types.I8Ptr))))
	b.builtins.Set("strchr", b.mod.NewFunc("strchr", types.I8Ptr,
		ir.NewParam("s", types.I8Ptr), ir.NewParam("c", types.I32)))
	b.builtins.Set("atoi", b.mod.NewFunc("atoi", types.I32, ir.NewParam("s", types.I8Ptr)))

	defineFormat(b, "._fmt_int", "%ld\n")
	defineFormat(b, "._fmt_float_g", "%g\n")
	defineFormat(b, "._fmt_float_e", "%.*e")
	defineFormat(b, "._fmt_float_f", "%.*f\n")
	defineFormat(b, "._fmt_str", "%s\n")

	definePrintFloat(b)
}

// definePrintFloat emits the float printer. It prints the shortest digits
// that read back as the same double, positionally when the decimal exponent
// is in [-4, 16) with at least one fractional digit, and in exponent form
// otherwise. Infinities and NaN go through %g.
func definePrintFloat(b *LLVMBuilder) {
	v := ir.NewParam("v", types.Double)
	f := b.mod.NewFunc("._print_float", types.Void, v)
	b.builtins.Set("._print_float", f)

	entry := f.NewBlock("entry")
	special := f.NewBlock("special")
	loop := f.NewBlock("loop")
	found := f.NewBlock("found")
	fixed := f.NewBlock("fixed")
	sci := f.NewBlock("sci")

	const bufSize = 32
	bufType := types.NewArray(bufSize, types.I8)
	zero := constant.NewInt(types.I32, 0)

	buf := entry.NewAlloca(bufType)
	prec := entry.NewAlloca(types.I32)
	entry.NewStore(zero, prec)
	str := entry.NewGetElementPtr(bufType, buf, zero, zero)

	notPosInf := entry.NewFCmp(enum.FPredONE, v, constant.NewFloat(types.Double, math.Inf(1)))
	notNegInf := entry.NewFCmp(enum.FPredONE, v, constant.NewFloat(types.Double, math.Inf(-1)))
	entry.NewCondBr(entry.NewAnd(notPosInf, notNegInf), loop, special)

	special.NewCall(b.builtin("printf"), b.builtin("._fmt_float_g"), v)
	special.NewRet(nil)

	// Grow the precision until the text reads back exactly. 17 significant
	// digits always do.
	p := loop.NewLoad(types.I32, prec)
	loop.NewCall(b.builtin("snprintf"), str, constant.NewInt(types.I64, bufSize), b.builtin("._fmt_float_e"), p, v)
	back := loop.NewCall(b.builtin("strtod"), str, constant.NewNull(types.NewPointer(types.I8Ptr)))
	exact := loop.NewFCmp(enum.FPredOEQ, back, v)
	next := loop.NewAdd(p, constant.NewInt(types.I32, 1))
	loop.NewStore(next, prec)
	last := loop.NewICmp(enum.IPredSGE, next, constant.NewInt(types.I32, 17))
	loop.NewCondBr(loop.NewOr(exact, last), found, loop)

	e := found.NewCall(b.builtin("strchr"), str, constant.NewInt(types.I32, 'e'))
	digits := found.NewGetElementPtr(types.I8, e, constant.NewInt(types.I32, 1))
	exp := found.NewCall(b.builtin("atoi"), digits)
	low := found.NewICmp(enum.IPredSGE, exp, constant.NewInt(types.I32, -4))
	high := found.NewICmp(enum.IPredSLT, exp, constant.NewInt(types.I32, 16))
	found.NewCondBr(found.NewAnd(low, high), fixed, sci)

	one := constant.NewInt(types.I32, 1)
	frac := fixed.NewSub(p, exp)
	frac1 := fixed.NewSelect(fixed.NewICmp(enum.IPredSLT, frac, one), one, frac)
	fixed.NewCall(b.builtin("printf"), b.builtin("._fmt_float_f"), frac1, v)
	fixed.NewRet(nil)

	sci.NewCall(b.builtin("printf"), b.builtin("._fmt_str"), str)
	sci.NewRet(nil)
}

func defineFormat(b *LLVMBuilder, name, format string) {
	data := constant.NewCharArrayFromString(format + "\x00")
	glob := b.mod.NewGlobalDef(name, data)
	glob.Immutable = true

	zero := constant.NewInt(types.I32, 0)
	addr := constant.NewGetElementPtr(types.NewArray(uint64(len(format)+1), types.I8), glob, zero, zero)

	b.builtins.Set(name, addr)
}

func (b *LLVMBuilder) builtin(name string) value.Value {
	v, _ := b.builtins.Get(name)
	return v
}

func (b *LLVMBuilder) print(op Opcode, v value.Value) {
	switch op {
	case OpPRINTI:
		b.block.NewCall(b.builtin("printf"), b.builtin("._fmt_int"), v)
	case OpPRINTF:
		b.block.NewCall(b.builtin("._print_float"), v)
	case OpPRINTB:
		c := b.block.NewTrunc(v, types.I32)
		b.block.NewCall(b.builtin("putchar"), c)
	}
}
