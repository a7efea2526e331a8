package minic

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runText(t *testing.T, src string, opts InterpreterOptions) (string, *Interpreter, error) {
	t.Helper()

	code, err := ParseCode(strings.NewReader(src))
	require.NoError(t, err)

	var out bytes.Buffer
	opts.Output = &out

	in := NewInterpreter(opts)
	err = in.Execute(context.Background(), code)

	return out.String(), in, err
}

func TestInterpreterOutput(t *testing.T) {
	cases := []struct {
		name   string
		src    string
		expect string
	}{
		{
			"add",
			`
func main
    MOVI 3 R1
    MOVI 4 R2
    ADDI R1 R2 R3
    PRINTI R3
`,
			"7\n",
		},
		{
			"int arithmetic",
			`
func main
    MOVI 10 R1
    MOVI 4 R2
    SUBI R1 R2 R3
    PRINTI R3
    MULI R1 R2 R4
    PRINTI R4
    DIVI R1 R2 R5
    PRINTI R5
    REMI R1 R2 R6
    PRINTI R6
`,
			"6\n40\n2\n2\n",
		},
		{
			"floor division",
			`
func main
    MOVI -7 R1
    MOVI 2 R2
    DIVI R1 R2 R3
    PRINTI R3
    REMI R1 R2 R4
    PRINTI R4
    MOVI 7 R5
    MOVI -2 R6
    DIVI R5 R6 R7
    PRINTI R7
    REMI R5 R6 R8
    PRINTI R8
`,
			"-4\n1\n-4\n-1\n",
		},
		{
			"float arithmetic",
			`
func main
    MOVF 1.5 R1
    MOVF 2.0 R2
    MULF R1 R2 R3
    PRINTF R3
    ADDF R1 R2 R4
    PRINTF R4
    SUBF R1 R2 R5
    PRINTF R5
    MOVF 1.0 R6
    MOVF 3.0 R7
    DIVF R6 R7 R8
    PRINTF R8
`,
			"3.0\n3.5\n-0.5\n0.3333333333333333\n",
		},
		{
			"xor",
			`
func main
    MOVI 6 R1
    MOVI 3 R2
    XOR R1 R2 R3
    PRINTI R3
`,
			"5\n",
		},
		{
			"print byte",
			`
func main
    MOVI 72 R1
    PRINTB R1
    MOVI 105 R1
    PRINTB R1
    MOVI 10 R1
    PRINTB R1
`,
			"Hi\n",
		},
		{
			"globals and locals",
			`
func $globals
    VARI x
    MOVI 10 R1
    STOREI R1 x
func f
    ALLOCI x
    MOVI 5 R1
    STOREI R1 x
    LOADI x R2
    PRINTI R2
func g
    LOADI x R1
    PRINTI R1
`,
			"5\n10\n",
		},
		{
			"zero values",
			`
func main
    VARF f
    ALLOCB b
    LOADF f R1
    PRINTF R1
    LOADB b R2
`,
			"0.0\n",
		},
	}

	for _, c := range cases {
		out, _, err := runText(t, c.src, InterpreterOptions{})
		if assert.NoError(t, err, c.name) {
			assert.Equal(t, c.expect, out, c.name)
		}
	}
}

func TestInterpreterBoolXor(t *testing.T) {
	in := NewInterpreter(InterpreterOptions{})

	for _, inst := range []Instruction{
		NewInstruction(OpMOVB, BoolValue(true), Register(1)),
		NewInstruction(OpMOVB, BoolValue(true), Register(2)),
		NewInstruction(OpXOR, Register(1), Register(2), Register(3)),
		NewInstruction(OpMOVB, BoolValue(false), Register(4)),
		NewInstruction(OpXOR, Register(1), Register(4), Register(5)),
	} {
		require.NoError(t, in.Step(inst), inst.String())
	}

	v, ok := in.Register(3)
	require.True(t, ok)
	assert.Equal(t, BoolValue(false), v)

	v, ok = in.Register(5)
	require.True(t, ok)
	assert.Equal(t, BoolValue(true), v)

	err := in.Step(NewInstruction(OpXOR, Register(1), Register(99), Register(6)))
	assert.ErrorAs(t, err, new(*UndefinedRegisterError))
}

func TestInterpreterScoping(t *testing.T) {
	_, in, err := runText(t, `
func $globals
    VARI x
func f
    ALLOCI x
    MOVI 5 R1
    STOREI R1 x
    MOVI 7 R2
    STOREI R2 y
`, InterpreterOptions{})
	require.NoError(t, err)

	// The local shadowed the global and a store to an unknown name made a global.
	assert.Equal(t, map[Name]Value{"x": IntValue(0), "y": IntValue(7)}, in.Globals())
	assert.Equal(t, map[Name]Value{"x": IntValue(5)}, in.Locals())
}

func TestInterpreterLocalsReset(t *testing.T) {
	_, _, err := runText(t, `
func f
    ALLOCI x
func g
    LOADI x R1
`, InterpreterOptions{})

	var undef *UndefinedNameError
	require.ErrorAs(t, err, &undef)
	assert.Equal(t, Name("x"), undef.Name)
}

func TestInterpreterRegisters(t *testing.T) {
	src := `
func f
    MOVI 1 R1
func g
    PRINTI R1
`

	_, _, err := runText(t, src, InterpreterOptions{})
	assert.ErrorAs(t, err, new(*UndefinedRegisterError))

	out, _, err := runText(t, src, InterpreterOptions{SharedRegisters: true})
	assert.NoError(t, err)
	assert.Equal(t, "1\n", out)
}

func TestInterpreterTrace(t *testing.T) {
	code, err := ParseCode(strings.NewReader(`
func $globals
    VARI x
    MOVI 10 R1
    STOREI R1 x
    VARF scale
func f
    ALLOCI x
    MOVI 5 R1
    STOREI R1 x
    LOADI x R2
    PRINTI R2
    ALLOCB flag
func g
    LOADI x R1
    PRINTI R1
`))
	require.NoError(t, err)

	var out bytes.Buffer

	in := NewInterpreter(InterpreterOptions{Output: &out, Trace: &out})
	require.NoError(t, in.Execute(context.Background(), code))

	assert.Equal(t, `locals: {}
5
locals: {flag: false, x: 5}
10
locals: {}
globals: {scale: 0.0, x: 10}
`, out.String())
}

func TestInterpreterFaults(t *testing.T) {
	cases := []struct {
		name   string
		src    string
		target interface{}
	}{
		{"undefined name", "func main\n    LOADI nope R1\n", new(*UndefinedNameError)},
		{"undefined register", "func main\n    PRINTI R9\n", new(*UndefinedRegisterError)},
		{
			"mixed operands",
			"func main\n    MOVF 1.0 R1\n    MOVI 1 R2\n    ADDI R1 R2 R3\n",
			new(*TypeMismatchError),
		},
		{"print kind", "func main\n    MOVF 1.0 R1\n    PRINTI R1\n", new(*TypeMismatchError)},
		{"load kind", "func main\n    VARI x\n    LOADF x R1\n", new(*TypeMismatchError)},
		{"store kind", "func main\n    VARI x\n    MOVF 1.0 R1\n    STOREI R1 x\n", new(*TypeMismatchError)},
		{"xor kinds", "func main\n    MOVI 1 R1\n    MOVB true R2\n    XOR R1 R2 R3\n", new(*TypeMismatchError)},
		{"xor floats", "func main\n    MOVF 1.0 R1\n    MOVF 1.0 R2\n    XOR R1 R2 R3\n", new(*TypeMismatchError)},
		{"divi by zero", "func main\n    MOVI 1 R1\n    MOVI 0 R2\n    DIVI R1 R2 R3\n", new(*DivisionByZeroError)},
		{"remi by zero", "func main\n    MOVI 1 R1\n    MOVI 0 R2\n    REMI R1 R2 R3\n", new(*DivisionByZeroError)},
		{"divf by zero", "func main\n    MOVF 1.0 R1\n    MOVF 0.0 R2\n    DIVF R1 R2 R3\n", new(*DivisionByZeroError)},
		{"negative char", "func main\n    MOVI -1 R1\n    PRINTB R1\n", new(*InvalidCharacterError)},
		{"char past unicode", "func main\n    MOVI 1114112 R1\n    PRINTB R1\n", new(*InvalidCharacterError)},
		{"char truncated to rune", "func main\n    MOVI 4294967361 R1\n    PRINTB R1\n", new(*InvalidCharacterError)},
		{"surrogate char", "func main\n    MOVI 55296 R1\n    PRINTB R1\n", new(*InvalidCharacterError)},
	}

	for _, c := range cases {
		_, _, err := runText(t, c.src, InterpreterOptions{})
		assert.ErrorAs(t, err, c.target, c.name)
	}
}

func TestInterpreterStep(t *testing.T) {
	in := NewInterpreter(InterpreterOptions{})

	err := in.Step(Instruction{Op: Opcode(200)})
	assert.ErrorAs(t, err, new(*UnknownOpcodeError))

	err = in.Step(Instruction{Op: OpInvalid})
	assert.ErrorAs(t, err, new(*UnknownOpcodeError))

	err = in.Step(NewInstruction(OpADDI, Register(1), Register(2)))
	assert.ErrorAs(t, err, new(*MalformedInstructionError))

	err = in.Step(NewInstruction(OpLOADI, Register(1), Register(2)))
	assert.ErrorAs(t, err, new(*MalformedInstructionError))

	err = in.Step(NewInstruction(OpMOVI, FloatValue(1), Register(1)))
	assert.ErrorAs(t, err, new(*TypeMismatchError))
}

func TestInterpreterStopsAtFault(t *testing.T) {
	out, _, err := runText(t, `
func main
    MOVI 1 R1
    PRINTI R1
    PRINTI R2
    PRINTI R1
`, InterpreterOptions{})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "main: 2: PRINTI R2")
	assert.Equal(t, "1\n", out)

	out, _, err = runText(t, "func main\n    MOVI 65 R1\n    PRINTB R1\n    MOVI -65 R1\n    PRINTB R1\n", InterpreterOptions{})
	assert.ErrorAs(t, err, new(*InvalidCharacterError))
	assert.Equal(t, "A", out)
}

func TestInterpreterCancelled(t *testing.T) {
	code, err := ParseCode(strings.NewReader("func main\n    MOVI 1 R1\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = NewInterpreter(InterpreterOptions{}).Execute(ctx, code)
	assert.ErrorIs(t, err, context.Canceled)
}
