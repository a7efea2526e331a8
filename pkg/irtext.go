package minic

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"tlog.app/go/errors"
)

// FormatCode writes code in the text form read by ParseCode:
//
//	func main
//	    MOVI 3 R1
//	    PRINTI R1
func FormatCode(w io.Writer, code *Code) error {
	bw := bufio.NewWriter(w)

	for _, f := range code.Funcs {
		fmt.Fprintf(bw, "func %s\n", f.Name)

		for _, in := range f.Body {
			fmt.Fprintf(bw, "    %v\n", in)
		}
	}

	return bw.Flush()
}

// ParseCode reads the text form. Blank lines and lines starting with '#'
// are skipped. Operands are decoded by the opcode signature, so a variable
// may be named like a register.
func ParseCode(r io.Reader) (*Code, error) {
	code := &Code{}

	var fn *Function
	s := bufio.NewScanner(r)

	for line := 1; s.Scan(); line++ {
		fields := strings.Fields(s.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		if fields[0] == "func" {
			if len(fields) != 2 {
				return nil, errors.New("line %d: malformed function header", line)
			}

			fn = &Function{Name: fields[1]}
			code.Funcs = append(code.Funcs, fn)

			continue
		}

		if fn == nil {
			return nil, errors.New("line %d: instruction outside of a function", line)
		}

		in, err := parseInstruction(fields)
		if err != nil {
			return nil, errors.Wrap(err, "line %d", line)
		}

		fn.Body = append(fn.Body, in)
	}

	if err := s.Err(); err != nil {
		return nil, errors.Wrap(err, "read")
	}

	return code, nil
}

func parseInstruction(fields []string) (Instruction, error) {
	op, ok := LookupOpcode(fields[0])
	if !ok {
		return Instruction{}, &UnknownOpcodeError{Opcode: fields[0]}
	}

	sig := opcodes[op].args
	if len(fields)-1 != len(sig) {
		return Instruction{}, errors.New("%v: want %d operands, got %d", op, len(sig), len(fields)-1)
	}

	in := Instruction{Op: op, Args: make([]Operand, len(sig))}

	for i, kind := range sig {
		arg, err := parseOperand(kind, op.Kind(), fields[i+1])
		if err != nil {
			return Instruction{}, errors.Wrap(err, "%v: operand %d", op, i+1)
		}

		in.Args[i] = arg
	}

	return in, nil
}

func parseOperand(kind operandKind, typ Kind, text string) (Operand, error) {
	switch kind {
	case argReg:
		if !strings.HasPrefix(text, "R") {
			return nil, errors.New("bad register %q", text)
		}

		n, err := strconv.Atoi(text[1:])
		if err != nil {
			return nil, errors.New("bad register %q", text)
		}

		return Register(n), nil
	case argName:
		return Name(text), nil
	}

	switch typ {
	case KindInt:
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, "int immediate")
		}

		return IntValue(v), nil
	case KindFloat:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, errors.Wrap(err, "float immediate")
		}

		return FloatValue(v), nil
	default:
		v, err := strconv.ParseBool(text)
		if err != nil {
			return nil, errors.Wrap(err, "bool immediate")
		}

		return BoolValue(v), nil
	}
}
