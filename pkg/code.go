package minic

import (
	"fmt"
	"strings"
)

type Opcode uint8

const (
	OpInvalid Opcode = iota

	OpMOVI
	OpMOVF
	OpMOVB

	OpADDI
	OpADDF
	OpSUBI
	OpSUBF
	OpMULI
	OpMULF
	OpDIVI
	OpDIVF
	OpREMI
	OpXOR

	OpPRINTI
	OpPRINTF
	OpPRINTB

	OpVARI
	OpVARF
	OpVARB

	OpALLOCI
	OpALLOCF
	OpALLOCB

	OpLOADI
	OpLOADF
	OpLOADB

	OpSTOREI
	OpSTOREF
	OpSTOREB

	numOpcodes
)

type operandKind uint8

const (
	argImm operandKind = iota
	argReg
	argName
)

func (k operandKind) String() string {
	switch k {
	case argImm:
		return "immediate"
	case argReg:
		return "register"
	default:
		return "name"
	}
}

type opcodeInfo struct {
	name string
	args []operandKind
	// kind is the operand type encoded by the opcode suffix.
	kind Kind
}

var (
	sigMov    = []operandKind{argImm, argReg}
	sigBinary = []operandKind{argReg, argReg, argReg}
	sigPrint  = []operandKind{argReg}
	sigDecl   = []operandKind{argName}
	sigLoad   = []operandKind{argName, argReg}
	sigStore  = []operandKind{argReg, argName}
)

var opcodes = [numOpcodes]opcodeInfo{
	OpMOVI:   {"MOVI", sigMov, KindInt},
	OpMOVF:   {"MOVF", sigMov, KindFloat},
	OpMOVB:   {"MOVB", sigMov, KindBool},
	OpADDI:   {"ADDI", sigBinary, KindInt},
	OpADDF:   {"ADDF", sigBinary, KindFloat},
	OpSUBI:   {"SUBI", sigBinary, KindInt},
	OpSUBF:   {"SUBF", sigBinary, KindFloat},
	OpMULI:   {"MULI", sigBinary, KindInt},
	OpMULF:   {"MULF", sigBinary, KindFloat},
	OpDIVI:   {"DIVI", sigBinary, KindInt},
	OpDIVF:   {"DIVF", sigBinary, KindFloat},
	OpREMI:   {"REMI", sigBinary, KindInt},
	OpXOR:    {"XOR", sigBinary, KindInt},
	OpPRINTI: {"PRINTI", sigPrint, KindInt},
	OpPRINTF: {"PRINTF", sigPrint, KindFloat},
	OpPRINTB: {"PRINTB", sigPrint, KindInt},
	OpVARI:   {"VARI", sigDecl, KindInt},
	OpVARF:   {"VARF", sigDecl, KindFloat},
	OpVARB:   {"VARB", sigDecl, KindBool},
	OpALLOCI: {"ALLOCI", sigDecl, KindInt},
	OpALLOCF: {"ALLOCF", sigDecl, KindFloat},
	OpALLOCB: {"ALLOCB", sigDecl, KindBool},
	OpLOADI:  {"LOADI", sigLoad, KindInt},
	OpLOADF:  {"LOADF", sigLoad, KindFloat},
	OpLOADB:  {"LOADB", sigLoad, KindBool},
	OpSTOREI: {"STOREI", sigStore, KindInt},
	OpSTOREF: {"STOREF", sigStore, KindFloat},
	OpSTOREB: {"STOREB", sigStore, KindBool},
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, numOpcodes)
	for op := OpMOVI; op < numOpcodes; op++ {
		m[opcodes[op].name] = op
	}

	return m
}()

// LookupOpcode maps a mnemonic to its opcode. Matching is exact.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodeByName[name]
	return op, ok
}

func (op Opcode) Valid() bool {
	return op > OpInvalid && op < numOpcodes
}

func (op Opcode) String() string {
	if op.Valid() {
		return opcodes[op].name
	}

	return fmt.Sprintf("Opcode(%d)", uint8(op))
}

// Kind is the operand type named by the opcode suffix.
func (op Opcode) Kind() Kind {
	return opcodes[op].kind
}

// Operand is one of Register, Name or Value.
type Operand interface {
	fmt.Stringer
	operand()
}

type Register int

func (r Register) String() string { return fmt.Sprintf("R%d", int(r)) }
func (Register) operand()         {}

type Name string

func (n Name) String() string { return string(n) }
func (Name) operand()         {}

func (Value) operand() {}

type Instruction struct {
	Op   Opcode
	Args []Operand
}

func NewInstruction(op Opcode, args ...Operand) Instruction {
	return Instruction{Op: op, Args: args}
}

func (in Instruction) String() string {
	var b strings.Builder
	b.WriteString(in.Op.String())

	for _, a := range in.Args {
		b.WriteByte(' ')
		b.WriteString(a.String())
	}

	return b.String()
}

// validate checks the operands against the opcode signature.
func (in Instruction) validate() error {
	if !in.Op.Valid() {
		return &UnknownOpcodeError{Opcode: in.Op.String()}
	}

	sig := opcodes[in.Op].args
	if len(in.Args) != len(sig) {
		return &MalformedInstructionError{
			Instruction: in,
			Reason:      fmt.Sprintf("want %d operands, got %d", len(sig), len(in.Args)),
		}
	}

	for i, a := range in.Args {
		var ok bool
		switch sig[i] {
		case argImm:
			_, ok = a.(Value)
		case argReg:
			_, ok = a.(Register)
		case argName:
			_, ok = a.(Name)
		}

		if !ok {
			return &MalformedInstructionError{
				Instruction: in,
				Reason:      fmt.Sprintf("operand %d: want %v", i+1, sig[i]),
			}
		}
	}

	return nil
}

// Function is the instruction list of one MiniC function.
type Function struct {
	Name string
	Body []Instruction
}

func (f *Function) Emit(op Opcode, args ...Operand) {
	f.Body = append(f.Body, NewInstruction(op, args...))
}

// Code is a whole program in execution order.
type Code struct {
	Funcs []*Function
}

type UnknownOpcodeError struct {
	Opcode string
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("unknown opcode: %s", e.Opcode)
}

type UndefinedNameError struct {
	Name Name
}

func (e *UndefinedNameError) Error() string {
	return fmt.Sprintf("undefined name: %s", e.Name)
}

type UndefinedRegisterError struct {
	Register Register
}

func (e *UndefinedRegisterError) Error() string {
	return fmt.Sprintf("undefined register: %v", e.Register)
}

type TypeMismatchError struct {
	Op   Opcode
	Want Kind
	Got  Kind
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: %v wants %v, got %v", e.Op, e.Want, e.Got)
}

type DivisionByZeroError struct {
	Op Opcode
}

func (e *DivisionByZeroError) Error() string {
	return fmt.Sprintf("division by zero: %v", e.Op)
}

type InvalidCharacterError struct {
	Code int64
}

func (e *InvalidCharacterError) Error() string {
	return fmt.Sprintf("invalid character code: %d", e.Code)
}

type MalformedInstructionError struct {
	Instruction Instruction
	Reason      string
}

func (e *MalformedInstructionError) Error() string {
	return fmt.Sprintf("malformed instruction %v: %s", e.Instruction, e.Reason)
}
