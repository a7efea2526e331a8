package minic

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"tlog.app/go/errors"
)

type TokenType uint64
type stateFunc func(l *Lexer) stateFunc

const EOF rune = 0

const (
	TokenError TokenType = iota
	TokenEOF
	TokenComment

	TokenIntLit
	TokenFloatLit
	TokenCharLit
	TokenStringLit
	TokenIdentifier

	TokenVoid
	TokenBool
	TokenInt
	TokenFloat
	TokenChar
	TokenIf
	TokenElse
	TokenWhile
	TokenFor
	TokenReturn
	TokenBreak
	TokenPrint
	TokenNew
	TokenSize
	TokenTrue
	TokenFalse

	TokenPlus
	TokenMinus
	TokenTimes
	TokenDivide
	TokenMod
	TokenAssign
	TokenAddAssign
	TokenSubAssign
	TokenMulAssign
	TokenDivAssign
	TokenModAssign
	TokenEq
	TokenNe
	TokenLt
	TokenLe
	TokenGt
	TokenGe
	TokenAnd
	TokenOr
	TokenNot
	TokenInc
	TokenDec
	TokenOpenParentheses
	TokenCloseParentheses
	TokenOpenBracket
	TokenCloseBracket
	TokenOpenCurly
	TokenCloseCurly
	TokenSemicolon
	TokenComma
	TokenDot
)

var keywordTable = map[string]TokenType{
	"void":   TokenVoid,
	"bool":   TokenBool,
	"int":    TokenInt,
	"float":  TokenFloat,
	"char":   TokenChar,
	"if":     TokenIf,
	"else":   TokenElse,
	"while":  TokenWhile,
	"for":    TokenFor,
	"return": TokenReturn,
	"break":  TokenBreak,
	"print":  TokenPrint,
	"new":    TokenNew,
	"size":   TokenSize,
	"true":   TokenTrue,
	"false":  TokenFalse,
}

var operatorTable = map[string]TokenType{
	"+":  TokenPlus,
	"-":  TokenMinus,
	"*":  TokenTimes,
	"/":  TokenDivide,
	"%":  TokenMod,
	"=":  TokenAssign,
	"+=": TokenAddAssign,
	"-=": TokenSubAssign,
	"*=": TokenMulAssign,
	"/=": TokenDivAssign,
	"%=": TokenModAssign,
	"==": TokenEq,
	"!=": TokenNe,
	"<":  TokenLt,
	"<=": TokenLe,
	">":  TokenGt,
	">=": TokenGe,
	"&&": TokenAnd,
	"||": TokenOr,
	"!":  TokenNot,
	"++": TokenInc,
	"--": TokenDec,
	"(":  TokenOpenParentheses,
	")":  TokenCloseParentheses,
	"[":  TokenOpenBracket,
	"]":  TokenCloseBracket,
	"{":  TokenOpenCurly,
	"}":  TokenCloseCurly,
	";":  TokenSemicolon,
	",":  TokenComma,
	".":  TokenDot,
}

var tokenNames = [...]string{
	TokenError:            "Error",
	TokenEOF:              "EOF",
	TokenComment:          "Comment",
	TokenIntLit:           "IntLit",
	TokenFloatLit:         "FloatLit",
	TokenCharLit:          "CharLit",
	TokenStringLit:        "StringLit",
	TokenIdentifier:       "Identifier",
	TokenVoid:             "Void",
	TokenBool:             "Bool",
	TokenInt:              "Int",
	TokenFloat:            "Float",
	TokenChar:             "Char",
	TokenIf:               "If",
	TokenElse:             "Else",
	TokenWhile:            "While",
	TokenFor:              "For",
	TokenReturn:           "Return",
	TokenBreak:            "Break",
	TokenPrint:            "Print",
	TokenNew:              "New",
	TokenSize:             "Size",
	TokenTrue:             "True",
	TokenFalse:            "False",
	TokenPlus:             "Plus",
	TokenMinus:            "Minus",
	TokenTimes:            "Times",
	TokenDivide:           "Divide",
	TokenMod:              "Mod",
	TokenAssign:           "Assign",
	TokenAddAssign:        "AddAssign",
	TokenSubAssign:        "SubAssign",
	TokenMulAssign:        "MulAssign",
	TokenDivAssign:        "DivAssign",
	TokenModAssign:        "ModAssign",
	TokenEq:               "Eq",
	TokenNe:               "Ne",
	TokenLt:               "Lt",
	TokenLe:               "Le",
	TokenGt:               "Gt",
	TokenGe:               "Ge",
	TokenAnd:              "And",
	TokenOr:               "Or",
	TokenNot:              "Not",
	TokenInc:              "Inc",
	TokenDec:              "Dec",
	TokenOpenParentheses:  "OpenParentheses",
	TokenCloseParentheses: "CloseParentheses",
	TokenOpenBracket:      "OpenBracket",
	TokenCloseBracket:     "CloseBracket",
	TokenOpenCurly:        "OpenCurly",
	TokenCloseCurly:       "CloseCurly",
	TokenSemicolon:        "Semicolon",
	TokenComma:            "Comma",
	TokenDot:              "Dot",
}

func (t TokenType) String() string {
	if int(t) < len(tokenNames) {
		return tokenNames[t]
	}

	return fmt.Sprintf("TokenType(%d)", uint64(t))
}

type Token struct {
	Typ   TokenType
	Value string
	Line  int
}

// isValid reports whether more tokens can follow this one.
func (t Token) isValid() bool {
	return t.Typ != TokenEOF
}

func (t Token) isComment() bool {
	return t.Typ == TokenComment
}

// Tokenizer is the token source consumed by the Parser.
type Tokenizer interface {
	Do()
	Get() Token
	GetFilename() string
}

type Lexer struct {
	filename string
	reader   *bufio.Reader
	done     chan Token
	line     int
	start    int
}

func NewLexer(filename string) (*Lexer, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "read %v", filename)
	}

	l := NewLexerFromReader(bytes.NewReader(data))
	l.filename = filename

	return l, nil
}

func NewLexerFromReader(reader io.Reader) *Lexer {
	return &Lexer{
		reader: bufio.NewReader(reader),
		done:   make(chan Token),
		line:   1,
	}
}

func (l *Lexer) GetFilename() string {
	return l.filename
}

// Do runs the state machine to completion. It blocks until every token,
// including the final EOF, has been received through Get.
func (l *Lexer) Do() {
	for state := defaultState; state != nil; {
		state = state(l)
	}

	close(l.done)
}

func (l *Lexer) Get() Token {
	t, ok := <-l.done
	if !ok {
		return Token{Typ: TokenEOF, Line: l.line}
	}

	return t
}

// RunBlocking lexes the whole input. Comments are dropped. The first lexical
// error is returned after the input has been drained.
func (l *Lexer) RunBlocking() ([]Token, error) {
	go l.Do()

	var tokens []Token
	var err error
	for {
		t := l.Get()
		switch t.Typ {
		case TokenEOF:
			if err != nil {
				return nil, err
			}

			return tokens, nil
		case TokenError:
			if err == nil {
				err = errors.New("%d: %s", t.Line, t.Value)
			}
		case TokenComment:
		default:
			tokens = append(tokens, t)
		}
	}
}

func defaultState(l *Lexer) stateFunc {
	for {
		r := l.peek()
		l.start = l.line

		switch {
		case r == EOF:
			return l.emitValue(TokenEOF, "")
		case unicode.IsSpace(r):
			l.next()
			continue
		case '0' <= r && r <= '9':
			return numberState
		case r == '"':
			return stringState
		case r == '\'':
			return charState
		case unicode.IsLetter(r) || r == '_':
			return identifierState
		default:
			return operatorState
		}
	}
}

func numberState(l *Lexer) stateFunc {
	var num strings.Builder
	typ := TokenIntLit

	l.digits(&num)

	if l.peek() == '.' {
		typ = TokenFloatLit
		num.WriteRune(l.next())
		l.digits(&num)
	}

	if r := l.peek(); r == 'e' || r == 'E' {
		typ = TokenFloatLit
		num.WriteRune(l.next())

		if r := l.peek(); r == '+' || r == '-' {
			num.WriteRune(l.next())
		}

		if r := l.peek(); r < '0' || r > '9' {
			return l.errorf("malformed number '%s'", num.String())
		}

		l.digits(&num)
	}

	return l.emitValue(typ, num.String())
}

func (l *Lexer) digits(num *strings.Builder) {
	for r := l.peek(); '0' <= r && r <= '9'; r = l.peek() {
		num.WriteRune(l.next())
	}
}

func stringState(l *Lexer) stateFunc {
	l.next() // Skip the leading double-quote

	var str strings.Builder
	for r := l.next(); r != '"'; r = l.next() {
		if r == EOF || r == '\n' {
			return l.errorf("Unterminated string")
		}

		if r == '\\' {
			esc, ok := l.escape()
			if !ok {
				return l.errorf("Invalid escape sequence in string")
			}

			r = esc
		}

		str.WriteRune(r)
	}

	return l.emitValue(TokenStringLit, str.String())
}

func charState(l *Lexer) stateFunc {
	l.next() // Skip the leading quote

	r := l.next()
	switch r {
	case EOF, '\n', '\'':
		return l.errorf("Invalid character constant")
	case '\\':
		esc, ok := l.escape()
		if !ok {
			return l.errorf("Invalid escape sequence in character constant")
		}

		r = esc
	}

	if l.next() != '\'' {
		return l.errorf("Unterminated character constant")
	}

	return l.emitValue(TokenCharLit, string(r))
}

func (l *Lexer) escape() (rune, bool) {
	switch r := l.next(); r {
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'r':
		return '\r', true
	case '0':
		return 0, true
	case '\\', '\'', '"':
		return r, true
	default:
		return r, false
	}
}

func identifierState(l *Lexer) stateFunc {
	var id strings.Builder
	for r := l.peek(); unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'; r = l.peek() {
		id.WriteRune(l.next())
	}

	if t, ok := keywordTable[id.String()]; ok {
		return l.emitValue(t, id.String())
	}

	return l.emitValue(TokenIdentifier, id.String())
}

func operatorState(l *Lexer) stateFunc {
	r := l.next()

	op := string(r) + string(l.peek())
	switch op {
	case "//":
		return lineCommentState
	case "/*":
		l.next()
		return blockCommentState
	}

	if tok, ok := operatorTable[op]; ok {
		l.next()
		return l.emitValue(tok, op)
	}

	if tok, ok := operatorTable[string(r)]; ok {
		return l.emitValue(tok, string(r))
	}

	return l.errorf("Illegal character '%c'", r)
}

func lineCommentState(l *Lexer) stateFunc {
	l.next() // Skip the second slash

	var text strings.Builder
	for r := l.peek(); r != '\n' && r != EOF; r = l.peek() {
		text.WriteRune(l.next())
	}

	return l.emitValue(TokenComment, text.String())
}

func blockCommentState(l *Lexer) stateFunc {
	var text strings.Builder
	for {
		r := l.next()
		if r == EOF {
			return l.errorf("Unterminated comment")
		}

		if r == '*' && l.peek() == '/' {
			l.next()
			return l.emitValue(TokenComment, text.String())
		}

		text.WriteRune(r)
	}
}

func (l *Lexer) errorf(format string, args ...interface{}) stateFunc {
	l.done <- Token{
		Typ:   TokenError,
		Value: fmt.Sprintf(format, args...),
		Line:  l.start,
	}

	return defaultState
}

func (l *Lexer) emitValue(t TokenType, val string) stateFunc {
	l.done <- Token{
		Typ:   t,
		Value: val,
		Line:  l.start,
	}

	if t == TokenEOF {
		return nil
	}

	return defaultState
}

func (l *Lexer) peek() rune {
	r, _, err := l.reader.ReadRune()
	if err != nil {
		return EOF
	}

	_ = l.reader.UnreadRune()

	return r
}

func (l *Lexer) next() rune {
	r, _, err := l.reader.ReadRune()
	if err != nil {
		if err == io.EOF {
			return EOF
		}

		return utf8.RuneError
	}

	if r == '\n' {
		l.line++
	}

	return r
}
