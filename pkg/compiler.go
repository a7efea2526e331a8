package minic

import (
	"context"
	"io"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// Compiler drives the pipeline: lex, parse, generate, execute.
type Compiler struct {
	cfg Config
}

func NewCompiler(cfg Config) *Compiler {
	return &Compiler{cfg: cfg}
}

func (c *Compiler) Config() Config {
	return c.cfg
}

func (c *Compiler) ParseFile(ctx context.Context, filename string) (*Program, *Diagnostics, error) {
	lexer, err := NewLexer(filename)
	if err != nil {
		return nil, nil, err
	}

	prog, diag := c.parse(ctx, lexer)

	return prog, diag, nil
}

func (c *Compiler) ParseFromReader(ctx context.Context, reader io.Reader) (*Program, *Diagnostics) {
	return c.parse(ctx, NewLexerFromReader(reader))
}

func (c *Compiler) parse(ctx context.Context, tokenizer Tokenizer) (*Program, *Diagnostics) {
	diag := NewDiagnostics()
	prog := NewParser(tokenizer, diag).Run()

	tlog.SpanFromContext(ctx).Printw("parsed", "file", tokenizer.GetFilename(), "errors", diag.Count())

	return prog, diag
}

// CompileFile parses and generates code. If the parse reported anything the
// returned Code is nil and the caller must not execute.
func (c *Compiler) CompileFile(ctx context.Context, filename string) (*Code, *Diagnostics, error) {
	prog, diag, err := c.ParseFile(ctx, filename)
	if err != nil {
		return nil, nil, err
	}

	code, err := c.generate(ctx, prog, diag)

	return code, diag, err
}

func (c *Compiler) CompileFromReader(ctx context.Context, reader io.Reader) (*Code, *Diagnostics, error) {
	prog, diag := c.ParseFromReader(ctx, reader)

	code, err := c.generate(ctx, prog, diag)

	return code, diag, err
}

func (c *Compiler) generate(ctx context.Context, prog *Program, diag *Diagnostics) (*Code, error) {
	if diag.HasErrors() || prog == nil {
		return nil, nil
	}

	code, err := NewGenerator().Generate(prog)
	if err != nil {
		return nil, errors.Wrap(err, "generate")
	}

	tlog.SpanFromContext(ctx).Printw("generated", "funcs", len(code.Funcs))

	return code, nil
}

// Execute runs code with an interpreter configured from the Config. Trace
// output goes to trace when tracing is enabled.
func (c *Compiler) Execute(ctx context.Context, code *Code, out, trace io.Writer) error {
	opts := InterpreterOptions{
		Output:          out,
		SharedRegisters: c.cfg.SharedRegisters,
	}

	if c.cfg.Trace {
		opts.Trace = trace
	}

	return NewInterpreter(opts).Execute(ctx, code)
}
