package main

import (
	"context"
	"fmt"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	minic "go.minic.dev/pkg"
)

func main() {
	parseCmd := &cli.Command{
		Name:        "parse",
		Description: "parse a MiniC file and print its AST",
		Action:      parseAct,
		Args:        cli.Args{},
		Flags: append(runFlags(),
			cli.NewFlag("ast", false, "also write the AST as YAML next to the source"),
		),
	}

	runCmd := &cli.Command{
		Name:        "run",
		Description: "compile a MiniC file and interpret it",
		Action:      runAct,
		Args:        cli.Args{},
		Flags:       runFlags(),
	}

	irCmd := &cli.Command{
		Name:        "ir",
		Description: "compile a MiniC file and print the interpreter code",
		Action:      irAct,
		Args:        cli.Args{},
	}

	execCmd := &cli.Command{
		Name:        "exec",
		Description: "interpret a file of interpreter code",
		Action:      execAct,
		Args:        cli.Args{},
		Flags:       runFlags(),
	}

	llvmCmd := &cli.Command{
		Name:        "llvm",
		Description: "compile a MiniC file and print the LLVM IR",
		Action:      llvmAct,
		Args:        cli.Args{},
	}

	app := &cli.Command{
		Name:        "minic",
		Description: "minic parses and runs MiniC programs",
		Commands: []*cli.Command{
			parseCmd,
			runCmd,
			irCmd,
			execCmd,
			llvmCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func runFlags() []*cli.Flag {
	return []*cli.Flag{
		cli.NewFlag("config", "", "YAML config file"),
		cli.NewFlag("shared-registers", false, "keep registers across functions"),
		cli.NewFlag("quiet", false, "do not print locals and globals after execution"),
	}
}

func rootContext() context.Context {
	return tlog.ContextWithSpan(context.Background(), tlog.Root())
}

func fileArg(c *cli.Command) (string, error) {
	if len(c.Args) != 1 {
		return "", errors.New("usage: minic %v <file>", c.Name)
	}

	return c.Args[0], nil
}

// config loads --config if given and applies the command line switches on top.
func config(c *cli.Command) (cfg minic.Config, err error) {
	cfg = minic.DefaultConfig()

	if path := c.String("config"); path != "" {
		cfg, err = minic.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
	}

	if c.Bool("shared-registers") {
		cfg.SharedRegisters = true
	}

	if c.Bool("quiet") {
		cfg.Trace = false
	}

	return cfg, nil
}

func reportDiagnostics(diag *minic.Diagnostics) bool {
	if diag == nil || !diag.HasErrors() {
		return false
	}

	_, _ = diag.WriteTo(os.Stderr)

	return true
}

func parseAct(c *cli.Command) error {
	name, err := fileArg(c)
	if err != nil {
		return err
	}

	cfg, err := config(c)
	if err != nil {
		return err
	}

	ctx := rootContext()

	prog, diag, err := minic.NewCompiler(cfg).ParseFile(ctx, name)
	if err != nil {
		return errors.Wrap(err, "parse %v", name)
	}

	if reportDiagnostics(diag) {
		return errors.New("%v: %d syntax errors", name, diag.Count())
	}

	if prog == nil {
		return nil
	}

	if err := minic.Dump(os.Stdout, prog); err != nil {
		return err
	}

	if c.Bool("ast") {
		path := name + cfg.ASTSuffix

		if err := minic.WriteASTFile(path, prog); err != nil {
			return errors.Wrap(err, "write ast")
		}
	}

	return nil
}

func compile(ctx context.Context, cfg minic.Config, name string) (*minic.Code, error) {
	code, diag, err := minic.NewCompiler(cfg).CompileFile(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, "compile %v", name)
	}

	if reportDiagnostics(diag) {
		return nil, errors.New("%v: %d syntax errors", name, diag.Count())
	}

	return code, nil
}

func runAct(c *cli.Command) error {
	name, err := fileArg(c)
	if err != nil {
		return err
	}

	cfg, err := config(c)
	if err != nil {
		return err
	}

	ctx := rootContext()

	code, err := compile(ctx, cfg, name)
	if err != nil {
		return err
	}

	return minic.NewCompiler(cfg).Execute(ctx, code, os.Stdout, os.Stdout)
}

func irAct(c *cli.Command) error {
	name, err := fileArg(c)
	if err != nil {
		return err
	}

	code, err := compile(rootContext(), minic.DefaultConfig(), name)
	if err != nil {
		return err
	}

	return minic.FormatCode(os.Stdout, code)
}

func execAct(c *cli.Command) error {
	name, err := fileArg(c)
	if err != nil {
		return err
	}

	cfg, err := config(c)
	if err != nil {
		return err
	}

	f, err := os.Open(name)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer f.Close()

	code, err := minic.ParseCode(f)
	if err != nil {
		return errors.Wrap(err, "read code %v", name)
	}

	return minic.NewCompiler(cfg).Execute(rootContext(), code, os.Stdout, os.Stdout)
}

func llvmAct(c *cli.Command) error {
	name, err := fileArg(c)
	if err != nil {
		return err
	}

	code, err := compile(rootContext(), minic.DefaultConfig(), name)
	if err != nil {
		return err
	}

	mod, err := minic.NewLLVMBuilder().Lower(code)
	if err != nil {
		return errors.Wrap(err, "lower")
	}

	fmt.Println(mod.String())

	return nil
}
