package minic

import (
	"io"
	"os"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"
)

type Config struct {
	// SharedRegisters keeps registers alive across function bodies instead
	// of clearing them at every function entry.
	SharedRegisters bool `yaml:"shared_registers"`

	// Trace prints the locals after each function and the globals at exit.
	Trace bool `yaml:"trace"`

	// ASTSuffix is appended to the source path when writing the AST file.
	ASTSuffix string `yaml:"ast_suffix"`
}

func DefaultConfig() Config {
	return Config{
		Trace:     true,
		ASTSuffix: ".ast.yaml",
	}
}

// LoadConfig reads a YAML config over the defaults. Unknown keys are errors.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "open config")
	}
	defer f.Close()

	return DecodeConfig(f)
}

func DecodeConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, "decode config")
	}

	return cfg, nil
}
