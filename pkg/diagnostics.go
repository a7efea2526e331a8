package minic

import (
	"fmt"
	"io"

	"tlog.app/go/loc"
	"tlog.app/go/tlog"
)

// SyntaxError is a compile-time diagnostic. EOF is set when the error was
// raised at the end of input, in which case Line is meaningless.
type SyntaxError struct {
	Line    int
	EOF     bool
	Message string
}

func (e *SyntaxError) Error() string {
	if e.EOF {
		return fmt.Sprintf("EOF: %s", e.Message)
	}

	return fmt.Sprintf("%d: %s", e.Line, e.Message)
}

// Diagnostics collects the errors of one compilation. It is owned by the
// caller and passed into the Parser; nothing about it is global.
type Diagnostics struct {
	errs []*SyntaxError
}

func NewDiagnostics() *Diagnostics {
	return &Diagnostics{}
}

func (d *Diagnostics) Error(line int, msg string) {
	d.add(&SyntaxError{Line: line, Message: msg})
}

func (d *Diagnostics) Errorf(line int, format string, args ...interface{}) {
	d.add(&SyntaxError{Line: line, Message: fmt.Sprintf(format, args...)})
}

func (d *Diagnostics) ErrorEOF(msg string) {
	d.add(&SyntaxError{EOF: true, Message: msg})
}

func (d *Diagnostics) add(e *SyntaxError) {
	d.errs = append(d.errs, e)

	tlog.V("diag").Printw("diagnostic", "line", e.Line, "eof", e.EOF, "msg", e.Message, "from", loc.Caller(2))
}

func (d *Diagnostics) HasErrors() bool {
	return len(d.errs) != 0
}

func (d *Diagnostics) Count() int {
	return len(d.errs)
}

func (d *Diagnostics) Errors() []*SyntaxError {
	return d.errs
}

// WriteTo prints one error per line.
func (d *Diagnostics) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, e := range d.errs {
		n, err := fmt.Fprintln(w, e.Error())
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	return total, nil
}
