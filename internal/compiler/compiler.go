package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja/ast"

	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/shared/id"
)

const (
	wrapperHead = "(async function (input, api) {\n"
	wrapperTail = "\n})"

	// SourceName is the file name compiled units report in stack traces.
	SourceName = "snippet.js"
)

// ErrInvalidShape is returned when the wrapped snippet escapes its function
// boundary, e.g. by closing the body early and appending statements.
var ErrInvalidShape = errors.New("snippet must be a single function body")

// ValidationError reports snippet text that cannot be loaded. Nothing from
// the snippet has executed when it is returned.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Unit is a compiled snippet. Running Program yields the async function
// (input, api) => Promise. Token identifies the unit while it is registered
// with an execution tier and must be released after use.
type Unit struct {
	Program *goja.Program
	Token   id.UnitToken
	Source  string
}

// Compiler turns snippet text into loadable units.
type Compiler struct {
	// Strict compiles units in strict mode.
	Strict bool
}

// New creates a compiler
func New(strict bool) *Compiler {
	return &Compiler{Strict: strict}
}

// Wrap places code inside the standard function boundary.
func Wrap(code string) string {
	return wrapperHead + code + wrapperTail
}

// Compile wraps, validates and compiles code. The returned error is always a
// *ValidationError.
func (c *Compiler) Compile(code string) (*Unit, error) {
	source := Wrap(code)

	prg, err := goja.Parse(SourceName, source)
	if err != nil {
		return nil, &ValidationError{Message: syntaxMessage(err), Err: err}
	}

	if err := checkShape(prg); err != nil {
		return nil, &ValidationError{Message: err.Error(), Err: err}
	}

	program, err := goja.CompileAST(prg, c.Strict)
	if err != nil {
		return nil, &ValidationError{Message: syntaxMessage(err), Err: err}
	}

	return &Unit{
		Program: program,
		Token:   id.NewUnitToken(),
		Source:  source,
	}, nil
}

// Compile compiles code with a non-strict compiler.
func Compile(code string) (*Unit, error) {
	return New(false).Compile(code)
}

// checkShape requires the program to be exactly one expression statement
// holding the async wrapper function with its two parameters.
func checkShape(prg *ast.Program) error {
	if len(prg.Body) != 1 {
		return ErrInvalidShape
	}

	stmt, ok := prg.Body[0].(*ast.ExpressionStatement)
	if !ok {
		return ErrInvalidShape
	}

	fn, ok := stmt.Expression.(*ast.FunctionLiteral)
	if !ok || !fn.Async || fn.Generator || fn.Name != nil {
		return ErrInvalidShape
	}

	params := fn.ParameterList
	if params == nil || len(params.List) != 2 || params.Rest != nil {
		return ErrInvalidShape
	}
	return nil
}

// syntaxMessage trims the parser's file prefix and shifts line numbers back
// by the wrapper's leading line.
func syntaxMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), "SyntaxError: ")
	msg = strings.TrimPrefix(msg, SourceName+": ")

	var line, col int
	if n, _ := fmt.Sscanf(msg, "Line %d:%d", &line, &col); n == 2 {
		rest := strings.TrimPrefix(msg, fmt.Sprintf("Line %d:%d", line, col))
		if line > 1 {
			line--
		}
		return fmt.Sprintf("SyntaxError: Line %d:%d%s", line, col, rest)
	}
	return "SyntaxError: " + msg
}
