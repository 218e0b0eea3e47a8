package codegen

// This file contains in-memory validation of generated Go programs using
// go/parser and go/types.

import (
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/scanner"
	"go/token"
	"go/types"
	"strings"
)

// ValidationError represents a Go validation error with position info.
type ValidationError struct {
	Line    int
	Column  int
	Message string
}

// CodeValidator validates generated Go source code in memory.
type CodeValidator struct {
	fset     *token.FileSet
	filename string
}

// NewCodeValidator creates a validator for the given filename (used in error messages).
func NewCodeValidator(filename string) *CodeValidator {
	return &CodeValidator{filename: filename}
}

// Validate parses and type-checks Go source code, returning any errors.
func (cv *CodeValidator) Validate(source []byte) []ValidationError {
	cv.fset = token.NewFileSet()

	file, err := parser.ParseFile(cv.fset, cv.filename, source, parser.AllErrors)
	if err != nil {
		return parseErrors(err)
	}

	var errs []ValidationError
	conf := types.Config{
		Importer: importer.Default(),
		Error: func(err error) {
			// types.Error has a Pos field (not a Pos() method)
			if typeErr, ok := err.(types.Error); ok {
				pos := cv.fset.Position(typeErr.Pos)
				errs = append(errs, ValidationError{
					Line:    pos.Line,
					Column:  pos.Column,
					Message: typeErr.Msg,
				})
			}
		},
	}
	_, _ = conf.Check(file.Name.Name, cv.fset, []*ast.File{file}, nil)
	return errs
}

func parseErrors(err error) []ValidationError {
	if list, ok := err.(scanner.ErrorList); ok {
		errs := make([]ValidationError, 0, len(list))
		for _, e := range list {
			errs = append(errs, ValidationError{Line: e.Pos.Line, Column: e.Pos.Column, Message: e.Msg})
		}
		return errs
	}
	return []ValidationError{{Line: 1, Column: 1, Message: err.Error()}}
}

// FormatValidationErrors returns a human-readable error report.
func FormatValidationErrors(errs []ValidationError, filename string) string {
	if len(errs) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, err := range errs {
		fmt.Fprintf(&sb, "  %s:%d:%d: %s\n", filename, err.Line, err.Column, err.Message)
	}
	return sb.String()
}
