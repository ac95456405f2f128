// Package compiler drives the parse -> analyse -> emit pipeline, carrying
// CompileState across REPL-style snippet submissions and providing a
// one-shot path for a complete program.
package compiler

import (
	"bytes"
	"fmt"

	"goa.design/federator/ast"
	"goa.design/federator/compilestate"
	"goa.design/federator/dsl/lexer"
	"goa.design/federator/dsl/parser"
	"goa.design/federator/errs"
)

// Options tunes a compile call. The zero value is the common case.
type Options struct {
	// What labels diagnostics raised by this snippet (e.g. the REPL cell
	// number or a source-file name); the core itself is file-less.
	What string
}

// Result is the successful output of CompileSnippet: the edges produced
// by this snippet (appended to main graph or to a named function body)
// and any non-fatal warnings collected along the way.
type Result struct {
	Edges    []ast.Edge
	Warnings []errs.SourceDiagnostic
}

// CompileSnippet compiles one source snippet against a live session
// state, in place. On success state.Table and state.Bodies are updated
// and the snippet's main-graph edges are appended to state.Bodies[main].
// On failure state.Table/Bodies/Data are left exactly as they were before
// the call: indices are allocated at most once per successful call, never
// partially. state.Offset is the one exception to that revert guarantee
// (spec.md §4.2): it advances by the number of lines src consumes on
// both success and failure, so the next snippet's diagnostics still count
// lines from the right starting point.
func CompileSnippet(state *compilestate.CompileState, src []byte, pkgs parser.PackageIndex, data parser.DataIndex, opts Options) (Result, error) {
	what := opts.What
	if what == "" {
		what = "snippet"
	}

	startLine := state.Offset + 1
	defer func() { state.Offset += linesConsumed(src) }()

	toks := lexer.NewAtLine(src, startLine).Tokenize()
	p := parser.New(toks, what)
	prog, diags := p.Parse()
	if hasError(diags) {
		return Result{}, errs.NewCompileFailure((&errs.SourceDiagnostics{Diagnostics: diags}).Error())
	}
	if p.NeedsMoreInput() {
		return Result{}, errs.NewCompileFailure(fmt.Sprintf("%s: incomplete snippet, more input needed", what))
	}

	// Lowering mutates a throwaway clone of the live state; only on
	// success is it committed back, giving the "fully reverted on
	// failure" guarantee without needing an explicit rollback log.
	scratch := state.Clone()
	lw := parser.NewLowerer(scratch, pkgs, data, what)
	edges, lowerDiags := lw.Lower(prog)
	diags = append(diags, lowerDiags...)
	if hasError(diags) {
		return Result{}, errs.NewCompileFailure((&errs.SourceDiagnostics{Diagnostics: diags}).Error())
	}

	state.Table = compilestate.NewTableState(lw.Table())
	for funcID, body := range lw.Bodies() {
		state.Bodies[funcID] = body
	}
	state.Bodies[ast.MainFunc] = append(state.Bodies[ast.MainFunc], edges...)
	state.Data = scratch.Data

	return Result{Edges: edges, Warnings: diags}, nil
}

// Compile performs a one-shot compile of a complete program: no prior
// CompileState is carried in or out, only the resulting Workflow.
func Compile(src []byte, pkgs parser.PackageIndex, data parser.DataIndex, opts Options) (*ast.Workflow, []errs.SourceDiagnostic, error) {
	state := compilestate.New()
	result, err := CompileSnippet(state, src, pkgs, data, opts)
	if err != nil {
		return nil, nil, err
	}

	wf := ast.New(state.Snapshot())
	wf.Graph = state.Bodies[ast.MainFunc]
	wf.Funcs = make(map[string][]ast.Edge, len(state.Bodies))
	for funcID, body := range state.Bodies {
		if funcID == ast.MainFunc {
			continue
		}
		wf.Funcs[funcID] = body
	}
	return wf, result.Warnings, nil
}

func hasError(diags []errs.SourceDiagnostic) bool {
	for _, d := range diags {
		if d.Severity == errs.SeverityError {
			return true
		}
	}
	return false
}

// linesConsumed counts the lines src occupies, so state.Offset advances by
// exactly the span the next snippet's line numbers must continue from.
func linesConsumed(src []byte) int {
	if len(src) == 0 {
		return 0
	}
	return bytes.Count(src, []byte("\n")) + 1
}
