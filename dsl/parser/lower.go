package parser

import (
	"fmt"

	"goa.design/federator/ast"
	"goa.design/federator/compilestate"
	"goa.design/federator/errs"
)

// PackageMeta is what a PackageIndex reports about one package version:
// enough for the analyser to register a TaskDef without the planner's
// help (the planner later resolves *where* the task runs).
type PackageMeta struct {
	Version      string
	Signature    string
	Capabilities []string
	ArgNames     []string
}

// PackageIndex resolves `pkg.func` task targets to metadata. Implemented
// by infra.PackageIndexClient; kept as a small interface here so dsl/parser
// never imports infra (avoiding a cycle — infra sits above dsl in the
// dependency order of SPEC_FULL.md §2).
type PackageIndex interface {
	Lookup(pkg string) (PackageMeta, bool)
}

// DataIndex resolves whether a dataset name is known at all (existence
// check only — the planner does the authoritative location resolution).
type DataIndex interface {
	Known(name string) bool
}

// Lowerer turns a Program into Edges appended to a live CompileState,
// performing symbol resolution, task lookup in the PackageIndex (an
// unknown task only raises a warning; argument counts are not checked),
// dataflow approximation (DataState), and edge emission in one walk.
type Lowerer struct {
	state   *compilestate.CompileState
	table   *ast.SymTable
	pkgs    PackageIndex
	data    DataIndex
	what    string
	diags   []errs.SourceDiagnostic
	imports map[string]struct{}
	bodies  map[string][]ast.Edge
}

// NewLowerer builds a Lowerer over a live CompileState snapshot. The
// caller is responsible for committing state.Table back from the
// returned SymTable on success (compiler.CompileSnippet does this).
func NewLowerer(state *compilestate.CompileState, pkgs PackageIndex, data DataIndex, what string) *Lowerer {
	return &Lowerer{
		state:   state,
		table:   state.Table.Inject(),
		pkgs:    pkgs,
		data:    data,
		what:    what,
		imports: make(map[string]struct{}),
		bodies:  make(map[string][]ast.Edge),
	}
}

// builder accumulates edges for one function body (main graph or one
// user function), by append-only index — the arena+index pattern
// SPEC_FULL.md §9 calls for.
type builder struct {
	edges []ast.Edge
}

func (b *builder) append(e ast.Edge) int {
	b.edges = append(b.edges, e)
	return len(b.edges) - 1
}

// exitPatch defers setting an edge's continuation field until the
// following code's entry index is known.
type exitPatch func(target int)

func intPtr(i int) *int { return &i }

// Lower lowers a whole Program into a Workflow's main graph, mutating
// the Lowerer's SymTable and the companion Bodies map for any function
// or method bodies encountered. It returns the produced edges for the
// main graph (the caller assembles the Workflow).
func (lw *Lowerer) Lower(prog Program) ([]ast.Edge, []errs.SourceDiagnostic) {
	b := &builder{}
	_, exits := lw.lowerStmts(b, prog.Stmts)
	stopIdx := b.append(ast.StopEdge())
	for _, patch := range exits {
		patch(stopIdx)
	}
	return b.edges, lw.diags
}

// Table returns the SymTable mutated during lowering, for the caller to
// commit back into CompileState on success.
func (lw *Lowerer) Table() *ast.SymTable { return lw.table }

// Bodies returns function/method bodies emitted during lowering, keyed
// by function index (as a string, matching ast.ProgramCounter.FuncID).
func (lw *Lowerer) Bodies() map[string][]ast.Edge { return lw.bodies }

func (lw *Lowerer) warnf(line int, format string, args ...any) {
	lw.diags = append(lw.diags, errs.SourceDiagnostic{
		Range:    errs.TextRange{What: lw.what, StartLine: line},
		Severity: errs.SeverityWarning,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (lw *Lowerer) errorf(line int, format string, args ...any) {
	lw.diags = append(lw.diags, errs.SourceDiagnostic{
		Range:    errs.TextRange{What: lw.what, StartLine: line},
		Severity: errs.SeverityError,
		Message:  fmt.Sprintf(format, args...),
	})
}
