// Package compilestate holds the cross-snippet state a REPL-style
// compiler session carries between calls: the symbol table, already
// emitted function bodies, the current source-line offset, and the
// dataflow approximation used by the analyser.
package compilestate

import (
	"goa.design/federator/ast"
)

// TableState is the symbol-table half of CompileState: functions, tasks,
// classes, and variables in insertion order, plus the intermediate
// result -> producing-location map the planner populates.
type TableState struct {
	Funcs   []ast.FuncDef
	Tasks   []ast.TaskDef
	Classes []ast.ClassDef
	Vars    []ast.VarDef
	Results map[string]string
}

// NewTableState builds a fresh TableState from a SymTable snapshot. Both
// a from-scratch table (empty SymTable) and one carried over from a
// prior snippet produce identical shapes.
func NewTableState(table *ast.SymTable) TableState {
	return TableState{
		Funcs:   append([]ast.FuncDef(nil), table.Funcs...),
		Tasks:   append([]ast.TaskDef(nil), table.Tasks...),
		Classes: append([]ast.ClassDef(nil), table.Classes...),
		Vars:    append([]ast.VarDef(nil), table.Vars...),
		Results: copyResults(table.Results),
	}
}

// Empty returns the TableState for a brand-new session (builtins only).
func Empty() TableState {
	return NewTableState(ast.NewSymTable())
}

// Inject builds a live SymTable from this TableState, the inverse of
// NewTableState, used at the start of each compile_snippet call.
func (t TableState) Inject() *ast.SymTable {
	return &ast.SymTable{
		Funcs:   append([]ast.FuncDef(nil), t.Funcs...),
		Tasks:   append([]ast.TaskDef(nil), t.Tasks...),
		Classes: append([]ast.ClassDef(nil), t.Classes...),
		Vars:    append([]ast.VarDef(nil), t.Vars...),
		Results: copyResults(t.Results),
	}
}

func copyResults(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// CompileState is the full cross-snippet state of one REPL session:
// created once per session, mutated by each compile_snippet call, and
// discarded when the session ends (spec.md §3 Lifecycles).
type CompileState struct {
	// Offset is the current source-line offset used to attribute
	// diagnostics raised by the next snippet.
	Offset int
	Table  TableState
	// Bodies holds already-emitted edges per function name, so later
	// snippets can append to or call into functions defined earlier.
	Bodies map[string][]ast.Edge
	Data   *DataState
}

// New builds a fresh CompileState for a new session.
func New() *CompileState {
	return &CompileState{
		Offset: 0,
		Table:  Empty(),
		Bodies: make(map[string][]ast.Edge),
		Data:   NewDataState(),
	}
}

// Snapshot captures the current table as an *ast.SymTable, the shape a
// freshly-compiled Workflow carries.
func (s *CompileState) Snapshot() *ast.SymTable {
	return s.Table.Inject()
}

// Clone deep-copies the CompileState; used to implement the
// revert-on-failure guarantee of compile_snippet (spec.md §4.3).
func (s *CompileState) Clone() *CompileState {
	bodies := make(map[string][]ast.Edge, len(s.Bodies))
	for k, v := range s.Bodies {
		cp := make([]ast.Edge, len(v))
		copy(cp, v)
		bodies[k] = cp
	}
	return &CompileState{
		Offset: s.Offset,
		Table:  NewTableState(s.Table.Inject()),
		Bodies: bodies,
		Data:   s.Data.Clone(),
	}
}
