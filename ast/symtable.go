package ast

// Capability is a tag a task requires and a location advertises (e.g.
// "gpu", "highmem").
type Capability string

// TaskKind discriminates Compute (implemented) and Transfer (reserved,
// never emitted by the parser today but carried for forward
// compatibility, matching the original implementation's task variants).
type TaskKind string

const (
	TaskCompute  TaskKind = "Compute"
	TaskTransfer TaskKind = "Transfer"
)

// TaskDef describes one callable task: its package, signature, and the
// capabilities a location must advertise to run it.
type TaskDef struct {
	Kind            TaskKind     `json:"kind"`
	Name            string       `json:"name"`
	PackageName     string       `json:"package_name"`
	PackageVersion  string       `json:"package_version"`
	ArgNames        []string     `json:"arg_names"`
	Requirements    []Capability `json:"requirements"`
	Signature       string       `json:"signature"`
}

// FuncDef describes one user-defined function: its name and signature.
// The body itself lives in Workflow.Funcs, keyed by the function's index
// converted to a string id.
type FuncDef struct {
	Name      string   `json:"name"`
	ArgNames  []string `json:"arg_names"`
	Signature string   `json:"signature"`
}

// ClassDef describes a class: its properties and the indices (into the
// global function vector) of its methods.
type ClassDef struct {
	Name           string   `json:"name"`
	Properties     []string `json:"properties"`
	Methods        []uint64 `json:"methods"`
	PackageName    string   `json:"package_name,omitempty"`
	PackageVersion string   `json:"package_version,omitempty"`
}

// VarDef describes one declared variable's static name; types are not
// tracked beyond what the analyser needs for dataflow approximation
// (DataState), so only the name is kept here.
type VarDef struct {
	Name string `json:"name"`
}

// SymTable is the append-only table of symbols visible during
// compilation: functions, tasks, classes, and variables, each with a
// stable, monotonically-increasing index. Builtins are pre-populated at
// indices 0..k by NewSymTable.
type SymTable struct {
	Funcs   []FuncDef          `json:"funcs"`
	Tasks   []TaskDef          `json:"tasks"`
	Classes []ClassDef         `json:"classes"`
	Vars    []VarDef           `json:"vars"`
	Results map[string]string  `json:"results"` // intermediate-result name -> producing location
}

// builtinFuncs seeds the function vector the way the original
// distinguishes user symbols from builtins by index range. No builtin
// classes are registered.
var builtinFuncs = []FuncDef{
	{Name: "print", ArgNames: []string{"message"}, Signature: "(Any) -> Void"},
	{Name: "println", ArgNames: []string{"message"}, Signature: "(Any) -> Void"},
}

// NewSymTable builds a fresh table with builtins pre-registered.
func NewSymTable() *SymTable {
	return &SymTable{
		Funcs:   append([]FuncDef(nil), builtinFuncs...),
		Tasks:   nil,
		Classes: nil,
		Vars:    nil,
		Results: make(map[string]string),
	}
}

// RegisterFunc appends a FuncDef and returns its stable index.
func (t *SymTable) RegisterFunc(f FuncDef) uint64 {
	t.Funcs = append(t.Funcs, f)
	return uint64(len(t.Funcs) - 1)
}

// RegisterTask appends a TaskDef and returns its stable index.
func (t *SymTable) RegisterTask(d TaskDef) uint64 {
	t.Tasks = append(t.Tasks, d)
	return uint64(len(t.Tasks) - 1)
}

// RegisterClass appends a ClassDef and returns its stable index.
func (t *SymTable) RegisterClass(c ClassDef) uint64 {
	t.Classes = append(t.Classes, c)
	return uint64(len(t.Classes) - 1)
}

// RegisterVar appends a VarDef and returns its stable index.
func (t *SymTable) RegisterVar(v VarDef) uint64 {
	t.Vars = append(t.Vars, v)
	return uint64(len(t.Vars) - 1)
}

// Func returns the FuncDef at idx, or false if out of range.
func (t *SymTable) Func(idx uint64) (FuncDef, bool) {
	if idx >= uint64(len(t.Funcs)) {
		return FuncDef{}, false
	}
	return t.Funcs[idx], true
}

// Task returns the TaskDef at idx, or false if out of range.
func (t *SymTable) Task(idx uint64) (TaskDef, bool) {
	if idx >= uint64(len(t.Tasks)) {
		return TaskDef{}, false
	}
	return t.Tasks[idx], true
}

// Clone makes a deep-enough copy of the table for snapshotting into a
// Workflow without risking later mutation aliasing (mirrors the
// clone-on-read pattern used for in-memory session stores elsewhere in
// this module).
func (t *SymTable) Clone() *SymTable {
	clone := &SymTable{
		Funcs:   append([]FuncDef(nil), t.Funcs...),
		Tasks:   append([]TaskDef(nil), t.Tasks...),
		Classes: append([]ClassDef(nil), t.Classes...),
		Vars:    append([]VarDef(nil), t.Vars...),
		Results: make(map[string]string, len(t.Results)),
	}
	for k, v := range t.Results {
		clone.Results[k] = v
	}
	return clone
}

// ProgramCounter is a (func_id, edge_idx) coordinate into a workflow.
// FuncID is "main" for the top-level graph or a function's index as a
// string for nested bodies.
type ProgramCounter struct {
	FuncID  string `json:"func_id"`
	EdgeIdx int    `json:"edge_idx"`
}

// MainFunc identifies the top-level graph in a ProgramCounter/Funcs map.
const MainFunc = "main"

// Start returns the ProgramCounter at the beginning of the main graph.
func Start() ProgramCounter { return ProgramCounter{FuncID: MainFunc, EdgeIdx: 0} }
