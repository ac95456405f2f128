// Package ast defines the workflow intermediate representation: the
// typed graph of Edges, the symbol table they reference, and the small
// value union (FullValue) that flows through both compilation and
// execution.
package ast

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Workflow is the serialisable IR artifact produced by the compiler,
// annotated in place by the planner, and read thereafter by policy
// consultation and the execution client.
type Workflow struct {
	ID    string            `json:"id"`
	Table *SymTable         `json:"table"`
	Graph []Edge            `json:"graph"`
	Funcs map[string][]Edge `json:"funcs"`
}

// New builds an empty, unplanned Workflow with a fresh id.
func New(table *SymTable) *Workflow {
	return &Workflow{
		ID:    uuid.NewString(),
		Table: table,
		Graph: nil,
		Funcs: make(map[string][]Edge),
	}
}

// Body returns the edge slice for the given ProgramCounter's function,
// which is Graph for MainFunc or the corresponding entry of Funcs.
func (w *Workflow) Body(funcID string) []Edge {
	if funcID == MainFunc {
		return w.Graph
	}
	return w.Funcs[funcID]
}

// SetBody replaces the edge slice for the given function id.
func (w *Workflow) SetBody(funcID string, edges []Edge) {
	if funcID == MainFunc {
		w.Graph = edges
		return
	}
	if w.Funcs == nil {
		w.Funcs = make(map[string][]Edge)
	}
	w.Funcs[funcID] = edges
}

// EdgeAt dereferences a ProgramCounter, returning false if it is out of
// range for the addressed function (a violation of the "closed graph"
// invariant, spec.md §3 invariant 4).
func (w *Workflow) EdgeAt(pc ProgramCounter) (Edge, bool) {
	body := w.Body(pc.FuncID)
	if pc.EdgeIdx < 0 || pc.EdgeIdx >= len(body) {
		return Edge{}, false
	}
	return body[pc.EdgeIdx], true
}

// Canonical serialises the workflow to a stable JSON form, used once per
// policy consultation round so every checker observes byte-identical
// context (spec.md §4.5 step 1).
func (w *Workflow) Canonical() ([]byte, error) {
	return json.Marshal(w)
}

// Clone deep-copies a Workflow, including its SymTable, so planning or
// further compilation on the clone cannot alias the original (used by
// the planner's idempotence property test, spec.md §8).
func (w *Workflow) Clone() *Workflow {
	out := &Workflow{
		ID:    w.ID,
		Table: w.Table.Clone(),
		Graph: cloneEdges(w.Graph),
		Funcs: make(map[string][]Edge, len(w.Funcs)),
	}
	for k, v := range w.Funcs {
		out.Funcs[k] = cloneEdges(v)
	}
	return out
}

func cloneEdges(edges []Edge) []Edge {
	if edges == nil {
		return nil
	}
	out := make([]Edge, len(edges))
	copy(out, edges)
	for i := range out {
		if out[i].Input != nil {
			in := make(map[string]NodeInput, len(out[i].Input))
			for k, v := range out[i].Input {
				in[k] = v
			}
			out[i].Input = in
		}
	}
	return out
}

// IsPlanned reports whether every Node edge in the workflow (main graph
// and all function bodies) has a location and fully-resolved inputs,
// i.e. the "plan well-formedness" property of spec.md §8.
func (w *Workflow) IsPlanned() bool {
	check := func(edges []Edge) bool {
		for _, e := range edges {
			if e.Kind != EdgeNode {
				continue
			}
			if e.At == "" {
				return false
			}
			for _, in := range e.Input {
				if in.Availability == nil {
					return false
				}
			}
		}
		return true
	}
	if !check(w.Graph) {
		return false
	}
	for _, body := range w.Funcs {
		if !check(body) {
			return false
		}
	}
	return true
}
