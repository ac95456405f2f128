package ast

// EdgeKind discriminates the Edge variants that make up a workflow body.
type EdgeKind string

const (
	EdgeNode     EdgeKind = "Node"
	EdgeLinear   EdgeKind = "Linear"
	EdgeStop     EdgeKind = "Stop"
	EdgeBranch   EdgeKind = "Branch"
	EdgeParallel EdgeKind = "Parallel"
	EdgeJoin     EdgeKind = "Join"
	EdgeLoop     EdgeKind = "Loop"
	EdgeCall     EdgeKind = "Call"
	EdgeReturn   EdgeKind = "Return"
)

// Locs describes the set of locations a Node is permitted to run at,
// before and after planner disambiguation.
type Locs struct {
	// All, when true, means "any location with the required capabilities
	// and task package" is acceptable; the planner must narrow this to
	// Restricted before the Node can be considered planned.
	All bool `json:"all,omitempty"`
	// Restricted holds the permitted location ids. A planned Node has
	// exactly one entry here.
	Restricted []string `json:"restricted,omitempty"`
}

// AllLocs builds the "any location" Locs value.
func AllLocs() Locs { return Locs{All: true} }

// RestrictedLocs builds a Locs value restricted to the given locations.
func RestrictedLocs(locations ...string) Locs { return Locs{Restricted: locations} }

// IsPlanned reports whether exactly one location remains.
func (l Locs) IsPlanned() bool { return !l.All && len(l.Restricted) == 1 }

// Edge is the tagged union of workflow IR instructions. Exactly one of the
// variant-specific fields is populated per Kind, following the pattern of
// an arena+index graph: all indices (Next, TrueNext, ...) refer to
// positions within the same function's edge slice (Workflow.Graph or the
// relevant entry of Workflow.Funcs), never to pointers, so the graph
// survives serialisation and copy without fixing up references.
type Edge struct {
	Kind EdgeKind `json:"kind"`

	// Node fields.
	Task   uint64              `json:"task,omitempty"`
	Locs   Locs                `json:"locs,omitempty"`
	At     string              `json:"at,omitempty"`
	Input  map[string]NodeInput `json:"input,omitempty"`
	Result *string             `json:"result,omitempty"`
	Next   int                 `json:"next,omitempty"`

	// Linear fields.
	Instrs []Instr `json:"instrs,omitempty"`

	// Branch fields.
	TrueNext  int  `json:"true_next,omitempty"`
	FalseNext *int `json:"false_next,omitempty"`
	Merge     *int `json:"merge,omitempty"`

	// Parallel fields.
	Branches []int `json:"branches,omitempty"`

	// Join fields.
	MergeStrategy string `json:"merge_strategy,omitempty"`

	// Loop fields.
	Cond int `json:"cond,omitempty"`
	Body int `json:"body,omitempty"`

	// Call fields (Input/Result reused from Node).

	// Return fields reuse Result.
}

// NodeInput pairs a DataName with its planner-assigned AvailabilityKind.
// Availability is nil until the planner resolves it.
type NodeInput struct {
	Name         DataName          `json:"name"`
	Availability *AvailabilityKind `json:"availability,omitempty"`
}

// InstrKind discriminates the straight-line value-stack instructions
// carried by a Linear edge. The core treats these opaquely; it never
// evaluates them, only threads them through compile/plan/serialise.
type InstrKind string

const (
	InstrLoad  InstrKind = "Load"
	InstrStore InstrKind = "Store"
	InstrPush  InstrKind = "Push"
	InstrPop   InstrKind = "Pop"
)

// Instr is one straight-line instruction.
type Instr struct {
	Kind  InstrKind  `json:"kind"`
	Name  string     `json:"name,omitempty"`
	Value *FullValue `json:"value,omitempty"`
}

// NodeEdge builds an unplanned Node edge.
func NodeEdge(task uint64, locs Locs, input map[string]NodeInput, result *string, next int) Edge {
	return Edge{Kind: EdgeNode, Task: task, Locs: locs, Input: input, Result: result, Next: next}
}

// StopEdge builds a Stop edge (no successor).
func StopEdge() Edge { return Edge{Kind: EdgeStop} }

// ReturnEdge builds a Return edge.
func ReturnEdge(result *string) Edge { return Edge{Kind: EdgeReturn, Result: result} }
