// Package planner assigns every Node in a compiled workflow a concrete
// location and resolves each of its inputs to an Available or Unavailable
// AvailabilityKind, following control flow rather than source order
// (spec.md §4.4). A workflow that planned successfully satisfies
// Workflow.IsPlanned.
package planner

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"goa.design/federator/ast"
	"goa.design/federator/errs"
	"goa.design/federator/infra"
	"goa.design/federator/planner/sessionstore"
)

// DataLocator answers where a dataset is known and where it is directly
// accessible. infra.DataIndexClient implements this.
type DataLocator interface {
	Known(name string) bool
	Locations(name string) (map[string]infra.AccessInfo, bool)
}

// CapabilityProvider answers a location's advertised capability set.
// infra.CapabilityClient implements this.
type CapabilityProvider interface {
	Capabilities(ctx context.Context, location string) ([]string, error)
}

// Option configures a Planner.
type Option func(*Planner)

// WithRand overrides the planner's random source, used to break ties when
// a dataset is hosted at more than one remote location. Tests inject a
// fixed-seed source for determinism.
func WithRand(r *rand.Rand) Option {
	return func(p *Planner) { p.rand = r }
}

// WithSessionStore attaches a session store so repeated Plan calls against
// the same session id remember where earlier IntermediateResults landed.
func WithSessionStore(store sessionstore.Store) Option {
	return func(p *Planner) { p.sessions = store }
}

// Planner assigns locations to a compiled workflow's Nodes.
type Planner struct {
	data      DataLocator
	caps      CapabilityProvider
	locations []string
	sessions  sessionstore.Store
	rand      *rand.Rand
}

// New builds a Planner. locations is the full set of location ids eligible
// for scheduling an unrestricted ("on" any location) Node.
func New(data DataLocator, caps CapabilityProvider, locations []string, opts ...Option) *Planner {
	p := &Planner{
		data:      data,
		caps:      caps,
		locations: locations,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan assigns a location and resolves the inputs of every Node reachable
// in wf's main graph and every function body, mutating wf in place.
// sessionID may be empty to opt out of session-scoped result memory. On
// any failure the returned error is one of errs' PlanFailure kinds and the
// workflow is left partially mutated; callers must discard it rather than
// resume planning on it (spec.md §4.4's "partial plan is discarded").
func (p *Planner) Plan(ctx context.Context, wf *ast.Workflow, sessionID string) error {
	if sessionID != "" && p.sessions != nil {
		saved, ok, err := p.sessions.Get(ctx, sessionID)
		if err != nil {
			return errs.NewPlanFailureWithCause(errs.PlanRegistryRequest, "load planning session", err)
		}
		if ok {
			for name, loc := range saved {
				if _, exists := wf.Table.Results[name]; !exists {
					wf.Table.Results[name] = loc
				}
			}
		}
	}

	t := &traverser{p: p, table: wf.Table, ctx: ctx}

	if err := t.planFunction(wf.Graph); err != nil {
		return err
	}
	for _, body := range wf.Funcs {
		if err := t.planFunction(body); err != nil {
			return err
		}
	}

	if sessionID != "" && p.sessions != nil {
		if err := p.sessions.Save(ctx, sessionID, wf.Table.Results); err != nil {
			return errs.NewPlanFailureWithCause(errs.PlanRegistryRequest, "persist planning session", err)
		}
	}
	return nil
}

// traverser carries the read-only collaborators and the mutable symbol
// table shared across every function body planned by one Plan call.
type traverser struct {
	p     *Planner
	table *ast.SymTable
	ctx   context.Context
}

// planFunction walks one function's edge slice (the main graph or one
// entry of Workflow.Funcs) exactly once, except for Loop bodies, which get
// their own two internal passes (see walkLoop).
func (t *traverser) planFunction(edges []ast.Edge) error {
	if len(edges) == 0 {
		return nil
	}
	return t.walk(edges, make(map[int]bool), 0, -1, false)
}

// walk follows control flow from idx until it reaches boundary (exclusive,
// -1 meaning "no boundary"), a terminal edge (Stop/Return), or an edge
// already visited this call (closing a back-edge without re-descending
// it). allowDefer is threaded through unchanged except across a Loop's
// own two passes.
func (t *traverser) walk(edges []ast.Edge, visited map[int]bool, idx, boundary int, allowDefer bool) error {
	if idx == boundary || idx < 0 || idx >= len(edges) {
		return nil
	}
	if visited[idx] {
		return nil
	}
	visited[idx] = true

	e := &edges[idx]
	switch e.Kind {
	case ast.EdgeNode:
		if err := t.planNode(e, allowDefer); err != nil {
			return err
		}
		return t.walk(edges, visited, e.Next, boundary, allowDefer)

	case ast.EdgeLinear, ast.EdgeJoin, ast.EdgeCall:
		return t.walk(edges, visited, e.Next, boundary, allowDefer)

	case ast.EdgeStop, ast.EdgeReturn:
		return nil

	case ast.EdgeBranch:
		mergeIdx := -1
		if e.Merge != nil {
			mergeIdx = *e.Merge
		}
		if err := t.walk(edges, visited, e.TrueNext, mergeIdx, allowDefer); err != nil {
			return err
		}
		if e.FalseNext != nil {
			if err := t.walk(edges, visited, *e.FalseNext, mergeIdx, allowDefer); err != nil {
				return err
			}
		}
		if e.Merge != nil {
			return t.walk(edges, visited, *e.Merge, boundary, allowDefer)
		}
		return nil

	case ast.EdgeParallel:
		mergeIdx := -1
		if e.Merge != nil {
			mergeIdx = *e.Merge
		}
		for _, branch := range e.Branches {
			if err := t.walk(edges, visited, branch, mergeIdx, allowDefer); err != nil {
				return err
			}
		}
		if e.Merge != nil {
			return t.walk(edges, visited, *e.Merge, boundary, allowDefer)
		}
		return nil

	case ast.EdgeLoop:
		if err := t.walkLoop(edges, e); err != nil {
			return err
		}
		return t.walk(edges, visited, e.Next, boundary, allowDefer)

	default:
		return nil
	}
}

// walkLoop resolves a loop body in two full passes. The first pass allows
// a Node consuming an IntermediateResult to defer (leave itself unplanned)
// when its producer is a later statement in the same body, reachable only
// on the next iteration's carry-over; the second pass, now that every
// producer in the body has been visited once, resolves whatever remains
// and hard-fails on anything still unknown.
func (t *traverser) walkLoop(edges []ast.Edge, loop *ast.Edge) error {
	for _, allowDefer := range []bool{true, false} {
		if err := t.walk(edges, make(map[int]bool), loop.Cond, loop.Body, allowDefer); err != nil {
			return err
		}
		if err := t.walk(edges, make(map[int]bool), loop.Body, loop.Cond, allowDefer); err != nil {
			return err
		}
	}
	return nil
}

// planNode assigns e a location and resolves every input's availability,
// per spec.md §4.4:
//
//  1. Candidate locations start as either the attribute-restricted set or
//     every known location.
//  2. Each Data input narrows the candidates to locations where that
//     dataset is directly accessible (AmbiguousLocation if more or fewer
//     than one candidate survives).
//  3. The chosen location's advertised capabilities must be a superset of
//     the task's requirements (UnsupportedCapabilities otherwise).
//  4. Every input resolves to Available (hosted/produced at the chosen
//     location) or Unavailable (naming a source location to transfer
//     from, picked uniformly at random when more than one exists).
func (t *traverser) planNode(e *ast.Edge, allowDefer bool) error {
	if nodeFullyPlanned(e) {
		return nil
	}

	task, ok := t.table.Task(e.Task)
	if !ok {
		return errs.NewPlanFailure(errs.PlanRegistryParse, fmt.Sprintf("node references unknown task index %d", e.Task))
	}

	for _, in := range e.Input {
		if in.Name.Kind != ast.DataNameIntermediateResult {
			continue
		}
		if _, known := t.table.Results[in.Name.Name]; known {
			continue
		}
		if allowDefer {
			return nil
		}
		return errs.NewPlanFailure(errs.PlanUnknownIntermediateResult, fmt.Sprintf(
			"intermediate result %q consumed by task %q has no recorded producing location", in.Name.Name, task.Name))
	}

	for _, in := range e.Input {
		if in.Name.Kind == ast.DataNameData && !t.p.data.Known(in.Name.Name) {
			return errs.NewPlanFailure(errs.PlanUnknownDataset, fmt.Sprintf("dataset %q is not known to the data index", in.Name.Name))
		}
	}

	var candidates []string
	if e.Locs.All {
		candidates = append([]string(nil), t.p.locations...)
	} else {
		candidates = append([]string(nil), e.Locs.Restricted...)
	}
	// Only narrow an unresolved candidate set by data locality. A Node
	// already pinned to one location (by an "on" attribute, or by a
	// previous pass) is free to run somewhere that does not yet hold its
	// Data inputs; that just means those inputs resolve Unavailable below.
	if len(candidates) != 1 {
		for _, in := range e.Input {
			if in.Name.Kind != ast.DataNameData {
				continue
			}
			hosts, _ := t.p.data.Locations(in.Name.Name)
			candidates = intersectHosts(candidates, hosts)
		}
	}
	if len(candidates) != 1 {
		return errs.NewPlanFailure(errs.PlanAmbiguousLocation, fmt.Sprintf(
			"node for task %q resolves to %d candidate locations, want exactly 1", task.Name, len(candidates)))
	}
	chosen := candidates[0]

	advertised, err := t.p.caps.Capabilities(t.ctx, chosen)
	if err != nil {
		return errs.NewPlanFailureWithCause(errs.PlanRegistryRequest, fmt.Sprintf("fetch capabilities for %q", chosen), err)
	}
	if !supersetOf(advertised, task.Requirements) {
		return errs.NewPlanFailure(errs.PlanUnsupportedCapabilities, fmt.Sprintf(
			"location %q lacks a capability required by task %q", chosen, task.Name))
	}

	for name, in := range e.Input {
		avail, err := t.resolveInput(in, chosen)
		if err != nil {
			return err
		}
		in.Availability = avail
		e.Input[name] = in
	}

	e.Locs = ast.RestrictedLocs(chosen)
	e.At = chosen
	if e.Result != nil {
		t.table.Results[*e.Result] = chosen
	}
	return nil
}

func (t *traverser) resolveInput(in ast.NodeInput, chosen string) (*ast.AvailabilityKind, error) {
	switch in.Name.Kind {
	case ast.DataNameData:
		hosts, _ := t.p.data.Locations(in.Name.Name)
		if access, ok := hosts[chosen]; ok {
			avail := ast.Available(ast.AccessKind{How: access.How, Path: access.Path})
			return &avail, nil
		}
		source := t.pickHost(hosts)
		if source == "" {
			return nil, errs.NewPlanFailure(errs.PlanDatasetUnavailable, fmt.Sprintf(
				"dataset %q has no known host location to transfer from", in.Name.Name))
		}
		avail := ast.Unavailable(ast.TransferRegistryTar(source, in.Name.Name))
		return &avail, nil

	case ast.DataNameIntermediateResult:
		loc, known := t.table.Results[in.Name.Name]
		if !known {
			return nil, errs.NewPlanFailure(errs.PlanUnknownIntermediateResult, fmt.Sprintf(
				"intermediate result %q has no recorded producing location", in.Name.Name))
		}
		if loc == chosen {
			avail := ast.Available(ast.AccessKind{How: "local"})
			return &avail, nil
		}
		avail := ast.Unavailable(ast.TransferRegistryTar(loc, in.Name.Name))
		return &avail, nil

	default:
		return nil, errs.NewPlanFailure(errs.PlanRegistryParse, fmt.Sprintf("unknown data name kind %q", in.Name.Kind))
	}
}

// pickHost chooses uniformly at random among hosts' keys, sorting them
// first so the choice is reproducible for a given rand source despite
// Go's randomised map iteration order.
func (t *traverser) pickHost(hosts map[string]infra.AccessInfo) string {
	if len(hosts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(hosts))
	for k := range hosts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[t.p.rand.Intn(len(keys))]
}

func nodeFullyPlanned(e *ast.Edge) bool {
	if !e.Locs.IsPlanned() || e.At == "" {
		return false
	}
	for _, in := range e.Input {
		if in.Availability == nil {
			return false
		}
	}
	return true
}

func intersectHosts(candidates []string, hosts map[string]infra.AccessInfo) []string {
	out := candidates[:0:0]
	for _, c := range candidates {
		if _, ok := hosts[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

func supersetOf(have []string, want []ast.Capability) bool {
	set := make(map[string]bool, len(have))
	for _, h := range have {
		set[h] = true
	}
	for _, w := range want {
		if !set[string(w)] {
			return false
		}
	}
	return true
}
