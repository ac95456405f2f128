package parser

import (
	"strconv"
	"strings"

	"goa.design/federator/ast"
)

// lowerStmts lowers a sequence of statements, chaining each flow-producing
// statement's exits to the next one's entry. Declaration-only statements
// (import, class, function definitions) register symbols/bodies as a
// side effect and contribute no edge to the surrounding control flow.
func (lw *Lowerer) lowerStmts(b *builder, stmts []Stmt) (entry int, exits []exitPatch) {
	entry = -1
	var pending []exitPatch
	for _, stmt := range stmts {
		stmtEntry, stmtExits, isFlow := lw.lowerStmt(b, stmt)
		if !isFlow {
			continue
		}
		if entry == -1 {
			entry = stmtEntry
		} else {
			for _, patch := range pending {
				patch(stmtEntry)
			}
		}
		pending = stmtExits
	}
	if entry == -1 {
		// Empty or declaration-only block: synthesize a no-op Linear edge
		// so callers can always rely on a concrete entry index.
		idx := b.append(ast.Edge{Kind: ast.EdgeLinear})
		return idx, []exitPatch{func(target int) { b.edges[idx].Next = target }}
	}
	return entry, pending
}

// lowerBlock is a thin wrapper around lowerStmts for BlockStmt values.
func (lw *Lowerer) lowerBlock(b *builder, block BlockStmt) (int, []exitPatch) {
	return lw.lowerStmts(b, block.Stmts)
}

func (lw *Lowerer) lowerStmt(b *builder, stmt Stmt) (entry int, exits []exitPatch, isFlow bool) {
	switch s := stmt.(type) {
	case ImportStmt:
		lw.imports[s.Name] = struct{}{}
		return 0, nil, false
	case ClassStmt:
		lw.lowerClass(s)
		return 0, nil, false
	case FuncDefStmt:
		lw.lowerFuncDef(s)
		return 0, nil, false
	case LetStmt:
		return lw.lowerAssignLike(b, s.Name, s.Value, s.Attrs, s.Line, true)
	case AssignStmt:
		return lw.lowerAssignLike(b, s.Name, s.Value, nil, s.Line, false)
	case ExprStmt:
		return lw.lowerExprStmt(b, s)
	case IfStmt:
		return lw.lowerIf(b, s)
	case ForStmt:
		return lw.lowerFor(b, s)
	case WhileStmt:
		return lw.lowerWhile(b, s)
	case ParallelStmt:
		return lw.lowerParallel(b, s)
	case ReturnStmt:
		return lw.lowerReturn(b, s)
	default:
		return 0, nil, false
	}
}

// lowerAssignLike handles both `let x := expr;` (declare=true, a fresh
// VarDef is registered) and `x := expr;` (declare=false, reuses an
// existing var by name if one was registered earlier).
func (lw *Lowerer) lowerAssignLike(b *builder, name string, value Expr, attrs []Attribute, line int, declare bool) (int, []exitPatch, bool) {
	if declare {
		lw.table.RegisterVar(ast.VarDef{Name: name})
	}

	if call, ok := value.(CallExpr); ok && strings.Contains(call.Target, ".") {
		return lw.lowerTaskCall(b, call, &name, attrs, line)
	}

	// Plain value assignment: a straight-line Store instruction. If the
	// value references another variable already known to hold a dataset
	// or intermediate result, propagate that through DataState so later
	// task calls that read `name` can resolve it.
	if ident, ok := value.(IdentExpr); ok {
		if set := lw.state.Data.GetVar(ident.Name); set != nil {
			for ds := range set {
				lw.state.Data.ExtendVar(name, ds)
			}
		}
	}
	idx := b.append(ast.Edge{Kind: ast.EdgeLinear, Instrs: []ast.Instr{{Kind: ast.InstrStore, Name: name}}})
	return idx, []exitPatch{func(target int) { b.edges[idx].Next = target }}, true
}

func (lw *Lowerer) lowerExprStmt(b *builder, s ExprStmt) (int, []exitPatch, bool) {
	if call, ok := s.Value.(CallExpr); ok && strings.Contains(call.Target, ".") {
		return lw.lowerTaskCall(b, call, nil, nil, s.Line)
	}
	if call, ok := s.Value.(CallExpr); ok {
		return lw.lowerFuncCall(b, call, nil)
	}
	idx := b.append(ast.Edge{Kind: ast.EdgeLinear})
	return idx, []exitPatch{func(target int) { b.edges[idx].Next = target }}, true
}

// lowerTaskCall emits a Node edge for a package-qualified call
// (`pkg.func(args...)`), resolving task metadata from the PackageIndex
// when available and honouring an `on` attribute restricting location.
func (lw *Lowerer) lowerTaskCall(b *builder, call CallExpr, result *string, attrs []Attribute, line int) (int, []exitPatch, bool) {
	meta, known := PackageMeta{}, false
	if lw.pkgs != nil {
		meta, known = lw.pkgs.Lookup(call.Target)
	}
	if !known {
		lw.warnf(line, "package index has no entry for task %q; planning will fail unless it is added before this workflow is planned", call.Target)
	}

	taskIdx := lw.findOrRegisterTask(call.Target, meta)

	locs := ast.AllLocs()
	for _, attr := range attrs {
		if attr.Key == "on" && len(attr.Values) > 0 {
			locs = ast.RestrictedLocs(attr.Values...)
		}
	}

	input := make(map[string]ast.NodeInput)
	for i, arg := range call.Args {
		argName := argPositionalName(meta, i)
		if dn, ok := lw.resolveDataName(arg); ok {
			input[argName] = ast.NodeInput{Name: dn}
		}
	}

	idx := b.append(ast.NodeEdge(taskIdx, locs, input, result, 0))
	if result != nil {
		lw.state.Data.SetVar(*result, *result)
	}
	return idx, []exitPatch{func(target int) { b.edges[idx].Next = target }}, true
}

// lowerFuncCall emits the push-then-Call pair for a bare user-function
// invocation, matching spec.md §3's description of Call as resolved "by
// a prior Linear that pushes the function value".
func (lw *Lowerer) lowerFuncCall(b *builder, call CallExpr, result *string) (int, []exitPatch, bool) {
	pushIdx := b.append(ast.Edge{Kind: ast.EdgeLinear, Instrs: []ast.Instr{{Kind: ast.InstrPush, Name: call.Target}}})

	input := make(map[string]ast.NodeInput)
	for i, arg := range call.Args {
		if dn, ok := lw.resolveDataName(arg); ok {
			input[argPositionalName(PackageMeta{}, i)] = ast.NodeInput{Name: dn}
		}
	}
	callIdx := b.append(ast.Edge{Kind: ast.EdgeCall, Input: input, Result: result})
	b.edges[pushIdx].Next = callIdx
	return pushIdx, []exitPatch{func(target int) { b.edges[callIdx].Next = target }}, true
}

func (lw *Lowerer) lowerIf(b *builder, s IfStmt) (int, []exitPatch, bool) {
	thenEntry, thenExits := lw.lowerBlock(b, s.Then)

	var falseNext *int
	var elseExits []exitPatch
	if s.Else != nil {
		elseEntry, ex := lw.lowerBlock(b, *s.Else)
		falseNext = intPtr(elseEntry)
		elseExits = ex
	}

	branchIdx := b.append(ast.Edge{Kind: ast.EdgeBranch, TrueNext: thenEntry, FalseNext: falseNext})
	setMerge := func(target int) { b.edges[branchIdx].Merge = intPtr(target) }

	exits := append([]exitPatch{setMerge}, thenExits...)
	exits = append(exits, elseExits...)
	return branchIdx, exits, true
}

func (lw *Lowerer) lowerWhile(b *builder, s WhileStmt) (int, []exitPatch, bool) {
	return lw.lowerLoop(b, nil, s.Cond, s.Body, nil)
}

func (lw *Lowerer) lowerFor(b *builder, s ForStmt) (int, []exitPatch, bool) {
	return lw.lowerLoop(b, s.Init, s.Cond, s.Body, s.Post)
}

// lowerLoop is shared by for/while. It emits: [init ->] loopEdge, whose
// Cond/Body fields point at a condition-test Branch subgraph and the
// loop body respectively; the body's exits (through an optional post
// statement) are patched back to the condition entry, closing the loop.
func (lw *Lowerer) lowerLoop(b *builder, initStmt Stmt, cond Expr, body BlockStmt, post Stmt) (int, []exitPatch, bool) {
	loopIdx := b.append(ast.Edge{Kind: ast.EdgeLoop})

	// Condition expressions are opaque to the IR (evaluation is the
	// executor's concern); the Branch edge alone marks the decision point.
	_ = cond
	condTestIdx := b.append(ast.Edge{Kind: ast.EdgeLinear})
	branchIdx := b.append(ast.Edge{Kind: ast.EdgeBranch})
	b.edges[condTestIdx].Next = branchIdx

	bodyEntry, bodyExits := lw.lowerBlock(b, body)
	b.edges[branchIdx].TrueNext = bodyEntry

	// Close the loop: body exits (through an optional post-statement)
	// jump back to the condition test.
	if post != nil {
		if postEntry, postExits, isFlow := lw.lowerStmt(b, post); isFlow {
			for _, patch := range bodyExits {
				patch(postEntry)
			}
			bodyExits = postExits
		}
	}
	for _, patch := range bodyExits {
		patch(condTestIdx)
	}

	b.edges[loopIdx].Cond = condTestIdx
	b.edges[loopIdx].Body = bodyEntry

	setLoopNext := func(target int) { b.edges[loopIdx].Next = target }
	setBranchMerge := func(target int) { b.edges[branchIdx].Merge = intPtr(target) }

	entry := loopIdx
	if initStmt != nil {
		initEntry, initExits, isFlow := lw.lowerStmt(b, initStmt)
		if isFlow {
			for _, patch := range initExits {
				patch(loopIdx)
			}
			entry = initEntry
		}
	}

	return entry, []exitPatch{setLoopNext, setBranchMerge}, true
}

func (lw *Lowerer) lowerParallel(b *builder, s ParallelStmt) (int, []exitPatch, bool) {
	var branchEntries []int
	var branchExits [][]exitPatch
	for _, branch := range s.Branches {
		entry, exits := lw.lowerBlock(b, branch)
		branchEntries = append(branchEntries, entry)
		branchExits = append(branchExits, exits)
	}
	parallelIdx := b.append(ast.Edge{Kind: ast.EdgeParallel, Branches: branchEntries})
	joinIdx := b.append(ast.Edge{Kind: ast.EdgeJoin, MergeStrategy: "all"})
	b.edges[parallelIdx].Merge = intPtr(joinIdx)

	for _, exits := range branchExits {
		for _, patch := range exits {
			patch(joinIdx)
		}
	}
	return parallelIdx, []exitPatch{func(target int) { b.edges[joinIdx].Next = target }}, true
}

func (lw *Lowerer) lowerReturn(b *builder, s ReturnStmt) (int, []exitPatch, bool) {
	if s.Value == nil {
		idx := b.append(ast.ReturnEdge(nil))
		return idx, nil, true
	}
	if ident, ok := s.Value.(IdentExpr); ok {
		idx := b.append(ast.ReturnEdge(&ident.Name))
		return idx, nil, true
	}
	// Literal or computed expression: stash it under a synthetic name via
	// a Store instruction, then return that name.
	const synthetic = "__ret"
	storeIdx := b.append(ast.Edge{Kind: ast.EdgeLinear, Instrs: []ast.Instr{{Kind: ast.InstrStore, Name: synthetic}}})
	retIdx := b.append(ast.ReturnEdge(intPtrToStr(synthetic)))
	b.edges[storeIdx].Next = retIdx
	return storeIdx, nil, true
}

func intPtrToStr(s string) *string { return &s }

func (lw *Lowerer) lowerClass(s ClassStmt) {
	var props []string
	for _, p := range s.Properties {
		props = append(props, p.Name)
	}
	var methodIdxs []uint64
	for _, m := range s.Methods {
		idx := lw.table.RegisterFunc(ast.FuncDef{Name: s.Name + "." + m.Name, ArgNames: m.Params})
		methodIdxs = append(methodIdxs, idx)
		lw.lowerFuncBody(idx, m.Body)
	}
	lw.table.RegisterClass(ast.ClassDef{Name: s.Name, Properties: props, Methods: methodIdxs})
}

func (lw *Lowerer) lowerFuncDef(s FuncDefStmt) {
	idx := lw.table.RegisterFunc(ast.FuncDef{Name: s.Name, ArgNames: s.Params})
	lw.lowerFuncBody(idx, s.Body)
}

func (lw *Lowerer) lowerFuncBody(idx uint64, body BlockStmt) {
	b := &builder{}
	_, exits := lw.lowerBlock(b, body)
	stopIdx := b.append(ast.StopEdge())
	for _, patch := range exits {
		patch(stopIdx)
	}
	lw.bodies[funcIDFor(idx)] = b.edges
}

func funcIDFor(idx uint64) string {
	return strconv.FormatUint(idx, 10)
}

// resolveDataName determines whether an argument expression refers to a
// DataName (persistent dataset or intermediate result), the only kind of
// argument the planner needs to see in Node.Input.
func (lw *Lowerer) resolveDataName(arg Expr) (ast.DataName, bool) {
	switch e := arg.(type) {
	case CallExpr:
		if e.Target == "Data" && len(e.Args) == 1 {
			if str, ok := e.Args[0].(StrExpr); ok {
				if lw.data != nil && !lw.data.Known(str.Value) {
					lw.warnf(0, "referenced dataset %q is not present in the data index", str.Value)
				}
				return ast.Data(str.Value), true
			}
		}
	case IdentExpr:
		if set := lw.state.Data.GetVar(e.Name); set != nil {
			for ds := range set {
				return ast.IntermediateResult(ds), true
			}
		}
	}
	return ast.DataName{}, false
}

func argPositionalName(meta PackageMeta, i int) string {
	if i < len(meta.ArgNames) {
		return meta.ArgNames[i]
	}
	return "arg" + strconv.FormatUint(uint64(i), 10)
}

func (lw *Lowerer) findOrRegisterTask(target string, meta PackageMeta) uint64 {
	for i, t := range lw.table.Tasks {
		if t.Name == target {
			return uint64(i)
		}
	}
	var caps []ast.Capability
	for _, c := range meta.Capabilities {
		caps = append(caps, ast.Capability(c))
	}
	pkg := target
	if i := strings.LastIndexByte(target, '.'); i >= 0 {
		pkg = target[:i]
	}
	return lw.table.RegisterTask(ast.TaskDef{
		Kind:           ast.TaskCompute,
		Name:           target,
		PackageName:    pkg,
		PackageVersion: meta.Version,
		ArgNames:       meta.ArgNames,
		Requirements:   caps,
		Signature:      meta.Signature,
	})
}
