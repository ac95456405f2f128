// Package errs defines the five error families of the orchestration
// pipeline: SourceDiagnostics, CompileFailure, PlanFailure, CheckFailure,
// and ExecFailure. The four failure families wrap an optional cause in
// the same chained-error shape, so errors.Is/As work across the whole
// pipeline; SourceDiagnostics is a plain list with no cause.
package errs

import "fmt"

// chained is the common shape underneath every family: a message plus an
// optional wrapped cause.
type chained struct {
	Message string
	Cause   error
}

func (e *chained) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *chained) Unwrap() error { return e.Cause }

// TextRange locates a diagnostic in caller-supplied source coordinates.
// The core is file-less: the caller supplies a "what" label (e.g. a
// snippet number) for pretty-printing.
type TextRange struct {
	What       string
	StartLine  int
	StartCol   int
	EndLine    int
	EndCol     int
}

// Severity of a SourceDiagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// SourceDiagnostic is a single parse/analyse finding. Not itself fatal:
// a compile can surface several.
type SourceDiagnostic struct {
	Range    TextRange
	Severity Severity
	Message  string
}

func (d SourceDiagnostic) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s", d.Range.What, d.Range.StartLine, d.Range.StartCol, d.Severity, d.Message)
}

// SourceDiagnostics collects every diagnostic produced by one parse or
// analysis pass.
type SourceDiagnostics struct {
	Diagnostics []SourceDiagnostic
}

func (d *SourceDiagnostics) Error() string {
	if len(d.Diagnostics) == 0 {
		return "no diagnostics"
	}
	if len(d.Diagnostics) == 1 {
		return d.Diagnostics[0].Error()
	}
	return fmt.Sprintf("%s (and %d more diagnostics)", d.Diagnostics[0].Error(), len(d.Diagnostics)-1)
}

// HasErrors reports whether any diagnostic has error severity.
func (d *SourceDiagnostics) HasErrors() bool {
	for _, diag := range d.Diagnostics {
		if diag.Severity == SeverityError {
			return true
		}
	}
	return false
}

// CompileFailure wraps SourceDiagnostics plus non-source errors raised by
// the compiler driver (index lookup, serialisation).
type CompileFailure struct{ chained }

// NewCompileFailure builds a CompileFailure with no cause.
func NewCompileFailure(message string) *CompileFailure {
	return &CompileFailure{chained{Message: message}}
}

// NewCompileFailureWithCause wraps cause (typically *SourceDiagnostics).
func NewCompileFailureWithCause(message string, cause error) *CompileFailure {
	return &CompileFailure{chained{Message: message, Cause: cause}}
}

// PlanFailureKind enumerates the fatal planner error kinds of spec.md §7.
type PlanFailureKind string

const (
	PlanUnknownDataset            PlanFailureKind = "UnknownDataset"
	PlanUnknownIntermediateResult PlanFailureKind = "UnknownIntermediateResult"
	PlanAmbiguousLocation         PlanFailureKind = "AmbiguousLocation"
	PlanUnsupportedCapabilities   PlanFailureKind = "UnsupportedCapabilities"
	PlanDatasetUnavailable        PlanFailureKind = "DatasetUnavailable"
	PlanRegistryRequest           PlanFailureKind = "RegistryRequest"
	PlanRegistryResponse          PlanFailureKind = "RegistryResponse"
	PlanRegistryParse             PlanFailureKind = "RegistryParse"
	PlanProxyError                PlanFailureKind = "ProxyError"
)

// PlanFailure is a fatal planning error; the partially-planned workflow
// is always discarded when one is returned.
type PlanFailure struct {
	chained
	Kind PlanFailureKind
}

// NewPlanFailure builds a PlanFailure of the given kind.
func NewPlanFailure(kind PlanFailureKind, message string) *PlanFailure {
	return &PlanFailure{chained: chained{Message: message}, Kind: kind}
}

// NewPlanFailureWithCause wraps a transport/parse cause.
func NewPlanFailureWithCause(kind PlanFailureKind, message string, cause error) *PlanFailure {
	return &PlanFailure{chained: chained{Message: message, Cause: cause}, Kind: kind}
}

func (e *PlanFailure) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.chained.Error())
}

// CheckFailure reports why a plan was not approved for execution.
type CheckFailure struct {
	chained
	Domain  string
	Reasons []string
	Denied  bool // true for CheckerDenied, false for transport/parse errors
}

// NewCheckerDenied builds a CheckFailure for an explicit denial.
func NewCheckerDenied(domain string, reasons []string) *CheckFailure {
	return &CheckFailure{
		chained: chained{Message: fmt.Sprintf("checker at %q denied the plan", domain)},
		Domain:  domain,
		Reasons: reasons,
		Denied:  true,
	}
}

// NewCheckTransportError builds a CheckFailure for a failed check RPC.
func NewCheckTransportError(domain string, cause error) *CheckFailure {
	return &CheckFailure{
		chained: chained{Message: fmt.Sprintf("check request to %q failed", domain), Cause: cause},
		Domain:  domain,
	}
}

func (e *CheckFailure) Error() string {
	if e.Denied {
		return fmt.Sprintf("%s (reasons: %v)", e.chained.Error(), e.Reasons)
	}
	return e.chained.Error()
}

// ExecFailure lifts a non-terminal-success task status to an error,
// carrying the JSON value attached to that status (if any) as detail.
type ExecFailure struct {
	chained
	Status string
	Detail string
}

// NewExecFailure builds an ExecFailure for a terminal failing status.
func NewExecFailure(status, detail string) *ExecFailure {
	return &ExecFailure{
		chained: chained{Message: fmt.Sprintf("task ended with status %s", status)},
		Status:  status,
		Detail:  detail,
	}
}

func (e *ExecFailure) Error() string {
	if e.Detail == "" {
		return e.chained.Error()
	}
	return fmt.Sprintf("%s: %s", e.chained.Error(), e.Detail)
}
