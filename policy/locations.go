package policy

import "fmt"

// StaticLocations is a fixed map-based Locations, built once at startup
// from an infra.InfraFile's dialed collaborators. It is the production
// wiring's default; tests supply their own Locations where they need
// per-call behaviour (denials, transport failures).
type StaticLocations struct {
	checkers   map[string]WorkflowChecker
	registries map[string]TransferChecker
}

// NewStaticLocations builds a StaticLocations from pre-dialed per-location
// collaborators.
func NewStaticLocations(checkers map[string]WorkflowChecker, registries map[string]TransferChecker) *StaticLocations {
	return &StaticLocations{checkers: checkers, registries: registries}
}

// All implements Locations.
func (s *StaticLocations) All() []string {
	locs := make([]string, 0, len(s.checkers))
	for loc := range s.checkers {
		locs = append(locs, loc)
	}
	return locs
}

// Checker implements Locations.
func (s *StaticLocations) Checker(location string) (WorkflowChecker, error) {
	c, ok := s.checkers[location]
	if !ok {
		return nil, fmt.Errorf("policy: no checker configured for location %q", location)
	}
	return c, nil
}

// Registry implements Locations.
func (s *StaticLocations) Registry(location string) (TransferChecker, error) {
	r, ok := s.registries[location]
	if !ok {
		return nil, fmt.Errorf("policy: no registry configured for location %q", location)
	}
	return r, nil
}
