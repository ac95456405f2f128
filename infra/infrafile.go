package infra

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Location is one entry of an InfraFile: the delegate (gRPC Checker +
// Execution) and registry (HTTP data/results) endpoints for a single
// administrative domain.
type Location struct {
	Delegate string `yaml:"delegate"`
	Registry string `yaml:"registry"`
}

// InfraFile maps location id -> Location, the shape spec.md §6 describes
// as `{location_id: {delegate: address, registry: address}}`.
type InfraFile map[string]Location

// allowedSchemes lists the only schemes InfraFile addresses may use.
var allowedSchemes = []string{"http://", "https://", "grpc://", "grpcs://"}

// LoadInfraFile reads and validates an InfraFile from path.
func LoadInfraFile(path string) (InfraFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("infra: read infra file %s: %w", path, err)
	}
	var file InfraFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("infra: parse infra file %s: %w", path, err)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return file, nil
}

// Validate checks that every address carries one of the allowed schemes.
func (f InfraFile) Validate() error {
	for id, loc := range f {
		if !hasAllowedScheme(loc.Delegate) {
			return fmt.Errorf("infra: location %q delegate address %q has an unsupported scheme", id, loc.Delegate)
		}
		if !hasAllowedScheme(loc.Registry) {
			return fmt.Errorf("infra: location %q registry address %q has an unsupported scheme", id, loc.Registry)
		}
	}
	return nil
}

// Locations returns every location id, for fan-out dispatch (policy's
// workflow-level check, spec.md §4.5 step 2).
func (f InfraFile) Locations() []string {
	ids := make([]string, 0, len(f))
	for id := range f {
		ids = append(ids, id)
	}
	return ids
}

func hasAllowedScheme(addr string) bool {
	for _, scheme := range allowedSchemes {
		if strings.HasPrefix(addr, scheme) {
			return true
		}
	}
	return false
}
