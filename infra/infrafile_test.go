package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadInfraFileValidatesSchemes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "infra.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
loc-a:
  delegate: grpc://loc-a.example.com:50051
  registry: https://loc-a.example.com:8443
loc-b:
  delegate: grpcs://loc-b.example.com:50051
  registry: http://loc-b.example.com:8080
`), 0o600))

	file, err := LoadInfraFile(path)
	require.NoError(t, err)
	require.Len(t, file.Locations(), 2)
	require.Equal(t, "grpc://loc-a.example.com:50051", file["loc-a"].Delegate)
}

func TestLoadInfraFileRejectsBadScheme(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "infra.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
loc-a:
  delegate: ftp://loc-a.example.com:50051
  registry: https://loc-a.example.com:8443
`), 0o600))

	_, err := LoadInfraFile(path)
	require.Error(t, err)
}
