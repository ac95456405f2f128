package infra

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchemaValidatorAcceptsWellFormedPackageIndex(t *testing.T) {
	v, err := NewSchemaValidator("package-index", []byte(PackageIndexSchema))
	require.NoError(t, err)

	err = v.Validate([]byte(`{"echo": {"1.0.0": {"signature": "(Any) -> Any"}}}`))
	require.NoError(t, err)
}

func TestSchemaValidatorRejectsMissingRequiredField(t *testing.T) {
	v, err := NewSchemaValidator("package-index", []byte(PackageIndexSchema))
	require.NoError(t, err)

	err = v.Validate([]byte(`{"echo": {"1.0.0": {"capabilities": ["cpu"]}}}`))
	require.Error(t, err)
}

func TestSchemaValidatorAcceptsDataIndex(t *testing.T) {
	v, err := NewSchemaValidator("data-index", []byte(DataIndexSchema))
	require.NoError(t, err)

	err = v.Validate([]byte(`{"input": {"access": {"loc-a": {"how": "file"}}}}`))
	require.NoError(t, err)
}
