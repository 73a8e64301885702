package mapper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsift/kobo-ingest/pkg/apperrors"
)

func TestNormalizeIdentifier_StripsPrefix(t *testing.T) {
	id, err := NormalizeIdentifier("meta/instanceID", "uuid:5c59e249-b88e-4742-abb6-942f79627cb6")
	require.NoError(t, err)
	assert.Equal(t, "5c59e249-b88e-4742-abb6-942f79627cb6", id.String())
}

func TestNormalizeIdentifier_BareUUID(t *testing.T) {
	id, err := NormalizeIdentifier("formhub/uuid", "a7eb959a-da4c-485b-8334-ee761ab1e4a7")
	require.NoError(t, err)
	assert.Equal(t, "a7eb959a-da4c-485b-8334-ee761ab1e4a7", id.String())
}

func TestNormalizeIdentifier_CaseInsensitive(t *testing.T) {
	id, err := NormalizeIdentifier("formhub/uuid", "A7EB959A-DA4C-485B-8334-EE761AB1E4A7")
	require.NoError(t, err)
	assert.Equal(t, "a7eb959a-da4c-485b-8334-ee761ab1e4a7", id.String())
}

func TestNormalizeIdentifier_Empty(t *testing.T) {
	_, err := NormalizeIdentifier("meta/instanceID", "")
	var invalid *apperrors.InvalidIdentifierError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "meta/instanceID", invalid.Key)
}

func TestNormalizeIdentifier_PrefixOnly(t *testing.T) {
	_, err := NormalizeIdentifier("meta/instanceID", "uuid:")
	var invalid *apperrors.InvalidIdentifierError
	assert.True(t, errors.As(err, &invalid))
}

func TestNormalizeIdentifier_Malformed(t *testing.T) {
	_, err := NormalizeIdentifier("meta/instanceID", "uuid:not-a-uuid")
	var invalid *apperrors.InvalidIdentifierError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "uuid:not-a-uuid", invalid.Value)
}

func TestNormalizeIdentifier_TrimsWhitespace(t *testing.T) {
	id, err := NormalizeIdentifier("formhub/uuid", "  a7eb959a-da4c-485b-8334-ee761ab1e4a7 ")
	require.NoError(t, err)
	assert.Equal(t, "a7eb959a-da4c-485b-8334-ee761ab1e4a7", id.String())
}
