package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	dErrors "ezclaim/pkg/domain-errors"
)

func TestHashAndVerify(t *testing.T) {
	Cost = bcrypt.MinCost
	t.Cleanup(func() { Cost = bcrypt.DefaultCost })

	hash, err := Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.NoError(t, Verify("s3cret", hash))
	assert.ErrorIs(t, Verify("wrong", hash), ErrMismatch)

	err = Verify("s3cret", "not-a-bcrypt-hash")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMismatch)
}

func TestHashRejectsEmpty(t *testing.T) {
	_, err := Hash("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestGenerate(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)
}
