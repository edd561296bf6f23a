package crypto

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSharedSecretMatchesBothSides(t *testing.T) {
	viewPriv, err := RandomScalar(rand.Reader)
	require.NoError(t, err)

	r, err := RandomScalar(rand.Reader)
	require.NoError(t, err)
	R := r.BasepointMul()
	viewPub := viewPriv.BasepointMul()

	// The sender derives the same secret via r*viewPublic that the
	// recipient derives via viewPrivate*R.
	fromSender := r.Mul(viewPub)
	fromRecipient := viewPriv.Mul(R)

	require.True(t, fromSender.Equal(fromRecipient))
}

func TestMaskUnmaskAmountRoundTrips(t *testing.T) {
	secretScalar, err := RandomScalar(rand.Reader)
	require.NoError(t, err)
	secret := secretScalar.BasepointMul()

	maskedValue, maskedToken := MaskAmount(secret, 1_000_000, 0)
	value, token := UnmaskAmount(secret, maskedValue, maskedToken)

	require.EqualValues(t, 1_000_000, value)
	require.EqualValues(t, 0, token)
}

func TestKeyImageIsDeterministicAndUnique(t *testing.T) {
	priv, err := RandomScalar(rand.Reader)
	require.NoError(t, err)

	ki1 := KeyImage(priv)
	ki2 := KeyImage(priv)
	require.Equal(t, ki1, ki2)

	other, err := RandomScalar(rand.Reader)
	require.NoError(t, err)
	require.NotEqual(t, ki1, KeyImage(other))
}

func TestConfirmationNumberSoundness(t *testing.T) {
	secretScalar, err := RandomScalar(rand.Reader)
	require.NoError(t, err)
	secret := secretScalar.BasepointMul()

	recipPriv, err := RandomScalar(rand.Reader)
	require.NoError(t, err)
	recipPub := recipPriv.BasepointMul()

	conf := ConfirmationNumber(secret, recipPub)
	require.Equal(t, conf, ConfirmationNumber(secret, recipPub))

	otherPriv, err := RandomScalar(rand.Reader)
	require.NoError(t, err)
	require.NotEqual(t, conf, ConfirmationNumber(secret, otherPriv.BasepointMul()))
}
