package signer

import (
	"crypto/rand"
	"testing"

	"github.com/mobilecoinofficial/full-service-sub000/crypto"
	"github.com/stretchr/testify/require"
)

func randomRing(t *testing.T, n int) ([]crypto.Point, []crypto.Scalar) {
	t.Helper()
	ring := make([]crypto.Point, n)
	privs := make([]crypto.Scalar, n)
	for i := 0; i < n; i++ {
		priv, err := crypto.RandomScalar(rand.Reader)
		require.NoError(t, err)
		privs[i] = priv
		ring[i] = priv.BasepointMul()
	}
	return ring, privs
}

func TestSignRingVerifiesForRealIndex(t *testing.T) {
	ring, privs := randomRing(t, 11)
	realIndex := 4

	sig, err := SignRing(rand.Reader, []byte("message"), ring, realIndex, privs[realIndex])
	require.NoError(t, err)

	image := privs[realIndex].Mul(hp(ring[realIndex]))
	ok, err := VerifyRing([]byte("message"), ring, image, sig)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSignRingKeyImageIsDeterministicPerOwner(t *testing.T) {
	ring, privs := randomRing(t, 5)
	realIndex := 2

	sig1, err := SignRing(rand.Reader, []byte("tx-1"), ring, realIndex, privs[realIndex])
	require.NoError(t, err)
	sig2, err := SignRing(rand.Reader, []byte("tx-2"), ring, realIndex, privs[realIndex])
	require.NoError(t, err)

	require.Equal(t, sig1.KeyImage, sig2.KeyImage)
	require.Equal(t, crypto.KeyImage(privs[realIndex]), sig1.KeyImage)
}

func TestVerifyRingRejectsWrongMessage(t *testing.T) {
	ring, privs := randomRing(t, 7)
	realIndex := 0

	sig, err := SignRing(rand.Reader, []byte("correct"), ring, realIndex, privs[realIndex])
	require.NoError(t, err)

	image := privs[realIndex].Mul(hp(ring[realIndex]))
	ok, err := VerifyRing([]byte("tampered"), ring, image, sig)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyRingRejectsWrongKeyImage(t *testing.T) {
	ring, privs := randomRing(t, 6)
	realIndex := 3

	sig, err := SignRing(rand.Reader, []byte("message"), ring, realIndex, privs[realIndex])
	require.NoError(t, err)

	otherPriv, err := crypto.RandomScalar(rand.Reader)
	require.NoError(t, err)
	wrongImage := otherPriv.Mul(hp(ring[0]))

	ok, err := VerifyRing([]byte("message"), ring, wrongImage, sig)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSignRingRejectsOutOfRangeRealIndex(t *testing.T) {
	ring, privs := randomRing(t, 3)
	_, err := SignRing(rand.Reader, []byte("m"), ring, 7, privs[0])
	require.Error(t, err)
}
