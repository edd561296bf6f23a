package address

import (
	"crypto/rand"
	"testing"

	"github.com/mobilecoinofficial/full-service-sub000/crypto"
	"github.com/stretchr/testify/require"
)

func TestDeriveSubaddressPublicKeysDeterministic(t *testing.T) {
	viewPrivate, err := crypto.RandomScalar(rand.Reader)
	require.NoError(t, err)
	spendPrivate, err := crypto.RandomScalar(rand.Reader)
	require.NoError(t, err)
	spendPublic := spendPrivate.BasepointMul()

	sp1, vp1 := DeriveSubaddressPublicKeys(viewPrivate, spendPublic, 3)
	sp2, vp2 := DeriveSubaddressPublicKeys(viewPrivate, spendPublic, 3)
	require.True(t, sp1.Equal(sp2))
	require.True(t, vp1.Equal(vp2))

	sp3, _ := DeriveSubaddressPublicKeys(viewPrivate, spendPublic, 4)
	require.False(t, sp1.Equal(sp3))
}

func TestDeriveSubaddressSpendPrivateMatchesPublic(t *testing.T) {
	viewPrivate, err := crypto.RandomScalar(rand.Reader)
	require.NoError(t, err)
	spendPrivate, err := crypto.RandomScalar(rand.Reader)
	require.NoError(t, err)
	spendPublic := spendPrivate.BasepointMul()

	wantSpendPublic, _ := DeriveSubaddressPublicKeys(viewPrivate, spendPublic, 7)
	subSpendPrivate := DeriveSubaddressSpendPrivate(spendPrivate, viewPrivate, 7)

	require.True(t, subSpendPrivate.BasepointMul().Equal(wantSpendPublic))
}
