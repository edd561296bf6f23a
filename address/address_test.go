package address

import (
	"crypto/rand"
	"testing"

	"github.com/mobilecoinofficial/full-service-sub000/crypto"
	"github.com/stretchr/testify/require"
)

func randPoint(t *testing.T) crypto.Point {
	t.Helper()
	s, err := crypto.RandomScalar(rand.Reader)
	require.NoError(t, err)
	return s.BasepointMul()
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	addr := PublicAddress{
		ViewPublic:  randPoint(t),
		SpendPublic: randPoint(t),
	}

	encoded := Encode(addr)
	decoded, err := Decode(encoded)
	require.NoError(t, err)

	require.True(t, addr.ViewPublic.Equal(decoded.ViewPublic))
	require.True(t, addr.SpendPublic.Equal(decoded.SpendPublic))
	require.Empty(t, decoded.FogReportURL)
}

func TestEncodeDecodeRoundTripWithFog(t *testing.T) {
	addr := PublicAddress{
		ViewPublic:      randPoint(t),
		SpendPublic:     randPoint(t),
		FogReportURL:    "fog://report.example.com",
		FogAuthoritySig: []byte{1, 2, 3, 4},
	}

	encoded := Encode(addr)
	decoded, err := Decode(encoded)
	require.NoError(t, err)

	require.True(t, addr.ViewPublic.Equal(decoded.ViewPublic))
	require.True(t, addr.SpendPublic.Equal(decoded.SpendPublic))
	require.Equal(t, addr.FogReportURL, decoded.FogReportURL)
	require.Equal(t, addr.FogAuthoritySig, decoded.FogAuthoritySig)
}

func TestDecodeRejectsCorruptChecksum(t *testing.T) {
	addr := PublicAddress{ViewPublic: randPoint(t), SpendPublic: randPoint(t)}
	encoded := Encode(addr)

	corrupt := []byte(encoded)
	corrupt[0] = corrupt[0] + 1
	_, err := Decode(string(corrupt))
	require.Error(t, err)
}

func TestAccountIDStable(t *testing.T) {
	vp := randPoint(t)
	sp := randPoint(t)

	id1 := AccountID(vp, sp)
	id2 := AccountID(vp, sp)
	require.Equal(t, id1, id2)

	other := AccountID(sp, vp)
	require.NotEqual(t, id1, other)
}
