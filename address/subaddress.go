package address

import (
	"encoding/binary"

	"github.com/mobilecoinofficial/full-service-sub000/crypto"
)

// subaddressScalar derives the per-index tweak m = Hs("subaddress" ||
// account_view_private || index), the standard CryptoNote subaddress
// construction: D = B + m*G (spend public), C = a*D (view public), and for
// a full account b' = b + m (spend private) (§3 Subaddress).
func subaddressScalar(accountViewPrivate crypto.Scalar, index uint64) crypto.Scalar {
	var idxBytes [8]byte
	binary.LittleEndian.PutUint64(idxBytes[:], index)
	viewBytes := accountViewPrivate.Bytes()
	return crypto.HashToScalar("subaddress", viewBytes[:], idxBytes[:])
}

// DeriveSubaddressPublicKeys derives the (spend public, view public) key
// pair for subaddress index, given only the account's view private key and
// spend public key — usable by both full and view-only accounts.
func DeriveSubaddressPublicKeys(accountViewPrivate crypto.Scalar, accountSpendPublic crypto.Point, index uint64) (spendPublic, viewPublic crypto.Point) {
	m := subaddressScalar(accountViewPrivate, index)
	spendPublic = accountSpendPublic.Add(m.BasepointMul())
	viewPublic = accountViewPrivate.Mul(spendPublic)
	return spendPublic, viewPublic
}

// DeriveSubaddressSpendPrivate derives the subaddress spend private key for
// a full account, the key KeyImage computation ultimately needs (§4.E step
// 4). View-only accounts cannot call this; they have no spend private key.
func DeriveSubaddressSpendPrivate(accountSpendPrivate, accountViewPrivate crypto.Scalar, index uint64) crypto.Scalar {
	m := subaddressScalar(accountViewPrivate, index)
	return accountSpendPrivate.Add(m)
}
