// Package address implements the b58 public-address codec and the
// account_id/txo_id/transaction_log_id identifier hashing described in
// spec §6 "Identifiers". The address layout follows the same
// version-byte + payload + checksum shape the teacher-pool's
// Bitcoin-style wallet uses, generalized to carry a view key, a spend
// key, and an optional fog-service payload.
package address

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/mobilecoinofficial/full-service-sub000/crypto"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// checksumLength is the number of trailing checksum bytes appended to the
// payload before b58 encoding, matching common address-checksum practice.
const checksumLength = 4

// addressVersion is the only supported public-address wire version.
const addressVersion = byte(0x01)

// ErrInvalidAddress is returned by Decode when the checksum fails or the
// payload is malformed.
var ErrInvalidAddress = errors.New("address: invalid public address")

// PublicAddress is the decoded form of a public_address_b58 string (§6).
type PublicAddress struct {
	ViewPublic  crypto.Point
	SpendPublic crypto.Point
	// FogReportURL and FogAuthoritySig are optional fog-service fields
	// carried opaquely; the core never interprets them beyond inclusion
	// in the encoded address and in fog-hint construction (§4.I step 4).
	FogReportURL    string
	FogAuthoritySig []byte
}

// Encode produces the b58-with-checksum public_address_b58 string.
func Encode(addr PublicAddress) string {
	var buf bytes.Buffer
	buf.WriteByte(addressVersion)

	vp := addr.ViewPublic.Bytes()
	sp := addr.SpendPublic.Bytes()
	buf.Write(vp[:])
	buf.Write(sp[:])

	hasFog := addr.FogReportURL != "" || len(addr.FogAuthoritySig) > 0
	if hasFog {
		buf.WriteByte(1)
		writeLP(&buf, []byte(addr.FogReportURL))
		writeLP(&buf, addr.FogAuthoritySig)
	} else {
		buf.WriteByte(0)
	}

	payload := buf.Bytes()
	sum := checksum(payload)
	full := append(payload, sum...)

	return base58.Encode(full)
}

// Decode parses a public_address_b58 string back into its components,
// verifying the checksum. §8's round-trip law requires this to exactly
// invert Encode.
func Decode(s string) (PublicAddress, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return PublicAddress{}, ErrInvalidAddress
	}
	if len(raw) < 1+32+32+1+checksumLength {
		return PublicAddress{}, ErrInvalidAddress
	}

	payload := raw[:len(raw)-checksumLength]
	gotSum := raw[len(raw)-checksumLength:]
	wantSum := checksum(payload)
	if !bytes.Equal(gotSum, wantSum) {
		return PublicAddress{}, ErrInvalidAddress
	}

	r := bytes.NewReader(payload)
	ver, _ := r.ReadByte()
	if ver != addressVersion {
		return PublicAddress{}, ErrInvalidAddress
	}

	var vpBytes, spBytes [32]byte
	if _, err := r.Read(vpBytes[:]); err != nil {
		return PublicAddress{}, ErrInvalidAddress
	}
	if _, err := r.Read(spBytes[:]); err != nil {
		return PublicAddress{}, ErrInvalidAddress
	}

	vp, err := crypto.NewPointFromBytes(vpBytes)
	if err != nil {
		return PublicAddress{}, ErrInvalidAddress
	}
	sp, err := crypto.NewPointFromBytes(spBytes)
	if err != nil {
		return PublicAddress{}, ErrInvalidAddress
	}

	addr := PublicAddress{ViewPublic: vp, SpendPublic: sp}

	fogFlag, err := r.ReadByte()
	if err != nil {
		return addr, nil
	}
	if fogFlag == 1 {
		url, err := readLP(r)
		if err != nil {
			return PublicAddress{}, ErrInvalidAddress
		}
		sig, err := readLP(r)
		if err != nil {
			return PublicAddress{}, ErrInvalidAddress
		}
		addr.FogReportURL = string(url)
		addr.FogAuthoritySig = sig
	}

	return addr, nil
}

func checksum(payload []byte) []byte {
	sum := blake2b.Sum256(payload)
	return sum[:checksumLength]
}

func writeLP(buf *bytes.Buffer, b []byte) {
	var l [4]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(b)))
	buf.Write(l[:])
	buf.Write(b)
}

func readLP(r *bytes.Reader) ([]byte, error) {
	var l [4]byte
	if _, err := r.Read(l[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(l[:])
	buf := make([]byte, n)
	if n > 0 {
		if _, err := r.Read(buf); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// AccountID computes account_id = hash(view_public || spend_public) (§6).
func AccountID(viewPublic, spendPublic crypto.Point) [32]byte {
	vp := viewPublic.Bytes()
	sp := spendPublic.Bytes()
	return crypto.Hash256(vp[:], sp[:])
}

// TxoID computes txo_id = hash(output public key) (§6).
func TxoID(outputPublicKey crypto.Point) [32]byte {
	pk := outputPublicKey.Bytes()
	return crypto.Hash256(pk[:])
}

// DeriveAccountKeysFromEntropy derives an account's (spend private, view
// private) keypair from 32 bytes of root entropy, the standard legacy
// entropy → keys construction: spend is hashed directly from the entropy,
// view is hashed from spend so a view-only export can never recover spend
// (§6 "import from mnemonic or legacy entropy").
func DeriveAccountKeysFromEntropy(entropy [32]byte) (spendPrivate, viewPrivate crypto.Scalar) {
	spendPrivate = crypto.HashToScalar("root-entropy-spend", entropy[:])
	sb := spendPrivate.Bytes()
	viewPrivate = crypto.HashToScalar("root-entropy-view", sb[:])
	return spendPrivate, viewPrivate
}

// TransactionLogID computes transaction_log_id = hash(sorted input public
// keys || sorted output public keys) (§6). Callers are responsible for
// sorting inputPublicKeys and outputPublicKeys before calling this, since
// the sort order is part of the identifier's definition.
func TransactionLogID(sortedInputPublicKeys, sortedOutputPublicKeys [][32]byte) [32]byte {
	var parts [][]byte
	for _, k := range sortedInputPublicKeys {
		k := k
		parts = append(parts, k[:])
	}
	for _, k := range sortedOutputPublicKeys {
		k := k
		parts = append(parts, k[:])
	}
	return crypto.Hash256(parts...)
}
