package txbuilder

import (
	"encoding/binary"

	"github.com/mobilecoinofficial/full-service-sub000/crypto"
	"github.com/mobilecoinofficial/full-service-sub000/errs"
)

// RTH (recoverable transaction history) memos are a fixed 66-byte plaintext
// (§3 Txo "encrypted memo"), encrypted by XOR with a keystream derived from
// the output's shared secret, the same masking idiom MaskAmount/UnmaskAmount
// use for amounts.

// MemoKind classifies a decoded RTH memo's payload.
type MemoKind int

const (
	MemoUnused MemoKind = iota
	MemoSenderCredential
	MemoPaymentRequest
	MemoBurnRedemption
)

const (
	memoTagUnused           uint16 = 0x0000
	memoTagSenderCredential uint16 = 0x0100
	memoTagPaymentRequest   uint16 = 0x0200
	memoTagBurnRedemption   uint16 = 0x0300
)

// BuildSenderMemo encodes an authenticated-sender RTH memo identifying the
// sender by their credential subaddress index (§4.I
// "sender_memo_credential_subaddress_index").
func BuildSenderMemo(senderSubaddressIndex uint64) [66]byte {
	var plain [66]byte
	binary.BigEndian.PutUint16(plain[0:2], memoTagSenderCredential)
	binary.BigEndian.PutUint64(plain[2:10], senderSubaddressIndex)
	return plain
}

// BuildPaymentRequestMemo encodes a payment-request RTH memo (§4.I
// "payment_request_id").
func BuildPaymentRequestMemo(paymentRequestID uint64) [66]byte {
	var plain [66]byte
	binary.BigEndian.PutUint16(plain[0:2], memoTagPaymentRequest)
	binary.BigEndian.PutUint64(plain[2:10], paymentRequestID)
	return plain
}

// BuildBurnRedemptionMemo encodes a burn-claim credential into a memo
// (§4.I "redemption_memo_hex (burn only)").
func BuildBurnRedemptionMemo(redemptionMemo []byte) ([66]byte, error) {
	var plain [66]byte
	binary.BigEndian.PutUint16(plain[0:2], memoTagBurnRedemption)
	if len(redemptionMemo) > len(plain)-2 {
		return plain, errs.New(errs.KindTransactionValidation, "txbuilder: redemption memo exceeds memo payload capacity")
	}
	copy(plain[2:], redemptionMemo)
	return plain, nil
}

// EncryptMemo XOR-masks a plaintext memo with a keystream derived from the
// output's shared secret.
func EncryptMemo(sharedSecret crypto.Point, plain [66]byte) [66]byte {
	ks := memoKeystream(sharedSecret, len(plain))
	var out [66]byte
	for i := range out {
		out[i] = plain[i] ^ ks[i]
	}
	return out
}

// DecryptMemo inverts EncryptMemo; XOR masking is its own inverse.
func DecryptMemo(sharedSecret crypto.Point, encrypted [66]byte) [66]byte {
	return EncryptMemo(sharedSecret, encrypted)
}

// DecodeMemo classifies a decrypted memo's payload.
func DecodeMemo(plain [66]byte) (kind MemoKind, value uint64, data []byte) {
	switch binary.BigEndian.Uint16(plain[0:2]) {
	case memoTagSenderCredential:
		return MemoSenderCredential, binary.BigEndian.Uint64(plain[2:10]), nil
	case memoTagPaymentRequest:
		return MemoPaymentRequest, binary.BigEndian.Uint64(plain[2:10]), nil
	case memoTagBurnRedemption:
		return MemoBurnRedemption, 0, trimTrailingZeros(plain[2:])
	default:
		return MemoUnused, 0, nil
	}
}

func trimTrailingZeros(b []byte) []byte {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	out := make([]byte, end)
	copy(out, b[:end])
	return out
}

func memoKeystream(sharedSecret crypto.Point, n int) []byte {
	ssBytes := sharedSecret.Bytes()
	out := make([]byte, 0, n)
	for counter := uint32(0); len(out) < n; counter++ {
		var cb [4]byte
		binary.LittleEndian.PutUint32(cb[:], counter)
		block := crypto.Hash256(ssBytes[:], []byte("memo-mask"), cb[:])
		out = append(out, block[:]...)
	}
	return out[:n]
}
