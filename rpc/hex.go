package rpc

import (
	"encoding/hex"
	"strconv"

	"github.com/mobilecoinofficial/full-service-sub000/errs"
)

func hexEncode(b []byte) string { return hex.EncodeToString(b) }

func hexEncode32(b [32]byte) string { return hex.EncodeToString(b[:]) }

// decode32 parses a hex string into a [32]byte, the wire representation of
// every id, key and hash this surface carries (§3 "hex at wire boundary").
func decode32(field, s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, errs.Newf(errs.KindTransactionValidation, "rpc: %s: invalid hex", field)
	}
	if len(raw) != 32 {
		return out, errs.Newf(errs.KindTransactionValidation, "rpc: %s: expected 32 bytes, got %d", field, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func decodeBytes(field, s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, errs.Newf(errs.KindTransactionValidation, "rpc: %s: invalid hex", field)
	}
	return raw, nil
}

// atoui parses a base-10 pmob amount string, the wire representation every
// Amount uses (§3 "u64 values are carried as decimal strings").
func atoui(s string) (uint64, error) {
	var v uint64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errs.Newf(errs.KindTransactionValidation, "rpc: %q is not a decimal integer", s)
		}
		v = v*10 + uint64(r-'0')
	}
	if s == "" {
		return 0, errs.New(errs.KindTransactionValidation, "rpc: empty amount")
	}
	return v, nil
}

func uitoa(v uint64) string {
	return strconv.FormatUint(v, 10)
}
