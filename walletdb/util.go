package walletdb

import (
	"encoding/hex"
	"strings"
)

func hexID(id [32]byte) string { return hex.EncodeToString(id[:]) }

func mustDecodeHexID(s string) []byte {
	raw, err := hex.DecodeString(s)
	if err != nil {
		// id columns are always written via hexID; a decode failure here
		// means the database was corrupted or hand-edited outside the
		// store's own writes.
		panic("walletdb: corrupt id column: " + err.Error())
	}
	return raw
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure, without importing the driver's error type directly so callers
// stay decoupled from the specific driver in use.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
