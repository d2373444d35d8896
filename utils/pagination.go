package utils

import (
	"encoding/base64"
	"strconv"
)

// EncodeCursor wraps the last-seen row ID in an opaque cursor string.
func EncodeCursor(id uint) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.FormatUint(uint64(id), 10)))
}

// DecodeCursor unwraps a cursor produced by EncodeCursor. A malformed cursor
// decodes to (0, false) and pagination restarts from the top.
func DecodeCursor(cursor string) (uint, bool) {
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}
