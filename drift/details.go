package drift

import (
	"bytes"
	"crypto/md5" //nolint:gosec // dedup fingerprint, not a security boundary
	"encoding/hex"
	"encoding/json"
)

// canonicalDetailsJSON renders v as JSON for the details column: compact,
// keys in v's own field order, a single space after every ':' and
// ',' outside string literals. This is purely the stored representation —
// dedup never recomputes a hash from it server-side (jsonb reorders object
// keys on round-trip, so a Postgres-side md5(details::text) would never agree
// with a hash computed here); detailsHash below is stored and compared
// verbatim in its own column instead.
func canonicalDetailsJSON(v any) ([]byte, error) {
	compact, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return spaceOutJSON(compact), nil
}

func spaceOutJSON(compact []byte) []byte {
	var out bytes.Buffer
	inString := false
	escaped := false
	for _, b := range compact {
		out.WriteByte(b)
		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case ':', ',':
			out.WriteByte(' ')
		}
	}
	return out.Bytes()
}

// detailsHash is the hex md5 digest of canonical details JSON.
func detailsHash(canonical []byte) string {
	sum := md5.Sum(canonical) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
