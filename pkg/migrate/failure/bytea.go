package failure

import (
	"encoding/hex"

	"github.com/goccy/go-json"
)

// byteaKey : tags binary payloads in the json report. Raw bytes stored as a
// plain json string would be mangled by utf-8 replacement on the way through
// the report, hex keeps the round trip lossless.
const byteaKey = "$bytea"

// Bytea : a binary cell captured for replay
type Bytea []byte

func (b Bytea) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{byteaKey: hex.EncodeToString(b)})
}

// DecodeBytea : recovers the original bytes from a report value previously
// written through Bytea
func DecodeBytea(v any) ([]byte, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return nil, false
	}
	h, ok := m[byteaKey].(string)
	if !ok {
		return nil, false
	}
	raw, err := hex.DecodeString(h)
	if err != nil {
		return nil, false
	}
	return raw, true
}

func byteaLiteral(b []byte) string {
	return `'\x` + hex.EncodeToString(b) + `'`
}
