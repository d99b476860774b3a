// package normalize
//
// coerces cell values into a form that is safe to hand to the target driver
package normalize

import (
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// JSON : normalizes one json column value into a compact json literal.
// Malformed input never aborts the row, the cell degrades to SQL NULL with
// a warning instead. Valid input normalizes to a stable string, running the
// output through again yields the same string.
func JSON(raw any) any {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		return reparse([]byte(v))
	case []byte:
		return reparse(v)
	case map[string]any, []any, bool, float64, int64, int, json.Number:
		return reserialize(v)
	default:
		log.Warn().Type("value_type", raw).Msg("unsupported json cell type, substituting null")
		return nil
	}
}

func reparse(b []byte) any {
	var parsed any
	if err := json.Unmarshal(b, &parsed); err != nil {
		log.Warn().Err(err).Msg("could not parse json cell, substituting null")
		return nil
	}
	return reserialize(parsed)
}

func reserialize(v any) any {
	out, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Msg("could not serialize json cell, substituting null")
		return nil
	}
	return string(out)
}
