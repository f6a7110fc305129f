package sqlite

import (
	"math"

	"github.com/custodia-labs/sercha-flow/internal/core/domain"
)

// floatKey tags a non-finite float in a stored payload. JSON has no literal
// for NaN or the infinities, and the similarity scorer uses -Inf for
// documents without text.
const floatKey = "$float"

// encodeValue replaces non-finite floats with tagged objects.
func encodeValue(v any) any {
	switch x := v.(type) {
	case float64:
		return encodeFloat(x)
	case float32:
		return encodeFloat(float64(x))
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = encodeValue(e)
		}
		return out
	case []any:
		return encodeSlice(x)
	case domain.Tuple:
		return encodeSlice(x)
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = encodeFloat(f)
		}
		return out
	case [][]float64:
		out := make([]any, len(x))
		for i, row := range x {
			out[i] = encodeValue(row)
		}
		return out
	default:
		return v
	}
}

func encodeSlice(x []any) []any {
	out := make([]any, len(x))
	for i, e := range x {
		out[i] = encodeValue(e)
	}
	return out
}

func encodeFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return map[string]any{floatKey: "NaN"}
	case math.IsInf(f, 1):
		return map[string]any{floatKey: "Infinity"}
	case math.IsInf(f, -1):
		return map[string]any{floatKey: "-Infinity"}
	default:
		return f
	}
}

// decodeValue restores floats tagged by encodeValue.
func decodeValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		if f, ok := decodeFloat(x); ok {
			return f
		}
		for k, e := range x {
			x[k] = decodeValue(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = decodeValue(e)
		}
		return x
	default:
		return v
	}
}

func decodeFloat(m map[string]any) (float64, bool) {
	if len(m) != 1 {
		return 0, false
	}
	s, ok := m[floatKey].(string)
	if !ok {
		return 0, false
	}
	switch s {
	case "NaN":
		return math.NaN(), true
	case "Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	default:
		return 0, false
	}
}
