package entity

import (
	"encoding/json"
	"math"
)

// Block is the explorer's block document, kept as an unstructured JSON object.
// Numbers are held as json.Number so large integers are not truncated.
type Block map[string]any

// HeightKey is the only field a Block is required to carry.
const HeightKey = "height"

// Height returns the block's height field when present and integral.
func (b Block) Height() (int64, bool) {
	if b == nil {
		return 0, false
	}
	switch v := b[HeightKey].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	default:
		return 0, false
	}
}
