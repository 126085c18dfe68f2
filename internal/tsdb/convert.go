// Package tsdb is the QuestDB destination client: row ingestion over ILP,
// column metadata over the Postgres wire, and the value casting rules that
// bridge decoded packet fields to destination column types.
package tsdb

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/dwsmith1983/decommigrate/pkg/types"
)

// Float sentinel values carry IEEE specials through columns that cannot store
// them. They are exact, out-of-band constants chosen per declared bit width;
// DecodeSentinel recognizes them by equality.
const (
	SentinelInf32    = math.MaxFloat32
	SentinelNegInf32 = -math.MaxFloat32
	SentinelNaN32    = math.MaxFloat32 / 2

	SentinelInf64    = math.MaxFloat64
	SentinelNegInf64 = -math.MaxFloat64
	SentinelNaN64    = math.MaxFloat64 / 2
)

// SentinelCategory identifies which IEEE special a sentinel value stands for.
type SentinelCategory int

// SentinelCategory values.
const (
	SentinelNone SentinelCategory = iota
	SentinelPosInf
	SentinelNegInf
	SentinelNaN
)

// EncodeFloat maps IEEE specials to the sentinel for the column's bit width.
// Finite values pass through unchanged.
func EncodeFloat(v float64, bits int) float64 {
	switch {
	case math.IsInf(v, 1):
		if bits == 32 {
			return SentinelInf32
		}
		return SentinelInf64
	case math.IsInf(v, -1):
		if bits == 32 {
			return SentinelNegInf32
		}
		return SentinelNegInf64
	case math.IsNaN(v):
		if bits == 32 {
			return SentinelNaN32
		}
		return SentinelNaN64
	default:
		return v
	}
}

// DecodeSentinel reports which IEEE special a stored value stands for, or
// SentinelNone for ordinary values.
func DecodeSentinel(v float64, bits int) SentinelCategory {
	if bits == 32 {
		switch v {
		case SentinelInf32:
			return SentinelPosInf
		case SentinelNegInf32:
			return SentinelNegInf
		case SentinelNaN32:
			return SentinelNaN
		}
		return SentinelNone
	}
	switch v {
	case SentinelInf64:
		return SentinelPosInf
	case SentinelNegInf64:
		return SentinelNegInf
	case SentinelNaN64:
		return SentinelNaN
	}
	return SentinelNone
}

// SanitizeName maps a target or packet name onto the destination's naming
// rule: ASCII letters, digits, and underscores pass through, everything else
// becomes an underscore. The rule must match the destination client exactly
// because the result doubles as the schema cache key.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_':
			b.WriteByte(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// TableName builds the destination table name for a packet:
// "{TLM|CMD}__{target}__{packet}" with both names sanitized.
func TableName(direction types.Direction, target, packet string) string {
	return string(direction) + "__" + SanitizeName(target) + "__" + SanitizeName(packet)
}

// ClassifyColumn maps a SHOW COLUMNS row onto a casting kind. VARCHAR "__C"
// columns hold state values; "__F" columns are formatted strings needing no
// tracking; remaining VARCHAR columns hold JSON-serialized arrays or DERIVED
// items. DECIMAL columns hold integers wider than a double's mantissa.
func ClassifyColumn(name, columnType string) (types.ColumnKind, bool) {
	switch strings.ToUpper(columnType) {
	case "VARCHAR", "STRING":
		if strings.HasSuffix(name, "__C") {
			return types.ColumnStateString, true
		}
		if strings.HasSuffix(name, "__F") {
			return types.ColumnPlain, false
		}
		return types.ColumnJSON, true
	case "FLOAT":
		return types.ColumnFloat32, true
	case "DOUBLE":
		return types.ColumnFloat64, true
	default:
		if strings.HasPrefix(strings.ToUpper(columnType), "DECIMAL") {
			return types.ColumnWideInt, true
		}
		return types.ColumnPlain, false
	}
}

// ConvertValue casts one field value per its column classification, returning
// the value to hand to the row writer. A nil result means the field should be
// skipped.
func ConvertValue(v any, kind types.ColumnKind) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch kind {
	case types.ColumnJSON:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("json-encoding value: %w", err)
		}
		return string(data), nil
	case types.ColumnStateString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprintf("%v", v), nil
	case types.ColumnWideInt:
		switch n := v.(type) {
		case json.Number:
			return n.String(), nil
		case int64:
			return fmt.Sprintf("%d", n), nil
		default:
			return fmt.Sprintf("%v", v), nil
		}
	case types.ColumnFloat32:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		return EncodeFloat(f, 32), nil
	case types.ColumnFloat64:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		return EncodeFloat(f, 64), nil
	default:
		return normalize(v)
	}
}

// normalize maps untracked values onto the writer's native types. Arrays and
// nested objects without a JSON classification still JSON-encode, matching
// the destination's default handling of non-scalar values.
func normalize(v any) (any, error) {
	switch n := v.(type) {
	case string, bool, int64, float64:
		return n, nil
	case int:
		return int64(n), nil
	case float32:
		return float64(n), nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %q out of range: %w", n.String(), err)
		}
		return f, nil
	case []any, map[string]any:
		data, err := json.Marshal(n)
		if err != nil {
			return nil, fmt.Errorf("json-encoding nested value: %w", err)
		}
		return string(data), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("number %q is not a float: %w", n.String(), err)
		}
		return f, nil
	case string:
		// State values occasionally land in float columns; the caller
		// retries with a widened classification after the write fails.
		return 0, fmt.Errorf("string value %q in float column", n)
	default:
		return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
	}
}
