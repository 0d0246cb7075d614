package codec

import (
	"fmt"
	"math/big"
	"time"

	"baton/pkg/types"
)

// ExtensionKind tags every non-primitive value in the free-form areas of a
// context (artifact metadata, memory facts, pipeline extensions). The set is
// closed: decode dispatches over a fixed switch and an unknown kind is a
// hard error, never silently dropped.
type ExtensionKind uint8

const (
	KindNil ExtensionKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
	// KindBigInt carries an arbitrary-precision integer as its decimal
	// string form, re-parsed on decode.
	KindBigInt
	// KindTimestamp carries a timestamp as integer epoch milliseconds.
	KindTimestamp
	// KindBlob wraps caller-defined binary payloads the codec never
	// interprets.
	KindBlob
)

// extValue is the tagged-union wire form of one free-form value.
type extValue struct {
	Kind ExtensionKind       `cbor:"1,keyasint"`
	Bool bool                `cbor:"2,keyasint,omitempty"`
	Int  int64               `cbor:"3,keyasint,omitempty"`
	Num  float64             `cbor:"4,keyasint,omitempty"`
	Str  string              `cbor:"5,keyasint,omitempty"`
	List []extValue          `cbor:"6,keyasint,omitempty"`
	Map  map[string]extValue `cbor:"7,keyasint,omitempty"`
	Bin  []byte              `cbor:"8,keyasint,omitempty"`
}

// encodeValue converts a caller-supplied value into its tagged wire form. An
// unsupported Go type fails the whole binary encode, which is what triggers
// the JSON fallback upstream.
func encodeValue(v any) (extValue, error) {
	switch val := v.(type) {
	case nil:
		return extValue{Kind: KindNil}, nil
	case bool:
		return extValue{Kind: KindBool, Bool: val}, nil
	case int:
		return extValue{Kind: KindInt, Int: int64(val)}, nil
	case int8:
		return extValue{Kind: KindInt, Int: int64(val)}, nil
	case int16:
		return extValue{Kind: KindInt, Int: int64(val)}, nil
	case int32:
		return extValue{Kind: KindInt, Int: int64(val)}, nil
	case int64:
		return extValue{Kind: KindInt, Int: val}, nil
	case uint:
		return encodeUint(uint64(val)), nil
	case uint8:
		return extValue{Kind: KindInt, Int: int64(val)}, nil
	case uint16:
		return extValue{Kind: KindInt, Int: int64(val)}, nil
	case uint32:
		return extValue{Kind: KindInt, Int: int64(val)}, nil
	case uint64:
		return encodeUint(val), nil
	case float32:
		return extValue{Kind: KindFloat, Num: float64(val)}, nil
	case float64:
		return extValue{Kind: KindFloat, Num: val}, nil
	case string:
		return extValue{Kind: KindString, Str: val}, nil
	case *big.Int:
		return extValue{Kind: KindBigInt, Str: val.String()}, nil
	case big.Int:
		return extValue{Kind: KindBigInt, Str: val.String()}, nil
	case time.Time:
		return extValue{Kind: KindTimestamp, Int: val.UnixMilli()}, nil
	case types.Blob:
		return extValue{Kind: KindBlob, Bin: val}, nil
	case []byte:
		return extValue{Kind: KindBlob, Bin: val}, nil
	case []any:
		list := make([]extValue, 0, len(val))
		for i, item := range val {
			enc, err := encodeValue(item)
			if err != nil {
				return extValue{}, fmt.Errorf("list index %d: %w", i, err)
			}
			list = append(list, enc)
		}
		return extValue{Kind: KindList, List: list}, nil
	case map[string]any:
		m := make(map[string]extValue, len(val))
		for k, item := range val {
			enc, err := encodeValue(item)
			if err != nil {
				return extValue{}, fmt.Errorf("key %q: %w", k, err)
			}
			m[k] = enc
		}
		return extValue{Kind: KindMap, Map: m}, nil
	default:
		return extValue{}, fmt.Errorf("unsupported value type %T", v)
	}
}

func encodeUint(v uint64) extValue {
	if v <= 1<<63-1 {
		return extValue{Kind: KindInt, Int: int64(v)}
	}
	// beyond int64 range, promote to arbitrary precision
	return extValue{Kind: KindBigInt, Str: new(big.Int).SetUint64(v).String()}
}

// decodeValue converts a tagged wire value back to its in-memory form.
func decodeValue(e extValue) (any, error) {
	switch e.Kind {
	case KindNil:
		return nil, nil
	case KindBool:
		return e.Bool, nil
	case KindInt:
		return e.Int, nil
	case KindFloat:
		return e.Num, nil
	case KindString:
		return e.Str, nil
	case KindList:
		list := make([]any, 0, len(e.List))
		for i, item := range e.List {
			dec, err := decodeValue(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list = append(list, dec)
		}
		return list, nil
	case KindMap:
		m := make(map[string]any, len(e.Map))
		for k, item := range e.Map {
			dec, err := decodeValue(item)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			m[k] = dec
		}
		return m, nil
	case KindBigInt:
		n, ok := new(big.Int).SetString(e.Str, 10)
		if !ok {
			return nil, fmt.Errorf("malformed big integer %q", e.Str)
		}
		return n, nil
	case KindTimestamp:
		return time.UnixMilli(e.Int).UTC(), nil
	case KindBlob:
		return types.Blob(e.Bin), nil
	default:
		return nil, fmt.Errorf("unknown extension kind %d", e.Kind)
	}
}

func encodeValueMap(in map[string]any) (map[string]extValue, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]extValue, len(in))
	for k, v := range in {
		enc, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = enc
	}
	return out, nil
}

func decodeValueMap(in map[string]extValue) (map[string]any, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		dec, err := decodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = dec
	}
	return out, nil
}
