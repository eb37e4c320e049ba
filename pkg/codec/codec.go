// Package codec provides the structural encoding used for nested property
// values and storage snapshots. Encoding is CBOR with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items, so the same logical value always produces
// identical bytes. Every encoded nested value carries an explicit version
// envelope for forward-compatible schema evolution.
package codec

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"datagraph/pkg/domain"
)

var (
	registerOnce sync.Once
	encMode      cbor.EncMode
	decMode      cbor.DecMode
)

// Register installs the CBOR encode and decode modes. It runs once no
// matter how often it is called, so every environment open may attempt
// it redundantly.
func Register() {
	registerOnce.Do(func() {
		var err error
		encMode, err = cbor.CoreDetEncOptions().EncMode()
		if err != nil {
			panic("codec: CBOR encoder initialization failed: " + err.Error())
		}
		decMode, err = cbor.DecOptions{
			// Nested values only ever use string map keys. When the decode
			// target is any, pick map[string]any instead of the CBOR default
			// map[interface{}]interface{} so decoded values are directly
			// usable as EmbeddedMap.
			DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		}.DecMode()
		if err != nil {
			panic("codec: CBOR decoder initialization failed: " + err.Error())
		}
	})
}

// Marshal encodes v to deterministic CBOR.
func Marshal(v any) ([]byte, error) {
	Register()
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	Register()
	return decMode.Unmarshal(data, v)
}

// nestedVersion tags the envelope layout for encoded nested values.
const nestedVersion = 1

const (
	kindMap  = "map"
	kindList = "list"
)

type nestedEnvelope struct {
	Version int             `cbor:"v"`
	Kind    string          `cbor:"kind"`
	Data    cbor.RawMessage `cbor:"data"`
}

// EncodeNested encodes an EmbeddedMap or EmbeddedList into its versioned
// structural encoding. Any other value kind is rejected.
func EncodeNested(v any) (domain.EncodedValue, error) {
	Register()
	var kind string
	switch v.(type) {
	case domain.EmbeddedMap:
		kind = kindMap
	case domain.EmbeddedList:
		kind = kindList
	default:
		return domain.EncodedValue{}, fmt.Errorf("codec: cannot encode %T as nested value", v)
	}
	data, err := encMode.Marshal(v)
	if err != nil {
		return domain.EncodedValue{}, fmt.Errorf("codec: encode nested %s: %w", kind, err)
	}
	raw, err := encMode.Marshal(nestedEnvelope{Version: nestedVersion, Kind: kind, Data: data})
	if err != nil {
		return domain.EncodedValue{}, fmt.Errorf("codec: encode envelope: %w", err)
	}
	return domain.EncodedValue{Data: raw}, nil
}

// DecodeNested decodes an encoded nested value back into an EmbeddedMap
// or EmbeddedList, recursively normalizing inner maps and lists.
func DecodeNested(ev domain.EncodedValue) (any, error) {
	Register()
	var env nestedEnvelope
	if err := decMode.Unmarshal(ev.Data, &env); err != nil {
		return nil, fmt.Errorf("codec: decode envelope: %w", err)
	}
	if env.Version != nestedVersion {
		return nil, fmt.Errorf("codec: unsupported nested value version %d", env.Version)
	}
	switch env.Kind {
	case kindMap:
		var m map[string]any
		if err := decMode.Unmarshal(env.Data, &m); err != nil {
			return nil, fmt.Errorf("codec: decode nested map: %w", err)
		}
		return normalize(m), nil
	case kindList:
		var l []any
		if err := decMode.Unmarshal(env.Data, &l); err != nil {
			return nil, fmt.Errorf("codec: decode nested list: %w", err)
		}
		return normalize(l), nil
	default:
		return nil, fmt.Errorf("codec: unknown nested value kind %q", env.Kind)
	}
}

// normalize rewrites decoded CBOR containers into the domain nested
// types, leaving scalars untouched.
func normalize(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		m := make(domain.EmbeddedMap, len(vv))
		for k, inner := range vv {
			m[k] = normalize(inner)
		}
		return m
	case []any:
		l := make(domain.EmbeddedList, len(vv))
		for i, inner := range vv {
			l[i] = normalize(inner)
		}
		return l
	case uint64:
		// CBOR decodes non-negative integers as uint64; property values
		// use int64 throughout.
		return int64(vv)
	default:
		return v
	}
}
