package codec

import (
	"bytes"
	"reflect"
	"testing"

	"datagraph/pkg/domain"
)

func TestNestedMapRoundTrip(t *testing.T) {
	original := domain.EmbeddedMap{
		"name":   "alice",
		"age":    int64(30),
		"score":  1.5,
		"active": true,
		"address": domain.EmbeddedMap{
			"city": "manila",
			"zip":  "1000",
		},
		"tags": domain.EmbeddedList{"a", "b", int64(3)},
	}
	encoded, err := EncodeNested(original)
	if err != nil {
		t.Fatalf("EncodeNested: %v", err)
	}
	decoded, err := DecodeNested(encoded)
	if err != nil {
		t.Fatalf("DecodeNested: %v", err)
	}
	if !reflect.DeepEqual(decoded, original) {
		t.Fatalf("round trip mismatch:\n got  %#v\n want %#v", decoded, original)
	}
}

func TestNestedListRoundTrip(t *testing.T) {
	original := domain.EmbeddedList{
		"first",
		int64(2),
		domain.EmbeddedMap{"k": "v"},
		domain.EmbeddedList{int64(1), int64(2)},
	}
	encoded, err := EncodeNested(original)
	if err != nil {
		t.Fatalf("EncodeNested: %v", err)
	}
	decoded, err := DecodeNested(encoded)
	if err != nil {
		t.Fatalf("DecodeNested: %v", err)
	}
	if !reflect.DeepEqual(decoded, original) {
		t.Fatalf("round trip mismatch:\n got  %#v\n want %#v", decoded, original)
	}
}

func TestEncodeNestedRejectsScalars(t *testing.T) {
	for _, v := range []any{"plain", int64(1), 1.5, true} {
		if _, err := EncodeNested(v); err == nil {
			t.Fatalf("EncodeNested(%T) succeeded, want error", v)
		}
	}
}

func TestEncodingIsDeterministic(t *testing.T) {
	value := domain.EmbeddedMap{"b": int64(2), "a": int64(1), "c": domain.EmbeddedList{"x", "y"}}
	first, err := EncodeNested(value)
	if err != nil {
		t.Fatalf("EncodeNested: %v", err)
	}
	second, err := EncodeNested(domain.EmbeddedMap{"c": domain.EmbeddedList{"x", "y"}, "a": int64(1), "b": int64(2)})
	if err != nil {
		t.Fatalf("EncodeNested: %v", err)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Fatal("same logical value produced different encodings")
	}
}

func TestDecodeNestedRejectsUnknownVersion(t *testing.T) {
	data, err := Marshal(nestedEnvelope{Version: 99, Kind: kindMap, Data: []byte{0xa0}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := DecodeNested(domain.EncodedValue{Data: data}); err == nil {
		t.Fatal("expected error for unknown envelope version")
	}
}
