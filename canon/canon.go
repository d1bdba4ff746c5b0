// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package canon implements the deterministic byte encoding used to hash
// verifying keys and to measure canonical sizes for metering. It accepts
// the same restricted value universe the spec allows: maps, ordered
// sequences, strings, integers, booleans, byte strings and null — no
// floating point, ever.
package canon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"unicode/utf8"

	"golang.org/x/crypto/sha3"
)

// ErrNotEncodable is returned for any value type outside the canonical
// universe (floats, channels, funcs, non-UTF8 strings, surrogates...).
var ErrNotEncodable = errors.New("canon: value not encodable")

// Bytes is a marker type for a canonical fixed/variable-length byte string
// (public inputs, proof bodies, VK point encodings). It is always emitted
// big-endian with no length prefix ambiguity: the length is implicit from
// the surrounding structure, exactly as the width is implicit for field
// elements in the wire envelope.
type Bytes []byte

// Map is an ordered-on-output map value. Keys are sorted bytewise-lexicographic
// on their UTF-8 encoding at encode time; callers may insert in any order.
type Map map[string]any

// List is an ordered sequence value. Order is preserved as given — list
// order is semantically significant (e.g. public_inputs) and is never
// reordered.
type List []any

// Encode produces the canonical byte encoding of v. Map keys are sorted;
// no insignificant whitespace is ever emitted; integers use the shortest
// form with no leading zeros; byte strings are emitted as a big-endian hex
// string wrapped in quotes, matching canonical-JSON transport. Floating
// point values of any kind are rejected.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case string:
		return encodeString(buf, val)
	case int:
		return encodeInt(buf, int64(val))
	case int64:
		return encodeInt(buf, val)
	case uint64:
		buf.WriteString(strconv.FormatUint(val, 10))
		return nil
	case Bytes:
		return encodeString(buf, fmt.Sprintf("0x%x", []byte(val)))
	case []byte:
		return encodeString(buf, fmt.Sprintf("0x%x", val))
	case Map:
		return encodeMap(buf, val)
	case map[string]any:
		return encodeMap(buf, val)
	case List:
		return encodeList(buf, val)
	case []any:
		return encodeList(buf, val)
	case float32, float64:
		return fmt.Errorf("%w: floating point values are never accepted", ErrNotEncodable)
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrNotEncodable, v)
	}
}

func encodeInt(buf *bytes.Buffer, n int64) error {
	buf.WriteString(strconv.FormatInt(n, 10))
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: string is not valid UTF-8", ErrNotEncodable)
	}
	for _, r := range s {
		if r >= 0xD800 && r <= 0xDFFF {
			return fmt.Errorf("%w: string contains a surrogate code point", ErrNotEncodable)
		}
	}
	b, err := jsonMarshalString(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// jsonMarshalString produces a minimal, deterministic JSON string literal.
// We do not use encoding/json.Marshal for the outer structure (it does not
// guarantee our map-key ordering or integer shortest-form rules), and the
// escaping of a single string value below is done by hand as well.
func jsonMarshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
	return buf.Bytes(), nil
}

func encodeMap(buf *bytes.Buffer, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		if !utf8.ValidString(k) {
			return fmt.Errorf("%w: map key is not valid UTF-8", ErrNotEncodable)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys) // bytewise-lexicographic on UTF-8 bytes == Go string sort
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := encodeValue(buf, m[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func encodeList(buf *bytes.Buffer, l []any) error {
	buf.WriteByte('[')
	for i, v := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeValue(buf, v); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

// FromJSON decodes JSON bytes into the canonical value universe: objects
// become Map, arrays become List, and numbers become int64 (rejected if
// they carry a fractional part or don't fit, since §4.1 never accepts
// floating point). Registry records and envelopes arrive as ordinary JSON
// from callers, so this is the one place that bridges encoding/json's
// float64-by-default numeric decoding into the canonicalizer's integer-only
// universe before Encode/Hash/Size ever sees the value.
func FromJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("canon: decoding JSON: %w", err)
	}
	return fromJSONValue(v)
}

func fromJSONValue(v any) (any, error) {
	switch val := v.(type) {
	case nil, bool, string:
		return val, nil
	case json.Number:
		i, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: non-integer JSON number %q", ErrNotEncodable, val.String())
		}
		return i, nil
	case map[string]any:
		m := make(Map, len(val))
		for k, elem := range val {
			converted, err := fromJSONValue(elem)
			if err != nil {
				return nil, err
			}
			m[k] = converted
		}
		return m, nil
	case []any:
		l := make(List, len(val))
		for i, elem := range val {
			converted, err := fromJSONValue(elem)
			if err != nil {
				return nil, err
			}
			l[i] = converted
		}
		return l, nil
	default:
		return nil, fmt.Errorf("%w: unsupported JSON-decoded type %T", ErrNotEncodable, v)
	}
}

// Hash returns the "sha3-256:<hex>" digest identifier of v's canonical
// encoding, as required for vk_hash and for any other content-addressed
// identifier in the core.
func Hash(v any) (string, error) {
	b, err := Encode(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes returns the "sha3-256:<hex>" digest identifier of already
// canonicalized bytes.
func HashBytes(b []byte) string {
	sum := sha3.Sum256(b)
	return fmt.Sprintf("sha3-256:%x", sum[:])
}

// Size returns the canonical byte length of v, used for metering (proof
// bytes, vk bytes) so cost never depends on an implementation's internal
// in-memory representation.
func Size(v any) (int, error) {
	b, err := Encode(v)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}
