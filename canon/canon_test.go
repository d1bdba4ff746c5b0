// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package canon

import (
	"testing"
)

func TestEncodeMapKeyOrder(t *testing.T) {
	a := Map{"b": 1, "a": 2, "c": 3}
	b := Map{"c": 3, "a": 2, "b": 1}

	encA, err := Encode(a)
	if err != nil {
		t.Fatalf("encode a: %v", err)
	}
	encB, err := Encode(b)
	if err != nil {
		t.Fatalf("encode b: %v", err)
	}
	if string(encA) != string(encB) {
		t.Fatalf("key order changed encoding: %s != %s", encA, encB)
	}
	want := `{"a":2,"b":1,"c":3}`
	if string(encA) != want {
		t.Fatalf("got %s, want %s", encA, want)
	}
}

func TestEncodeNestedStable(t *testing.T) {
	v := Map{
		"circuit_id": "groth16/bn254/foo",
		"public_inputs": List{
			Bytes{0x01, 0x02},
			Bytes{0x00, 0xff},
		},
		"flags": Map{"z": true, "a": nil},
	}
	got, err := Encode(v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"circuit_id":"groth16/bn254/foo","flags":{"a":null,"z":true},"public_inputs":["0x0102","0x00ff"]}`
	if string(got) != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}

func TestEncodeRejectsFloat(t *testing.T) {
	if _, err := Encode(Map{"x": 1.5}); err == nil {
		t.Fatal("expected error for float value")
	}
}

func TestEncodeRejectsUnsupportedType(t *testing.T) {
	if _, err := Encode(make(chan int)); err == nil {
		t.Fatal("expected error for channel value")
	}
}

func TestHashStableAcrossKeyOrder(t *testing.T) {
	a := Map{"x": int64(1), "y": int64(2)}
	b := Map{"y": int64(2), "x": int64(1)}

	ha, err := Hash(a)
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	hb, err := Hash(b)
	if err != nil {
		t.Fatalf("hash b: %v", err)
	}
	if ha != hb {
		t.Fatalf("hash differs on key reordering: %s != %s", ha, hb)
	}
	if len(ha) < len("sha3-256:") || ha[:9] != "sha3-256:" {
		t.Fatalf("unexpected hash identifier prefix: %s", ha)
	}
}

func TestSizeMatchesEncodedLength(t *testing.T) {
	v := List{int64(1), int64(2), "three"}
	enc, err := Encode(v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	n, err := Size(v)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if n != len(enc) {
		t.Fatalf("size %d != encoded length %d", n, len(enc))
	}
}

func TestEncodeStringEscaping(t *testing.T) {
	got, err := Encode("a\"b\\c\nd")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `"a\"b\\c\nd"`
	if string(got) != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}
