// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package zkverify

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// decodeHex decodes a "0x"-prefixed hex string into bytes. The envelope
// wire format carries every field/point/hash as such a string; this is the
// one place that strips the prefix before the canonical-length checks in
// bn254field/merklefri run.
func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("zkverify: invalid hex string %q: %w", s, err)
	}
	return b, nil
}

func decodeHex32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := decodeHex(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("zkverify: expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
