// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package transcript implements the Fiat-Shamir transcript used to derive
// every verifier challenge from the data actually committed so far. It is
// the same running-digest shape as zk.Transcript in the teacher package
// (state = hash(state || data)), generalized with ASCII domain-separation
// labels absorbed ahead of each value and a choice of the pinned hash
// function (SHA3-256, per §4.3) or Poseidon2 over BN254 Fr for
// in-circuit-friendly transcripts.
package transcript

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"
	"golang.org/x/crypto/sha3"
)

// Hash identifies which pinned hash function backs a transcript. The set
// is closed: a value outside it is a configuration error, not a runtime
// fallback.
type Hash uint8

const (
	// SHA3_256 is the default, general-purpose transcript hash.
	SHA3_256 Hash = iota
	// Poseidon2BN254 is the algebraic, in-circuit-friendly alternative for
	// proof systems that absorb field elements directly.
	Poseidon2BN254
)

// ErrUnknownHash is returned when a Hash value outside the closed set is
// requested.
var ErrUnknownHash = errors.New("transcript: unknown hash function")

// Transcript accumulates domain-separated absorptions and derives
// challenges from the running state. Two transcripts constructed with the
// same domain, hash choice, and absorption sequence always derive the same
// challenges — this is the property the dispatcher's determinism guarantee
// rests on.
type Transcript struct {
	hash  Hash
	state []byte
}

// New starts a transcript seeded with an ASCII domain-separation label
// (e.g. "zkverify/groth16/v1", "zkverify/plonk-kzg/v1"), so no challenge
// derived under one proof system or protocol version can collide with
// another's.
func New(hash Hash, domain string) (*Transcript, error) {
	t := &Transcript{hash: hash}
	switch hash {
	case SHA3_256:
		sum := sha3.Sum256([]byte(domain))
		t.state = sum[:]
	case Poseidon2BN254:
		t.state = poseidonAbsorb(nil, []byte(domain))
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownHash, hash)
	}
	return t, nil
}

// Absorb mixes a labeled value into the transcript. The label is absorbed
// immediately before the value on every call, so reordering or relabeling
// an absorption changes every subsequent challenge.
func (t *Transcript) Absorb(label string, data []byte) {
	switch t.hash {
	case Poseidon2BN254:
		t.state = poseidonAbsorb(t.state, []byte(label))
		t.state = poseidonAbsorb(t.state, data)
	default:
		t.state = sha3Absorb(t.state, []byte(label))
		t.state = sha3Absorb(t.state, data)
	}
}

// Challenge derives the next challenge as a uint64 in [0, 2^63), and mixes
// the derivation itself into the state so no two challenges under the same
// label are ever equal.
func (t *Transcript) Challenge(label string) uint64 {
	t.Absorb(label, nil)
	switch t.hash {
	case Poseidon2BN254:
		t.state = poseidonAbsorb(t.state, []byte("challenge"))
	default:
		t.state = sha3Absorb(t.state, []byte("challenge"))
	}
	return binary.BigEndian.Uint64(t.state[:8]) & 0x7FFFFFFFFFFFFFFF
}

// ChallengeScalar derives the next challenge reduced into BN254's scalar
// field, for PLONK/Groth16-style challenges (β, γ, α, ζ, v, u) that must
// themselves be field elements rather than raw integers.
func (t *Transcript) ChallengeScalar(label string) fr.Element {
	t.Absorb(label, nil)
	switch t.hash {
	case Poseidon2BN254:
		t.state = poseidonAbsorb(t.state, []byte("challenge-scalar"))
	default:
		t.state = sha3Absorb(t.state, []byte("challenge-scalar"))
	}
	var z fr.Element
	z.SetBytes(t.state)
	return z
}

func sha3Absorb(state, data []byte) []byte {
	h := sha3.New256()
	h.Write(state)
	h.Write(data)
	return h.Sum(nil)
}

// poseidonAbsorb folds data into state using gnark-crypto's Poseidon2
// Merkle-Damgard hasher over BN254 Fr, the same construction the teacher's
// note-commitment hasher uses.
func poseidonAbsorb(state, data []byte) []byte {
	h := poseidon2.NewMerkleDamgardHasher()
	if len(state) > 0 {
		h.Write(state)
	}
	h.Write(data)
	return h.Sum(nil)
}
