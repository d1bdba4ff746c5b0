// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merklefri

import (
	"encoding/binary"
	"testing"
)

func buildMerkleTree(h Hash, leaves [][]byte) ([32]byte, [][][32]byte) {
	level := make([][32]byte, len(leaves))
	for i, l := range leaves {
		d, err := digest(h, l)
		if err != nil {
			panic(err)
		}
		level[i] = d
	}

	paths := make([][][32]byte, len(leaves))
	idxs := make([]uint64, len(leaves))
	for i := range idxs {
		idxs[i] = uint64(i)
	}

	for len(level) > 1 {
		next := make([][32]byte, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			left, right := level[i], level[i+1]
			for j := range idxs {
				if idxs[j]/2 == uint64(i/2) {
					if idxs[j]%2 == 0 {
						paths[j] = append(paths[j], right)
					} else {
						paths[j] = append(paths[j], left)
					}
				}
			}
			var combined [64]byte
			copy(combined[:32], left[:])
			copy(combined[32:], right[:])
			d, err := digest(h, combined[:])
			if err != nil {
				panic(err)
			}
			next = append(next, d)
		}
		for j := range idxs {
			idxs[j] /= 2
		}
		level = next
	}
	return level[0], paths
}

func TestVerifyMerkleRoundTrip(t *testing.T) {
	leaves := [][]byte{{0}, {1}, {2}, {3}}
	root, paths := buildMerkleTree(SHA3_256, leaves)

	for i, leaf := range leaves {
		ok, err := VerifyMerkle(SHA3_256, root, leaf, uint64(i), paths[i])
		if err != nil {
			t.Fatalf("leaf %d: unexpected error: %v", i, err)
		}
		if !ok {
			t.Fatalf("leaf %d: expected valid inclusion proof", i)
		}
	}
}

func TestVerifyMerkleRejectsTamperedLeaf(t *testing.T) {
	leaves := [][]byte{{0}, {1}, {2}, {3}}
	root, paths := buildMerkleTree(SHA3_256, leaves)

	_, err := VerifyMerkle(SHA3_256, root, []byte{9}, 0, paths[0])
	if err == nil {
		t.Fatal("expected tampered leaf to fail verification")
	}
}

func TestVerifyMerkleBlake3(t *testing.T) {
	leaves := [][]byte{{0}, {1}}
	root, paths := buildMerkleTree(BLAKE3, leaves)

	ok, err := VerifyMerkle(BLAKE3, root, leaves[0], 0, paths[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected valid blake3 inclusion proof")
	}
}

func TestUnknownHashRejected(t *testing.T) {
	_, err := digest(Hash(7), []byte("x"))
	if err == nil {
		t.Fatal("expected error for unknown hash")
	}
}

func TestFieldArithmeticWrapsCorrectly(t *testing.T) {
	if got := fieldAdd(Goldilocks-1, 2); got != 1 {
		t.Fatalf("fieldAdd wraparound: got %d want 1", got)
	}
	if got := fieldMul(2, 3); got != 6 {
		t.Fatalf("fieldMul(2,3): got %d want 6", got)
	}
	// (p-1) * (p-1) mod p == 1, since p-1 == -1 (mod p)
	if got := fieldMul(Goldilocks-1, Goldilocks-1); got != 1 {
		t.Fatalf("fieldMul((p-1),(p-1)): got %d want 1", got)
	}
}

func TestFieldInverseRoundTrips(t *testing.T) {
	a := uint64(12345)
	inv := FieldInverse(a)
	if got := FieldMul(a, inv); got != 1 {
		t.Fatalf("a * a^-1: got %d want 1", got)
	}
}

func TestPrimitiveRootHasExpectedOrder(t *testing.T) {
	root := PrimitiveRoot(8)
	if got := FieldPow(root, 8); got != 1 {
		t.Fatalf("root^8: got %d want 1", got)
	}
	for k := uint64(1); k < 8; k++ {
		if FieldPow(root, k) == 1 {
			t.Fatalf("root^%d unexpectedly 1; root does not have order 8", k)
		}
	}
}

func TestFoldLayer(t *testing.T) {
	values := []uint64{1, 2, 3, 4}
	folded := FoldLayer(values, 10)
	if len(folded) != 2 {
		t.Fatalf("expected 2 folded values, got %d", len(folded))
	}
	if folded[0] != fieldAdd(1, fieldMul(10, 2)) {
		t.Fatalf("unexpected fold at index 0: %d", folded[0])
	}
	if folded[1] != fieldAdd(3, fieldMul(10, 4)) {
		t.Fatalf("unexpected fold at index 1: %d", folded[1])
	}
}

func TestVerifyQueryRejectsWrongLengths(t *testing.T) {
	c := Commitment{LayerRoots: make([][32]byte, 3)}
	q := Query{Index: 0, Values: make([]uint64, 2), AuthPaths: make([][][32]byte, 3)}
	if err := VerifyQuery(SHA3_256, c, q, nil, 2); err == nil {
		t.Fatal("expected error for mismatched value count")
	}
}

// buildFRIQuery builds a 3-layer FRI structure (domain sizes 4, 2, 1) by
// folding layer0 with alpha0 into layer1 and layer1 with alpha1 into the
// single-value final layer, each layer committed as its own Merkle tree,
// then assembles the Query an honest prover would produce for the given
// starting index.
func buildFRIQuery(index uint64, alphas []uint64) (Commitment, Query) {
	layer0 := []uint64{10, 20, 30, 40}
	layer1 := FoldLayer(layer0, alphas[0])
	layer2 := FoldLayer(layer1, alphas[1])

	leafBytes := func(v uint64) []byte {
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, v)
		return b
	}

	root0, paths0 := buildMerkleTree(SHA3_256, [][]byte{leafBytes(layer0[0]), leafBytes(layer0[1]), leafBytes(layer0[2]), leafBytes(layer0[3])})
	root1, paths1 := buildMerkleTree(SHA3_256, [][]byte{leafBytes(layer1[0]), leafBytes(layer1[1])})
	root2, paths2 := buildMerkleTree(SHA3_256, [][]byte{leafBytes(layer2[0])})

	c := Commitment{LayerRoots: [][32]byte{root0, root1, root2}}

	idx0 := index
	idx1 := idx0 / 2
	idx2 := idx1 / 2

	q := Query{
		Index:     index,
		Values:    []uint64{layer0[idx0], layer1[idx1], layer2[idx2]},
		AuthPaths: [][][32]byte{paths0[idx0], paths1[idx1], paths2[idx2]},
		Siblings:  []uint64{layer0[idx0^1], layer1[idx1^1]},
		SiblingAuthPaths: [][][32]byte{
			paths0[idx0^1],
			paths1[idx1^1],
		},
	}
	return c, q
}

func TestVerifyQueryAcceptsConsistentFold(t *testing.T) {
	alphas := []uint64{7, 11}
	c, q := buildFRIQuery(1, alphas)

	if err := VerifyQuery(SHA3_256, c, q, alphas, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestVerifyQueryRejectsInconsistentFold rebuilds layer1's Merkle tree over
// values unrelated to layer0's actual fold, so every individual layer's
// Merkle inclusion still checks out in isolation. Only the cross-layer fold
// check can catch this: a verifier that skipped it (as described in the
// prior revision) would accept the query.
func TestVerifyQueryRejectsInconsistentFold(t *testing.T) {
	alphas := []uint64{7, 11}
	layer0 := []uint64{10, 20, 30, 40}
	bogusLayer1 := []uint64{999, 888} // not FoldLayer(layer0, alphas[0])
	layer2 := FoldLayer(bogusLayer1, alphas[1])

	leafBytes := func(v uint64) []byte {
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, v)
		return b
	}

	root0, paths0 := buildMerkleTree(SHA3_256, [][]byte{leafBytes(layer0[0]), leafBytes(layer0[1]), leafBytes(layer0[2]), leafBytes(layer0[3])})
	root1, paths1 := buildMerkleTree(SHA3_256, [][]byte{leafBytes(bogusLayer1[0]), leafBytes(bogusLayer1[1])})
	root2, paths2 := buildMerkleTree(SHA3_256, [][]byte{leafBytes(layer2[0])})

	c := Commitment{LayerRoots: [][32]byte{root0, root1, root2}}
	index := uint64(1)
	idx0, idx1, idx2 := index, index/2, index/2/2

	q := Query{
		Index:            index,
		Values:           []uint64{layer0[idx0], bogusLayer1[idx1], layer2[idx2]},
		AuthPaths:        [][][32]byte{paths0[idx0], paths1[idx1], paths2[idx2]},
		Siblings:         []uint64{layer0[idx0^1], bogusLayer1[idx1^1]},
		SiblingAuthPaths: [][][32]byte{paths0[idx0^1], paths1[idx1^1]},
	}

	if err := VerifyQuery(SHA3_256, c, q, alphas, 2); err == nil {
		t.Fatal("expected inconsistent fold to be rejected")
	}
}
