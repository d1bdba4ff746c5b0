// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package kzg verifies single-point KZG polynomial commitment openings over
// BN254. plonkverify does not import it; its two-point batched opening
// check is implemented inside plonkverify.
// This is deliberately not github.com/crate-crypto/go-kzg-4844: that
// library is pinned to BLS12-381 blob commitments for EIP-4844 and cannot
// serve a BN254 PLONK verifier. The pairing-product shape below follows
// the same e(commitment-related-G1, G2) = e(proof, G2) structure the
// teacher's own kzgPointEvaluation and plonkVerify pairing checks use, with
// gnark-crypto's BN254 pairing doing the actual multiplication instead of a
// hand-rolled curve implementation.
package kzg

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/luxfi/zkverify/bn254field"
)

// SRS is the subset of a BN254 KZG structured reference string a verifier
// needs: the G2 generator and its tau-shifted counterpart [tau]_2. The
// full (much larger) G1 power series is prover-only and never appears
// here.
type SRS struct {
	G2    bn254.G2Affine // [1]_2
	G2Tau bn254.G2Affine // [tau]_2
}

// Opening is a single KZG opening: a commitment C to a polynomial p, a
// claimed evaluation p(point) = value, and an opening proof π = [(p(X) -
// value) / (X - point)]_1.
type Opening struct {
	Commitment bn254.G1Affine
	Point      fr.Element
	Value      fr.Element
	Proof      bn254.G1Affine
}

func frToBigInt(e fr.Element) *big.Int {
	return e.BigInt(new(big.Int))
}

// VerifyOpening checks e(C - [value]_1, [1]_2) = e(π, [tau]_2 - [point]_2),
// rearranged as a single pairing product e(C-[value]_1, G2) *
// e(-π, [tau-point]_2) = 1 so only one multi-pairing call is needed.
func VerifyOpening(srs SRS, o Opening) (bool, error) {
	_, _, g1Gen, _ := bn254.Generators()

	// lhs = C - [value]_1 = C + (-value)*G1
	var negValue fr.Element
	negValue.Neg(&o.Value)
	var valueG1 bn254.G1Affine
	valueG1.ScalarMultiplication(&g1Gen, frToBigInt(negValue))

	var lhs bn254.G1Affine
	lhs.Add(&o.Commitment, &valueG1)

	// rhsG2 = [tau]_2 - [point]_2 = G2Tau + (-point)*G2
	var negPoint fr.Element
	negPoint.Neg(&o.Point)
	var pointG2 bn254.G2Affine
	pointG2.ScalarMultiplication(&srs.G2, frToBigInt(negPoint))

	var rhsG2 bn254.G2Affine
	rhsG2.Add(&srs.G2Tau, &pointG2)

	negProof := bn254field.NegG1(o.Proof)

	ok, err := bn254field.PairingProductIsOne(
		[]bn254.G1Affine{lhs, negProof},
		[]bn254.G2Affine{srs.G2, rhsG2},
	)
	if err != nil {
		return false, fmt.Errorf("kzg: pairing check failed: %w", err)
	}
	return ok, nil
}
