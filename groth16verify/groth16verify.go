// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package groth16verify implements the Groth16/BN254 verification equation
// e(A,B) = e(α,β)·e(vk_x,γ)·e(C,δ). It follows the same equation the
// teacher's groth16PairingCheck computes, but parses and validates every
// point through bn254field instead of the teacher's bn256 wrapper, and
// enforces the spec's stricter "reject identity in A/C" rule rather than
// silently accepting it.
package groth16verify

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/luxfi/zkverify/bn254field"
)

// ErrPublicInputCountMismatch is returned when the number of supplied
// public inputs does not equal the VK's IC length minus one.
var ErrPublicInputCountMismatch = errors.New("groth16verify: public input count does not match verifying key")

// VerifyingKey holds the parsed Groth16 verifying key: alpha/beta/gamma/
// delta and the IC vector used for the multi-scalar public-input
// combination. IC[0] is the constant term; IC[1:] pairs with the public
// inputs in order.
type VerifyingKey struct {
	Alpha bn254.G1Affine
	Beta  bn254.G2Affine
	Gamma bn254.G2Affine
	Delta bn254.G2Affine
	IC    []bn254.G1Affine
}

// Proof is a Groth16 proof triple.
type Proof struct {
	A bn254.G1Affine
	B bn254.G2Affine
	C bn254.G1Affine
}

// Verify checks e(A,B) = e(α,β)·e(vk_x,γ)·e(C,δ), equivalently
// e(A,B)·e(-α,β)·e(-vk_x,γ)·e(-C,δ) = 1, as one multi-pairing call.
// publicInputs must already be canonical Fr elements (see
// bn254field.ReduceScalar) and A/C must already be known non-identity
// points — callers are expected to have run ParseG1/ParseG2 with
// allowInfinity=false on A, C per the spec's Open Question decision to
// reject identity there.
func Verify(vk VerifyingKey, proof Proof, publicInputs []fr.Element) (bool, error) {
	if len(vk.IC) != len(publicInputs)+1 {
		return false, fmt.Errorf("%w: vk expects %d, got %d", ErrPublicInputCountMismatch, len(vk.IC)-1, len(publicInputs))
	}

	vkX, err := computeVkX(vk.IC, publicInputs)
	if err != nil {
		return false, err
	}

	negAlpha := bn254field.NegG1(vk.Alpha)
	negVkX := bn254field.NegG1(vkX)
	negC := bn254field.NegG1(proof.C)

	ok, err := bn254field.PairingProductIsOne(
		[]bn254.G1Affine{proof.A, negAlpha, negVkX, negC},
		[]bn254.G2Affine{proof.B, vk.Beta, vk.Gamma, vk.Delta},
	)
	if err != nil {
		return false, fmt.Errorf("groth16verify: %w", err)
	}
	return ok, nil
}

// computeVkX computes vk_x = ic_0 + Σ x_i · ic_i, the multi-scalar
// combination of the public inputs against the VK's IC vector.
func computeVkX(ic []bn254.G1Affine, publicInputs []fr.Element) (bn254.G1Affine, error) {
	points := make([]bn254.G1Affine, len(publicInputs))
	scalars := make([]fr.Element, len(publicInputs))
	copy(points, ic[1:])
	copy(scalars, publicInputs)

	var msm bn254.G1Affine
	if len(points) > 0 {
		if _, err := msm.MultiExp(points, scalars, ecc.MultiExpConfig{}); err != nil {
			return bn254.G1Affine{}, fmt.Errorf("groth16verify: multi-scalar multiplication failed: %w", err)
		}
	}

	var vkX bn254.G1Affine
	vkX.Add(&ic[0], &msm)
	return vkX, nil
}
