// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package groth16verify

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// buildValidProof constructs a toy Groth16 instance that is guaranteed to
// satisfy the verification equation by construction: fix small alpha,
// beta, gamma, delta and ic_0/ic_1 scalars and a single public input x1,
// fix A and C, and derive B directly from the pairing identity rather than
// from an actual QAP, purely to exercise the multi-pairing arithmetic end
// to end.
func buildValidProof(t *testing.T, x1 fr.Element) (VerifyingKey, Proof) {
	t.Helper()
	_, _, g1Gen, g2Gen := bn254.Generators()

	var alphaS, betaS, gammaS, deltaS, icS0, icS1 fr.Element
	alphaS.SetUint64(2)
	betaS.SetUint64(3)
	gammaS.SetUint64(5)
	deltaS.SetUint64(7)
	icS0.SetUint64(11)
	icS1.SetUint64(13)

	scalarG1 := func(s fr.Element) bn254.G1Affine {
		var p bn254.G1Affine
		p.ScalarMultiplication(&g1Gen, frToBigInt(s))
		return p
	}
	scalarG2 := func(s fr.Element) bn254.G2Affine {
		var p bn254.G2Affine
		p.ScalarMultiplication(&g2Gen, frToBigInt(s))
		return p
	}

	vk := VerifyingKey{
		Alpha: scalarG1(alphaS),
		Beta:  scalarG2(betaS),
		Gamma: scalarG2(gammaS),
		Delta: scalarG2(deltaS),
		IC:    []bn254.G1Affine{scalarG1(icS0), scalarG1(icS1)},
	}

	// vk_x = ic_0 + x1*ic_1, i.e. scalar (icS0 + x1*icS1) on G1.
	var vkXScalar fr.Element
	vkXScalar.Mul(&icS1, &x1)
	vkXScalar.Add(&vkXScalar, &icS0)

	// Choose A, C as scalars of G1, B as a scalar of G2 such that
	// a*b = alpha*beta + vkXScalar*gamma + c*delta (the scalar-exponent
	// form of e(A,B)=e(alpha,beta)*e(vk_x,gamma)*e(C,delta) since every
	// point here is a scalar multiple of the same generator).
	var aS, cS fr.Element
	aS.SetUint64(17)
	cS.SetUint64(19)

	var ab, alphaBeta, vkXGamma, cDelta fr.Element
	_ = ab

	// b = (alpha*beta + vkX*gamma + c*delta) / a
	alphaBeta.Mul(&alphaS, &betaS)
	vkXGamma.Mul(&vkXScalar, &gammaS)
	cDelta.Mul(&cS, &deltaS)

	var rhs fr.Element
	rhs.Add(&alphaBeta, &vkXGamma)
	rhs.Add(&rhs, &cDelta)

	var aInv, bS fr.Element
	aInv.Inverse(&aS)
	bS.Mul(&rhs, &aInv)

	proof := Proof{
		A: scalarG1(aS),
		B: scalarG2(bS),
		C: scalarG1(cS),
	}
	return vk, proof
}

func frToBigInt(e fr.Element) *big.Int {
	return e.BigInt(new(big.Int))
}

func TestVerifyAccepts(t *testing.T) {
	var x1 fr.Element
	x1.SetUint64(23)
	vk, proof := buildValidProof(t, x1)

	ok, err := Verify(vk, proof, []fr.Element{x1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected valid proof to verify")
	}
}

func TestVerifyRejectsWrongPublicInput(t *testing.T) {
	var x1 fr.Element
	x1.SetUint64(23)
	vk, proof := buildValidProof(t, x1)

	var wrong fr.Element
	wrong.SetUint64(24)

	ok, err := Verify(vk, proof, []fr.Element{wrong})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected verification to fail for mismatched public input")
	}
}

func TestVerifyRejectsWrongPublicInputCount(t *testing.T) {
	var x1 fr.Element
	x1.SetUint64(23)
	vk, proof := buildValidProof(t, x1)

	_, err := Verify(vk, proof, nil)
	if err == nil {
		t.Fatal("expected error for public input count mismatch")
	}
}
