// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package plonkverify

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/luxfi/zkverify/bn254field"
	"github.com/luxfi/zkverify/transcript"
)

// forgedFixture is a PLONK instance built with knowledge of the SRS's
// secret tau, the same toy-trapdoor technique kzg_test.go's buildSRS uses.
// Knowing tau lets the test pick arbitrary commitment and evaluation
// scalars independently (rather than forcing every commitment to be a
// constant polynomial equal to its own evaluation) and then solve directly
// for the two KZG opening proofs that make the batched pairing check hold,
// the same way an honest prover derives them from the committed
// polynomials' true quotients. This mirrors a genuine prover more closely
// than a constants-only fixture: it exercises the real permutation
// argument and the two-point batched opening with evaluations that don't
// trivially equal their commitments' discrete logs.
type forgedFixture struct {
	tau fr.Element

	qmS, qlS, qrS, qoS, qcS fr.Element
	s1CommS, s2CommS, s3CommS fr.Element
	aCommS, bCommS, cCommS    fr.Element
	zCommS                    fr.Element

	aEval, bEval, cEval fr.Element
	s1Eval, s2Eval      fr.Element
	zOmegaEval          fr.Element
}

func defaultForgedFixture() forgedFixture {
	f := forgedFixture{}
	f.tau.SetUint64(12345)

	f.qmS.SetOne()
	f.qlS.SetOne()
	f.qrS.SetOne()
	f.qoS.SetOne()
	f.qcS.SetOne()

	f.s1CommS.SetUint64(101)
	f.s2CommS.SetUint64(103)
	f.s3CommS.SetUint64(107)
	f.aCommS.SetUint64(109)
	f.bCommS.SetUint64(113)
	f.cCommS.SetUint64(127)
	f.zCommS.SetUint64(131)

	f.aEval.SetUint64(2)
	f.bEval.SetUint64(3)
	f.cEval.SetUint64(5)
	f.s1Eval.SetUint64(7)
	f.s2Eval.SetUint64(11)
	f.zOmegaEval.SetUint64(13)
	return f
}

func scalarG1(s fr.Element) bn254.G1Affine {
	_, _, g1Gen, _ := bn254.Generators()
	var p bn254.G1Affine
	p.ScalarMultiplication(&g1Gen, frToBigInt(s))
	return p
}

func scalarG2(s fr.Element) bn254.G2Affine {
	_, _, _, g2Gen := bn254.Generators()
	var p bn254.G2Affine
	p.ScalarMultiplication(&g2Gen, frToBigInt(s))
	return p
}

// buildForgedProof assembles a verifying key and proof from f, replays the
// transcript derivation up to v exactly as Verify does, and solves for
// Wxi/Wxiw as genuine single-point KZG openings of (F1, zeta, E1) and (Z,
// zeta*omega, zOmegaEval) respectively — each valid independent of the
// final batching challenge u, since a valid KZG opening proof doesn't
// depend on how the verifier later aggregates it with other openings.
func buildForgedProof(f forgedFixture, pi []fr.Element) (VerifyingKey, Proof) {
	var domainSize uint64 = 1
	var omega fr.Element
	omega.SetOne()

	vk := VerifyingKey{
		CircuitID:       "plonk-test",
		Qm:              scalarG1(f.qmS),
		Ql:              scalarG1(f.qlS),
		Qr:              scalarG1(f.qrS),
		Qo:              scalarG1(f.qoS),
		Qc:              scalarG1(f.qcS),
		S1:              scalarG1(f.s1CommS),
		S2:              scalarG1(f.s2CommS),
		S3:              scalarG1(f.s3CommS),
		X2:              scalarG2(f.tau),
		NumPublicInputs: len(pi),
		DomainSize:      domainSize,
		Omega:           omega,
	}

	var id bn254.G1Affine
	proof := Proof{
		A: scalarG1(f.aCommS), B: scalarG1(f.bCommS), C: scalarG1(f.cCommS),
		Z:          scalarG1(f.zCommS),
		T1:         id, T2: id, T3: id,
		AEval: f.aEval, BEval: f.bEval, CEval: f.cEval,
		S1Eval: f.s1Eval, S2Eval: f.s2Eval, ZOmegaEval: f.zOmegaEval,
	}

	beta, gamma, alpha, zeta, v := replayToV(vk, proof, pi)

	dom := domainAt(vk.DomainSize, vk.Omega, zeta)
	piEval := evaluatePublicInputs(pi, dom)

	ab := mulScalar(f.aEval, f.bEval)
	zCoef := zCoefficient(proof, alpha, beta, gamma, dom)
	s3Coef := s3Coefficient(proof, alpha, beta, gamma)

	var dScalar fr.Element
	dScalar.Add(&ab, &f.aEval)
	dScalar.Add(&dScalar, &f.bEval)
	dScalar.Add(&dScalar, &f.cEval)
	one := oneScalar()
	dScalar.Add(&dScalar, &one)
	dScalar.Add(&dScalar, mulScalarPtr(zCoef, f.zCommS))
	dScalar.Add(&dScalar, mulScalarPtr(s3Coef, f.s3CommS))
	// T1/T2/T3 are all the identity (scalar 0), so the quotient-folding
	// terms contribute nothing to dScalar.

	v2 := mulScalar(v, v)
	v3 := mulScalar(v2, v)
	v4 := mulScalar(v3, v)
	v5 := mulScalar(v4, v)

	f1Scalar := dScalar
	f1Scalar.Add(&f1Scalar, mulScalarPtr(v, f.aCommS))
	f1Scalar.Add(&f1Scalar, mulScalarPtr(v2, f.bCommS))
	f1Scalar.Add(&f1Scalar, mulScalarPtr(v3, f.cCommS))
	f1Scalar.Add(&f1Scalar, mulScalarPtr(v4, f.s1CommS))
	f1Scalar.Add(&f1Scalar, mulScalarPtr(v5, f.s2CommS))

	r0 := batchedEvaluation(proof, piEval, alpha, beta, gamma, dom)
	e1 := aggregateE(r0, proof, v)

	zetaOmega := mulScalar(zeta, vk.Omega)

	var tauMinusZeta fr.Element
	tauMinusZeta.Sub(&f.tau, &zeta)
	var tauMinusZetaOmega fr.Element
	tauMinusZetaOmega.Sub(&f.tau, &zetaOmega)

	var w1Num fr.Element
	w1Num.Sub(&f1Scalar, &e1)
	var w1Denom fr.Element
	w1Denom.Inverse(&tauMinusZeta)
	w1 := mulScalar(w1Num, w1Denom)

	var w2Num fr.Element
	w2Num.Sub(&f.zCommS, &f.zOmegaEval)
	var w2Denom fr.Element
	w2Denom.Inverse(&tauMinusZetaOmega)
	w2 := mulScalar(w2Num, w2Denom)

	proof.Wxi = scalarG1(w1)
	proof.Wxiw = scalarG1(w2)

	return vk, proof
}

// replayToV runs the same transcript absorb/challenge sequence Verify
// does, up to and including v, so the test can compute the scalars Verify
// will derive before constructing the opening proofs that must satisfy
// them. u is intentionally not replayed: a correct opening proof is valid
// independent of how the verifier later batches it with u.
func replayToV(vk VerifyingKey, proof Proof, publicInputs []fr.Element) (beta, gamma, alpha, zeta, v fr.Element) {
	tr, err := transcript.New(transcript.SHA3_256, Domain)
	if err != nil {
		panic(err)
	}
	tr.Absorb("circuit_id", []byte(vk.CircuitID))
	for i, pi := range publicInputs {
		tr.Absorb(fmt.Sprintf("public_input_%d", i), pi.Marshal())
	}
	tr.Absorb("A", bn254field.MarshalG1(proof.A))
	tr.Absorb("B", bn254field.MarshalG1(proof.B))
	tr.Absorb("C", bn254field.MarshalG1(proof.C))
	beta = tr.ChallengeScalar("beta")
	gamma = tr.ChallengeScalar("gamma")

	tr.Absorb("Z", bn254field.MarshalG1(proof.Z))
	alpha = tr.ChallengeScalar("alpha")

	tr.Absorb("T1", bn254field.MarshalG1(proof.T1))
	tr.Absorb("T2", bn254field.MarshalG1(proof.T2))
	tr.Absorb("T3", bn254field.MarshalG1(proof.T3))
	zeta = tr.ChallengeScalar("zeta")

	tr.Absorb("a_eval", proof.AEval.Marshal())
	tr.Absorb("b_eval", proof.BEval.Marshal())
	tr.Absorb("c_eval", proof.CEval.Marshal())
	tr.Absorb("s1_eval", proof.S1Eval.Marshal())
	tr.Absorb("s2_eval", proof.S2Eval.Marshal())
	tr.Absorb("zomega_eval", proof.ZOmegaEval.Marshal())
	v = tr.ChallengeScalar("v")
	return
}

func frToBigInt(e fr.Element) *big.Int {
	return e.BigInt(new(big.Int))
}

func TestVerifyAcceptsForgedProof(t *testing.T) {
	var pi1 fr.Element
	pi1.SetUint64(99)
	f := defaultForgedFixture()
	vk, proof := buildForgedProof(f, []fr.Element{pi1})

	ok, err := Verify(vk, proof, []fr.Element{pi1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected a correctly forged proof to verify")
	}
}

func TestVerifyRejectsTamperedEvaluation(t *testing.T) {
	var pi1 fr.Element
	pi1.SetUint64(99)
	f := defaultForgedFixture()
	vk, proof := buildForgedProof(f, []fr.Element{pi1})

	proof.AEval.SetUint64(1234) // no longer the value the opening proofs were built for

	ok, err := Verify(vk, proof, []fr.Element{pi1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected tampered evaluation to fail verification")
	}
}

func TestVerifyRejectsTamperedPermutationCommitment(t *testing.T) {
	var pi1 fr.Element
	pi1.SetUint64(99)
	f := defaultForgedFixture()
	vk, proof := buildForgedProof(f, []fr.Element{pi1})

	var bogus fr.Element
	bogus.SetUint64(999)
	vk.S3 = scalarG1(bogus) // copy-constraint argument no longer matches the proof

	ok, err := Verify(vk, proof, []fr.Element{pi1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected a tampered permutation commitment to fail verification")
	}
}

func TestVerifyRejectsPublicInputCountMismatch(t *testing.T) {
	var pi1 fr.Element
	pi1.SetUint64(99)
	f := defaultForgedFixture()
	vk, proof := buildForgedProof(f, []fr.Element{pi1})

	_, err := Verify(vk, proof, nil)
	if err == nil {
		t.Fatal("expected error for public input count mismatch")
	}
}
