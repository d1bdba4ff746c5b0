// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package zkverify

import (
	"encoding/json"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/luxfi/zkverify/bn254field"
	"github.com/luxfi/zkverify/groth16verify"
	"github.com/luxfi/zkverify/merklefri"
	"github.com/luxfi/zkverify/plonkverify"
	"github.com/luxfi/zkverify/starkverify"
)

func decodePublicInputsFr(raw []string) ([]fr.Element, error) {
	out := make([]fr.Element, len(raw))
	for i, s := range raw {
		b, err := decodeHex(s)
		if err != nil {
			return nil, err
		}
		z, err := bn254field.ReduceScalar(b)
		if err != nil {
			return nil, fmt.Errorf("zkverify: public_inputs[%d]: %w", i, err)
		}
		out[i] = z
	}
	return out, nil
}

func decodePublicInputsUint64(raw []string) ([]uint64, error) {
	out := make([]uint64, len(raw))
	for i, s := range raw {
		b, err := decodeHex(s)
		if err != nil {
			return nil, err
		}
		var v uint64
		for _, by := range b {
			v = v<<8 | uint64(by)
		}
		out[i] = v
	}
	return out, nil
}

func parseG1Hex(s string, allowInfinity bool) (bn254.G1Affine, error) {
	b, err := decodeHex(s)
	if err != nil {
		return bn254.G1Affine{}, err
	}
	return bn254field.ParseG1(b, allowInfinity)
}

func parseG2Hex(s string, allowInfinity bool) (bn254.G2Affine, error) {
	b, err := decodeHex(s)
	if err != nil {
		return bn254.G2Affine{}, err
	}
	return bn254field.ParseG2(b, allowInfinity)
}

func parseFrHex(s string) (fr.Element, error) {
	b, err := decodeHex(s)
	if err != nil {
		return fr.Element{}, err
	}
	return bn254field.ReduceScalar(b)
}

// groth16VkWire is the JSON shape a groth16_bn254 vk_format carries, per
// §3's "kind must be consistent with vk_format" (groth16_bn254 + snarkjs).
type groth16VkWire struct {
	Alpha string   `json:"alpha"`
	Beta  string   `json:"beta"`
	Gamma string   `json:"gamma"`
	Delta string   `json:"delta"`
	IC    []string `json:"ic"`
}

type groth16ProofWire struct {
	A string `json:"a"`
	B string `json:"b"`
	C string `json:"c"`
}

func decodeGroth16VK(raw json.RawMessage) (groth16verify.VerifyingKey, error) {
	var w groth16VkWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return groth16verify.VerifyingKey{}, fmt.Errorf("zkverify: decoding groth16 vk: %w", err)
	}
	vk := groth16verify.VerifyingKey{}
	var err error
	if vk.Alpha, err = parseG1Hex(w.Alpha, false); err != nil {
		return vk, fmt.Errorf("zkverify: vk.alpha: %w", err)
	}
	if vk.Beta, err = parseG2Hex(w.Beta, false); err != nil {
		return vk, fmt.Errorf("zkverify: vk.beta: %w", err)
	}
	if vk.Gamma, err = parseG2Hex(w.Gamma, false); err != nil {
		return vk, fmt.Errorf("zkverify: vk.gamma: %w", err)
	}
	if vk.Delta, err = parseG2Hex(w.Delta, false); err != nil {
		return vk, fmt.Errorf("zkverify: vk.delta: %w", err)
	}
	vk.IC = make([]bn254.G1Affine, len(w.IC))
	for i, s := range w.IC {
		if vk.IC[i], err = parseG1Hex(s, true); err != nil {
			return vk, fmt.Errorf("zkverify: vk.ic[%d]: %w", i, err)
		}
	}
	return vk, nil
}

func decodeGroth16Proof(raw json.RawMessage) (groth16verify.Proof, error) {
	var w groth16ProofWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return groth16verify.Proof{}, fmt.Errorf("zkverify: decoding groth16 proof: %w", err)
	}
	p := groth16verify.Proof{}
	var err error
	if p.A, err = parseG1Hex(w.A, false); err != nil {
		return p, fmt.Errorf("zkverify: proof.a: %w", err)
	}
	if p.B, err = parseG2Hex(w.B, false); err != nil {
		return p, fmt.Errorf("zkverify: proof.b: %w", err)
	}
	if p.C, err = parseG1Hex(w.C, false); err != nil {
		return p, fmt.Errorf("zkverify: proof.c: %w", err)
	}
	return p, nil
}

// plonkVkWire is the JSON shape a plonk_kzg_bn254 vk_format carries, per
// §3's "plonk_kzg_bn254 with plonkjs".
type plonkVkWire struct {
	Qm              string `json:"qm"`
	Ql              string `json:"ql"`
	Qr              string `json:"qr"`
	Qo              string `json:"qo"`
	Qc              string `json:"qc"`
	S1              string `json:"s1"`
	S2              string `json:"s2"`
	S3              string `json:"s3"`
	X2              string `json:"x2"`
	NumPublicInputs int    `json:"num_public_inputs"`
	DomainSize      uint64 `json:"domain_size"`
	Omega           string `json:"omega"`
}

type plonkProofWire struct {
	A          string `json:"a"`
	B          string `json:"b"`
	C          string `json:"c"`
	Z          string `json:"z"`
	T1         string `json:"t1"`
	T2         string `json:"t2"`
	T3         string `json:"t3"`
	Wxi        string `json:"wxi"`
	Wxiw       string `json:"wxiw"`
	AEval      string `json:"a_eval"`
	BEval      string `json:"b_eval"`
	CEval      string `json:"c_eval"`
	S1Eval     string `json:"s1_eval"`
	S2Eval     string `json:"s2_eval"`
	ZOmegaEval string `json:"zomega_eval"`
}

func decodePlonkVK(raw json.RawMessage, circuitID string) (plonkverify.VerifyingKey, error) {
	var w plonkVkWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return plonkverify.VerifyingKey{}, fmt.Errorf("zkverify: decoding plonk vk: %w", err)
	}
	vk := plonkverify.VerifyingKey{CircuitID: circuitID, NumPublicInputs: w.NumPublicInputs, DomainSize: w.DomainSize}
	var err error
	if vk.Qm, err = parseG1Hex(w.Qm, false); err != nil {
		return vk, fmt.Errorf("zkverify: vk.qm: %w", err)
	}
	if vk.Ql, err = parseG1Hex(w.Ql, false); err != nil {
		return vk, fmt.Errorf("zkverify: vk.ql: %w", err)
	}
	if vk.Qr, err = parseG1Hex(w.Qr, false); err != nil {
		return vk, fmt.Errorf("zkverify: vk.qr: %w", err)
	}
	if vk.Qo, err = parseG1Hex(w.Qo, false); err != nil {
		return vk, fmt.Errorf("zkverify: vk.qo: %w", err)
	}
	if vk.Qc, err = parseG1Hex(w.Qc, false); err != nil {
		return vk, fmt.Errorf("zkverify: vk.qc: %w", err)
	}
	if vk.S1, err = parseG1Hex(w.S1, false); err != nil {
		return vk, fmt.Errorf("zkverify: vk.s1: %w", err)
	}
	if vk.S2, err = parseG1Hex(w.S2, false); err != nil {
		return vk, fmt.Errorf("zkverify: vk.s2: %w", err)
	}
	if w.S3 != "" {
		if vk.S3, err = parseG1Hex(w.S3, false); err != nil {
			return vk, fmt.Errorf("zkverify: vk.s3: %w", err)
		}
	}
	if vk.X2, err = parseG2Hex(w.X2, false); err != nil {
		return vk, fmt.Errorf("zkverify: vk.x2: %w", err)
	}
	if w.Omega != "" {
		if vk.Omega, err = parseFrHex(w.Omega); err != nil {
			return vk, fmt.Errorf("zkverify: vk.omega: %w", err)
		}
	}
	return vk, nil
}

func decodePlonkProof(raw json.RawMessage) (plonkverify.Proof, error) {
	var w plonkProofWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return plonkverify.Proof{}, fmt.Errorf("zkverify: decoding plonk proof: %w", err)
	}
	p := plonkverify.Proof{}
	var err error
	if p.A, err = parseG1Hex(w.A, true); err != nil {
		return p, fmt.Errorf("zkverify: proof.a: %w", err)
	}
	if p.B, err = parseG1Hex(w.B, true); err != nil {
		return p, fmt.Errorf("zkverify: proof.b: %w", err)
	}
	if p.C, err = parseG1Hex(w.C, true); err != nil {
		return p, fmt.Errorf("zkverify: proof.c: %w", err)
	}
	if p.Z, err = parseG1Hex(w.Z, true); err != nil {
		return p, fmt.Errorf("zkverify: proof.z: %w", err)
	}
	if p.T1, err = parseG1Hex(w.T1, true); err != nil {
		return p, fmt.Errorf("zkverify: proof.t1: %w", err)
	}
	if p.T2, err = parseG1Hex(w.T2, true); err != nil {
		return p, fmt.Errorf("zkverify: proof.t2: %w", err)
	}
	if p.T3, err = parseG1Hex(w.T3, true); err != nil {
		return p, fmt.Errorf("zkverify: proof.t3: %w", err)
	}
	if p.Wxi, err = parseG1Hex(w.Wxi, true); err != nil {
		return p, fmt.Errorf("zkverify: proof.wxi: %w", err)
	}
	if p.Wxiw, err = parseG1Hex(w.Wxiw, true); err != nil {
		return p, fmt.Errorf("zkverify: proof.wxiw: %w", err)
	}
	if p.AEval, err = parseFrHex(w.AEval); err != nil {
		return p, fmt.Errorf("zkverify: proof.a_eval: %w", err)
	}
	if p.BEval, err = parseFrHex(w.BEval); err != nil {
		return p, fmt.Errorf("zkverify: proof.b_eval: %w", err)
	}
	if p.CEval, err = parseFrHex(w.CEval); err != nil {
		return p, fmt.Errorf("zkverify: proof.c_eval: %w", err)
	}
	if p.S1Eval, err = parseFrHex(w.S1Eval); err != nil {
		return p, fmt.Errorf("zkverify: proof.s1_eval: %w", err)
	}
	if p.S2Eval, err = parseFrHex(w.S2Eval); err != nil {
		return p, fmt.Errorf("zkverify: proof.s2_eval: %w", err)
	}
	if p.ZOmegaEval, err = parseFrHex(w.ZOmegaEval); err != nil {
		return p, fmt.Errorf("zkverify: proof.zomega_eval: %w", err)
	}
	return p, nil
}

// starkVkWire is the JSON shape a stark_fri_merkle vk_format carries, per
// §3's "stark_fri_merkle with a fri-descriptor".
type starkVkWire struct {
	ProgramHash    string          `json:"program_hash"`
	TraceWidth     uint64          `json:"trace_width"`
	NumConstraints uint64          `json:"num_constraints"`
	Hash           string          `json:"hash"`
	BlowupFactor   uint64          `json:"blowup_factor"`
	MinQueries     uint64          `json:"min_queries"`
	FoldingFactor  uint64          `json:"folding_factor"`
	MaxDegree      uint64          `json:"max_degree"`
	AirDescription json.RawMessage `json:"air_description"`
}

type starkFRIQueryWire struct {
	Index            uint64     `json:"index"`
	Values           []uint64   `json:"values"`
	AuthPaths        [][]string `json:"auth_paths"`
	Siblings         []uint64   `json:"siblings"`
	SiblingAuthPaths [][]string `json:"sibling_auth_paths"`
}

type starkProofWire struct {
	TraceCommitment      string              `json:"trace_commitment"`
	ConstraintCommitment string              `json:"constraint_commitment"`
	FRILayerRoots        []string            `json:"fri_layer_roots"`
	FRIQueries           []starkFRIQueryWire `json:"fri_queries"`
	TraceLeaves          map[string][]uint64 `json:"trace_leaves"`
	ConstraintLeaves     map[string][]uint64 `json:"constraint_leaves"`
	TraceAuthPaths       map[string][]string `json:"trace_auth_paths"`
	ConstraintAuthPaths  map[string][]string `json:"constraint_auth_paths"`
	OODTraceEvals        []uint64            `json:"ood_trace_evals"`
	OODConstraintEval    uint64              `json:"ood_constraint_eval"`
}

func starkHashFromString(s string) (merklefri.Hash, error) {
	switch s {
	case "sha3-256", "":
		return merklefri.SHA3_256, nil
	case "blake3":
		return merklefri.BLAKE3, nil
	default:
		return 0, fmt.Errorf("%w: %q", merklefri.ErrUnknownHash, s)
	}
}

func decodeStarkVK(raw json.RawMessage) (starkverify.VerifyingKey, error) {
	var w starkVkWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return starkverify.VerifyingKey{}, fmt.Errorf("zkverify: decoding stark vk: %w", err)
	}
	vk := starkverify.VerifyingKey{
		TraceWidth:     w.TraceWidth,
		NumConstraints: w.NumConstraints,
		BlowupFactor:   w.BlowupFactor,
		MinQueries:     w.MinQueries,
		FoldingFactor:  w.FoldingFactor,
		MaxDegree:      w.MaxDegree,
	}
	var err error
	if vk.ProgramHash, err = decodeHex32(w.ProgramHash); err != nil {
		return vk, fmt.Errorf("zkverify: vk.program_hash: %w", err)
	}
	if vk.Hash, err = starkHashFromString(w.Hash); err != nil {
		return vk, err
	}
	if vk.CheckAIR, err = starkverify.DecodeLinearAIR(w.AirDescription); err != nil {
		return vk, err
	}
	return vk, nil
}

func decodeStarkHashList(raw []string) ([][32]byte, error) {
	out := make([][32]byte, len(raw))
	for i, s := range raw {
		h, err := decodeHex32(s)
		if err != nil {
			return nil, fmt.Errorf("zkverify: [%d]: %w", i, err)
		}
		out[i] = h
	}
	return out, nil
}

func decodeStarkAuthPath(raw []string) ([][32]byte, error) {
	return decodeStarkHashList(raw)
}

func decodeStarkProof(raw json.RawMessage, hash merklefri.Hash) (starkverify.Proof, error) {
	var w starkProofWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return starkverify.Proof{}, fmt.Errorf("zkverify: decoding stark proof: %w", err)
	}
	p := starkverify.Proof{
		OODTraceEvals:     w.OODTraceEvals,
		OODConstraintEval: w.OODConstraintEval,
	}
	var err error
	if p.TraceCommitment, err = decodeHex32(w.TraceCommitment); err != nil {
		return p, fmt.Errorf("zkverify: proof.trace_commitment: %w", err)
	}
	if p.ConstraintCommitment, err = decodeHex32(w.ConstraintCommitment); err != nil {
		return p, fmt.Errorf("zkverify: proof.constraint_commitment: %w", err)
	}
	layerRoots, err := decodeStarkHashList(w.FRILayerRoots)
	if err != nil {
		return p, fmt.Errorf("zkverify: proof.fri_layer_roots: %w", err)
	}
	p.FRI = merklefri.Commitment{LayerRoots: layerRoots}

	p.FRIQueries = make([]merklefri.Query, len(w.FRIQueries))
	for i, q := range w.FRIQueries {
		paths := make([][][32]byte, len(q.AuthPaths))
		for j, path := range q.AuthPaths {
			decoded, err := decodeStarkAuthPath(path)
			if err != nil {
				return p, fmt.Errorf("zkverify: proof.fri_queries[%d].auth_paths[%d]: %w", i, j, err)
			}
			paths[j] = decoded
		}
		sibPaths := make([][][32]byte, len(q.SiblingAuthPaths))
		for j, path := range q.SiblingAuthPaths {
			decoded, err := decodeStarkAuthPath(path)
			if err != nil {
				return p, fmt.Errorf("zkverify: proof.fri_queries[%d].sibling_auth_paths[%d]: %w", i, j, err)
			}
			sibPaths[j] = decoded
		}
		p.FRIQueries[i] = merklefri.Query{
			Index:            q.Index,
			Values:           q.Values,
			AuthPaths:        paths,
			Siblings:         q.Siblings,
			SiblingAuthPaths: sibPaths,
		}
	}

	p.TraceLeaves = uint64KeyedLeaves(w.TraceLeaves)
	p.ConstraintLeaves = uint64KeyedLeaves(w.ConstraintLeaves)

	if p.TraceAuthPaths, err = uint64KeyedAuthPaths(w.TraceAuthPaths); err != nil {
		return p, fmt.Errorf("zkverify: proof.trace_auth_paths: %w", err)
	}
	if p.ConstraintAuthPaths, err = uint64KeyedAuthPaths(w.ConstraintAuthPaths); err != nil {
		return p, fmt.Errorf("zkverify: proof.constraint_auth_paths: %w", err)
	}
	_ = hash
	return p, nil
}

func uint64KeyedLeaves(src map[string][]uint64) map[uint64][]uint64 {
	out := make(map[uint64][]uint64, len(src))
	for k, v := range src {
		out[parseDecimalKey(k)] = v
	}
	return out
}

func uint64KeyedAuthPaths(src map[string][]string) (map[uint64][][32]byte, error) {
	out := make(map[uint64][][32]byte, len(src))
	for k, v := range src {
		decoded, err := decodeStarkAuthPath(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[parseDecimalKey(k)] = decoded
	}
	return out, nil
}

// parseDecimalKey parses a JSON object key back into the uint64 query
// index it represents. JSON object keys are always strings, so the
// dispatcher's map[uint64][]T fields round-trip through decimal strings.
func parseDecimalKey(s string) uint64 {
	var v uint64
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		v = v*10 + uint64(r-'0')
	}
	return v
}
