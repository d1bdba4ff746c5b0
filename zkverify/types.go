// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package zkverify is the dispatcher / entry-point of §4.9: it parses a
// proof envelope, canonicalizes and meters it, resolves its verifying key,
// dispatches to the right per-kind verifier, and returns a stable Result.
// It composes the lower packages (canon, bn254field, merklefri,
// groth16verify, plonkverify, starkverify, vkregistry, policy, zkerr;
// transcript only through plonkverify and starkverify) the way the teacher's zk.ZKVerifier composes its own Groth16/
// PLONK/STARK backends behind one gas-metered, registry-resolved call —
// generalized to the spec's ten-component layering and closed error
// taxonomy instead of EVM precompile semantics.
package zkverify

import "encoding/json"

// Kind is the tagged envelope kind; the only key binding verifier
// implementation, per §3.
type Kind string

const (
	KindGroth16BN254   Kind = "groth16_bn254"
	KindPlonkKZGBN254  Kind = "plonk_kzg_bn254"
	KindStarkFRIMerkle Kind = "stark_fri_merkle"
)

// Envelope is the submission unit of §3. Proof and Vk are left as raw JSON
// so the dispatcher can canonicalize them generically before a per-kind
// adapter decodes their concrete shape.
type Envelope struct {
	Kind         Kind            `json:"kind"`
	Proof        json.RawMessage `json:"proof"`
	PublicInputs []string        `json:"public_inputs"`
	Vk           json.RawMessage `json:"vk,omitempty"`
	VkFormat     string          `json:"vk_format"`
	VkRef        string          `json:"vk_ref,omitempty"`
	Meta         EnvelopeMeta    `json:"meta,omitempty"`
}

// EnvelopeMeta carries the authoritative circuit_id, per §3.
type EnvelopeMeta struct {
	CircuitID string `json:"circuit_id,omitempty"`
}

// Payload is the top-level input to Verify, per §6.
type Payload struct {
	Envelope  Envelope `json:"envelope"`
	MeterOnly bool     `json:"meter_only,omitempty"`
}

// ResultError is the closed-taxonomy error carried in a failed Result.
type ResultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResultMeta carries the canonically-measured sizes of §3's Result.meta.
type ResultMeta struct {
	ProofBytes      int64 `json:"proof_bytes"`
	VkBytes         int64 `json:"vk_bytes"`
	NumPublicInputs int64 `json:"num_public_inputs"`
}

// Result is the stable object returned from Verify, per §3.
type Result struct {
	OK        bool         `json:"ok"`
	Units     int64        `json:"units"`
	Kind      Kind         `json:"kind,omitempty"`
	CircuitID string       `json:"circuit_id,omitempty"`
	Meta      ResultMeta   `json:"meta"`
	Error     *ResultError `json:"error,omitempty"`
}
