// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package policy implements admission policy and deterministic metering of
// §4.8: allowlist checks, per-kind size limits, and the linear unit cost
// formula. Configuration is held behind a single atomically-swappable
// snapshot the same way vkregistry holds its records, since §9 names both
// as "the two snapshots" sharing one lifecycle contract.
package policy

import (
	"sync/atomic"

	"github.com/luxfi/log"
)

// Kind is the tagged envelope kind the policy is scoped by.
type Kind string

const (
	KindGroth16BN254   Kind = "groth16_bn254"
	KindPlonkKZGBN254  Kind = "plonk_kzg_bn254"
	KindStarkFRIMerkle Kind = "stark_fri_merkle"
)

// Limits bounds a kind's admissible envelope sizes, per §3's
// `limits[kind]`.
type Limits struct {
	MaxProofBytes     int64 `json:"max_proof_bytes"`
	MaxVkBytes        int64 `json:"max_vk_bytes"`
	MaxPublicInputs   int64 `json:"max_public_inputs"`
	MaxKZGOpenings    int64 `json:"max_kzg_openings,omitempty"`
}

// Gas is a kind's linear cost coefficients, per §4.8's cost formula.
type Gas struct {
	Base           int64 `json:"base"`
	PerPublicInput int64 `json:"per_public_input"`
	PerProofByte   int64 `json:"per_proof_byte"`
	PerVkByte      int64 `json:"per_vk_byte"`
	PerOpening     int64 `json:"per_opening,omitempty"`
}

// Config is the full process-wide admission policy, per §3/§9.
type Config struct {
	Allowlist map[string]struct{} `json:"-"`
	// AllowlistRaw is the wire-format set/wildcard this Config was built
	// from; kept so a reloaded Config can be re-marshaled for audit.
	AllowlistRaw []string      `json:"allowlist"`
	Limits       map[Kind]Limits `json:"limits"`
	Gas          map[Kind]Gas    `json:"gas"`
}

// wildcardCircuit is the development-only allowlist entry permitting any
// circuit_id, per §6's "wildcard * is valid only in an allowlist".
const wildcardCircuit = "*"

// NewConfig builds a Config from its wire-format allowlist slice, limits
// and gas tables.
func NewConfig(allowlist []string, limits map[Kind]Limits, gas map[Kind]Gas) *Config {
	set := make(map[string]struct{}, len(allowlist))
	for _, id := range allowlist {
		set[id] = struct{}{}
	}
	return &Config{
		Allowlist:    set,
		AllowlistRaw: allowlist,
		Limits:       limits,
		Gas:          gas,
	}
}

// ErrNotAllowed is returned when a circuit_id is absent from the allowlist.
type ErrNotAllowed struct{ CircuitID string }

func (e *ErrNotAllowed) Error() string {
	return "policy: circuit_id not allowed: " + e.CircuitID
}

// ErrLimitExceeded is returned when an envelope's measured size exceeds a
// configured ceiling for its kind.
type ErrLimitExceeded struct {
	Kind   Kind
	Field  string
	Value  int64
	Max    int64
}

func (e *ErrLimitExceeded) Error() string {
	return "policy: " + string(e.Kind) + "." + e.Field + " exceeds limit"
}

// CheckAllowlist returns ErrNotAllowed if circuitID is not present and the
// allowlist does not carry the development wildcard.
func (c *Config) CheckAllowlist(circuitID string) error {
	if _, ok := c.Allowlist[wildcardCircuit]; ok {
		return nil
	}
	if _, ok := c.Allowlist[circuitID]; ok {
		return nil
	}
	return &ErrNotAllowed{CircuitID: circuitID}
}

// Sizes carries the canonically-measured inputs CheckLimits and
// ComputeUnits operate on, per §4.1's "used uniformly for vk_hash and for
// size counting that feeds metering".
type Sizes struct {
	ProofBytes      int64
	VkBytes         int64
	NumPublicInputs int64
	KZGOpenings     int64
}

// CheckLimits returns ErrLimitExceeded if any of sizes exceeds the
// configured ceiling for kind. A kind with no limits entry is rejected
// here as well, with Field "kind".
func (c *Config) CheckLimits(kind Kind, sizes Sizes) error {
	lim, ok := c.Limits[kind]
	if !ok {
		return &ErrLimitExceeded{Kind: kind, Field: "kind", Value: 0, Max: 0}
	}
	switch {
	case sizes.ProofBytes > lim.MaxProofBytes:
		return &ErrLimitExceeded{Kind: kind, Field: "proof_bytes", Value: sizes.ProofBytes, Max: lim.MaxProofBytes}
	case sizes.VkBytes > lim.MaxVkBytes:
		return &ErrLimitExceeded{Kind: kind, Field: "vk_bytes", Value: sizes.VkBytes, Max: lim.MaxVkBytes}
	case sizes.NumPublicInputs > lim.MaxPublicInputs:
		return &ErrLimitExceeded{Kind: kind, Field: "num_public_inputs", Value: sizes.NumPublicInputs, Max: lim.MaxPublicInputs}
	case lim.MaxKZGOpenings > 0 && sizes.KZGOpenings > lim.MaxKZGOpenings:
		return &ErrLimitExceeded{Kind: kind, Field: "kzg_openings", Value: sizes.KZGOpenings, Max: lim.MaxKZGOpenings}
	}
	return nil
}

// ComputeUnits applies the linear cost formula of §4.8. kzg_openings
// defaults to 1 for plonk_kzg_bn254 when sizes.KZGOpenings is zero, per
// the cost formula's "(PLONK-KZG only; default 1)" note.
func (c *Config) ComputeUnits(kind Kind, sizes Sizes) int64 {
	g, ok := c.Gas[kind]
	if !ok {
		return 0
	}
	openings := sizes.KZGOpenings
	if kind == KindPlonkKZGBN254 && openings == 0 {
		openings = 1
	}
	return g.Base +
		g.PerPublicInput*sizes.NumPublicInputs +
		g.PerProofByte*sizes.ProofBytes +
		g.PerVkByte*sizes.VkBytes +
		g.PerOpening*openings
}

// Store holds a single atomically-swappable Config, mirroring
// vkregistry.Registry's snapshot lifecycle: readers never lock, and Swap
// is expected to be called only from externally-serialized loader code.
type Store struct {
	config atomic.Pointer[Config]
	log    log.Logger
}

// NewStore builds a Store seeded with the given Config. logger may be nil.
func NewStore(cfg *Config, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewTestLogger(log.InfoLevel)
	}
	s := &Store{log: logger}
	s.config.Store(cfg)
	return s
}

// Current returns the Store's current Config. Callers capture this once at
// the start of a verification, per §9's captured-snapshot rule.
func (s *Store) Current() *Config {
	return s.config.Load()
}

// Swap installs cfg as the Store's current Config.
func (s *Store) Swap(cfg *Config) {
	s.config.Store(cfg)
	s.log.Debug("policy snapshot swapped", "allowlist_size", len(cfg.Allowlist))
}
