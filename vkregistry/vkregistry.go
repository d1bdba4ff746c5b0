// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package vkregistry implements the pinned verifying-key store of §4.7:
// records keyed by circuit_id, content-hash integrity, optional ed25519
// signatures, held behind a single atomically-swappable snapshot. The
// shape follows the teacher's configs-map-behind-a-mutex pattern in
// threshold/client.go, replaced by a lock-free atomic.Pointer[T] snapshot
// since readers here never mutate and writers are expected to serialize
// externally (policy §5/§9).
package vkregistry

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/luxfi/log"

	"github.com/luxfi/zkverify/canon"
)

// ErrNotFound is returned by Resolve when no record exists for a circuit_id.
var ErrNotFound = errors.New("vkregistry: circuit_id not found")

// ErrHashMismatch is returned when a record's stored vk_hash does not match
// its recomputed value.
var ErrHashMismatch = errors.New("vkregistry: stored vk_hash does not match recomputed hash")

// ErrSignatureInvalid is returned when a record carries a signature that
// does not verify under the configured trusted signer set.
var ErrSignatureInvalid = errors.New("vkregistry: signature does not verify")

// ErrUnknownSigAlg is returned for a signature algorithm this registry does
// not implement.
var ErrUnknownSigAlg = errors.New("vkregistry: unknown signature algorithm")

// Signature binds (circuit_id, kind, vk_format, vk_hash) per §6.
type Signature struct {
	Alg       string `json:"alg"`
	KeyID     string `json:"key_id"`
	Signature []byte `json:"signature"`
}

// VkRecord is an entry in the registry, keyed by CircuitID.
type VkRecord struct {
	CircuitID string          `json:"circuit_id"`
	Kind      string          `json:"kind"`
	VkFormat  string          `json:"vk_format"`
	Vk        json.RawMessage `json:"vk"`
	FriParams json.RawMessage `json:"fri_params,omitempty"`
	VkHash    string          `json:"vk_hash"`
	Meta      json.RawMessage `json:"meta,omitempty"`
	Sig       *Signature      `json:"sig,omitempty"`
}

// hashedProjection is the exact field set vk_hash is computed over, per
// §3's "digest of canonical JSON of {kind, vk_format, vk, fri_params}".
func hashedProjection(r VkRecord) (canon.Map, error) {
	m := canon.Map{
		"kind":      r.Kind,
		"vk_format": r.VkFormat,
	}
	vk, err := canon.FromJSON(r.Vk)
	if err != nil {
		return nil, fmt.Errorf("vkregistry: decoding vk for %s: %w", r.CircuitID, err)
	}
	m["vk"] = vk
	if len(r.FriParams) > 0 {
		fp, err := canon.FromJSON(r.FriParams)
		if err != nil {
			return nil, fmt.Errorf("vkregistry: decoding fri_params for %s: %w", r.CircuitID, err)
		}
		m["fri_params"] = fp
	} else {
		m["fri_params"] = nil
	}
	return m, nil
}

// ComputeVkHash recomputes vk_hash over the canonical hashed projection of
// an arbitrary (kind, vk_format, vk, fri_params) tuple, without requiring a
// full VkRecord. The dispatcher uses this to check an embedded VK against
// any corresponding registry entry per §4.9 step 6, without needing the
// registry's own stored hash or signature fields.
func ComputeVkHash(kind, vkFormat string, vk, friParams json.RawMessage) (string, error) {
	return computeVkHash(VkRecord{Kind: kind, VkFormat: vkFormat, Vk: vk, FriParams: friParams})
}

// computeVkHash recomputes vk_hash over the canonical hashed projection.
func computeVkHash(r VkRecord) (string, error) {
	m, err := hashedProjection(r)
	if err != nil {
		return "", err
	}
	return canon.Hash(m)
}

// sigMessage builds the exact separator-delimited byte string §6 specifies
// a signature is computed over.
func sigMessage(circuitID, kind, vkFormat, vkHash string) []byte {
	var buf bytes.Buffer
	buf.WriteString(circuitID)
	buf.WriteByte(0)
	buf.WriteString(kind)
	buf.WriteByte(0)
	buf.WriteString(vkFormat)
	buf.WriteByte(0)
	buf.WriteString(vkHash)
	return buf.Bytes()
}

// TrustedSigner is one signer accepted for record signatures, keyed by the
// key_id a record's sig carries.
type TrustedSigner struct {
	KeyID     string
	PublicKey ed25519.PublicKey
}

// VerifyRecord recomputes vk_hash over r's canonical hashed projection and
// compares it to r.VkHash; if r carries a signature and signers is
// non-empty, it also verifies the signature against the named signer's
// public key. Mirrors §4.7's verify_record.
func VerifyRecord(r VkRecord, signers map[string]ed25519.PublicKey) error {
	recomputed, err := computeVkHash(r)
	if err != nil {
		return err
	}
	if recomputed != r.VkHash {
		return fmt.Errorf("%w: record %s: stored %q recomputed %q", ErrHashMismatch, r.CircuitID, r.VkHash, recomputed)
	}
	if r.Sig == nil || len(signers) == 0 {
		return nil
	}
	switch r.Sig.Alg {
	case "ed25519":
		pub, ok := signers[r.Sig.KeyID]
		if !ok {
			return fmt.Errorf("%w: unknown key_id %q for record %s", ErrSignatureInvalid, r.Sig.KeyID, r.CircuitID)
		}
		msg := sigMessage(r.CircuitID, r.Kind, r.VkFormat, r.VkHash)
		if !ed25519.Verify(pub, msg, r.Sig.Signature) {
			return fmt.Errorf("%w: record %s", ErrSignatureInvalid, r.CircuitID)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSigAlg, r.Sig.Alg)
	}
}

// Snapshot is an immutable view of the registry, replaced atomically on
// reload per §5's "single-pointer swap" rule.
type Snapshot struct {
	records map[string]VkRecord
}

// Resolve returns the record for circuitID, or ErrNotFound.
func (s *Snapshot) Resolve(circuitID string) (VkRecord, error) {
	if s == nil {
		return VkRecord{}, ErrNotFound
	}
	r, ok := s.records[circuitID]
	if !ok {
		return VkRecord{}, fmt.Errorf("%w: %s", ErrNotFound, circuitID)
	}
	return r, nil
}

// Registry holds a single atomically-swappable Snapshot. Readers never
// lock; Swap is expected to be called only from loader code outside the
// verification path, per §5/§9.
type Registry struct {
	snapshot atomic.Pointer[Snapshot]
	log      log.Logger
}

// New builds an empty Registry. logger may be nil, in which case a silent
// test logger is used (mirrors threshold.NewThresholdClient's default).
func New(logger log.Logger) *Registry {
	if logger == nil {
		logger = log.NewTestLogger(log.InfoLevel)
	}
	reg := &Registry{log: logger}
	reg.snapshot.Store(&Snapshot{records: map[string]VkRecord{}})
	return reg
}

// Current returns the registry's current snapshot. Callers capture this
// once at the start of a verification, per §9's "in-flight call continues
// on its captured snapshot" rule.
func (r *Registry) Current() *Snapshot {
	return r.snapshot.Load()
}

// LoadSnapshot parses a canonical-JSON map of circuit_id -> VkRecord (§6's
// persisted state layout), verifies every record's vk_hash (and signature,
// when signers is non-empty), and returns the resulting Snapshot without
// installing it. Records that fail verification are reported but excluded
// from the snapshot, matching §4.7's "record is unusable" rule; the caller
// decides whether a partially-bad file should install at all.
func LoadSnapshot(data []byte, signers map[string]ed25519.PublicKey, logger log.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = log.NewTestLogger(log.InfoLevel)
	}
	var raw map[string]VkRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("vkregistry: decoding snapshot: %w", err)
	}

	records := make(map[string]VkRecord, len(raw))
	for circuitID, rec := range raw {
		if rec.CircuitID == "" {
			rec.CircuitID = circuitID
		}
		if err := VerifyRecord(rec, signers); err != nil {
			logger.Warn("dropping unverifiable vk record", "circuit_id", circuitID, "error", err.Error())
			continue
		}
		records[circuitID] = rec
	}
	return &Snapshot{records: records}, nil
}

// Swap installs snap as the registry's current snapshot. Must be called
// only from externally-serialized loader code (§5): concurrent Swap calls
// from multiple writers are not itself serialized by the registry.
func (r *Registry) Swap(snap *Snapshot) {
	r.snapshot.Store(snap)
	r.log.Debug("vk registry snapshot swapped", "records", len(snap.records))
}
