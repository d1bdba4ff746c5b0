// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vkregistry

import (
	"crypto/ed25519"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/log"
)

func buildRecord(t *testing.T, circuitID string, signer ed25519.PrivateKey, keyID string) VkRecord {
	t.Helper()
	rec := VkRecord{
		CircuitID: circuitID,
		Kind:      "groth16_bn254",
		VkFormat:  "snarkjs",
		Vk:        json.RawMessage(`{"alpha":"0x01","beta":"0x02"}`),
	}
	hash, err := computeVkHash(rec)
	require.NoError(t, err)
	rec.VkHash = hash

	if signer != nil {
		msg := sigMessage(rec.CircuitID, rec.Kind, rec.VkFormat, rec.VkHash)
		rec.Sig = &Signature{
			Alg:       "ed25519",
			KeyID:     keyID,
			Signature: ed25519.Sign(signer, msg),
		}
	}
	return rec
}

func TestVerifyRecordAcceptsMatchingHash(t *testing.T) {
	rec := buildRecord(t, "counter_groth16_bn254@1", nil, "")
	require.NoError(t, VerifyRecord(rec, nil))
}

func TestVerifyRecordRejectsTamperedHash(t *testing.T) {
	rec := buildRecord(t, "counter_groth16_bn254@1", nil, "")
	rec.VkHash = "sha3-256:" + "00000000000000000000000000000000000000000000000000000000000000"
	err := VerifyRecord(rec, nil)
	require.ErrorIs(t, err, ErrHashMismatch)
}

func TestVerifyRecordChecksSignatureWhenSignersConfigured(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	rec := buildRecord(t, "counter_groth16_bn254@1", priv, "signer-1")
	signers := map[string]ed25519.PublicKey{"signer-1": pub}

	require.NoError(t, VerifyRecord(rec, signers))

	rec.Sig.Signature[0] ^= 0xff
	require.ErrorIs(t, VerifyRecord(rec, signers), ErrSignatureInvalid)
}

func TestLoadSnapshotDropsUnverifiableRecords(t *testing.T) {
	good := buildRecord(t, "good@1", nil, "")
	bad := buildRecord(t, "bad@1", nil, "")
	bad.VkHash = "sha3-256:deadbeef"

	raw := map[string]VkRecord{"good@1": good, "bad@1": bad}
	data, err := json.Marshal(raw)
	require.NoError(t, err)

	snap, err := LoadSnapshot(data, nil, log.NewTestLogger(log.InfoLevel))
	require.NoError(t, err)

	_, err = snap.Resolve("good@1")
	require.NoError(t, err)

	_, err = snap.Resolve("bad@1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryCurrentReflectsSwap(t *testing.T) {
	reg := New(log.NewTestLogger(log.InfoLevel))
	_, err := reg.Current().Resolve("counter_groth16_bn254@1")
	require.ErrorIs(t, err, ErrNotFound)

	rec := buildRecord(t, "counter_groth16_bn254@1", nil, "")
	reg.Swap(&Snapshot{records: map[string]VkRecord{"counter_groth16_bn254@1": rec}})

	got, err := reg.Current().Resolve("counter_groth16_bn254@1")
	require.NoError(t, err)
	require.Equal(t, rec.VkHash, got.VkHash)
}
