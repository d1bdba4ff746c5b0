// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return NewConfig(
		[]string{"counter_groth16_bn254@1"},
		map[Kind]Limits{
			KindGroth16BN254: {MaxProofBytes: 1024, MaxVkBytes: 4096, MaxPublicInputs: 8},
			KindPlonkKZGBN254: {MaxProofBytes: 2048, MaxVkBytes: 8192, MaxPublicInputs: 16, MaxKZGOpenings: 4},
		},
		map[Kind]Gas{
			KindGroth16BN254: {Base: 1000, PerPublicInput: 50, PerProofByte: 1, PerVkByte: 1},
			KindPlonkKZGBN254: {Base: 2000, PerPublicInput: 50, PerProofByte: 1, PerVkByte: 1, PerOpening: 500},
		},
	)
}

func TestCheckAllowlistRejectsUnlisted(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.CheckAllowlist("counter_groth16_bn254@1"))

	err := cfg.CheckAllowlist("experimental_x@1")
	var notAllowed *ErrNotAllowed
	require.ErrorAs(t, err, &notAllowed)
}

func TestCheckAllowlistWildcard(t *testing.T) {
	cfg := NewConfig([]string{"*"}, nil, nil)
	require.NoError(t, cfg.CheckAllowlist("anything@1"))
}

func TestCheckLimitsRejectsOversizedProof(t *testing.T) {
	cfg := testConfig()
	err := cfg.CheckLimits(KindGroth16BN254, Sizes{ProofBytes: 1025, VkBytes: 10, NumPublicInputs: 2})
	var limitErr *ErrLimitExceeded
	require.ErrorAs(t, err, &limitErr)
	require.Equal(t, "proof_bytes", limitErr.Field)
}

func TestCheckLimitsAcceptsWithinBounds(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.CheckLimits(KindGroth16BN254, Sizes{ProofBytes: 128, VkBytes: 256, NumPublicInputs: 2}))
}

func TestComputeUnitsLinearFormula(t *testing.T) {
	cfg := testConfig()
	units := cfg.ComputeUnits(KindGroth16BN254, Sizes{ProofBytes: 100, VkBytes: 200, NumPublicInputs: 2})
	require.Equal(t, int64(1000+50*2+100+200), units)
}

func TestComputeUnitsDefaultsOneKZGOpening(t *testing.T) {
	cfg := testConfig()
	units := cfg.ComputeUnits(KindPlonkKZGBN254, Sizes{ProofBytes: 10, VkBytes: 10, NumPublicInputs: 1})
	require.Equal(t, int64(2000+50+10+10+500), units)
}

func TestComputeUnitsUnknownKindIsZero(t *testing.T) {
	cfg := testConfig()
	require.Equal(t, int64(0), cfg.ComputeUnits(KindStarkFRIMerkle, Sizes{ProofBytes: 10}))
}

func TestStoreSwapReplacesConfig(t *testing.T) {
	store := NewStore(testConfig(), nil)
	require.NoError(t, store.Current().CheckAllowlist("counter_groth16_bn254@1"))

	store.Swap(NewConfig(nil, nil, nil))
	err := store.Current().CheckAllowlist("counter_groth16_bn254@1")
	require.Error(t, err)
}
