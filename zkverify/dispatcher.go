// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package zkverify

import (
	"encoding/json"
	"regexp"
	"sync"

	"github.com/luxfi/log"

	"github.com/luxfi/zkverify/canon"
	"github.com/luxfi/zkverify/groth16verify"
	"github.com/luxfi/zkverify/plonkverify"
	"github.com/luxfi/zkverify/policy"
	"github.com/luxfi/zkverify/starkverify"
	"github.com/luxfi/zkverify/vkregistry"
	"github.com/luxfi/zkverify/zkerr"
)

// circuitIDPattern is §6's "Circuit IDs" contract: `<slug>@<version>`,
// lowercase ASCII, underscores allowed. The wildcard is valid only in an
// allowlist, never in an envelope, so it is deliberately excluded here.
var circuitIDPattern = regexp.MustCompile(`^[a-z0-9_]+@[0-9]+$`)

// Dispatcher is the single entry-point of §4.9: verify(payload) -> Result.
// It holds references to a vkregistry.Registry and a policy.Store, each of
// which owns its own atomically-swappable snapshot; the Dispatcher itself
// carries no mutable state beyond those two pointers, matching §5's "two
// process-wide immutable snapshots" design note.
type Dispatcher struct {
	registry *vkregistry.Registry
	policy   *policy.Store
	log      log.Logger
}

// New builds a Dispatcher over the given registry and policy store. logger
// may be nil, in which case a silent test logger is used.
func New(registry *vkregistry.Registry, policyStore *policy.Store, logger log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.NewTestLogger(log.InfoLevel)
	}
	return &Dispatcher{registry: registry, policy: policyStore, log: logger}
}

func kindToPolicyKind(k Kind) policy.Kind {
	return policy.Kind(k)
}

// Verify runs the full algorithm of §4.9 against one payload. It never
// panics: every lower-level error is caught and mapped into the closed
// taxonomy (§7), and partial failures never leave mutable state behind
// since Verify itself holds none.
func (d *Dispatcher) Verify(payload Payload) Result {
	env := payload.Envelope

	// Step 2: canonicalize proof and vk (if embedded) to measure sizes.
	proofVal, err := canon.FromJSON(env.Proof)
	if err != nil {
		return d.fail(zkerr.BadArguments, "decoding proof: "+err.Error(), ResultMeta{})
	}
	proofBytes, err := canon.Size(proofVal)
	if err != nil {
		return d.fail(zkerr.BadArguments, "sizing proof: "+err.Error(), ResultMeta{})
	}

	// §3's invariant: exactly one of vk, vk_ref is present.
	hasVk := len(env.Vk) > 0
	hasVkRef := env.VkRef != ""
	if hasVk == hasVkRef {
		return d.fail(zkerr.BadArguments, "exactly one of vk, vk_ref must be present", ResultMeta{})
	}

	// vk_bytes is measured from the embedded VK when present. A vk_ref
	// names a VK pinned at registry load time; neither the loader nor this
	// function checks its size against max_vk_bytes, and its size does not
	// enter units. meta.vk_bytes is filled in for observability once the
	// VK is resolved in step 6.
	var vkBytes int
	if hasVk {
		vkVal, err := canon.FromJSON(env.Vk)
		if err != nil {
			return d.fail(zkerr.BadArguments, "decoding vk: "+err.Error(), ResultMeta{})
		}
		vkBytes, err = canon.Size(vkVal)
		if err != nil {
			return d.fail(zkerr.BadArguments, "sizing vk: "+err.Error(), ResultMeta{})
		}
	}

	meta := ResultMeta{
		ProofBytes:      int64(proofBytes),
		VkBytes:         int64(vkBytes),
		NumPublicInputs: int64(len(env.PublicInputs)),
	}

	// Step 1 (continued): structural kind/vk_format consistency, per §3.
	if err := checkKindFormat(env.Kind, env.VkFormat); err != nil {
		return d.failKind(zkerr.BadArguments, err.Error(), env.Kind, "", meta, 0)
	}

	// Step 3: check_limits.
	policyCfg := d.policy.Current()
	sizes := policy.Sizes{
		ProofBytes:      meta.ProofBytes,
		VkBytes:         meta.VkBytes,
		NumPublicInputs: meta.NumPublicInputs,
	}
	if kzgOpenings, ok := kzgOpeningCount(env.Kind); ok {
		sizes.KZGOpenings = kzgOpenings
	}
	if err := policyCfg.CheckLimits(kindToPolicyKind(env.Kind), sizes); err != nil {
		d.log.Warn("limit exceeded", "kind", env.Kind, "error", err.Error())
		return d.failKind(zkerr.LimitExceeded, err.Error(), env.Kind, "", meta, 0)
	}

	// Step 4: extract circuit_id, check_allowlist.
	circuitID := env.Meta.CircuitID
	if circuitID == "" {
		circuitID = env.VkRef
	}
	if !circuitIDPattern.MatchString(circuitID) {
		return d.failKind(zkerr.BadArguments, "circuit_id does not match the required pattern", env.Kind, circuitID, meta, 0)
	}
	if err := policyCfg.CheckAllowlist(circuitID); err != nil {
		d.log.Warn("circuit not allowed", "circuit_id", circuitID)
		return d.failKind(zkerr.NotAllowed, err.Error(), env.Kind, circuitID, meta, 0)
	}

	// Step 5: compute units. From this point on, units reflects what was
	// actually computed and is carried by every Result, including failures
	// (§7: "units in the Result reflects what was actually computed").
	units := policyCfg.ComputeUnits(kindToPolicyKind(env.Kind), sizes)
	if payload.MeterOnly {
		return Result{OK: true, Units: units, Kind: env.Kind, CircuitID: circuitID, Meta: meta}
	}

	// Step 6: resolve VK.
	registrySnap := d.registry.Current()
	vkRaw := env.Vk
	friParamsRaw := json.RawMessage(nil)
	if hasVkRef {
		rec, err := registrySnap.Resolve(circuitID)
		if err != nil {
			d.log.Warn("registry resolution failed", "circuit_id", circuitID, "error", err.Error())
			return d.failKind(zkerr.RegistryError, err.Error(), env.Kind, circuitID, meta, units)
		}
		vkRaw = rec.Vk
		friParamsRaw = rec.FriParams
		if resolvedVal, rerr := canon.FromJSON(rec.Vk); rerr == nil {
			if resolvedSize, serr := canon.Size(resolvedVal); serr == nil {
				meta.VkBytes = int64(resolvedSize)
			}
		}
	} else {
		if rec, err := registrySnap.Resolve(circuitID); err == nil {
			recomputed, herr := vkregistry.ComputeVkHash(string(env.Kind), env.VkFormat, env.Vk, nil)
			if herr != nil {
				return d.failKind(zkerr.BadArguments, herr.Error(), env.Kind, circuitID, meta, units)
			}
			if recomputed != rec.VkHash {
				d.log.Warn("embedded vk hash mismatch", "circuit_id", circuitID)
				return d.failKind(zkerr.RegistryError, "embedded vk_hash does not match registry entry", env.Kind, circuitID, meta, units)
			}
		}
	}

	// Step 7: dispatch to the per-kind verifier.
	ok, verr := d.dispatchVerify(env.Kind, vkRaw, friParamsRaw, env.Proof, env.PublicInputs, circuitID)
	if verr != nil {
		d.log.Error("verifier error", "kind", env.Kind, "circuit_id", circuitID, "error", verr.Error())
		return d.failKind(zkerr.Wrap(zkerr.AdapterError, verr).Code, verr.Error(), env.Kind, circuitID, meta, units)
	}
	if !ok {
		return d.failKind(zkerr.VerifyFailed, "cryptographic equation did not hold", env.Kind, circuitID, meta, units)
	}

	d.log.Debug("verification succeeded", "kind", env.Kind, "circuit_id", circuitID, "units", units)
	return Result{OK: true, Units: units, Kind: env.Kind, CircuitID: circuitID, Meta: meta}
}

// VerifyBatch verifies N independent payloads concurrently over a bounded
// worker pool, honoring §5's "thread-safe and concurrently callable
// without locking" guarantee: each payload's Verify call loads the current
// registry/policy snapshots itself (so a Swap during the batch is seen by
// payloads verified after it) and writes to its own result slot only.
// This is a concurrency convenience on top of Verify, per SPEC_FULL.md's
// supplemented batch-verification feature — each element's Result is
// what Verify would produce alone at that moment.
func (d *Dispatcher) VerifyBatch(payloads []Payload) []Result {
	results := make([]Result, len(payloads))
	const maxWorkers = 16
	workers := maxWorkers
	if len(payloads) < workers {
		workers = len(payloads)
	}
	if workers == 0 {
		return results
	}

	jobs := make(chan int, len(payloads))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = d.Verify(payloads[i])
			}
		}()
	}
	for i := range payloads {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

func (d *Dispatcher) fail(code zkerr.Code, msg string, meta ResultMeta) Result {
	return Result{OK: false, Units: 0, Meta: meta, Error: &ResultError{Code: string(code), Message: msg}}
}

// failKind builds a failure Result carrying units: zero for rejections
// that precede step 5 (compute_units), and whatever step 5 actually
// computed for every failure from step 6 onward (registry errors, adapter
// errors, VERIFY_FAILED), since the unit cost was already charged by then.
func (d *Dispatcher) failKind(code zkerr.Code, msg string, kind Kind, circuitID string, meta ResultMeta, units int64) Result {
	return Result{
		OK:        false,
		Units:     units,
		Kind:      kind,
		CircuitID: circuitID,
		Meta:      meta,
		Error:     &ResultError{Code: string(code), Message: msg},
	}
}

func checkKindFormat(kind Kind, vkFormat string) error {
	want := map[Kind]string{
		KindGroth16BN254:   "snarkjs",
		KindPlonkKZGBN254:  "plonkjs",
		KindStarkFRIMerkle: "fri-descriptor",
	}
	expected, ok := want[kind]
	if !ok {
		return &unknownKindError{kind: kind}
	}
	if vkFormat != expected {
		return &kindFormatMismatchError{kind: kind, vkFormat: vkFormat, expected: expected}
	}
	return nil
}

type unknownKindError struct{ kind Kind }

func (e *unknownKindError) Error() string { return "unknown envelope kind: " + string(e.kind) }

type kindFormatMismatchError struct {
	kind, vkFormat, expected string
}

func (e *kindFormatMismatchError) Error() string {
	return "vk_format " + e.vkFormat + " is not consistent with kind (expected " + e.expected + ")"
}

func kzgOpeningCount(kind Kind) (int64, bool) {
	if kind != KindPlonkKZGBN254 {
		return 0, false
	}
	return 1, true
}

// dispatchVerify decodes vkRaw/proofRaw into the per-kind verifier's
// concrete types and invokes it, per §4.9 step 7. A decode failure is a
// structural error (BAD_ARGUMENTS-ish, surfaced as ADAPTER_ERROR by the
// caller); a returned (false, nil) from the verifier is a cryptographic
// rejection (VERIFY_FAILED).
func (d *Dispatcher) dispatchVerify(kind Kind, vkRaw, friParamsRaw, proofRaw json.RawMessage, publicInputs []string, circuitID string) (bool, error) {
	switch kind {
	case KindGroth16BN254:
		vk, err := decodeGroth16VK(vkRaw)
		if err != nil {
			return false, err
		}
		proof, err := decodeGroth16Proof(proofRaw)
		if err != nil {
			return false, err
		}
		pis, err := decodePublicInputsFr(publicInputs)
		if err != nil {
			return false, err
		}
		return groth16verify.Verify(vk, proof, pis)

	case KindPlonkKZGBN254:
		vk, err := decodePlonkVK(vkRaw, circuitID)
		if err != nil {
			return false, err
		}
		proof, err := decodePlonkProof(proofRaw)
		if err != nil {
			return false, err
		}
		pis, err := decodePublicInputsFr(publicInputs)
		if err != nil {
			return false, err
		}
		return plonkverify.Verify(vk, proof, pis)

	case KindStarkFRIMerkle:
		vk, err := decodeStarkVK(vkRaw)
		if err != nil {
			return false, err
		}
		proof, err := decodeStarkProof(proofRaw, vk.Hash)
		if err != nil {
			return false, err
		}
		pis, err := decodePublicInputsUint64(publicInputs)
		if err != nil {
			return false, err
		}
		return starkverify.Verify(vk, proof, pis)

	default:
		return false, &unknownKindError{kind: kind}
	}
}
