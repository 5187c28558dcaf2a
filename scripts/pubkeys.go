package scripts

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/scriptnest/scriptnest/policy"
)

// ExtractPubkeys parses the lock script as a policy expression and returns
// every plain public key it contains, in depth-first order of appearance.
// Duplicate keys in the script appear as duplicates in the result.
//
// Extraction is all-or-nothing: if any leaf commits only to a key hash, the
// key cannot be recovered and the whole extraction fails with ErrHashedKey
// carrying that exact hash. Bytes that do not parse as a policy expression
// fail with ErrPolicyParse.
func (s LockScript) ExtractPubkeys() ([]*btcec.PublicKey, error) {
	tree, err := policy.Parse(s.script)
	if err != nil {
		return nil, scriptError(ErrPolicyParse,
			"lock script is not a policy expression", err)
	}

	var keys []*btcec.PublicKey
	err = tree.ForEachKey(func(leaf policy.KeyOrHash) error {
		if leaf.Hash != nil {
			return scriptError(ErrHashedKey,
				fmt.Sprintf("cannot extract key behind hash "+
					"%x", leaf.Hash),
				&HashedKeyError{KeyHash: leaf.Hash})
		}

		pubKey, err := btcec.ParsePubKey(leaf.Key)
		if err != nil {
			return scriptError(ErrPolicyParse,
				fmt.Sprintf("key push %x is not a valid "+
					"public key", leaf.Key), err)
		}
		keys = append(keys, pubKey)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Tracef("extracted %d pubkeys from lock script %v", len(keys), s)
	return keys, nil
}

// ReplacePubkeys rewrites the plain public keys of the lock script through
// the given processor and returns the re-encoded result as a new value. The
// processor returns the replacement key, or nil to leave the key unchanged;
// hashed-key leaves are never passed to it and are left untouched. A
// processor that always returns nil yields a script byte-identical to the
// input.
//
// The processor must be a pure function of its input key: it may be invoked
// in any leaf order and must not rely on shared state.
func (s LockScript) ReplacePubkeys(
	processor func(*btcec.PublicKey) *btcec.PublicKey) (LockScript, error) {

	tree, err := policy.Parse(s.script)
	if err != nil {
		return LockScript{}, scriptError(ErrPolicyParse,
			"lock script is not a policy expression", err)
	}

	rewritten, err := tree.MapKeys(func(keyBytes []byte) ([]byte, error) {
		pubKey, err := btcec.ParsePubKey(keyBytes)
		if err != nil {
			return nil, scriptError(ErrPolicyParse,
				fmt.Sprintf("key push %x is not a valid "+
					"public key", keyBytes), err)
		}

		replacement := processor(pubKey)
		if replacement == nil {
			return nil, nil
		}
		return replacement.SerializeCompressed(), nil
	})
	if err != nil {
		return LockScript{}, err
	}

	script, err := rewritten.Script()
	if err != nil {
		return LockScript{}, scriptError(ErrPolicyParse,
			"rewritten policy expression failed to encode", err)
	}
	return NewLockScript(script), nil
}
