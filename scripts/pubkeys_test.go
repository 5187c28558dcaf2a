package scripts

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// multisigLock builds a k-of-n lock script over the given keys.
func multisigLock(t *testing.T, k int64, keys ...*btcec.PublicKey) []byte {
	t.Helper()

	b := txscript.NewScriptBuilder().AddInt64(k)
	for _, key := range keys {
		b.AddData(key.SerializeCompressed())
	}
	return mustScript(t, b.
		AddInt64(int64(len(keys))).
		AddOp(txscript.OP_CHECKMULTISIG))
}

// TestExtractPubkeysMultisig checks that multisig keys come back complete and
// in script order.
func TestExtractPubkeysMultisig(t *testing.T) {
	key1 := testPubKey(t, 0x01)
	key2 := testPubKey(t, 0x02)
	key3 := testPubKey(t, 0x03)
	lock := NewLockScript(multisigLock(t, 2, key1, key2, key3))

	keys, err := lock.ExtractPubkeys()
	require.NoError(t, err)
	require.Len(t, keys, 3)
	assert.True(t, keys[0].IsEqual(key1))
	assert.True(t, keys[1].IsEqual(key2))
	assert.True(t, keys[2].IsEqual(key3))
}

// TestExtractPubkeysSequence checks depth-first ordering across a compound
// expression.
func TestExtractPubkeysSequence(t *testing.T) {
	key1 := testPubKey(t, 0x01)
	key2 := testPubKey(t, 0x02)

	lock := NewLockScript(mustScript(t, txscript.NewScriptBuilder().
		AddData(key1.SerializeCompressed()).
		AddOp(txscript.OP_CHECKSIGVERIFY).
		AddData(key2.SerializeCompressed()).
		AddOp(txscript.OP_CHECKSIG)))

	keys, err := lock.ExtractPubkeys()
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.True(t, keys[0].IsEqual(key1))
	assert.True(t, keys[1].IsEqual(key2))
}

// TestExtractPubkeysHashedKey checks that a key-hash leaf fails the whole
// extraction and surfaces the exact hash that blocked it.
func TestExtractPubkeysHashedKey(t *testing.T) {
	pubKey := testPubKey(t, 0x01)
	pubKeyHash := btcutil.Hash160(pubKey.SerializeCompressed())

	lock := NewLockScript(mustScript(t, txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(pubKeyHash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG)))

	_, err := lock.ExtractPubkeys()
	require.Error(t, err)
	assert.True(t, IsError(err, ErrHashedKey))

	var hashedKeyErr *HashedKeyError
	require.True(t, errors.As(err, &hashedKeyErr))
	assert.Equal(t, pubKeyHash, hashedKeyErr.KeyHash)
}

// TestExtractPubkeysNotAPolicy checks that bytes without policy structure
// fail with a parse error.
func TestExtractPubkeysNotAPolicy(t *testing.T) {
	lock := NewLockScript([]byte{txscript.OP_CAT, txscript.OP_CAT})

	_, err := lock.ExtractPubkeys()
	require.Error(t, err)
	assert.True(t, IsError(err, ErrPolicyParse))
}

// TestReplacePubkeysIdentity checks that a processor which replaces nothing
// yields a byte-identical script.
func TestReplacePubkeysIdentity(t *testing.T) {
	key1 := testPubKey(t, 0x01)
	key2 := testPubKey(t, 0x02)

	locks := [][]byte{
		multisigLock(t, 2, key1, key2),
		mustScript(t, txscript.NewScriptBuilder().
			AddOp(txscript.OP_IF).
			AddData(key1.SerializeCompressed()).
			AddOp(txscript.OP_CHECKSIG).
			AddOp(txscript.OP_ELSE).
			AddData(key2.SerializeCompressed()).
			AddOp(txscript.OP_CHECKSIG).
			AddOp(txscript.OP_ENDIF)),
	}

	for _, script := range locks {
		rewritten, err := NewLockScript(script).ReplacePubkeys(
			func(*btcec.PublicKey) *btcec.PublicKey {
				return nil
			},
		)
		require.NoError(t, err)
		assert.Equal(t, script, rewritten.Script())
	}
}

// TestReplacePubkeysTargeted checks that replacing one key rewrites exactly
// that key and leaves the rest of the script alone.
func TestReplacePubkeysTargeted(t *testing.T) {
	key1 := testPubKey(t, 0x01)
	key2 := testPubKey(t, 0x02)
	replacement := testPubKey(t, 0x04)

	lock := NewLockScript(multisigLock(t, 2, key1, key2))

	rewritten, err := lock.ReplacePubkeys(
		func(key *btcec.PublicKey) *btcec.PublicKey {
			if key.IsEqual(key1) {
				return replacement
			}
			return nil
		},
	)
	require.NoError(t, err)

	want := multisigLock(t, 2, replacement, key2)
	assert.Equal(t, want, rewritten.Script())

	keys, err := rewritten.ExtractPubkeys()
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.True(t, keys[0].IsEqual(replacement))
	assert.True(t, keys[1].IsEqual(key2))
}

// TestReplacePubkeysRejectsNonCanonical checks that a script spelling a
// check as a bare OP_VERIFY where a VERIFY-form opcode exists is refused.
// Re-encoding such a script would collapse the opcode pair and change the
// bytes, so substitution must fail instead of silently rewriting it.
func TestReplacePubkeysRejectsNonCanonical(t *testing.T) {
	key1 := testPubKey(t, 0x01)
	lock := NewLockScript(mustScript(t, txscript.NewScriptBuilder().
		AddData(key1.SerializeCompressed()).
		AddOp(txscript.OP_CHECKSIG).
		AddOp(txscript.OP_VERIFY)))

	_, err := lock.ReplacePubkeys(
		func(*btcec.PublicKey) *btcec.PublicKey {
			return nil
		},
	)
	require.Error(t, err)
	assert.True(t, IsError(err, ErrPolicyParse))
}

// TestReplacePubkeysParseFailure checks that substitution refuses scripts it
// cannot parse instead of guessing.
func TestReplacePubkeysParseFailure(t *testing.T) {
	lock := NewLockScript([]byte{txscript.OP_CAT})

	_, err := lock.ReplacePubkeys(
		func(*btcec.PublicKey) *btcec.PublicKey {
			return nil
		},
	)
	require.Error(t, err)
	assert.True(t, IsError(err, ErrPolicyParse))
}
