package scripts

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checksigLock builds a minimal lock script paying to the given seed's key.
func checksigLock(t *testing.T, seed byte) []byte {
	t.Helper()

	return mustScript(t, txscript.NewScriptBuilder().
		AddData(testPubKey(t, seed).SerializeCompressed()).
		AddOp(txscript.OP_CHECKSIG))
}

func TestP2SHSource(t *testing.T) {
	redeem := checksigLock(t, 0x01)
	other := checksigLock(t, 0x02)

	var scriptHash [20]byte
	copy(scriptHash[:], btcutil.Hash160(redeem))
	p2sh := P2SH{ScriptHash: scriptHash}

	source, err := p2sh.Source(NewLockScript(redeem))
	require.NoError(t, err)
	assert.Equal(t, redeem, source.LockScript().Script())

	_, err = p2sh.Source(NewLockScript(other))
	assert.True(t, IsError(err, ErrHashMismatch))
}

func TestP2WSHSource(t *testing.T) {
	witness := checksigLock(t, 0x01)
	other := checksigLock(t, 0x02)

	var program [32]byte
	copy(program[:], chainhash.HashB(witness))
	p2wsh := P2WSH{Program: program}

	source, err := p2wsh.Source(NewLockScript(witness))
	require.NoError(t, err)
	assert.Equal(t, witness, source.LockScript().Script())

	_, err = p2wsh.Source(NewLockScript(other))
	assert.True(t, IsError(err, ErrHashMismatch))
}

func TestP2PKHSource(t *testing.T) {
	pubKey := testPubKey(t, 0x01)
	other := testPubKey(t, 0x02)

	// Either serialization of the key may have been hashed into the
	// output.
	for _, keyBytes := range [][]byte{
		pubKey.SerializeCompressed(),
		pubKey.SerializeUncompressed(),
	} {
		var pubKeyHash [20]byte
		copy(pubKeyHash[:], btcutil.Hash160(keyBytes))
		p2pkh := P2PKH{PubKeyHash: pubKeyHash}

		source, err := p2pkh.Source(pubKey)
		require.NoError(t, err)
		assert.True(t, source.PubKey().IsEqual(pubKey))

		_, err = p2pkh.Source(other)
		assert.True(t, IsError(err, ErrHashMismatch))
	}
}

func TestP2WPKHSource(t *testing.T) {
	pubKey := testPubKey(t, 0x01)

	// Witness programs commit to the compressed serialization only.
	var program [20]byte
	copy(program[:], btcutil.Hash160(pubKey.SerializeUncompressed()))
	p2wpkh := P2WPKH{Program: program}

	_, err := p2wpkh.Source(pubKey)
	assert.True(t, IsError(err, ErrHashMismatch))

	copy(program[:], btcutil.Hash160(pubKey.SerializeCompressed()))
	p2wpkh = P2WPKH{Program: program}

	source, err := p2wpkh.Source(pubKey)
	require.NoError(t, err)
	assert.True(t, source.PubKey().IsEqual(pubKey))
}

func TestP2TRSource(t *testing.T) {
	internalKey := testPubKey(t, 0x01)
	tapScript := NewTapScript(checksigLock(t, 0x02))
	otherScript := NewTapScript(checksigLock(t, 0x03))

	leaf := txscript.NewBaseTapLeaf(tapScript.Script()).TapHash()
	outputKey := txscript.ComputeTaprootOutputKey(internalKey, leaf[:])
	p2tr := P2TR{OutputKey: outputKey}

	source, err := p2tr.Source(internalKey, tapScript)
	require.NoError(t, err)
	assert.True(t, source.InternalKey().IsEqual(internalKey))
	assert.Equal(t, tapScript.Script(), source.TapScript().Script())

	_, err = p2tr.Source(internalKey, otherScript)
	assert.True(t, IsError(err, ErrHashMismatch))
}

func TestRedeemScriptExtraction(t *testing.T) {
	redeem := checksigLock(t, 0x01)
	var scriptHash [20]byte
	copy(scriptHash[:], btcutil.Hash160(redeem))
	p2sh := P2SH{ScriptHash: scriptHash}

	// The redeem script is the final push of the input script, after the
	// signature-side pushes.
	sig := NewSigScript(mustScript(t, txscript.NewScriptBuilder().
		AddData(bytes.Repeat([]byte{0x30}, 71)).
		AddData(redeem)))

	extracted, err := p2sh.RedeemScript(sig)
	require.NoError(t, err)
	assert.Equal(t, redeem, extracted.Script())

	// A final push that does not hash to the commitment is rejected.
	badSig := NewSigScript(mustScript(t, txscript.NewScriptBuilder().
		AddData(checksigLock(t, 0x02))))
	_, err = p2sh.RedeemScript(badSig)
	assert.True(t, IsError(err, ErrHashMismatch))

	// An input script with no data push at all cannot reveal anything.
	noPush := NewSigScript([]byte{txscript.OP_DUP})
	_, err = p2sh.RedeemScript(noPush)
	assert.True(t, IsError(err, ErrMalformedScript))
}

func TestWitnessScriptExtraction(t *testing.T) {
	witnessScript := checksigLock(t, 0x01)
	var program [32]byte
	copy(program[:], chainhash.HashB(witnessScript))
	p2wsh := P2WSH{Program: program}

	witness := wire.TxWitness{
		bytes.Repeat([]byte{0x30}, 71),
		witnessScript,
	}
	extracted, err := p2wsh.WitnessScript(witness)
	require.NoError(t, err)
	assert.Equal(t, witnessScript, extracted.Script())

	_, err = p2wsh.WitnessScript(wire.TxWitness{checksigLock(t, 0x02)})
	assert.True(t, IsError(err, ErrHashMismatch))

	_, err = p2wsh.WitnessScript(wire.TxWitness{})
	assert.True(t, IsError(err, ErrMalformedScript))
}

// TestResolveLockScript exercises the full descent from an output script to
// its terminal lock script through a pre-image source.
func TestResolveLockScript(t *testing.T) {
	lock := checksigLock(t, 0x01)

	preimages := NewPreimageMap()
	preimages.Add(lock)

	// P2SH with the redeem script known.
	p2sh := mustScript(t, txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).
		AddData(btcutil.Hash160(lock)).
		AddOp(txscript.OP_EQUAL))
	resolved, err := ResolveLockScript(NewPubkeyScript(p2sh), preimages)
	require.NoError(t, err)
	assert.Equal(t, lock, resolved.Script())

	// P2WSH with the witness script known.
	p2wsh := mustScript(t, txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(chainhash.HashB(lock)))
	resolved, err = ResolveLockScript(NewPubkeyScript(p2wsh), preimages)
	require.NoError(t, err)
	assert.Equal(t, lock, resolved.Script())

	// P2WSH nested in P2SH descends two layers.
	nestedRedeem := mustScript(t, txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(chainhash.HashB(lock)))
	preimages.Add(nestedRedeem)
	nested := mustScript(t, txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).
		AddData(btcutil.Hash160(nestedRedeem)).
		AddOp(txscript.OP_EQUAL))
	resolved, err = ResolveLockScript(NewPubkeyScript(nested), preimages)
	require.NoError(t, err)
	assert.Equal(t, lock, resolved.Script())

	// A bare pubkey script is its own lock script.
	resolved, err = ResolveLockScript(NewPubkeyScript(lock), preimages)
	require.NoError(t, err)
	assert.Equal(t, lock, resolved.Script())
}

func TestResolveLockScriptFailures(t *testing.T) {
	pubKey := testPubKey(t, 0x01)
	pubKeyHash := btcutil.Hash160(pubKey.SerializeCompressed())
	preimages := NewPreimageMap()

	// P2SH commitment with no known pre-image.
	unknown := mustScript(t, txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).
		AddData(bytes.Repeat([]byte{0x11}, 20)).
		AddOp(txscript.OP_EQUAL))
	_, err := ResolveLockScript(NewPubkeyScript(unknown), preimages)
	assert.True(t, IsError(err, ErrMissingPreimage))

	// Key-hash outputs commit to a key, not a script.
	p2pkh := mustScript(t, txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(pubKeyHash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG))
	_, err = ResolveLockScript(NewPubkeyScript(p2pkh), preimages)
	assert.True(t, IsError(err, ErrUnresolvable))

	// So does a P2WPKH program nested inside a P2SH redeem script.
	nestedRedeem := mustScript(t, txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(pubKeyHash))
	preimages.Add(nestedRedeem)
	nested := mustScript(t, txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).
		AddData(btcutil.Hash160(nestedRedeem)).
		AddOp(txscript.OP_EQUAL))
	_, err = ResolveLockScript(NewPubkeyScript(nested), preimages)
	assert.True(t, IsError(err, ErrUnresolvable))

	// Null-data outputs carry no spend condition.
	nullData := mustScript(t, txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddData([]byte("data")))
	_, err = ResolveLockScript(NewPubkeyScript(nullData), preimages)
	assert.True(t, IsError(err, ErrUnresolvable))
}
