package scripts

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// PubkeyScriptSource mirrors the PubkeyScriptType variant set but carries the
// resolved content behind each hash commitment: the revealed lock script, the
// public key, or the tapscript and its internal key. A source can only be
// constructed through the Source methods on the corresponding classification
// variant, all of which verify the candidate pre-image against the
// commitment. There is no other way to cross from a hash to its content.
type PubkeyScriptSource interface {
	// String returns the standard name of the underlying script class.
	String() string

	scriptSource()
}

// P2SSource is the resolved form of a custom script, which is its own lock
// script.
type P2SSource struct {
	lock LockScript
}

// LockScript returns the resolved lock script.
func (s P2SSource) LockScript() LockScript { return s.lock }

// P2PKSource is the resolved form of a pay-to-pubkey output. The key was
// never hidden, so this is a relabeling.
type P2PKSource struct {
	pubKey *btcec.PublicKey
}

// PubKey returns the resolved public key.
func (s P2PKSource) PubKey() *btcec.PublicKey { return s.pubKey }

// P2PKHSource is the resolved form of a pay-to-pubkey-hash output: the key
// whose hash160 the output commits to.
type P2PKHSource struct {
	pubKey *btcec.PublicKey
}

// PubKey returns the resolved public key.
func (s P2PKHSource) PubKey() *btcec.PublicKey { return s.pubKey }

// P2SHSource is the resolved form of a pay-to-script-hash output: the
// revealed script whose hash160 the output commits to.
type P2SHSource struct {
	lock LockScript
}

// LockScript returns the resolved lock script.
func (s P2SHSource) LockScript() LockScript { return s.lock }

// NullDataSource is the resolved form of a null-data output. The data was
// never hidden, so this is a relabeling.
type NullDataSource struct {
	data []byte
}

// Data returns the attached data.
func (s NullDataSource) Data() []byte { return copyScript(s.data) }

// P2WPKHSource is the resolved form of a version 0 witness key-hash output:
// the key whose hash160 the witness program commits to.
type P2WPKHSource struct {
	pubKey *btcec.PublicKey
}

// PubKey returns the resolved public key.
func (s P2WPKHSource) PubKey() *btcec.PublicKey { return s.pubKey }

// P2WSHSource is the resolved form of a version 0 witness script-hash
// output: the revealed script whose sha256 the witness program commits to.
type P2WSHSource struct {
	lock LockScript
}

// LockScript returns the resolved lock script.
func (s P2WSHSource) LockScript() LockScript { return s.lock }

// P2TRSource is the resolved form of a taproot output: the internal key and
// the tapscript leaf whose combination tweaks to the committed output key.
type P2TRSource struct {
	internalKey *btcec.PublicKey
	tapScript   TapScript
}

// InternalKey returns the untweaked internal key.
func (s P2TRSource) InternalKey() *btcec.PublicKey { return s.internalKey }

// TapScript returns the revealed tapscript leaf.
func (s P2TRSource) TapScript() TapScript { return s.tapScript }

func (P2SSource) scriptSource()      {}
func (P2PKSource) scriptSource()     {}
func (P2PKHSource) scriptSource()    {}
func (P2SHSource) scriptSource()     {}
func (NullDataSource) scriptSource() {}
func (P2WPKHSource) scriptSource()   {}
func (P2WSHSource) scriptSource()    {}
func (P2TRSource) scriptSource()     {}

func (P2SSource) String() string      { return "nonstandard" }
func (P2PKSource) String() string     { return "pubkey" }
func (P2PKHSource) String() string    { return "pubkeyhash" }
func (P2SHSource) String() string     { return "scripthash" }
func (NullDataSource) String() string { return "nulldata" }
func (P2WPKHSource) String() string   { return "witness_v0_keyhash" }
func (P2WSHSource) String() string    { return "witness_v0_scripthash" }
func (P2TRSource) String() string     { return "witness_v1_taproot" }

// Source relabels the custom script as its own lock script. A script that
// matches no hash-committing template hides nothing, so this cannot fail.
func (t P2S) Source() P2SSource {
	return P2SSource{lock: NewLockScript(t.Script.Script())}
}

// Source relabels the carried public key. Cannot fail.
func (t P2PK) Source() P2PKSource {
	return P2PKSource{pubKey: t.PubKey}
}

// Source relabels the carried data. Cannot fail.
func (t NullData) Source() NullDataSource {
	return NullDataSource{data: t.Data}
}

// Source resolves the key-hash commitment with a candidate public key. Both
// the compressed and the uncompressed serialization are accepted, since
// either may be hashed into a P2PKH output.
func (t P2PKH) Source(pubKey *btcec.PublicKey) (P2PKHSource, error) {
	if !bytes.Equal(btcutil.Hash160(pubKey.SerializeCompressed()),
		t.PubKeyHash[:]) &&
		!bytes.Equal(btcutil.Hash160(pubKey.SerializeUncompressed()),
			t.PubKeyHash[:]) {

		return P2PKHSource{}, scriptError(ErrHashMismatch,
			fmt.Sprintf("candidate key does not hash to the "+
				"committed pubkey hash %x", t.PubKeyHash), nil)
	}
	return P2PKHSource{pubKey: pubKey}, nil
}

// Source resolves the witness key-hash commitment with a candidate public
// key. Only the compressed serialization is accepted, per BIP-143.
func (t P2WPKH) Source(pubKey *btcec.PublicKey) (P2WPKHSource, error) {
	if !bytes.Equal(btcutil.Hash160(pubKey.SerializeCompressed()),
		t.Program[:]) {

		return P2WPKHSource{}, scriptError(ErrHashMismatch,
			fmt.Sprintf("candidate key does not hash to the "+
				"witness program %x", t.Program), nil)
	}
	return P2WPKHSource{pubKey: pubKey}, nil
}

// Source resolves the script-hash commitment with a candidate lock script.
func (t P2SH) Source(lock LockScript) (P2SHSource, error) {
	if !bytes.Equal(btcutil.Hash160(lock.Script()), t.ScriptHash[:]) {
		return P2SHSource{}, scriptError(ErrHashMismatch,
			fmt.Sprintf("candidate script does not hash to the "+
				"committed script hash %x", t.ScriptHash), nil)
	}
	return P2SHSource{lock: lock}, nil
}

// Source resolves the witness script-hash commitment with a candidate lock
// script.
func (t P2WSH) Source(lock LockScript) (P2WSHSource, error) {
	if !bytes.Equal(chainhash.HashB(lock.Script()), t.Program[:]) {
		return P2WSHSource{}, scriptError(ErrHashMismatch,
			fmt.Sprintf("candidate script does not hash to the "+
				"witness program %x", t.Program), nil)
	}
	return P2WSHSource{lock: lock}, nil
}

// Source resolves the taproot commitment with a candidate internal key and
// tapscript, assuming the script tree consists of the single given leaf. The
// BIP-341 output key is recomputed from the candidate pair and must equal
// the committed output key.
func (t P2TR) Source(internalKey *btcec.PublicKey,
	tapScript TapScript) (P2TRSource, error) {

	root := txscript.NewBaseTapLeaf(tapScript.Script()).TapHash()
	return t.SourceWithMerkleRoot(internalKey, root[:], tapScript)
}

// SourceWithMerkleRoot resolves the taproot commitment when the revealed
// tapscript is one leaf of a larger tree whose merkle root the caller has
// already computed from a control block.
func (t P2TR) SourceWithMerkleRoot(internalKey *btcec.PublicKey,
	merkleRoot []byte, tapScript TapScript) (P2TRSource, error) {

	outputKey := txscript.ComputeTaprootOutputKey(internalKey, merkleRoot)
	if !bytes.Equal(schnorr.SerializePubKey(outputKey),
		schnorr.SerializePubKey(t.OutputKey)) {

		return P2TRSource{}, scriptError(ErrHashMismatch,
			fmt.Sprintf("candidate key and tapscript do not "+
				"tweak to the committed output key %x",
				schnorr.SerializePubKey(t.OutputKey)), nil)
	}
	return P2TRSource{internalKey: internalKey, tapScript: tapScript}, nil
}

// RedeemScript extracts the redeem script revealed by a P2SH input script.
// The final push of the sigScript is the candidate; it is accepted only if
// its hash160 equals the output's script-hash commitment.
func (t P2SH) RedeemScript(sig SigScript) (RedeemScript, error) {
	raw := sig.Script()

	var lastPush []byte
	havePush := false
	tokenizer := txscript.MakeScriptTokenizer(0, raw)
	for tokenizer.Next() {
		lastPush = tokenizer.Data()
		havePush = lastPush != nil
	}
	if err := tokenizer.Err(); err != nil {
		return RedeemScript{}, scriptError(ErrMalformedScript,
			"sigScript is not parseable", err)
	}
	if !havePush {
		return RedeemScript{}, scriptError(ErrMalformedScript,
			"sigScript does not end with a data push", nil)
	}

	if !bytes.Equal(btcutil.Hash160(lastPush), t.ScriptHash[:]) {
		return RedeemScript{}, scriptError(ErrHashMismatch,
			fmt.Sprintf("revealed script does not hash to the "+
				"committed script hash %x", t.ScriptHash), nil)
	}

	log.Tracef("resolved redeem script for script hash %x", t.ScriptHash)
	return NewRedeemScript(lastPush), nil
}

// WitnessScript extracts the witness script revealed by a P2WSH witness
// stack. The final witness item is the candidate; it is accepted only if its
// sha256 equals the witness program.
func (t P2WSH) WitnessScript(witness wire.TxWitness) (WitnessScript, error) {
	if len(witness) == 0 {
		return WitnessScript{}, scriptError(ErrMalformedScript,
			"empty witness stack", nil)
	}

	candidate := witness[len(witness)-1]
	if !bytes.Equal(chainhash.HashB(candidate), t.Program[:]) {
		return WitnessScript{}, scriptError(ErrHashMismatch,
			fmt.Sprintf("revealed script does not hash to the "+
				"witness program %x", t.Program), nil)
	}

	log.Tracef("resolved witness script for program %x", t.Program)
	return NewWitnessScript(candidate), nil
}

// PreimageSource supplies candidate pre-images for nested hash commitments
// during lock script resolution. Every returned script is still re-verified
// against its commitment before use.
type PreimageSource interface {
	// Script returns the script whose hash160 equals scriptHash, if
	// known.
	Script(scriptHash [20]byte) ([]byte, bool)

	// WitnessScript returns the script whose sha256 equals
	// witnessScriptHash, if known.
	WitnessScript(witnessScriptHash [32]byte) ([]byte, bool)
}

// PreimageMap is an in-memory PreimageSource.
type PreimageMap struct {
	byHash160 map[[20]byte][]byte
	bySha256  map[[32]byte][]byte
}

// NewPreimageMap creates an empty PreimageMap.
func NewPreimageMap() *PreimageMap {
	return &PreimageMap{
		byHash160: make(map[[20]byte][]byte),
		bySha256:  make(map[[32]byte][]byte),
	}
}

// Add indexes a revealed script under both of its commitment hashes.
func (m *PreimageMap) Add(script []byte) {
	script = copyScript(script)

	var h160 [20]byte
	copy(h160[:], btcutil.Hash160(script))
	m.byHash160[h160] = script

	var h256 [32]byte
	copy(h256[:], chainhash.HashB(script))
	m.bySha256[h256] = script
}

// Script returns the script whose hash160 equals scriptHash, if known.
func (m *PreimageMap) Script(scriptHash [20]byte) ([]byte, bool) {
	script, ok := m.byHash160[scriptHash]
	return script, ok
}

// WitnessScript returns the script whose sha256 equals witnessScriptHash, if
// known.
func (m *PreimageMap) WitnessScript(witnessScriptHash [32]byte) ([]byte, bool) {
	script, ok := m.bySha256[witnessScriptHash]
	return script, ok
}

// ResolveLockScript descends from an output script to the terminal lock
// script at the bottom of its nesting chain, pulling pre-images for each
// hash commitment from the given source and verifying every one of them.
// The descent follows Bitcoin's nesting rules: a P2SH redeem script may
// itself be a version 0 witness script-hash program (P2WSH-in-P2SH), which
// is resolved one layer further. A chain that ends in a key-hash commitment
// (P2PKH, P2WPKH, nested or not) has no lock script to reveal and fails
// with ErrUnresolvable, as do null-data and taproot outputs, the latter
// because taproot resolution additionally needs the internal key (see
// P2TR.Source).
func ResolveLockScript(pkScript PubkeyScript,
	preimages PreimageSource) (LockScript, error) {

	switch t := ParsePubkeyScript(pkScript).(type) {
	case P2S:
		return NewLockScript(pkScript.Script()), nil

	case P2PK:
		// A bare pubkey script commits to nothing further; it is its
		// own lock script.
		return NewLockScript(pkScript.Script()), nil

	case P2SH:
		redeem, ok := preimages.Script(t.ScriptHash)
		if !ok {
			return LockScript{}, scriptError(ErrMissingPreimage,
				fmt.Sprintf("no pre-image known for script "+
					"hash %x", t.ScriptHash), nil)
		}
		source, err := t.Source(NewLockScript(redeem))
		if err != nil {
			return LockScript{}, err
		}
		log.Debugf("descended through scripthash %x", t.ScriptHash)
		return resolveNested(source.LockScript(), preimages)

	case P2WSH:
		return resolveWitnessScriptHash(t, preimages)

	case P2PKH, P2WPKH:
		return LockScript{}, scriptError(ErrUnresolvable,
			fmt.Sprintf("%v output commits to a key hash, not "+
				"a script", t), nil)

	case NullData:
		return LockScript{}, scriptError(ErrUnresolvable,
			"null-data output carries no spend condition", nil)

	case P2TR:
		return LockScript{}, scriptError(ErrUnresolvable,
			"taproot output needs an internal key to resolve, "+
				"see P2TR.Source", nil)

	default:
		return LockScript{}, scriptError(ErrUnresolvable,
			fmt.Sprintf("unhandled script class %v", t), nil)
	}
}

// resolveNested inspects a script revealed one layer down. Only a version 0
// witness script-hash program nests further; a witness key-hash program dead
// ends at a key hash; anything else is the terminal lock script.
func resolveNested(lock LockScript,
	preimages PreimageSource) (LockScript, error) {

	switch t := ParsePubkeyScript(NewPubkeyScript(lock.Script())).(type) {
	case P2WSH:
		return resolveWitnessScriptHash(t, preimages)

	case P2WPKH:
		return LockScript{}, scriptError(ErrUnresolvable,
			"nested witness program commits to a key hash, not "+
				"a script", nil)

	default:
		return lock, nil
	}
}

// resolveWitnessScriptHash pulls and verifies the pre-image of a version 0
// witness script-hash program. The revealed witness script is terminal: no
// further nesting is defined below it.
func resolveWitnessScriptHash(t P2WSH,
	preimages PreimageSource) (LockScript, error) {

	witnessScript, ok := preimages.WitnessScript(t.Program)
	if !ok {
		return LockScript{}, scriptError(ErrMissingPreimage,
			fmt.Sprintf("no pre-image known for witness "+
				"program %x", t.Program), nil)
	}
	source, err := t.Source(NewLockScript(witnessScript))
	if err != nil {
		return LockScript{}, err
	}
	log.Debugf("descended through witness program %x", t.Program)
	return source.LockScript(), nil
}
