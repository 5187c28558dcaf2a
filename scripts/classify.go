package scripts

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
)

// PubkeyScriptType is the classification of an output script by the on-chain
// pattern it matches. Each variant carries only the data the script actually
// commits to: a key, a hash, raw data, or (for the fallback) the unmodified
// script itself.
//
// The variant set is closed. New output patterns (e.g. future witness
// versions) are added as new variants plus one matching rule in
// ParsePubkeyScript, with P2S absorbing anything unrecognized.
type PubkeyScriptType interface {
	// PkScript generates the canonical output script bytes for the
	// classification. Generation fails with ErrUnsupportedGeneration for
	// variants with no defined template, currently P2TR.
	PkScript() (PubkeyScript, error)

	// String returns the standard name of the script class.
	String() string

	scriptPattern()
}

// P2PK is a pay-to-pubkey output, carrying the full public key.
type P2PK struct {
	PubKey *btcec.PublicKey

	// Compressed records which serialization of the key appeared in the
	// script, so generation reproduces the original bytes.
	Compressed bool
}

// P2PKH is a pay-to-pubkey-hash output, committing to the hash160 of a
// public key.
type P2PKH struct {
	PubKeyHash [20]byte
}

// P2SH is a pay-to-script-hash output, committing to the hash160 of a
// redeem script.
type P2SH struct {
	ScriptHash [20]byte
}

// NullData is a provably unspendable output carrying arbitrary attached
// data after OP_RETURN.
type NullData struct {
	Data []byte
}

// P2WPKH is a version 0 witness output committing to the hash160 of a
// compressed public key.
type P2WPKH struct {
	Program [20]byte
}

// P2WSH is a version 0 witness output committing to the sha256 of a
// witness script.
type P2WSH struct {
	Program [32]byte
}

// P2TR is a version 1 witness output carrying a taproot output key.
type P2TR struct {
	OutputKey *btcec.PublicKey
}

// P2S is the total-function fallback: a script matching none of the known
// templates, carried unchanged.
type P2S struct {
	Script PubkeyScript
}

func (P2PK) scriptPattern()     {}
func (P2PKH) scriptPattern()    {}
func (P2SH) scriptPattern()     {}
func (NullData) scriptPattern() {}
func (P2WPKH) scriptPattern()   {}
func (P2WSH) scriptPattern()    {}
func (P2TR) scriptPattern()     {}
func (P2S) scriptPattern()      {}

func (P2PK) String() string     { return "pubkey" }
func (P2PKH) String() string    { return "pubkeyhash" }
func (P2SH) String() string     { return "scripthash" }
func (NullData) String() string { return "nulldata" }
func (P2WPKH) String() string   { return "witness_v0_keyhash" }
func (P2WSH) String() string    { return "witness_v0_scripthash" }
func (P2TR) String() string     { return "witness_v1_taproot" }
func (P2S) String() string      { return "nonstandard" }

// extractPubKeyBytes returns the serialized public key of a pay-to-pubkey
// script along with whether it is the compressed form, or nil if the script
// is not a canonical P2PK script.
func extractPubKeyBytes(script []byte) ([]byte, bool) {
	// A pay-to-compressed-pubkey script is of the form:
	//  OP_DATA_33 <33-byte compressed pubkey> OP_CHECKSIG
	if len(script) == 35 &&
		script[0] == txscript.OP_DATA_33 &&
		script[34] == txscript.OP_CHECKSIG &&
		(script[1] == 0x02 || script[1] == 0x03) {

		return script[1:34], true
	}

	// A pay-to-uncompressed-pubkey script is of the form:
	//  OP_DATA_65 <65-byte uncompressed pubkey> OP_CHECKSIG
	if len(script) == 67 &&
		script[0] == txscript.OP_DATA_65 &&
		script[66] == txscript.OP_CHECKSIG &&
		script[1] == 0x04 {

		return script[1:66], false
	}

	return nil, false
}

// extractPubKeyHash returns the committed hash of a pay-to-pubkey-hash
// script, or nil if the script does not match the template.
func extractPubKeyHash(script []byte) []byte {
	// A pay-to-pubkey-hash script is of the form:
	//  OP_DUP OP_HASH160 <20-byte hash> OP_EQUALVERIFY OP_CHECKSIG
	if len(script) == 25 &&
		script[0] == txscript.OP_DUP &&
		script[1] == txscript.OP_HASH160 &&
		script[2] == txscript.OP_DATA_20 &&
		script[23] == txscript.OP_EQUALVERIFY &&
		script[24] == txscript.OP_CHECKSIG {

		return script[3:23]
	}

	return nil
}

// extractScriptHash returns the committed hash of a pay-to-script-hash
// script, or nil if the script does not match the template.
func extractScriptHash(script []byte) []byte {
	// A pay-to-script-hash script is of the form:
	//  OP_HASH160 <20-byte scripthash> OP_EQUAL
	if len(script) == 23 &&
		script[0] == txscript.OP_HASH160 &&
		script[1] == txscript.OP_DATA_20 &&
		script[22] == txscript.OP_EQUAL {

		return script[2:22]
	}

	return nil
}

// extractWitnessProgram returns the version and program of a segwit output
// script, or false if the script is not a witness program of the sizes this
// package classifies.
func extractWitnessProgram(script []byte) (int, []byte, bool) {
	switch {
	// A pay-to-witness-pubkey-hash script is of the form:
	//  OP_0 <20-byte hash>
	case len(script) == 22 &&
		script[0] == txscript.OP_0 &&
		script[1] == txscript.OP_DATA_20:

		return 0, script[2:22], true

	// A pay-to-witness-script-hash script is of the form:
	//  OP_0 <32-byte hash>
	case len(script) == 34 &&
		script[0] == txscript.OP_0 &&
		script[1] == txscript.OP_DATA_32:

		return 0, script[2:34], true

	// A pay-to-taproot script is of the form:
	//  OP_1 <32-byte x-only key>
	case len(script) == 34 &&
		script[0] == txscript.OP_1 &&
		script[1] == txscript.OP_DATA_32:

		return 1, script[2:34], true
	}

	return 0, nil, false
}

// extractNullData returns the data attached to a null-data script, or false
// if the script is not a canonical OP_RETURN output. An OP_RETURN with no
// payload yields an empty, non-nil slice.
func extractNullData(script []byte) ([]byte, bool) {
	if len(script) == 0 || script[0] != txscript.OP_RETURN {
		return nil, false
	}
	if len(script) == 1 {
		return []byte{}, true
	}

	// The remainder must be a single canonical data push.
	tokenizer := txscript.MakeScriptTokenizer(0, script[1:])
	if !tokenizer.Next() || tokenizer.Err() != nil || !tokenizer.Done() {
		return nil, false
	}

	data := tokenizer.Data()
	if data == nil {
		// Small integer opcodes push data too, but carry none.
		op := tokenizer.Opcode()
		if op == txscript.OP_0 ||
			(op >= txscript.OP_1 && op <= txscript.OP_16) {

			return []byte{}, true
		}
		return nil, false
	}

	return data, true
}

// ParsePubkeyScript classifies an output script against the canonical
// templates in fixed priority order: P2PK, P2PKH, P2SH, P2WPKH, P2WSH, P2TR,
// null-data. Classification is total: any script matching no template,
// including a witness-looking script whose key does not lie on the curve,
// falls back to P2S carrying the original bytes unchanged.
func ParsePubkeyScript(script PubkeyScript) PubkeyScriptType {
	raw := script.Script()

	if keyBytes, compressed := extractPubKeyBytes(raw); keyBytes != nil {
		pubKey, err := btcec.ParsePubKey(keyBytes)
		if err == nil {
			return P2PK{PubKey: pubKey, Compressed: compressed}
		}
		log.Debugf("script pushes a key-shaped value not on the "+
			"curve, classifying as nonstandard: %v", err)
		return P2S{Script: script}
	}

	if hash := extractPubKeyHash(raw); hash != nil {
		var pkHash [20]byte
		copy(pkHash[:], hash)
		return P2PKH{PubKeyHash: pkHash}
	}

	if hash := extractScriptHash(raw); hash != nil {
		var scriptHash [20]byte
		copy(scriptHash[:], hash)
		return P2SH{ScriptHash: scriptHash}
	}

	if version, program, ok := extractWitnessProgram(raw); ok {
		switch {
		case version == 0 && len(program) == 20:
			var pkHash [20]byte
			copy(pkHash[:], program)
			return P2WPKH{Program: pkHash}

		case version == 0 && len(program) == 32:
			var scriptHash [32]byte
			copy(scriptHash[:], program)
			return P2WSH{Program: scriptHash}

		case version == 1 && len(program) == 32:
			outputKey, err := schnorr.ParsePubKey(program)
			if err == nil {
				return P2TR{OutputKey: outputKey}
			}
			log.Debugf("witness v1 program is not a valid "+
				"x-only key, classifying as nonstandard: %v",
				err)
		}
	}

	if data, ok := extractNullData(raw); ok {
		return NullData{Data: data}
	}

	return P2S{Script: script}
}
