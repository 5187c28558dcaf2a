package scripts

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
)

// PkScript generates the canonical pay-to-pubkey script:
//
//	<pubkey> OP_CHECKSIG
func (t P2PK) PkScript() (PubkeyScript, error) {
	var keyBytes []byte
	if t.Compressed {
		keyBytes = t.PubKey.SerializeCompressed()
	} else {
		keyBytes = t.PubKey.SerializeUncompressed()
	}

	script, err := txscript.NewScriptBuilder().
		AddData(keyBytes).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	if err != nil {
		return PubkeyScript{}, err
	}
	return NewPubkeyScript(script), nil
}

// PkScript generates the canonical pay-to-pubkey-hash script:
//
//	OP_DUP OP_HASH160 <pubkeyhash> OP_EQUALVERIFY OP_CHECKSIG
func (t P2PKH) PkScript() (PubkeyScript, error) {
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(t.PubKeyHash[:]).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	if err != nil {
		return PubkeyScript{}, err
	}
	return NewPubkeyScript(script), nil
}

// PkScript generates the canonical pay-to-script-hash script:
//
//	OP_HASH160 <scripthash> OP_EQUAL
func (t P2SH) PkScript() (PubkeyScript, error) {
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_HASH160).
		AddData(t.ScriptHash[:]).
		AddOp(txscript.OP_EQUAL).
		Script()
	if err != nil {
		return PubkeyScript{}, err
	}
	return NewPubkeyScript(script), nil
}

// PkScript generates the canonical null-data script:
//
//	OP_RETURN <data>
func (t NullData) PkScript() (PubkeyScript, error) {
	builder := txscript.NewScriptBuilder().AddOp(txscript.OP_RETURN)
	if len(t.Data) > 0 {
		builder.AddData(t.Data)
	}
	script, err := builder.Script()
	if err != nil {
		return PubkeyScript{}, err
	}
	return NewPubkeyScript(script), nil
}

// PkScript generates the canonical version 0 pay-to-witness-pubkey-hash
// script:
//
//	OP_0 <pubkeyhash>
func (t P2WPKH) PkScript() (PubkeyScript, error) {
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(t.Program[:]).
		Script()
	if err != nil {
		return PubkeyScript{}, err
	}
	return NewPubkeyScript(script), nil
}

// PkScript generates the canonical version 0 pay-to-witness-script-hash
// script:
//
//	OP_0 <scripthash>
func (t P2WSH) PkScript() (PubkeyScript, error) {
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(t.Program[:]).
		Script()
	if err != nil {
		return PubkeyScript{}, err
	}
	return NewPubkeyScript(script), nil
}

// PkScript fails with ErrUnsupportedGeneration. A taproot classification
// carries only the tweaked output key; regenerating the output script from
// it is not defined by this package and failing loudly beats producing bytes
// that merely look right. Resolution in the other direction is supported,
// see P2TR.Source.
func (t P2TR) PkScript() (PubkeyScript, error) {
	return PubkeyScript{}, scriptError(ErrUnsupportedGeneration,
		fmt.Sprintf("no generation template for %v outputs", t), nil)
}

// PkScript returns the unclassified script unchanged.
func (t P2S) PkScript() (PubkeyScript, error) {
	return t.Script, nil
}
