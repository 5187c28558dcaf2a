package scripts

import (
	"encoding/hex"
)

// copyScript returns a private copy of the given script bytes. Wrappers hand
// out and accept copies so that no caller can mutate a wrapped script after
// the fact.
func copyScript(script []byte) []byte {
	cp := make([]byte, len(script))
	copy(cp, script)
	return cp
}

// LockScript is the deepest nested layer of the script hierarchy. It contains
// no commitments to further scripts, neither P2SH redeem script hashes nor
// witness programs. Public key introspection (ExtractPubkeys,
// ReplacePubkeys) operates on this layer.
type LockScript struct {
	script []byte
}

// NewLockScript wraps raw script bytes as a LockScript. No validation is
// performed; malformed scripts only fail later, when parsed as a policy
// expression.
func NewLockScript(script []byte) LockScript {
	return LockScript{script: copyScript(script)}
}

// Script returns the raw bytes of the lock script.
func (s LockScript) Script() []byte {
	return copyScript(s.script)
}

// String returns the hex encoding of the script.
func (s LockScript) String() string {
	return hex.EncodeToString(s.script)
}

// PubkeyScript is the content of the scriptPubKey slot of a transaction
// output.
type PubkeyScript struct {
	script []byte
}

// NewPubkeyScript wraps raw script bytes as a PubkeyScript.
func NewPubkeyScript(script []byte) PubkeyScript {
	return PubkeyScript{script: copyScript(script)}
}

// Script returns the raw bytes of the output script.
func (s PubkeyScript) Script() []byte {
	return copyScript(s.script)
}

// String returns the hex encoding of the script.
func (s PubkeyScript) String() string {
	return hex.EncodeToString(s.script)
}

// SigScript is the content of the sigScript slot of a transaction input.
type SigScript struct {
	script []byte
}

// NewSigScript wraps raw script bytes as a SigScript.
func NewSigScript(script []byte) SigScript {
	return SigScript{script: copyScript(script)}
}

// Script returns the raw bytes of the input script.
func (s SigScript) Script() []byte {
	return copyScript(s.script)
}

// String returns the hex encoding of the script.
func (s SigScript) String() string {
	return hex.EncodeToString(s.script)
}

// RedeemScript is the nested script revealed by a spender to satisfy a P2SH
// or P2WSH-in-P2SH hash commitment.
type RedeemScript struct {
	script []byte
}

// NewRedeemScript wraps raw script bytes as a RedeemScript.
func NewRedeemScript(script []byte) RedeemScript {
	return RedeemScript{script: copyScript(script)}
}

// Script returns the raw bytes of the redeem script.
func (s RedeemScript) Script() []byte {
	return copyScript(s.script)
}

// String returns the hex encoding of the script.
func (s RedeemScript) String() string {
	return hex.EncodeToString(s.script)
}

// WitnessScript is a script revealed inside the witness field of a segwit
// input, per BIP-141.
type WitnessScript struct {
	script []byte
}

// NewWitnessScript wraps raw script bytes as a WitnessScript.
func NewWitnessScript(script []byte) WitnessScript {
	return WitnessScript{script: copyScript(script)}
}

// Script returns the raw bytes of the witness script.
func (s WitnessScript) Script() []byte {
	return copyScript(s.script)
}

// String returns the hex encoding of the script.
func (s WitnessScript) String() string {
	return hex.EncodeToString(s.script)
}

// TapScript is a leaf script revealed inside a taproot witness, per BIP-342.
type TapScript struct {
	script []byte
}

// NewTapScript wraps raw script bytes as a TapScript.
func NewTapScript(script []byte) TapScript {
	return TapScript{script: copyScript(script)}
}

// Script returns the raw bytes of the tapscript leaf.
func (s TapScript) Script() []byte {
	return copyScript(s.script)
}

// String returns the hex encoding of the script.
func (s TapScript) String() string {
	return hex.EncodeToString(s.script)
}
