// Package scripts distinguishes the logical positions a Bitcoin script can
// occupy inside a transaction.
//
// Bitcoin itself draws no line between script bytes coming from different
// slots: the scriptPubKey of an output, the sigScript of an input, a witness
// item, or a nested redeem script are all the same flat opcode format. The
// distinction that matters sits one level up: an outer script may commit only
// to the hash of an inner script or public key, while the inner script carries
// the full content. Mixing the two up is an easy and expensive mistake.
//
// This package assigns each slot its own wrapper type (LockScript,
// PubkeyScript, SigScript, RedeemScript, WitnessScript, TapScript) and only
// allows crossing between them through explicit conversions. Converting from a
// hash-committing form to the committed content always verifies the hash, so a
// PubkeyScriptSource can only be obtained for a pre-image that actually
// matches its commitment. A LockScript is the bottom of the hierarchy: it
// commits to no further script, and it is the layer on which public keys can
// be enumerated or substituted through the policy package.
package scripts
