package policy

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
)

// Script encodes the tree back into script bytes. Encoding is canonical:
// parsing a script and re-encoding the resulting tree reproduces the
// original bytes.
func (a *AST) Script() ([]byte, error) {
	b := txscript.NewScriptBuilder()
	if err := buildScript(a, b, false); err != nil {
		return nil, err
	}
	return b.Script()
}

// buildScript appends the script of the given node to the builder.
// collapseVerify is true if a v wrapper is an ancestor along the final
// opcode path, in which case a trailing OP_EQUAL, OP_CHECKSIG or
// OP_CHECKMULTISIG is emitted as its VERIFY form.
func buildScript(node *AST, b *txscript.ScriptBuilder,
	collapseVerify bool) error {

	switch node.fragment {
	case f_0:
		b.AddOp(txscript.OP_FALSE)

	case f_1:
		b.AddOp(txscript.OP_TRUE)

	case f_pk_k:
		b.AddData(node.value)

	case f_pk_h:
		b.AddOp(txscript.OP_DUP)
		b.AddOp(txscript.OP_HASH160)
		b.AddData(node.value)
		b.AddOp(txscript.OP_EQUALVERIFY)

	case f_older:
		b.AddInt64(node.num)
		b.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)

	case f_after:
		b.AddInt64(node.num)
		b.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)

	case f_sha256, f_hash256, f_ripemd160, f_hash160:
		hashOp := map[string]byte{
			f_sha256:    txscript.OP_SHA256,
			f_hash256:   txscript.OP_HASH256,
			f_ripemd160: txscript.OP_RIPEMD160,
			f_hash160:   txscript.OP_HASH160,
		}[node.fragment]

		b.AddOp(txscript.OP_SIZE)
		b.AddInt64(32)
		b.AddOp(txscript.OP_EQUALVERIFY)
		b.AddOp(hashOp)
		b.AddData(node.value)
		if collapseVerify {
			b.AddOp(txscript.OP_EQUALVERIFY)
		} else {
			b.AddOp(txscript.OP_EQUAL)
		}

	case f_andor:
		if err := buildScript(node.args[0], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_NOTIF)
		if err := buildScript(node.args[2], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ELSE)
		if err := buildScript(node.args[1], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)

	case f_and_v:
		if err := buildScript(node.args[0], b, false); err != nil {
			return err
		}
		if err := buildScript(node.args[1], b,
			collapseVerify); err != nil {

			return err
		}

	case f_and_b:
		if err := buildScript(node.args[0], b, false); err != nil {
			return err
		}
		if err := buildScript(node.args[1], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_BOOLAND)

	case f_or_b:
		if err := buildScript(node.args[0], b, false); err != nil {
			return err
		}
		if err := buildScript(node.args[1], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_BOOLOR)

	case f_or_c:
		if err := buildScript(node.args[0], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_NOTIF)
		if err := buildScript(node.args[1], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)

	case f_or_d:
		if err := buildScript(node.args[0], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_IFDUP)
		b.AddOp(txscript.OP_NOTIF)
		if err := buildScript(node.args[1], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)

	case f_or_i:
		b.AddOp(txscript.OP_IF)
		if err := buildScript(node.args[0], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ELSE)
		if err := buildScript(node.args[1], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)

	case f_thresh:
		for i, arg := range node.args {
			if err := buildScript(arg, b, false); err != nil {
				return err
			}
			if i > 0 {
				b.AddOp(txscript.OP_ADD)
			}
		}
		b.AddInt64(node.num)
		if collapseVerify {
			b.AddOp(txscript.OP_EQUALVERIFY)
		} else {
			b.AddOp(txscript.OP_EQUAL)
		}

	case f_multi:
		b.AddInt64(node.num)
		for _, key := range node.keys {
			b.AddData(key)
		}
		b.AddInt64(int64(len(node.keys)))
		if collapseVerify {
			b.AddOp(txscript.OP_CHECKMULTISIGVERIFY)
		} else {
			b.AddOp(txscript.OP_CHECKMULTISIG)
		}

	case f_wrap_a:
		b.AddOp(txscript.OP_TOALTSTACK)
		if err := buildScript(node.args[0], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_FROMALTSTACK)

	case f_wrap_s:
		b.AddOp(txscript.OP_SWAP)
		if err := buildScript(node.args[0], b,
			collapseVerify); err != nil {

			return err
		}

	case f_wrap_c:
		if err := buildScript(node.args[0], b, false); err != nil {
			return err
		}
		if collapseVerify {
			b.AddOp(txscript.OP_CHECKSIGVERIFY)
		} else {
			b.AddOp(txscript.OP_CHECKSIG)
		}

	case f_wrap_d:
		b.AddOp(txscript.OP_DUP)
		b.AddOp(txscript.OP_IF)
		if err := buildScript(node.args[0], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)

	case f_wrap_v:
		if err := buildScript(node.args[0], b, true); err != nil {
			return err
		}
		if !node.args[0].canCollapseVerify() {
			b.AddOp(txscript.OP_VERIFY)
		}

	case f_wrap_j:
		b.AddOp(txscript.OP_SIZE)
		b.AddOp(txscript.OP_0NOTEQUAL)
		b.AddOp(txscript.OP_IF)
		if err := buildScript(node.args[0], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)

	case f_wrap_n:
		if err := buildScript(node.args[0], b, false); err != nil {
			return err
		}
		b.AddOp(txscript.OP_0NOTEQUAL)

	default:
		return fmt.Errorf("unknown fragment: %s", node.fragment)
	}

	return nil
}
