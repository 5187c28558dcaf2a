// Package policy parses Bitcoin scripts into miniscript policy-expression
// trees and encodes such trees back into scripts.
//
// The decoder recovers a tree whose canonical encoding reproduces the input
// bytes exactly and whose key-bearing leaves appear in script order. It does
// not perform miniscript type or malleability checking: the package exists
// for key introspection and substitution on lock scripts, not for witness
// construction.
package policy

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// All fragment identifiers.
const (
	f_0         = "0"         // 0
	f_1         = "1"         // 1
	f_pk_k      = "pk_k"      // pk_k(key)
	f_pk_h      = "pk_h"      // pk_h(keyhash)
	f_multi     = "multi"     // multi(k,key1,...,keyn)
	f_older     = "older"     // older(n)
	f_after     = "after"     // after(n)
	f_sha256    = "sha256"    // sha256(h)
	f_hash256   = "hash256"   // hash256(h)
	f_ripemd160 = "ripemd160" // ripemd160(h)
	f_hash160   = "hash160"   // hash160(h)
	f_andor     = "andor"     // andor(X,Y,Z)
	f_and_v     = "and_v"     // and_v(X,Y)
	f_and_b     = "and_b"     // and_b(X,Y)
	f_or_b      = "or_b"      // or_b(X,Z)
	f_or_c      = "or_c"      // or_c(X,Z)
	f_or_d      = "or_d"      // or_d(X,Z)
	f_or_i      = "or_i"      // or_i(X,Z)
	f_thresh    = "thresh"    // thresh(k,X1,...,Xn)
	f_wrap_a    = "a"         // a:X
	f_wrap_s    = "s"         // s:X
	f_wrap_c    = "c"         // c:X
	f_wrap_d    = "d"         // d:X
	f_wrap_v    = "v"         // v:X
	f_wrap_j    = "j"         // j:X
	f_wrap_n    = "n"         // n:X
)

// AST is a node of a parsed policy expression. Nodes are treated as
// immutable once built; rewriting operations return new trees.
type AST struct {
	// fragment is one of the identifier constants above.
	fragment string

	// num is the threshold of multi/thresh and the locktime value of
	// older/after.
	num int64

	// value is the serialized public key of pk_k, the key hash of pk_h,
	// or the digest of a hash fragment.
	value []byte

	// keys are the serialized public keys of multi, in script order.
	keys [][]byte

	// args are the subexpressions of combinators and wrappers.
	args []*AST
}

// KeyOrHash is a key-bearing leaf of the tree: either a plain serialized
// public key or the hash160 of a key. Exactly one field is non-nil.
type KeyOrHash struct {
	Key  []byte
	Hash []byte
}

// ForEachKey invokes f on every key-bearing leaf in depth-first order,
// including every key of a multi in order. Traversal stops at the first
// error, which is returned.
func (a *AST) ForEachKey(f func(KeyOrHash) error) error {
	switch a.fragment {
	case f_pk_k:
		return f(KeyOrHash{Key: a.value})

	case f_pk_h:
		return f(KeyOrHash{Hash: a.value})

	case f_multi:
		for _, key := range a.keys {
			if err := f(KeyOrHash{Key: key}); err != nil {
				return err
			}
		}
		return nil
	}

	for _, arg := range a.args {
		if err := arg.ForEachKey(f); err != nil {
			return err
		}
	}
	return nil
}

// MapKeys returns a new tree with every plain-key leaf rewritten through f.
// f returns the replacement serialized key, or nil to keep the existing key.
// Hashed-key leaves are not passed to f and are carried over unchanged. The
// receiver is not modified.
func (a *AST) MapKeys(f func(key []byte) ([]byte, error)) (*AST, error) {
	node := &AST{fragment: a.fragment, num: a.num}
	if a.value != nil {
		node.value = append([]byte(nil), a.value...)
	}

	switch a.fragment {
	case f_pk_k:
		replacement, err := f(node.value)
		if err != nil {
			return nil, err
		}
		if replacement != nil {
			node.value = append([]byte(nil), replacement...)
		}

	case f_multi:
		node.keys = make([][]byte, len(a.keys))
		for i, key := range a.keys {
			replacement, err := f(key)
			if err != nil {
				return nil, err
			}
			if replacement == nil {
				replacement = key
			}
			node.keys[i] = append([]byte(nil), replacement...)
		}
	}

	if len(a.args) > 0 {
		node.args = make([]*AST, len(a.args))
		for i, arg := range a.args {
			newArg, err := arg.MapKeys(f)
			if err != nil {
				return nil, err
			}
			node.args[i] = newArg
		}
	}
	return node, nil
}

// isWrapper reports whether the fragment is a single-argument wrapper.
func (a *AST) isWrapper() bool {
	switch a.fragment {
	case f_wrap_a, f_wrap_s, f_wrap_c, f_wrap_d, f_wrap_v, f_wrap_j,
		f_wrap_n:

		return true
	}
	return false
}

// canCollapseVerify reports whether the rightmost opcode of the fragment's
// script is OP_EQUAL, OP_CHECKSIG or OP_CHECKMULTISIG, in which case a
// v wrapper collapses it into the VERIFY form of the opcode instead of
// appending OP_VERIFY.
func (a *AST) canCollapseVerify() bool {
	switch a.fragment {
	case f_wrap_c, f_multi, f_thresh,
		f_sha256, f_hash256, f_ripemd160, f_hash160:

		return true

	case f_and_v:
		return a.args[1].canCollapseVerify()

	case f_wrap_s:
		return a.args[0].canCollapseVerify()
	}
	return false
}

// String renders the tree in miniscript notation, with consecutive wrappers
// merged before a single colon, e.g. sc:pk_k(...).
func (a *AST) String() string {
	if a.isWrapper() {
		var wrappers strings.Builder
		node := a
		for node.isWrapper() {
			wrappers.WriteString(node.fragment)
			node = node.args[0]
		}
		return wrappers.String() + ":" + node.String()
	}

	switch a.fragment {
	case f_0, f_1:
		return a.fragment

	case f_pk_k, f_pk_h, f_sha256, f_hash256, f_ripemd160, f_hash160:
		return fmt.Sprintf("%s(%s)", a.fragment,
			hex.EncodeToString(a.value))

	case f_older, f_after:
		return fmt.Sprintf("%s(%d)", a.fragment, a.num)

	case f_multi:
		parts := make([]string, 0, len(a.keys)+1)
		parts = append(parts, fmt.Sprintf("%d", a.num))
		for _, key := range a.keys {
			parts = append(parts, hex.EncodeToString(key))
		}
		return fmt.Sprintf("%s(%s)", a.fragment,
			strings.Join(parts, ","))

	case f_thresh:
		parts := make([]string, 0, len(a.args)+1)
		parts = append(parts, fmt.Sprintf("%d", a.num))
		for _, arg := range a.args {
			parts = append(parts, arg.String())
		}
		return fmt.Sprintf("%s(%s)", a.fragment,
			strings.Join(parts, ","))

	default:
		parts := make([]string, len(a.args))
		for i, arg := range a.args {
			parts[i] = arg.String()
		}
		return fmt.Sprintf("%s(%s)", a.fragment,
			strings.Join(parts, ","))
	}
}
