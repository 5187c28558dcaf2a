package policy

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
)

// token is one opcode of a script, with its pushed data when the opcode is a
// data push.
type token struct {
	op   byte
	data []byte
}

// isPush reports whether the token pushes explicit data bytes. Small integer
// opcodes are not included; they are handled as numbers or as the 0/1
// fragments depending on context.
func (t token) isPush() bool {
	return t.op > txscript.OP_0 && t.op <= txscript.OP_PUSHDATA4
}

func tokenize(script []byte) ([]token, error) {
	var tokens []token
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		tokens = append(tokens, token{
			op:   tokenizer.Opcode(),
			data: tokenizer.Data(),
		})
	}
	if err := tokenizer.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}

// tokenReader walks a token slice backwards, from the last opcode of the
// script to the first. Miniscript fragments end with their distinguishing
// opcode, so reading in reverse lets each fragment be recognized before its
// operands are consumed.
type tokenReader struct {
	tokens []token
	pos    int
}

func newTokenReader(tokens []token) *tokenReader {
	return &tokenReader{tokens: tokens, pos: len(tokens) - 1}
}

func (r *tokenReader) next() (token, error) {
	if r.pos < 0 {
		return token{}, errors.New("unexpected start of script")
	}
	t := r.tokens[r.pos]
	r.pos--
	return t, nil
}

func (r *tokenReader) peek() (token, bool) {
	return r.peekAt(0)
}

func (r *tokenReader) peekAt(n int) (token, bool) {
	if r.pos-n < 0 {
		return token{}, false
	}
	return r.tokens[r.pos-n], true
}

func (r *tokenReader) empty() bool {
	return r.pos < 0
}

func (r *tokenReader) expectOp(op byte) error {
	t, err := r.next()
	if err != nil {
		return err
	}
	if t.isPush() || t.op != op {
		return fmt.Errorf("expected opcode %#02x, got %#02x", op, t.op)
	}
	return nil
}

// Parse decodes a script into a policy expression tree. It fails on any
// byte sequence that does not follow the miniscript encoding, including
// scripts that are valid Bitcoin Script but carry no recognizable policy
// structure.
func Parse(script []byte) (*AST, error) {
	tokens, err := tokenize(script)
	if err != nil {
		return nil, fmt.Errorf("script does not tokenize: %w", err)
	}
	if len(tokens) == 0 {
		return nil, errors.New("empty script")
	}

	r := newTokenReader(tokens)
	node, err := parseSeq(r, nil)
	if err != nil {
		return nil, err
	}
	if !r.empty() {
		return nil, errors.New("trailing tokens before expression")
	}
	return node, nil
}

// parseSeq parses expressions until the reader is exhausted or the next
// token is one of the stop opcodes, folding adjacent expressions into and_v
// nodes. Concatenation is the one miniscript combinator with no marker
// opcode of its own, so any leftover sequence at a given nesting level is an
// and_v chain.
func parseSeq(r *tokenReader, stops map[byte]bool) (*AST, error) {
	var acc *AST
	for {
		t, ok := r.peek()
		if !ok {
			break
		}
		if !t.isPush() && stops[t.op] {
			break
		}

		expr, err := parseExpr(r)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			acc = expr
		} else {
			acc = &AST{fragment: f_and_v, args: []*AST{expr, acc}}
		}
	}
	if acc == nil {
		return nil, errors.New("empty expression")
	}
	return acc, nil
}

// parseExpr parses a single expression ending at the reader's current
// position.
func parseExpr(r *tokenReader) (*AST, error) {
	t, err := r.next()
	if err != nil {
		return nil, err
	}

	var node *AST
	switch {
	case t.isPush():
		switch len(t.data) {
		case 33, 65:
			node = &AST{
				fragment: f_pk_k,
				value:    append([]byte(nil), t.data...),
			}
		default:
			return nil, fmt.Errorf("unexpected %d-byte data push",
				len(t.data))
		}

	case t.op == txscript.OP_0:
		node = &AST{fragment: f_0}

	case t.op == txscript.OP_1:
		node = &AST{fragment: f_1}

	case t.op == txscript.OP_CHECKSIG:
		inner, err := parseKeyExpr(r)
		if err != nil {
			return nil, err
		}
		node = &AST{fragment: f_wrap_c, args: []*AST{inner}}

	case t.op == txscript.OP_CHECKSIGVERIFY:
		inner, err := parseKeyExpr(r)
		if err != nil {
			return nil, err
		}
		node = &AST{fragment: f_wrap_v, args: []*AST{
			{fragment: f_wrap_c, args: []*AST{inner}},
		}}

	case t.op == txscript.OP_CHECKMULTISIG:
		node, err = parseMulti(r)
		if err != nil {
			return nil, err
		}

	case t.op == txscript.OP_CHECKMULTISIGVERIFY:
		multi, err := parseMulti(r)
		if err != nil {
			return nil, err
		}
		node = &AST{fragment: f_wrap_v, args: []*AST{multi}}

	case t.op == txscript.OP_EQUAL:
		node, err = parseEqualTail(r, false)
		if err != nil {
			return nil, err
		}

	case t.op == txscript.OP_EQUALVERIFY:
		node, err = parseEqualTail(r, true)
		if err != nil {
			return nil, err
		}

	case t.op == txscript.OP_VERIFY:
		inner, err := parseExpr(r)
		if err != nil {
			return nil, err
		}
		// A canonical encoding collapses OP_VERIFY into the VERIFY
		// form of the preceding opcode whenever one exists. Accepting
		// the bare form here would make re-encoding change the bytes.
		if inner.canCollapseVerify() {
			return nil, errors.New("bare OP_VERIFY after an " +
				"expression with a VERIFY-form opcode")
		}
		node = &AST{fragment: f_wrap_v, args: []*AST{inner}}

	case t.op == txscript.OP_BOOLAND:
		node, err = parseBinary(r, f_and_b)
		if err != nil {
			return nil, err
		}

	case t.op == txscript.OP_BOOLOR:
		node, err = parseBinary(r, f_or_b)
		if err != nil {
			return nil, err
		}

	case t.op == txscript.OP_ENDIF:
		node, err = parseConditional(r)
		if err != nil {
			return nil, err
		}

	case t.op == txscript.OP_FROMALTSTACK:
		inner, err := parseExpr(r)
		if err != nil {
			return nil, err
		}
		if err := r.expectOp(txscript.OP_TOALTSTACK); err != nil {
			return nil, err
		}
		node = &AST{fragment: f_wrap_a, args: []*AST{inner}}

	case t.op == txscript.OP_0NOTEQUAL:
		inner, err := parseExpr(r)
		if err != nil {
			return nil, err
		}
		node = &AST{fragment: f_wrap_n, args: []*AST{inner}}

	case t.op == txscript.OP_CHECKSEQUENCEVERIFY:
		n, err := parseNumber(r)
		if err != nil {
			return nil, err
		}
		node = &AST{fragment: f_older, num: n}

	case t.op == txscript.OP_CHECKLOCKTIMEVERIFY:
		n, err := parseNumber(r)
		if err != nil {
			return nil, err
		}
		node = &AST{fragment: f_after, num: n}

	default:
		return nil, fmt.Errorf("unexpected opcode %#02x", t.op)
	}

	// A swap immediately preceding the expression is its s wrapper.
	for {
		t, ok := r.peek()
		if !ok || t.isPush() || t.op != txscript.OP_SWAP {
			break
		}
		r.next()
		node = &AST{fragment: f_wrap_s, args: []*AST{node}}
	}
	return node, nil
}

// parseKeyExpr parses the operand of a CHECKSIG: a bare key push (pk_k),
// the DUP HASH160 <keyhash> EQUALVERIFY pattern (pk_h), or any other
// key-producing subexpression.
func parseKeyExpr(r *tokenReader) (*AST, error) {
	t, ok := r.peek()
	if !ok {
		return nil, errors.New("unexpected start of script")
	}

	if t.isPush() {
		if len(t.data) != 33 && len(t.data) != 65 {
			return nil, fmt.Errorf("checked key push has %d bytes",
				len(t.data))
		}
		r.next()
		return &AST{
			fragment: f_pk_k,
			value:    append([]byte(nil), t.data...),
		}, nil
	}

	if t.op == txscript.OP_EQUALVERIFY {
		hash, hashOk := r.peekAt(1)
		t2, ok2 := r.peekAt(2)
		t3, ok3 := r.peekAt(3)
		if hashOk && hash.isPush() && len(hash.data) == 20 &&
			ok2 && !t2.isPush() &&
			t2.op == txscript.OP_HASH160 &&
			ok3 && !t3.isPush() && t3.op == txscript.OP_DUP {

			r.next()
			r.next()
			r.next()
			r.next()
			return &AST{
				fragment: f_pk_h,
				value:    append([]byte(nil), hash.data...),
			}, nil
		}
	}

	return parseExpr(r)
}

// parseMulti parses the operands of a CHECKMULTISIG:
// <k> <key1> ... <keyn> <n>.
func parseMulti(r *tokenReader) (*AST, error) {
	n, err := parseNumber(r)
	if err != nil {
		return nil, err
	}
	if n < 1 || n > 20 {
		return nil, fmt.Errorf("multisig key count %d out of range", n)
	}

	keys := make([][]byte, n)
	for i := n - 1; i >= 0; i-- {
		t, err := r.next()
		if err != nil {
			return nil, err
		}
		if !t.isPush() || (len(t.data) != 33 && len(t.data) != 65) {
			return nil, errors.New("multisig operand is not a " +
				"key push")
		}
		keys[i] = append([]byte(nil), t.data...)
	}

	k, err := parseNumber(r)
	if err != nil {
		return nil, err
	}
	if k < 1 || k > n {
		return nil, fmt.Errorf("multisig threshold %d out of range "+
			"for %d keys", k, n)
	}
	return &AST{fragment: f_multi, num: k, keys: keys}, nil
}

// parseBinary parses the two operands of and_b/or_b. The second operand sits
// closer to the marker opcode, so it is parsed first.
func parseBinary(r *tokenReader, fragment string) (*AST, error) {
	second, err := parseExpr(r)
	if err != nil {
		return nil, err
	}
	first, err := parseExpr(r)
	if err != nil {
		return nil, err
	}
	return &AST{fragment: fragment, args: []*AST{first, second}}, nil
}

// parseEqualTail parses everything that ends in OP_EQUAL (or its collapsed
// EQUALVERIFY form): a hash fragment or a thresh.
func parseEqualTail(r *tokenReader, verify bool) (*AST, error) {
	t, ok := r.peek()
	if !ok {
		return nil, errors.New("unexpected start of script")
	}

	var node *AST
	if t.isPush() && (len(t.data) == 20 || len(t.data) == 32) {
		// Hash fragment:
		//  OP_SIZE <32> OP_EQUALVERIFY <hashop> <digest> OP_EQUAL
		r.next()
		digest := append([]byte(nil), t.data...)

		hashOp, err := r.next()
		if err != nil {
			return nil, err
		}
		var fragment string
		var digestLen int
		switch {
		case !hashOp.isPush() && hashOp.op == txscript.OP_SHA256:
			fragment, digestLen = f_sha256, 32
		case !hashOp.isPush() && hashOp.op == txscript.OP_HASH256:
			fragment, digestLen = f_hash256, 32
		case !hashOp.isPush() && hashOp.op == txscript.OP_RIPEMD160:
			fragment, digestLen = f_ripemd160, 20
		case !hashOp.isPush() && hashOp.op == txscript.OP_HASH160:
			fragment, digestLen = f_hash160, 20
		default:
			return nil, fmt.Errorf("unexpected opcode %#02x "+
				"before digest push", hashOp.op)
		}
		if len(digest) != digestLen {
			return nil, fmt.Errorf("%s digest has %d bytes",
				fragment, len(digest))
		}

		if err := r.expectOp(txscript.OP_EQUALVERIFY); err != nil {
			return nil, err
		}
		sizeCheck, err := r.next()
		if err != nil {
			return nil, err
		}
		if !sizeCheck.isPush() || len(sizeCheck.data) != 1 ||
			sizeCheck.data[0] != 32 {

			return nil, errors.New("hash fragment without a " +
				"32-byte size guard")
		}
		if err := r.expectOp(txscript.OP_SIZE); err != nil {
			return nil, err
		}
		node = &AST{fragment: fragment, value: digest}
	} else {
		// thresh: X1 X2 OP_ADD ... Xn OP_ADD <k> OP_EQUAL
		k, err := parseNumber(r)
		if err != nil {
			return nil, err
		}

		var args []*AST
		for {
			t, ok := r.peek()
			if !ok || t.isPush() || t.op != txscript.OP_ADD {
				break
			}
			r.next()
			expr, err := parseExpr(r)
			if err != nil {
				return nil, err
			}
			args = append([]*AST{expr}, args...)
		}
		if len(args) == 0 {
			return nil, errors.New("threshold with no summands")
		}
		first, err := parseExpr(r)
		if err != nil {
			return nil, err
		}
		args = append([]*AST{first}, args...)

		if k < 1 || k > int64(len(args)) {
			return nil, fmt.Errorf("threshold %d out of range "+
				"for %d subexpressions", k, len(args))
		}
		node = &AST{fragment: f_thresh, num: k, args: args}
	}

	if verify {
		node = &AST{fragment: f_wrap_v, args: []*AST{node}}
	}
	return node, nil
}

// parseConditional parses everything that ends in OP_ENDIF: or_i, andor,
// or_c, or_d, and the d and j wrappers.
func parseConditional(r *tokenReader) (*AST, error) {
	stops := map[byte]bool{
		txscript.OP_ELSE:  true,
		txscript.OP_NOTIF: true,
		txscript.OP_IF:    true,
	}

	first, err := parseSeq(r, stops)
	if err != nil {
		return nil, err
	}
	marker, err := r.next()
	if err != nil {
		return nil, err
	}

	switch marker.op {
	case txscript.OP_ELSE:
		second, err := parseSeq(r, stops)
		if err != nil {
			return nil, err
		}
		opening, err := r.next()
		if err != nil {
			return nil, err
		}
		switch opening.op {
		case txscript.OP_IF:
			// OP_IF [X] OP_ELSE [Z] OP_ENDIF
			return &AST{
				fragment: f_or_i,
				args:     []*AST{second, first},
			}, nil

		case txscript.OP_NOTIF:
			// [X] OP_NOTIF [Z] OP_ELSE [Y] OP_ENDIF
			x, err := parseExpr(r)
			if err != nil {
				return nil, err
			}
			return &AST{
				fragment: f_andor,
				args:     []*AST{x, first, second},
			}, nil

		default:
			return nil, fmt.Errorf("unexpected opcode %#02x "+
				"opening a conditional", opening.op)
		}

	case txscript.OP_NOTIF:
		// or_c: [X] OP_NOTIF [Z] OP_ENDIF
		// or_d: [X] OP_IFDUP OP_NOTIF [Z] OP_ENDIF
		fragment := f_or_c
		if t, ok := r.peek(); ok && !t.isPush() &&
			t.op == txscript.OP_IFDUP {

			r.next()
			fragment = f_or_d
		}
		x, err := parseExpr(r)
		if err != nil {
			return nil, err
		}
		return &AST{fragment: fragment, args: []*AST{x, first}}, nil

	case txscript.OP_IF:
		// d: OP_DUP OP_IF [X] OP_ENDIF
		// j: OP_SIZE OP_0NOTEQUAL OP_IF [X] OP_ENDIF
		t, ok := r.peek()
		if ok && !t.isPush() && t.op == txscript.OP_DUP {
			r.next()
			return &AST{
				fragment: f_wrap_d,
				args:     []*AST{first},
			}, nil
		}
		t2, ok2 := r.peekAt(1)
		if ok && ok2 && !t.isPush() &&
			t.op == txscript.OP_0NOTEQUAL &&
			!t2.isPush() && t2.op == txscript.OP_SIZE {

			r.next()
			r.next()
			return &AST{
				fragment: f_wrap_j,
				args:     []*AST{first},
			}, nil
		}
		return nil, errors.New("bare OP_IF opens no known fragment")

	default:
		return nil, fmt.Errorf("unexpected opcode %#02x closing a "+
			"conditional", marker.op)
	}
}

// parseNumber parses a script number operand: a small integer opcode or a
// minimally encoded number push of up to 5 bytes.
func parseNumber(r *tokenReader) (int64, error) {
	t, err := r.next()
	if err != nil {
		return 0, err
	}

	if !t.isPush() {
		switch {
		case t.op == txscript.OP_0:
			return 0, nil
		case t.op >= txscript.OP_1 && t.op <= txscript.OP_16:
			return int64(t.op-txscript.OP_1) + 1, nil
		}
		return 0, fmt.Errorf("opcode %#02x is not a number", t.op)
	}

	if len(t.data) > 5 {
		return 0, fmt.Errorf("number push of %d bytes exceeds the "+
			"script number range", len(t.data))
	}
	return scriptNum(t.data)
}

// scriptNum decodes a minimally encoded little-endian script number.
func scriptNum(data []byte) (int64, error) {
	if len(data) == 0 {
		return 0, nil
	}

	// The most significant byte must contribute more than a bare sign
	// bit, unless the byte below needs the room for its own high bit.
	if data[len(data)-1]&0x7f == 0 {
		if len(data) == 1 || data[len(data)-2]&0x80 == 0 {
			return 0, fmt.Errorf("non-minimal script number %x",
				data)
		}
	}

	var v int64
	for i, b := range data {
		v |= int64(b) << (8 * i)
	}
	if data[len(data)-1]&0x80 != 0 {
		v &= ^(int64(0x80) << (8 * (len(data) - 1)))
		v = -v
	}
	return v, nil
}
