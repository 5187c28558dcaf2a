package scripts

import (
	"testing"

	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/assert"
)

// TestWrapperRoundTrip checks that every wrapper returns the exact bytes it
// was constructed with.
func TestWrapperRoundTrip(t *testing.T) {
	script := []byte{txscript.OP_DUP, txscript.OP_HASH160}

	assert.Equal(t, script, NewLockScript(script).Script())
	assert.Equal(t, script, NewPubkeyScript(script).Script())
	assert.Equal(t, script, NewSigScript(script).Script())
	assert.Equal(t, script, NewRedeemScript(script).Script())
	assert.Equal(t, script, NewWitnessScript(script).Script())
	assert.Equal(t, script, NewTapScript(script).Script())
}

// TestWrapperCopies checks that wrappers neither alias the constructor
// argument nor expose their internal bytes through the accessor.
func TestWrapperCopies(t *testing.T) {
	script := []byte{txscript.OP_TRUE}
	lock := NewLockScript(script)

	script[0] = txscript.OP_FALSE
	assert.Equal(t, []byte{txscript.OP_TRUE}, lock.Script())

	exposed := lock.Script()
	exposed[0] = txscript.OP_FALSE
	assert.Equal(t, []byte{txscript.OP_TRUE}, lock.Script())
}

// TestWrapperString checks the hex rendering.
func TestWrapperString(t *testing.T) {
	lock := NewLockScript([]byte{0x51, 0xac})
	assert.Equal(t, "51ac", lock.String())
}
