package register

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResetState(t *testing.T) {
	f := New()
	assert.Equal(t, ResetAF, f.AF())
	assert.Equal(t, ResetBC, f.BC())
	assert.Equal(t, ResetDE, f.DE())
	assert.Equal(t, ResetHL, f.HL())
	assert.Equal(t, ResetSP, f.SP)
	assert.Equal(t, ResetPC, f.PC)
}

// SetAF must mask the low nibble of F to zero, so that a PUSH AF
// followed by a POP AF round-trips every bit except that nibble.
func TestSetAFMasksLowNibble(t *testing.T) {
	f := New()
	f.SetAF(0x12FF)
	assert.Equal(t, uint16(0x12F0), f.AF())
	assert.Equal(t, byte(0xF0), f.F)
}

func TestPairedAccessors(t *testing.T) {
	f := New()

	f.SetBC(0xBEEF)
	assert.Equal(t, byte(0xBE), f.B)
	assert.Equal(t, byte(0xEF), f.C)
	assert.Equal(t, uint16(0xBEEF), f.BC())

	f.SetDE(0x1234)
	assert.Equal(t, uint16(0x1234), f.DE())

	f.SetHL(0xCAFE)
	assert.Equal(t, uint16(0xCAFE), f.HL())
}

func TestFlagPredicates(t *testing.T) {
	f := New()
	f.SetFlags(true, false, true, false)
	assert.True(t, f.Z())
	assert.False(t, f.N())
	assert.True(t, f.H())
	assert.False(t, f.C())
	assert.Equal(t, byte(0), f.F&0x0F, "low nibble of F must always read zero")
}
