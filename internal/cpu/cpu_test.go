package cpu

import (
	"testing"

	"github.com/reathen/gbcore/internal/ibus"
	"github.com/reathen/gbcore/internal/interrupt"
	"github.com/reathen/gbcore/internal/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ramRanges are the RAM windows the test bus maps around the timer
// (0xFF04-0xFF07), IF (0xFF0F) and IE (0xFFFF) registers, since bus
// connections may not overlap.
var ramRanges = [][2]uint16{{0x0000, 0xFF04}, {0xFF08, 0xFF0F - 0xFF08}, {0xFF10, 0xFFFF - 0xFF10}}

// newTestCPU wires a CPU to a 64KiB RAM backing store (mapped around the
// core's own registers) plus a real interrupt controller and timer, loads
// code at 0x0100 (the post-boot PC), and returns both the CPU and the
// backing memory for direct inspection.
func newTestCPU(t *testing.T, code []byte) (*CPU, []byte) {
	t.Helper()
	mem := make([]byte, 0x10000)
	copy(mem[0x0100:], code)

	bus := ibus.New()
	for _, rg := range ramRanges {
		start := rg[0]
		require.NoError(t, bus.Connect(start, rg[1], func(off uint16) (byte, error) {
			return mem[start+off], nil
		}, func(off uint16, v byte) error {
			mem[start+off] = v
			return nil
		}))
	}

	irq := interrupt.New()
	require.NoError(t, irq.Connect(bus))
	tm := timer.New(func() { irq.RequestIF(interrupt.Timer) })
	require.NoError(t, tm.Connect(bus))

	c := New(bus, irq, tm)
	return c, mem
}

func TestNopAdvancesPCAndCharges4Cycles(t *testing.T) {
	c, _ := newTestCPU(t, []byte{0x00})
	cycles, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, 4, cycles)
	assert.Equal(t, uint16(0x0101), c.regs.PC)
}

// Scenario 1: A=0xFF, INC A -> A=0x00, Z=1, N=0, H=1, C unchanged.
func TestIncZeroFlag(t *testing.T) {
	c, _ := newTestCPU(t, []byte{0x3C}) // INC A
	c.regs.A = 0xFF
	c.regs.SetFlags(false, false, false, true)
	_, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), c.regs.A)
	assert.True(t, c.regs.Z())
	assert.False(t, c.regs.N())
	assert.True(t, c.regs.H())
	assert.True(t, c.regs.C(), "INC must not touch the carry flag")
}

// Scenario 2: A=0x0F, B=0x01, ADD A,B -> A=0x10, Z=0,N=0,H=1,C=0.
func TestAddHalfCarry(t *testing.T) {
	c, _ := newTestCPU(t, []byte{0x80}) // ADD A,B
	c.regs.A = 0x0F
	c.regs.B = 0x01
	_, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, byte(0x10), c.regs.A)
	assert.False(t, c.regs.Z())
	assert.False(t, c.regs.N())
	assert.True(t, c.regs.H())
	assert.False(t, c.regs.C())
}

// Scenario 3: A=0x10, B=0x01, CP A,B -> A unchanged, Z=0,N=1,H=1,C=0.
func TestCPDoesNotMutateA(t *testing.T) {
	c, _ := newTestCPU(t, []byte{0xB8}) // CP A,B
	c.regs.A = 0x10
	c.regs.B = 0x01
	_, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, byte(0x10), c.regs.A)
	assert.False(t, c.regs.Z())
	assert.True(t, c.regs.N())
	assert.True(t, c.regs.H())
	assert.False(t, c.regs.C())
}

// Scenario 4: CALL/RET round-trip.
func TestCallRetRoundTrip(t *testing.T) {
	mem := make([]byte, 0x10000)
	mem[0x0100] = 0xCD
	mem[0x0101] = 0x34
	mem[0x0102] = 0x12
	mem[0x1234] = 0xC9

	bus := ibus.New()
	for _, rg := range ramRanges {
		start := rg[0]
		require.NoError(t, bus.Connect(start, rg[1], func(off uint16) (byte, error) {
			return mem[start+off], nil
		}, func(off uint16, v byte) error {
			mem[start+off] = v
			return nil
		}))
	}
	irq := interrupt.New()
	require.NoError(t, irq.Connect(bus))
	tm := timer.New(nil)
	require.NoError(t, tm.Connect(bus))
	c := New(bus, irq, tm)

	_, err := c.Step() // CALL 0x1234
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), c.regs.PC)
	assert.Equal(t, uint16(0xFFFC), c.regs.SP)
	assert.Equal(t, byte(0x03), mem[0xFFFC])
	assert.Equal(t, byte(0x01), mem[0xFFFD])

	_, err = c.Step() // RET
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0103), c.regs.PC)
	assert.Equal(t, uint16(0xFFFE), c.regs.SP)
}

// PUSH reg16 then POP reg16 with SP unchanged in between must round-trip
// exactly, except POP AF forces F's low nibble to 0.
func TestPushPopAFMasksLowNibble(t *testing.T) {
	c, _ := newTestCPU(t, []byte{0xF5, 0xF1}) // PUSH AF; POP AF
	c.regs.SetAF(0x1234)
	c.regs.F = 0xFF // force all bits, including the low nibble, to exercise masking
	_, err := c.Step()
	require.NoError(t, err)
	_, err = c.Step()
	require.NoError(t, err)
	assert.Equal(t, byte(0x12), c.regs.A)
	assert.Equal(t, byte(0xF0), c.regs.F)
}

func TestPushPopBCRoundTrips(t *testing.T) {
	c, _ := newTestCPU(t, []byte{0xC5, 0xC1}) // PUSH BC; POP BC
	c.regs.SetBC(0xBEEF)
	_, err := c.Step()
	require.NoError(t, err)
	_, err = c.Step()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xBEEF), c.regs.BC())
}

func TestAddHLPreservesZero(t *testing.T) {
	c, _ := newTestCPU(t, []byte{0x09}) // ADD HL,BC
	c.regs.SetHL(0x0001)
	c.regs.SetBC(0x0001)
	c.regs.SetFlags(true, true, true, true)
	_, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0002), c.regs.HL())
	assert.True(t, c.regs.Z(), "ADD HL,rr must not clear a previously-set Z")
}

func TestANDReadsNamedSourceRegister(t *testing.T) {
	c, _ := newTestCPU(t, []byte{0xA4}) // AND A,H
	c.regs.A = 0xFF
	c.regs.H = 0x0F
	_, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, byte(0x0F), c.regs.A)
}

func TestDecRP16Placement(t *testing.T) {
	c, _ := newTestCPU(t, []byte{0x0B}) // DEC BC
	c.regs.SetBC(0x0001)
	_, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0000), c.regs.BC())
}

func TestADCIncludesCarryIn(t *testing.T) {
	c, _ := newTestCPU(t, []byte{0x88}) // ADC A,B
	c.regs.A = 0x0E
	c.regs.B = 0x01
	c.regs.SetFlags(false, false, false, true)
	_, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, byte(0x10), c.regs.A)
	assert.True(t, c.regs.H())
}

func TestCBHLVariantCostsSixteen(t *testing.T) {
	c, mem := newTestCPU(t, []byte{0xCB, 0x86}) // RES 0,(HL)
	c.regs.SetHL(0xC000)
	mem[0xC000] = 0xFF
	cycles, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, 16, cycles)
	assert.Equal(t, byte(0xFE), mem[0xC000])
}

func TestCBBitDoesNotConsumeExtraByte(t *testing.T) {
	c, _ := newTestCPU(t, []byte{0xCB, 0x7F, 0x00}) // BIT 7,A; NOP
	c.regs.A = 0x80
	_, err := c.Step()
	require.NoError(t, err)
	assert.False(t, c.regs.Z())
	assert.Equal(t, uint16(0x0102), c.regs.PC, "CB BIT is two bytes total, not three")
}

func TestInvalidOpcodeReturnsError(t *testing.T) {
	c, _ := newTestCPU(t, []byte{0xD3}) // unused opcode
	_, err := c.Step()
	assert.ErrorIs(t, err, ErrInvalidOpcode)
}

func TestHaltWakesWithoutVectoringWhenIMEFalse(t *testing.T) {
	c, _ := newTestCPU(t, []byte{0x76}) // HALT
	_, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, StateHalt, c.state)

	c.irq.IE = 1 << interrupt.VBlank
	c.irq.RequestIF(interrupt.VBlank)

	cycles, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, 4, cycles)
	assert.Equal(t, StateNormal, c.state)
}

// Scenario 6: EI delay. IME=0 with a pending IRQ; EI; NOP: no
// vectoring happens during NOP; it dispatches at the next boundary.
func TestEIDelayScenario(t *testing.T) {
	c, _ := newTestCPU(t, []byte{0xFB, 0x00, 0x00}) // EI; NOP; NOP
	c.irq.IE = 1 << interrupt.VBlank
	c.irq.RequestIF(interrupt.VBlank)

	_, err := c.Step() // EI
	require.NoError(t, err)
	assert.False(t, c.irq.IME)

	_, err = c.Step() // NOP: IME still false, no vectoring
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), c.regs.PC, "must not have vectored during the NOP right after EI")

	// Next scheduling point: IME commits, then the pending interrupt dispatches.
	_, err = c.Step()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0040), c.regs.PC)
}
