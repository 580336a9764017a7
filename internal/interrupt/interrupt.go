// Package interrupt implements the IME/IF/IE interrupt controller: the
// five maskable DMG interrupt sources, the dispatch algorithm, and the
// EI/DI one-instruction commit delay.
package interrupt

import (
	"github.com/reathen/gbcore/internal/ibus"
	"github.com/reathen/gbcore/internal/register"
)

// Interrupt source bit indices, in priority order (lowest index wins).
const (
	VBlank = iota
	LCD
	Timer
	Serial
	Joypad

	numSources = 5
)

var vectors = [numSources]uint16{0x0040, 0x0048, 0x0050, 0x0058, 0x0060}

// Bus addresses this controller registers itself at.
const (
	AddrIF = 0xFF0F
	AddrIE = 0xFFFF
)

// ifUnusedBits are forced to 1 on every IF write, per the architectural
// read-back convention.
const ifUnusedBits byte = 0xE0

// Controller holds IME, IF, IE and the EI/DI pending-commit counters.
type Controller struct {
	IME bool
	IF  byte
	IE  byte

	eiPending int
	diPending int
}

// New returns a controller in its post-reset state: IME disabled, IF
// with its unused bits set, IE clear.
func New() *Controller {
	return &Controller{IF: ifUnusedBits}
}

// RequestIF sets IF's bit for the given source.
func (c *Controller) RequestIF(source int) {
	c.IF |= 1 << uint(source)
}

// ReadIF is the bus read handler for 0xFF0F.
func (c *Controller) ReadIF(offset uint16) (byte, error) {
	return c.IF | ifUnusedBits, nil
}

// WriteIF is the bus write handler for 0xFF0F; the three unused bits
// always read back as one regardless of what was written.
func (c *Controller) WriteIF(offset uint16, v byte) error {
	c.IF = v | ifUnusedBits
	return nil
}

// ReadIE is the bus read handler for 0xFFFF.
func (c *Controller) ReadIE(offset uint16) (byte, error) {
	return c.IE, nil
}

// WriteIE is the bus write handler for 0xFFFF.
func (c *Controller) WriteIE(offset uint16, v byte) error {
	c.IE = v
	return nil
}

// Connect registers IF and IE with the bus.
func (c *Controller) Connect(bus *ibus.Bus) error {
	if err := bus.Connect(AddrIF, 1, c.ReadIF, c.WriteIF); err != nil {
		return err
	}
	if err := bus.Connect(AddrIE, 1, c.ReadIE, c.WriteIE); err != nil {
		_ = bus.Disconnect(AddrIF)
		return err
	}
	return nil
}

// Disconnect removes IF and IE from the bus.
func (c *Controller) Disconnect(bus *ibus.Bus) error {
	err1 := bus.Disconnect(AddrIF)
	err2 := bus.Disconnect(AddrIE)
	if err1 != nil {
		return err1
	}
	return err2
}

// RequestEI schedules IME to become true after the instruction
// following the one that called this (EI's opcode handler).
func (c *Controller) RequestEI() {
	c.eiPending = 1
}

// RequestDI schedules IME to become false after the instruction
// following the one that called this (DI's opcode handler).
func (c *Controller) RequestDI() {
	c.diPending = 1
}

// SetIMEImmediate sets IME with no one-instruction delay, used by
// RETI (which is distinct from EI in exactly this respect).
func (c *Controller) SetIMEImmediate() {
	c.IME = true
	c.eiPending = 0
}

// advancePending steps one pending counter. A counter that is already
// at 2 commits now and resets to 0; a counter at 1 advances to 2 but
// does not commit until the *next* call. This two-call latency is what
// makes EI take effect only after the instruction following it: the
// scheduling point right after EI's own dispatch advances 1->2 with no
// effect, and only the following scheduling point (before the
// instruction after that) commits.
func advancePending(pending *int, commit func()) {
	switch *pending {
	case 2:
		commit()
		*pending = 0
	case 1:
		*pending = 2
	}
}

// AdvancePending advances the EI/DI pending counters. Called once per
// scheduling point, before each dispatch decision.
func (c *Controller) AdvancePending() {
	advancePending(&c.eiPending, func() { c.IME = true })
	advancePending(&c.diPending, func() { c.IME = false })
}

// Pending reports whether any enabled interrupt source currently has
// its request bit set, independent of IME.
func (c *Controller) Pending() bool {
	return c.IF&c.IE&0x1F != 0
}

// lowestPending returns the lowest-priority-index set bit in IF&IE, or
// -1 if none is set.
func (c *Controller) lowestPending() int {
	set := c.IF & c.IE & 0x1F
	for i := 0; i < numSources; i++ {
		if set&(1<<uint(i)) != 0 {
			return i
		}
	}
	return -1
}

// Outcome describes what the dispatch step did, so the CPU loop can
// charge the right number of cycles and update its run state.
type Outcome struct {
	Dispatched bool // an interrupt vector was entered
	Woke       bool // HALT woke (with or without dispatch)
	Cycles     int
}

// Dispatch runs the interrupt dispatch algorithm: advance the pending
// counters, then either vector into the highest-priority pending
// interrupt (if IME), wake from HALT without vectoring (if not IME but
// a source is pending), or do nothing.
func (c *Controller) Dispatch(regs *register.File, bus *ibus.Bus, halted bool) (Outcome, error) {
	c.AdvancePending()

	if c.IME {
		i := c.lowestPending()
		if i >= 0 {
			regs.SP -= 2
			if err := bus.Write16(regs.SP, regs.PC); err != nil {
				return Outcome{}, err
			}
			regs.PC = vectors[i]
			c.IF &^= 1 << uint(i)
			c.IME = false

			cycles := 20
			if halted {
				cycles += 4
			}
			return Outcome{Dispatched: true, Woke: halted, Cycles: cycles}, nil
		}
	}

	if halted && c.Pending() {
		return Outcome{Woke: true, Cycles: 4}, nil
	}

	return Outcome{}, nil
}
