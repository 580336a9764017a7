// Package cpu implements the SM83 fetch/decode/execute loop: the
// register file glue, the two 256-entry opcode dispatch tables, and
// the per-instruction scheduling point where interrupts are advanced
// and dispatched before the next opcode is fetched.
package cpu

import (
	"errors"
	"fmt"

	"github.com/reathen/gbcore/internal/ibus"
	"github.com/reathen/gbcore/internal/interrupt"
	"github.com/reathen/gbcore/internal/register"
	"github.com/reathen/gbcore/internal/timer"
)

// State is the CPU's run state.
type State int

const (
	StateNormal State = iota
	StateHalt
	StateStop
)

func (s State) String() string {
	switch s {
	case StateHalt:
		return "HALT"
	case StateStop:
		return "STOP"
	default:
		return "NORMAL"
	}
}

// ErrInvalidOpcode is returned when an opcode has no dispatch table entry.
var ErrInvalidOpcode = errors.New("cpu: invalid opcode")

// CPU glues the register file to the bus and drives the opcode tables.
type CPU struct {
	regs *register.File
	bus  *ibus.Bus
	irq  *interrupt.Controller
	tm   *timer.Timer

	state State
}

// New returns a CPU in post-boot DMG reset state, wired to the given
// bus, interrupt controller, and timer.
func New(bus *ibus.Bus, irq *interrupt.Controller, tm *timer.Timer) *CPU {
	return &CPU{
		regs: register.New(),
		bus:  bus,
		irq:  irq,
		tm:   tm,
	}
}

// Regs exposes the register file, chiefly for diagnostics and tests.
func (c *CPU) Regs() *register.File { return c.regs }

// State reports the current run state.
func (c *CPU) State() State { return c.state }

func (c *CPU) tickTimer(cycles int) {
	for i := 0; i < cycles; i++ {
		c.tm.Tick()
	}
}

func (c *CPU) fetch8() (byte, error) {
	v, err := c.bus.Read(c.regs.PC)
	if err != nil {
		return 0, fmt.Errorf("cpu: fetch at %04X: %w", c.regs.PC, err)
	}
	c.regs.PC++
	return v, nil
}

func (c *CPU) fetch16() (uint16, error) {
	lo, err := c.fetch8()
	if err != nil {
		return 0, err
	}
	hi, err := c.fetch8()
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

func (c *CPU) push16(v uint16) error {
	c.regs.SP -= 2
	return c.bus.Write16(c.regs.SP, v)
}

func (c *CPU) pop16() (uint16, error) {
	v, err := c.bus.Read16(c.regs.SP)
	if err != nil {
		return 0, err
	}
	c.regs.SP += 2
	return v, nil
}

// Step runs exactly one scheduling point: it advances and, if due,
// acts on the interrupt controller's pending state, then either
// services an interrupt, stays idle in HALT/STOP, or fetches and
// executes the next opcode. It returns the number of machine cycles
// the step consumed, which is also the number of timer ticks applied.
func (c *CPU) Step() (int, error) {
	if c.state != StateStop {
		outcome, err := c.irq.Dispatch(c.regs, c.bus, c.state == StateHalt)
		if err != nil {
			return 0, err
		}
		if outcome.Dispatched || outcome.Woke {
			c.state = StateNormal
			c.tickTimer(outcome.Cycles)
			return outcome.Cycles, nil
		}
	}

	switch c.state {
	case StateHalt, StateStop:
		c.tickTimer(4)
		return 4, nil
	}

	op, err := c.fetch8()
	if err != nil {
		return 0, err
	}

	entry := primaryTable[op]
	if entry.Exec == nil {
		return 0, fmt.Errorf("%w: %02X at %04X", ErrInvalidOpcode, op, c.regs.PC-1)
	}

	extra, err := entry.Exec(c)
	if err != nil {
		return 0, err
	}

	cycles := entry.Cycles + extra
	c.tickTimer(cycles)
	return cycles, nil
}
