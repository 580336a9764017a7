// Package gbcore wires the register file, bus, interrupt controller,
// timer and CPU loop into a single owned instance — no process-wide
// singleton, so more than one core can run independently.
package gbcore

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/davecgh/go-spew/spew"

	"github.com/reathen/gbcore/internal/cpu"
	"github.com/reathen/gbcore/internal/ibus"
	"github.com/reathen/gbcore/internal/interrupt"
	"github.com/reathen/gbcore/internal/register"
	"github.com/reathen/gbcore/internal/timer"
)

// ReadFunc and WriteFunc mirror internal/ibus's handler signatures so
// a host can register devices without importing the internal package.
type ReadFunc = ibus.ReadFunc
type WriteFunc = ibus.WriteFunc

// Config configures a Core. It intentionally carries nothing beyond
// trace plumbing: there is no PPU/APU frame limiter here, since this
// core owns no rendering or audio loop.
type Config struct {
	// Trace, when true, logs one line per step (PC after the step, run
	// state, cycles charged) to Writer.
	Trace bool
	// Writer receives trace and fatal-diagnostic output. Defaults to
	// io.Discard if nil.
	Writer io.Writer
}

// Core owns one bus, one register file (via its CPU), one interrupt
// controller, one timer, and the fetch/decode/execute loop driving them.
type Core struct {
	cfg Config
	log *log.Logger

	bus *ibus.Bus
	irq *interrupt.Controller
	tm  *timer.Timer
	cpu *cpu.CPU
}

// New builds a Core and registers its own bus-mapped registers (IF,
// IE, DIV/TIMA/TMA/TAC). A host adds cartridge/PPU/joypad/serial
// connections afterward via Connect.
func New(cfg Config) (*Core, error) {
	w := cfg.Writer
	if w == nil {
		w = io.Discard
	}

	bus := ibus.New()
	irq := interrupt.New()
	if err := irq.Connect(bus); err != nil {
		return nil, fmt.Errorf("gbcore: connecting interrupt registers: %w", err)
	}

	tm := timer.New(func() { irq.RequestIF(interrupt.Timer) })
	if err := tm.Connect(bus); err != nil {
		_ = irq.Disconnect(bus)
		return nil, fmt.Errorf("gbcore: connecting timer registers: %w", err)
	}

	c := cpu.New(bus, irq, tm)

	return &Core{
		cfg: cfg,
		log: log.New(w, "", 0),
		bus: bus,
		irq: irq,
		tm:  tm,
		cpu: c,
	}, nil
}

// Connect registers a host device over [start, start+size) — the
// cartridge ROM/RAM, a PPU's VRAM/OAM window, the joypad register, the
// serial port, or anything else the host owns. This core never
// registers these on the host's behalf.
func (c *Core) Connect(start, size uint16, r ReadFunc, w WriteFunc) error {
	return c.bus.Connect(start, size, r, w)
}

// Disconnect removes a previously registered host device.
func (c *Core) Disconnect(start uint16) error {
	return c.bus.Disconnect(start)
}

// Regs exposes the live register file, chiefly for host debuggers and tests.
func (c *Core) Regs() *register.File { return c.cpu.Regs() }

// State reports the CPU's current run state (NORMAL/HALT/STOP).
func (c *Core) State() cpu.State { return c.cpu.State() }

// Close releases only the bus connections this core registered for
// itself (IF, IE, DIV/TIMA/TMA/TAC) — never connections a host
// registered via Connect. Run calls it itself before returning a fatal
// step error; otherwise a host that owns the Core's lifetime calls this
// during its own orderly teardown.
func (c *Core) Close() error {
	err1 := c.irq.Disconnect(c.bus)
	err2 := c.tm.Disconnect(c.bus)
	if err1 != nil {
		return err1
	}
	return err2
}

// Run drives the fetch/decode/execute loop until ctx is cancelled or a
// step returns an error. On a fatal step error, Run logs it, dumps
// the register file via go-spew — a one-shot diagnostic, not an
// interactive debugger — and releases the core's own bus connections
// via Close before returning. Run never recovers from an error
// silently: it always returns it to the caller.
func (c *Core) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		cycles, err := c.cpu.Step()
		if err != nil {
			c.log.Printf("gbcore: fatal step error: %v", err)
			c.log.Printf("gbcore: register dump:\n%s", spew.Sdump(c.cpu.Regs()))
			if cerr := c.Close(); cerr != nil {
				c.log.Printf("gbcore: releasing core connections: %v", cerr)
			}
			return err
		}

		if c.cfg.Trace {
			c.log.Printf("pc=%04X state=%s cycles=%d", c.cpu.Regs().PC, c.cpu.State(), cycles)
		}
	}
}
