package cpu

import "fmt"

// Opcode is one entry of a 256-entry dispatch table: a name (for
// diagnostics), its encoded byte size (informational only — handlers
// self-advance PC via fetch8/fetch16 for any immediate operand), its
// base machine-cycle cost, and the handler itself. Exec returns any
// *additional* cycles beyond Cycles (used by conditional branches that
// take the jump) and an error if a bus access failed.
type Opcode struct {
	Name   string
	Size   int
	Cycles int
	Exec   func(c *CPU) (int, error)
}

var primaryTable [256]Opcode

// rpNames/rp2Names are purely for the Name field; they carry no behavior.
var rpNames = [4]string{"BC", "DE", "HL", "SP"}
var rp2Names = [4]string{"BC", "DE", "HL", "AF"}
var r8Names = [8]string{"B", "C", "D", "E", "H", "L", "(HL)", "A"}
var condNames = [4]string{"NZ", "Z", "NC", "C"}

func init() {
	buildLoadGroup()
	buildImmediateLoadGroup()
	buildALUGroup()
	buildIncDecGroup()
	buildRPGroup()
	buildRotateAGroup()
	buildStackGroup()
	buildJumpGroup()
	buildMemoryIndirectGroup()
	buildHighPageGroup()
	buildMiscGroup()
	buildCBTable()
	primaryTable[0xCB] = Opcode{Name: "PREFIX CB", Size: 1, Cycles: 0, Exec: execCBPrefix}
}

// --- LD r,r' (0x40-0x7F, excluding 0x76=HALT) ---

func buildLoadGroup() {
	for op := 0x40; op <= 0x7F; op++ {
		if op == 0x76 {
			continue
		}
		op := byte(op)
		d := (op >> 3) & 7
		s := op & 7
		cycles := 4
		if d == 6 || s == 6 {
			cycles = 8
		}
		primaryTable[op] = Opcode{
			Name: "LD " + r8Names[d] + "," + r8Names[s], Size: 1, Cycles: cycles,
			Exec: func(c *CPU) (int, error) {
				v, err := c.r8(s)
				if err != nil {
					return 0, err
				}
				return 0, c.setR8(d, v)
			},
		}
	}
}

// --- LD r,d8 (0x06,0x0E,...,0x3E) ---

func buildImmediateLoadGroup() {
	for i := byte(0); i < 8; i++ {
		op := i<<3 | 0x06
		d := i
		cycles := 8
		if d == 6 {
			cycles = 12
		}
		primaryTable[op] = Opcode{
			Name: "LD " + r8Names[d] + ",d8", Size: 2, Cycles: cycles,
			Exec: func(c *CPU) (int, error) {
				imm, err := c.fetch8()
				if err != nil {
					return 0, err
				}
				return 0, c.setR8(d, imm)
			},
		}
	}
}

// --- ALU A,r8 (0x80-0xBF) and ALU A,d8 (0xC6,0xCE,0xD6,0xDE,0xE6,0xEE,0xF6,0xFE) ---

var aluNames = [8]string{"ADD", "ADC", "SUB", "SBC", "AND", "XOR", "OR", "CP"}

func aluApply(c *CPU, group byte, b byte) {
	a := c.regs.A
	var res byte
	var z, n, h, cy bool
	switch group {
	case 0:
		res, z, n, h, cy = add8(a, b)
	case 1:
		res, z, n, h, cy = adc8(a, b, c.regs.C())
	case 2:
		res, z, n, h, cy = sub8(a, b)
	case 3:
		res, z, n, h, cy = sbc8(a, b, c.regs.C())
	case 4:
		res, z, n, h, cy = and8(a, b)
	case 5:
		res, z, n, h, cy = xor8(a, b)
	case 6:
		res, z, n, h, cy = or8(a, b)
	case 7:
		z, n, h, cy = cp8(a, b)
		res = a
	}
	c.regs.A = res
	c.regs.SetFlags(z, n, h, cy)
}

func buildALUGroup() {
	for op := 0x80; op <= 0xBF; op++ {
		op := byte(op)
		group := (op >> 3) & 7
		s := op & 7
		cycles := 4
		if s == 6 {
			cycles = 8
		}
		primaryTable[op] = Opcode{
			Name: aluNames[group] + " A," + r8Names[s], Size: 1, Cycles: cycles,
			Exec: func(c *CPU) (int, error) {
				b, err := c.r8(s)
				if err != nil {
					return 0, err
				}
				aluApply(c, group, b)
				return 0, nil
			},
		}
	}

	for i := byte(0); i < 8; i++ {
		op := 0xC6 + i*8
		group := i
		primaryTable[op] = Opcode{
			Name: aluNames[group] + " A,d8", Size: 2, Cycles: 8,
			Exec: func(c *CPU) (int, error) {
				imm, err := c.fetch8()
				if err != nil {
					return 0, err
				}
				aluApply(c, group, imm)
				return 0, nil
			},
		}
	}
}

// --- INC r8 / DEC r8 ---

func buildIncDecGroup() {
	for i := byte(0); i < 8; i++ {
		d := i
		incOp := d<<3 | 0x04
		decOp := d<<3 | 0x05
		cycles := 4
		if d == 6 {
			cycles = 12
		}
		primaryTable[incOp] = Opcode{
			Name: "INC " + r8Names[d], Size: 1, Cycles: cycles,
			Exec: func(c *CPU) (int, error) {
				v, err := c.r8(d)
				if err != nil {
					return 0, err
				}
				res, z, h := inc8(v)
				c.regs.SetFlags(z, false, h, c.regs.C())
				return 0, c.setR8(d, res)
			},
		}
		primaryTable[decOp] = Opcode{
			Name: "DEC " + r8Names[d], Size: 1, Cycles: cycles,
			Exec: func(c *CPU) (int, error) {
				v, err := c.r8(d)
				if err != nil {
					return 0, err
				}
				res, z, h := dec8(v)
				c.regs.SetFlags(z, true, h, c.regs.C())
				return 0, c.setR8(d, res)
			},
		}
	}
}

// --- 16-bit register pair group: LD rp,d16 / INC rp / DEC rp / ADD HL,rp ---

func buildRPGroup() {
	for i := byte(0); i < 4; i++ {
		idx := i
		ldOp := idx<<4 | 0x01
		incOp := idx<<4 | 0x03
		decOp := idx<<4 | 0x0B
		addOp := idx<<4 | 0x09

		primaryTable[ldOp] = Opcode{
			Name: "LD " + rpNames[idx] + ",d16", Size: 3, Cycles: 12,
			Exec: func(c *CPU) (int, error) {
				v, err := c.fetch16()
				if err != nil {
					return 0, err
				}
				c.setRP(idx, v)
				return 0, nil
			},
		}

		primaryTable[incOp] = Opcode{
			Name: "INC " + rpNames[idx], Size: 1, Cycles: 8,
			Exec: func(c *CPU) (int, error) {
				c.setRP(idx, c.rp(idx)+1)
				return 0, nil
			},
		}

		primaryTable[decOp] = Opcode{
			Name: "DEC " + rpNames[idx], Size: 1, Cycles: 8,
			Exec: func(c *CPU) (int, error) {
				c.setRP(idx, c.rp(idx)-1)
				return 0, nil
			},
		}

		primaryTable[addOp] = Opcode{
			Name: "ADD HL," + rpNames[idx], Size: 1, Cycles: 8,
			Exec: func(c *CPU) (int, error) {
				res, h, cy := addHL16(c.regs.HL(), c.rp(idx))
				c.regs.SetFlags(c.regs.Z(), false, h, cy)
				c.regs.SetHL(res)
				return 0, nil
			},
		}
	}
}

// --- RLCA/RRCA/RLA/RRA ---

func buildRotateAGroup() {
	primaryTable[0x07] = Opcode{Name: "RLCA", Size: 1, Cycles: 4, Exec: func(c *CPU) (int, error) {
		v := c.regs.A
		cy := v&0x80 != 0
		v = v<<1 | boolBit(cy)
		c.regs.A = v
		c.regs.SetFlags(false, false, false, cy)
		return 0, nil
	}}
	primaryTable[0x0F] = Opcode{Name: "RRCA", Size: 1, Cycles: 4, Exec: func(c *CPU) (int, error) {
		v := c.regs.A
		cy := v&0x01 != 0
		v = v>>1 | boolBit(cy)<<7
		c.regs.A = v
		c.regs.SetFlags(false, false, false, cy)
		return 0, nil
	}}
	primaryTable[0x17] = Opcode{Name: "RLA", Size: 1, Cycles: 4, Exec: func(c *CPU) (int, error) {
		v := c.regs.A
		oldCy := c.regs.C()
		cy := v&0x80 != 0
		v = v<<1 | boolBit(oldCy)
		c.regs.A = v
		c.regs.SetFlags(false, false, false, cy)
		return 0, nil
	}}
	primaryTable[0x1F] = Opcode{Name: "RRA", Size: 1, Cycles: 4, Exec: func(c *CPU) (int, error) {
		v := c.regs.A
		oldCy := c.regs.C()
		cy := v&0x01 != 0
		v = v>>1 | boolBit(oldCy)<<7
		c.regs.A = v
		c.regs.SetFlags(false, false, false, cy)
		return 0, nil
	}}
}

func boolBit(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// --- PUSH/POP rp2, stack-adjacent loads ---

func buildStackGroup() {
	for i := byte(0); i < 4; i++ {
		idx := i
		pushOp := idx<<4 | 0xC5
		popOp := idx<<4 | 0xC1

		primaryTable[pushOp] = Opcode{
			Name: "PUSH " + rp2Names[idx], Size: 1, Cycles: 16,
			Exec: func(c *CPU) (int, error) { return 0, c.push16(c.rp2(idx)) },
		}
		primaryTable[popOp] = Opcode{
			Name: "POP " + rp2Names[idx], Size: 1, Cycles: 12,
			Exec: func(c *CPU) (int, error) {
				v, err := c.pop16()
				if err != nil {
					return 0, err
				}
				c.setRP2(idx, v)
				return 0, nil
			},
		}
	}

	primaryTable[0x08] = Opcode{Name: "LD (a16),SP", Size: 3, Cycles: 20, Exec: func(c *CPU) (int, error) {
		addr, err := c.fetch16()
		if err != nil {
			return 0, err
		}
		return 0, c.bus.Write16(addr, c.regs.SP)
	}}
	primaryTable[0xF9] = Opcode{Name: "LD SP,HL", Size: 1, Cycles: 8, Exec: func(c *CPU) (int, error) {
		c.regs.SP = c.regs.HL()
		return 0, nil
	}}
	primaryTable[0xF8] = Opcode{Name: "LD HL,SP+e8", Size: 2, Cycles: 12, Exec: func(c *CPU) (int, error) {
		e8, err := c.fetch8()
		if err != nil {
			return 0, err
		}
		res, h, cy := addSPSigned(c.regs.SP, e8)
		c.regs.SetHL(res)
		c.regs.SetFlags(false, false, h, cy)
		return 0, nil
	}}
	primaryTable[0xE8] = Opcode{Name: "ADD SP,e8", Size: 2, Cycles: 16, Exec: func(c *CPU) (int, error) {
		e8, err := c.fetch8()
		if err != nil {
			return 0, err
		}
		res, h, cy := addSPSigned(c.regs.SP, e8)
		c.regs.SP = res
		c.regs.SetFlags(false, false, h, cy)
		return 0, nil
	}}
}

func addSPSigned(sp uint16, e8 byte) (res uint16, h, cy bool) {
	e := int8(e8)
	res = uint16(int32(sp) + int32(e))
	h = (sp&0x0F)+uint16(e8&0x0F) > 0x0F
	cy = (sp&0xFF)+uint16(e8) > 0xFF
	return
}

// --- Jumps, calls, returns, restarts ---

func buildJumpGroup() {
	primaryTable[0xC3] = Opcode{Name: "JP a16", Size: 3, Cycles: 16, Exec: func(c *CPU) (int, error) {
		addr, err := c.fetch16()
		if err != nil {
			return 0, err
		}
		c.regs.PC = addr
		return 0, nil
	}}
	primaryTable[0xE9] = Opcode{Name: "JP (HL)", Size: 1, Cycles: 4, Exec: func(c *CPU) (int, error) {
		c.regs.PC = c.regs.HL() // not a memory indirection, despite the mnemonic
		return 0, nil
	}}
	primaryTable[0x18] = Opcode{Name: "JR e8", Size: 2, Cycles: 12, Exec: func(c *CPU) (int, error) {
		e8, err := c.fetch8()
		if err != nil {
			return 0, err
		}
		c.regs.PC = uint16(int32(c.regs.PC) + int32(int8(e8)))
		return 0, nil
	}}
	primaryTable[0xCD] = Opcode{Name: "CALL a16", Size: 3, Cycles: 24, Exec: func(c *CPU) (int, error) {
		addr, err := c.fetch16()
		if err != nil {
			return 0, err
		}
		if err := c.push16(c.regs.PC); err != nil {
			return 0, err
		}
		c.regs.PC = addr
		return 0, nil
	}}
	primaryTable[0xC9] = Opcode{Name: "RET", Size: 1, Cycles: 16, Exec: func(c *CPU) (int, error) {
		addr, err := c.pop16()
		if err != nil {
			return 0, err
		}
		c.regs.PC = addr
		return 0, nil
	}}
	primaryTable[0xD9] = Opcode{Name: "RETI", Size: 1, Cycles: 16, Exec: func(c *CPU) (int, error) {
		addr, err := c.pop16()
		if err != nil {
			return 0, err
		}
		c.regs.PC = addr
		c.irq.SetIMEImmediate()
		return 0, nil
	}}

	for i := byte(0); i < 4; i++ {
		cc := i

		jpOp := cc<<3 | 0xC2
		primaryTable[jpOp] = Opcode{
			Name: "JP " + condNames[cc] + ",a16", Size: 3, Cycles: 12,
			Exec: func(c *CPU) (int, error) {
				addr, err := c.fetch16()
				if err != nil {
					return 0, err
				}
				if c.cond(cc) {
					c.regs.PC = addr
					return 4, nil
				}
				return 0, nil
			},
		}

		jrOp := cc<<3 | 0x20
		primaryTable[jrOp] = Opcode{
			Name: "JR " + condNames[cc] + ",e8", Size: 2, Cycles: 8,
			Exec: func(c *CPU) (int, error) {
				e8, err := c.fetch8()
				if err != nil {
					return 0, err
				}
				if c.cond(cc) {
					c.regs.PC = uint16(int32(c.regs.PC) + int32(int8(e8)))
					return 4, nil
				}
				return 0, nil
			},
		}

		callOp := cc<<3 | 0xC4
		primaryTable[callOp] = Opcode{
			Name: "CALL " + condNames[cc] + ",a16", Size: 3, Cycles: 12,
			Exec: func(c *CPU) (int, error) {
				addr, err := c.fetch16()
				if err != nil {
					return 0, err
				}
				if c.cond(cc) {
					if err := c.push16(c.regs.PC); err != nil {
						return 0, err
					}
					c.regs.PC = addr
					return 12, nil
				}
				return 0, nil
			},
		}

		retOp := cc<<3 | 0xC0
		primaryTable[retOp] = Opcode{
			Name: "RET " + condNames[cc], Size: 1, Cycles: 8,
			Exec: func(c *CPU) (int, error) {
				if !c.cond(cc) {
					return 0, nil
				}
				addr, err := c.pop16()
				if err != nil {
					return 0, err
				}
				c.regs.PC = addr
				return 12, nil
			},
		}
	}

	rstVectors := [8]uint16{0x00, 0x08, 0x10, 0x18, 0x20, 0x28, 0x30, 0x38}
	for i := byte(0); i < 8; i++ {
		vec := rstVectors[i]
		op := i<<3 | 0xC7
		primaryTable[op] = Opcode{
			Name: fmt.Sprintf("RST %02XH", vec), Size: 1, Cycles: 16,
			Exec: func(c *CPU) (int, error) {
				if err := c.push16(c.regs.PC); err != nil {
					return 0, err
				}
				c.regs.PC = vec
				return 0, nil
			},
		}
	}
}

// --- Memory-indirect 8-bit loads: (BC)/(DE)/(HL+)/(HL-) ---

func buildMemoryIndirectGroup() {
	primaryTable[0x02] = Opcode{Name: "LD (BC),A", Size: 1, Cycles: 8, Exec: func(c *CPU) (int, error) {
		return 0, c.bus.Write(c.regs.BC(), c.regs.A)
	}}
	primaryTable[0x12] = Opcode{Name: "LD (DE),A", Size: 1, Cycles: 8, Exec: func(c *CPU) (int, error) {
		return 0, c.bus.Write(c.regs.DE(), c.regs.A)
	}}
	primaryTable[0x0A] = Opcode{Name: "LD A,(BC)", Size: 1, Cycles: 8, Exec: func(c *CPU) (int, error) {
		v, err := c.bus.Read(c.regs.BC())
		if err != nil {
			return 0, err
		}
		c.regs.A = v
		return 0, nil
	}}
	primaryTable[0x1A] = Opcode{Name: "LD A,(DE)", Size: 1, Cycles: 8, Exec: func(c *CPU) (int, error) {
		v, err := c.bus.Read(c.regs.DE())
		if err != nil {
			return 0, err
		}
		c.regs.A = v
		return 0, nil
	}}
	primaryTable[0x22] = Opcode{Name: "LD (HL+),A", Size: 1, Cycles: 8, Exec: func(c *CPU) (int, error) {
		if err := c.bus.Write(c.regs.HL(), c.regs.A); err != nil {
			return 0, err
		}
		c.regs.SetHL(c.regs.HL() + 1)
		return 0, nil
	}}
	primaryTable[0x2A] = Opcode{Name: "LD A,(HL+)", Size: 1, Cycles: 8, Exec: func(c *CPU) (int, error) {
		v, err := c.bus.Read(c.regs.HL())
		if err != nil {
			return 0, err
		}
		c.regs.A = v
		c.regs.SetHL(c.regs.HL() + 1)
		return 0, nil
	}}
	primaryTable[0x32] = Opcode{Name: "LD (HL-),A", Size: 1, Cycles: 8, Exec: func(c *CPU) (int, error) {
		if err := c.bus.Write(c.regs.HL(), c.regs.A); err != nil {
			return 0, err
		}
		c.regs.SetHL(c.regs.HL() - 1)
		return 0, nil
	}}
	primaryTable[0x3A] = Opcode{Name: "LD A,(HL-)", Size: 1, Cycles: 8, Exec: func(c *CPU) (int, error) {
		v, err := c.bus.Read(c.regs.HL())
		if err != nil {
			return 0, err
		}
		c.regs.A = v
		c.regs.SetHL(c.regs.HL() - 1)
		return 0, nil
	}}
}

// --- High-page loads: LDH and LD (C)/A variants, LD (a16),A / LD A,(a16) ---

func buildHighPageGroup() {
	primaryTable[0xE0] = Opcode{Name: "LDH (a8),A", Size: 2, Cycles: 12, Exec: func(c *CPU) (int, error) {
		off, err := c.fetch8()
		if err != nil {
			return 0, err
		}
		return 0, c.bus.Write(0xFF00+uint16(off), c.regs.A)
	}}
	primaryTable[0xF0] = Opcode{Name: "LDH A,(a8)", Size: 2, Cycles: 12, Exec: func(c *CPU) (int, error) {
		off, err := c.fetch8()
		if err != nil {
			return 0, err
		}
		v, err := c.bus.Read(0xFF00 + uint16(off))
		if err != nil {
			return 0, err
		}
		c.regs.A = v
		return 0, nil
	}}
	primaryTable[0xE2] = Opcode{Name: "LD (C),A", Size: 1, Cycles: 8, Exec: func(c *CPU) (int, error) {
		return 0, c.bus.Write(0xFF00+uint16(c.regs.C), c.regs.A)
	}}
	primaryTable[0xF2] = Opcode{Name: "LD A,(C)", Size: 1, Cycles: 8, Exec: func(c *CPU) (int, error) {
		v, err := c.bus.Read(0xFF00 + uint16(c.regs.C))
		if err != nil {
			return 0, err
		}
		c.regs.A = v
		return 0, nil
	}}
	primaryTable[0xEA] = Opcode{Name: "LD (a16),A", Size: 3, Cycles: 16, Exec: func(c *CPU) (int, error) {
		addr, err := c.fetch16()
		if err != nil {
			return 0, err
		}
		return 0, c.bus.Write(addr, c.regs.A)
	}}
	primaryTable[0xFA] = Opcode{Name: "LD A,(a16)", Size: 3, Cycles: 16, Exec: func(c *CPU) (int, error) {
		addr, err := c.fetch16()
		if err != nil {
			return 0, err
		}
		v, err := c.bus.Read(addr)
		if err != nil {
			return 0, err
		}
		c.regs.A = v
		return 0, nil
	}}
}

// --- CPU control and miscellaneous single-byte opcodes ---

func buildMiscGroup() {
	primaryTable[0x00] = Opcode{Name: "NOP", Size: 1, Cycles: 4, Exec: func(c *CPU) (int, error) { return 0, nil }}

	primaryTable[0x76] = Opcode{Name: "HALT", Size: 1, Cycles: 4, Exec: func(c *CPU) (int, error) {
		c.state = StateHalt
		return 0, nil
	}}

	primaryTable[0x10] = Opcode{Name: "STOP", Size: 2, Cycles: 4, Exec: func(c *CPU) (int, error) {
		if _, err := c.fetch8(); err != nil { // the mandatory (and conventionally 0x00) operand byte
			return 0, err
		}
		c.state = StateStop
		return 0, nil
	}}

	primaryTable[0xF3] = Opcode{Name: "DI", Size: 1, Cycles: 4, Exec: func(c *CPU) (int, error) {
		c.irq.RequestDI()
		return 0, nil
	}}
	primaryTable[0xFB] = Opcode{Name: "EI", Size: 1, Cycles: 4, Exec: func(c *CPU) (int, error) {
		c.irq.RequestEI()
		return 0, nil
	}}

	primaryTable[0x2F] = Opcode{Name: "CPL", Size: 1, Cycles: 4, Exec: func(c *CPU) (int, error) {
		c.regs.A = ^c.regs.A
		c.regs.SetFlags(c.regs.Z(), true, true, c.regs.C())
		return 0, nil
	}}
	primaryTable[0x3F] = Opcode{Name: "CCF", Size: 1, Cycles: 4, Exec: func(c *CPU) (int, error) {
		c.regs.SetFlags(c.regs.Z(), false, false, !c.regs.C())
		return 0, nil
	}}
	primaryTable[0x37] = Opcode{Name: "SCF", Size: 1, Cycles: 4, Exec: func(c *CPU) (int, error) {
		c.regs.SetFlags(c.regs.Z(), false, false, true)
		return 0, nil
	}}

	primaryTable[0x27] = Opcode{Name: "DAA", Size: 1, Cycles: 4, Exec: func(c *CPU) (int, error) {
		a := c.regs.A
		cy := c.regs.C()
		h := c.regs.H()
		if !c.regs.N() {
			if cy || a > 0x99 {
				a += 0x60
				cy = true
			}
			if h || a&0x0F > 0x09 {
				a += 0x06
			}
		} else {
			if cy {
				a -= 0x60
			}
			if h {
				a -= 0x06
			}
		}
		c.regs.A = a
		c.regs.SetFlags(a == 0, c.regs.N(), false, cy)
		return 0, nil
	}}
}

func execCBPrefix(c *CPU) (int, error) {
	op, err := c.fetch8()
	if err != nil {
		return 0, err
	}
	entry := cbTable[op]
	if entry.Exec == nil {
		return 0, fmt.Errorf("%w: CB %02X at %04X", ErrInvalidOpcode, op, c.regs.PC-1)
	}
	extra, err := entry.Exec(c)
	if err != nil {
		return 0, err
	}
	return entry.Cycles + extra, nil
}
