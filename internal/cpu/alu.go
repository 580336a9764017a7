package cpu

// 8-bit ALU helpers. Each returns the result plus the four flags it
// sets; callers commit the flags via regs.SetFlags. Carry-in variants
// (adc8/sbc8) fold the incoming carry into both the half-carry and
// carry computation.

func add8(a, b byte) (res byte, z, n, h, cy bool) {
	r := uint16(a) + uint16(b)
	res = byte(r)
	z = res == 0
	h = (a&0x0F)+(b&0x0F) > 0x0F
	cy = r > 0xFF
	return
}

func adc8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	ci := byte(0)
	if carryIn {
		ci = 1
	}
	r := uint16(a) + uint16(b) + uint16(ci)
	res = byte(r)
	z = res == 0
	h = (a&0x0F)+(b&0x0F)+ci > 0x0F
	cy = r > 0xFF
	return
}

func sub8(a, b byte) (res byte, z, n, h, cy bool) {
	r := int16(a) - int16(b)
	res = byte(r)
	z = res == 0
	n = true
	h = (a & 0x0F) < (b & 0x0F)
	cy = int16(a) < int16(b)
	return
}

func sbc8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	ci := byte(0)
	if carryIn {
		ci = 1
	}
	r := int16(a) - int16(b) - int16(ci)
	res = byte(r)
	z = res == 0
	n = true
	h = (a & 0x0F) < (b&0x0F)+ci
	cy = int16(a) < int16(b)+int16(ci)
	return
}

func and8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a & b
	z = res == 0
	h = true
	return
}

func xor8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a ^ b
	z = res == 0
	return
}

func or8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a | b
	z = res == 0
	return
}

func cp8(a, b byte) (z, n, h, cy bool) {
	_, z, n, h, cy = sub8(a, b)
	return
}

// inc8 increments a byte, reporting Z/H for the caller; N is always
// false and C is left untouched by INC, per the flag table.
func inc8(v byte) (res byte, z, h bool) {
	res = v + 1
	z = res == 0
	h = v&0x0F == 0x0F
	return
}

// dec8 decrements a byte; N is always true, C is untouched.
func dec8(v byte) (res byte, z, h bool) {
	res = v - 1
	z = res == 0
	h = v&0x0F == 0
	return
}

// addHL16 adds a 16-bit value to HL. Z is left to the caller to
// preserve; ADD HL,rr never touches it.
func addHL16(hl, v uint16) (res uint16, h, cy bool) {
	r := uint32(hl) + uint32(v)
	res = uint16(r)
	h = (hl&0x0FFF)+(v&0x0FFF) > 0x0FFF
	cy = r > 0xFFFF
	return
}

// r8 returns the value of the 8-bit operand selected by a standard
// SM83 register index: 0=B 1=C 2=D 3=E 4=H 5=L 6=(HL) 7=A.
func (c *CPU) r8(idx byte) (byte, error) {
	switch idx & 7 {
	case 0:
		return c.regs.B, nil
	case 1:
		return c.regs.C, nil
	case 2:
		return c.regs.D, nil
	case 3:
		return c.regs.E, nil
	case 4:
		return c.regs.H, nil
	case 5:
		return c.regs.L, nil
	case 6:
		return c.bus.Read(c.regs.HL())
	default:
		return c.regs.A, nil
	}
}

// setR8 stores v into the operand selected by idx (same encoding as r8).
func (c *CPU) setR8(idx byte, v byte) error {
	switch idx & 7 {
	case 0:
		c.regs.B = v
	case 1:
		c.regs.C = v
	case 2:
		c.regs.D = v
	case 3:
		c.regs.E = v
	case 4:
		c.regs.H = v
	case 5:
		c.regs.L = v
	case 6:
		return c.bus.Write(c.regs.HL(), v)
	default:
		c.regs.A = v
	}
	return nil
}

// rp returns the 16-bit register pair selected by a standard "rp"
// table index: 0=BC 1=DE 2=HL 3=SP.
func (c *CPU) rp(idx byte) uint16 {
	switch idx & 3 {
	case 0:
		return c.regs.BC()
	case 1:
		return c.regs.DE()
	case 2:
		return c.regs.HL()
	default:
		return c.regs.SP
	}
}

func (c *CPU) setRP(idx byte, v uint16) {
	switch idx & 3 {
	case 0:
		c.regs.SetBC(v)
	case 1:
		c.regs.SetDE(v)
	case 2:
		c.regs.SetHL(v)
	default:
		c.regs.SP = v
	}
}

// rp2 is the PUSH/POP register pair table: 0=BC 1=DE 2=HL 3=AF.
func (c *CPU) rp2(idx byte) uint16 {
	if idx&3 == 3 {
		return c.regs.AF()
	}
	return c.rp(idx)
}

func (c *CPU) setRP2(idx byte, v uint16) {
	if idx&3 == 3 {
		c.regs.SetAF(v)
		return
	}
	c.setRP(idx, v)
}

// cond evaluates one of the four branch conditions: 0=NZ 1=Z 2=NC 3=C.
func (c *CPU) cond(idx byte) bool {
	switch idx & 3 {
	case 0:
		return !c.regs.Z()
	case 1:
		return c.regs.Z()
	case 2:
		return !c.regs.C()
	default:
		return c.regs.C()
	}
}
