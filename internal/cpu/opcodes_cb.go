package cpu

import "fmt"

// cbTable is the CB-prefixed page: rotates/shifts (group 0), BIT
// (group 1), RES (group 2), SET (group 3), each over the eight
// r8-encoded operands. n (the bit number for BIT/RES/SET) is decoded
// from the CB opcode byte itself (bits 5..3); the instruction carries
// no operand byte beyond the CB prefix and the opcode byte.
var cbTable [256]Opcode

var shiftNames = [8]string{"RLC", "RRC", "RL", "RR", "SLA", "SRA", "SWAP", "SRL"}

func buildCBTable() {
	for op := 0; op < 256; op++ {
		op := byte(op)
		group := op >> 6
		n := (op >> 3) & 7
		reg := op & 7

		cycles := 8
		if reg == 6 {
			// (HL) operands cost an extra read/write machine cycle.
			cycles = 16
		}

		switch group {
		case 0:
			sub := n
			cbTable[op] = Opcode{
				Name: shiftNames[sub] + " " + r8Names[reg], Size: 2, Cycles: cycles,
				Exec: cbShiftHandler(sub, reg),
			}
		case 1:
			bit := n
			cbTable[op] = Opcode{
				Name: fmt.Sprintf("BIT %d,%s", bit, r8Names[reg]), Size: 2, Cycles: cycles,
				Exec: func(c *CPU) (int, error) {
					v, err := c.r8(reg)
					if err != nil {
						return 0, err
					}
					z := v&(1<<bit) == 0
					c.regs.SetFlags(z, false, true, c.regs.C())
					return 0, nil
				},
			}
		case 2:
			bit := n
			cbTable[op] = Opcode{
				Name: fmt.Sprintf("RES %d,%s", bit, r8Names[reg]), Size: 2, Cycles: cycles,
				Exec: func(c *CPU) (int, error) {
					v, err := c.r8(reg)
					if err != nil {
						return 0, err
					}
					return 0, c.setR8(reg, v&^(1<<bit))
				},
			}
		case 3:
			bit := n
			cbTable[op] = Opcode{
				Name: fmt.Sprintf("SET %d,%s", bit, r8Names[reg]), Size: 2, Cycles: cycles,
				Exec: func(c *CPU) (int, error) {
					v, err := c.r8(reg)
					if err != nil {
						return 0, err
					}
					return 0, c.setR8(reg, v|(1<<bit))
				},
			}
		}
	}
}

func cbShiftHandler(sub, reg byte) func(c *CPU) (int, error) {
	return func(c *CPU) (int, error) {
		v, err := c.r8(reg)
		if err != nil {
			return 0, err
		}

		var res byte
		var cy bool

		switch sub {
		case 0: // RLC
			cy = v&0x80 != 0
			res = v<<1 | boolBit(cy)
		case 1: // RRC
			cy = v&0x01 != 0
			res = v>>1 | boolBit(cy)<<7
		case 2: // RL
			cy = v&0x80 != 0
			res = v<<1 | boolBit(c.regs.C())
		case 3: // RR
			cy = v&0x01 != 0
			res = v>>1 | boolBit(c.regs.C())<<7
		case 4: // SLA
			cy = v&0x80 != 0
			res = v << 1
		case 5: // SRA
			cy = v&0x01 != 0
			res = v>>1 | v&0x80
		case 6: // SWAP
			res = v<<4 | v>>4
			cy = false
		case 7: // SRL
			cy = v&0x01 != 0
			res = v >> 1
		}

		c.regs.SetFlags(res == 0, false, false, cy)
		return 0, c.setR8(reg, res)
	}
}
