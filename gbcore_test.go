package gbcore

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/reathen/gbcore/internal/cpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramDevice(size uint16) (mem []byte, r ReadFunc, w WriteFunc) {
	mem = make([]byte, size)
	r = func(off uint16) (byte, error) { return mem[off], nil }
	w = func(off uint16, v byte) error { mem[off] = v; return nil }
	return
}

func TestNewRegistersIFAndIE(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)

	mem, r, w := ramDevice(0xE000)
	require.NoError(t, c.Connect(0, 0xE000, r, w))

	require.NoError(t, c.Disconnect(0))
	_ = mem

	require.NoError(t, c.Close())
}

func TestRunExecutesUntilInvalidOpcode(t *testing.T) {
	mem, r, w := ramDevice(0x8000)
	mem[0x0100] = 0x00 // NOP
	mem[0x0101] = 0xD3 // invalid

	var buf bytes.Buffer
	c, err := New(Config{Trace: true, Writer: &buf})
	require.NoError(t, err)
	require.NoError(t, c.Connect(0, 0x8000, r, w))
	c.Regs().PC = 0x0100

	runErr := c.Run(context.Background())
	assert.ErrorIs(t, runErr, cpu.ErrInvalidOpcode)
	assert.Contains(t, buf.String(), "fatal step error")
	assert.Contains(t, buf.String(), "register dump")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	mem, r, w := ramDevice(0x8000)
	for i := 0x0100; i < len(mem)-3; i++ {
		mem[i] = 0x00 // NOPs
	}
	// JP 0x0100 at the end of RAM, so the NOPs loop forever instead of
	// running into unmapped memory at 0x8000.
	mem[len(mem)-3] = 0xC3
	mem[len(mem)-2] = 0x00
	mem[len(mem)-1] = 0x01

	c, err := New(Config{})
	require.NoError(t, err)
	require.NoError(t, c.Connect(0, 0x8000, r, w))
	c.Regs().PC = 0x0100

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	runErr := c.Run(ctx)
	assert.True(t, errors.Is(runErr, context.DeadlineExceeded))
}
