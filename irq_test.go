// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package ledctl_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-ledctl"
	"github.com/warthog618/go-ledctl/ledsim"
)

func TestInterruptAck(t *testing.T) {
	s, d := bindSim(t)
	defer d.Unbind()

	_, err := d.Toggle(context.Background())
	require.Nil(t, err)
	assert.Equal(t, ledctl.IntBit, s.Regs.Peek(ledctl.RegIntStatus))

	assert.True(t, s.Raise())
	assert.Zero(t, s.Regs.Peek(ledctl.RegIntStatus))
	assert.Equal(t, 1, s.Regs.Writes(ledctl.RegIntStatus))

	s.Regs.Assert()
	assert.True(t, s.Raise())
	assert.Zero(t, s.Regs.Peek(ledctl.RegIntStatus))
	assert.Equal(t, 2, s.Regs.Writes(ledctl.RegIntStatus))
}

func TestInterruptIdempotent(t *testing.T) {
	s, d := bindSim(t, ledsim.WithToggleDelays(10))
	defer d.Unbind()

	_, err := d.Toggle(context.Background())
	require.Nil(t, err)
	count, total := d.TotalLatency()

	assert.True(t, s.Raise())
	for i := 0; i < 10; i++ {
		assert.True(t, s.Raise())
	}
	// only the first had a signal to clear
	assert.Equal(t, 1, s.Regs.Writes(ledctl.RegIntStatus))
	xcount, xtotal := d.TotalLatency()
	assert.Equal(t, count, xcount)
	assert.Equal(t, total, xtotal)
	assert.Equal(t, 1, s.Regs.Writes(ledctl.RegToggle))
}
