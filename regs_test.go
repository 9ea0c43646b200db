// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package ledctl_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warthog618/go-ledctl"
	"github.com/warthog618/go-ledctl/ledsim"
)

func TestRegLayout(t *testing.T) {
	patterns := []struct {
		reg    ledctl.Reg
		offset uint32
		name   string
	}{
		{ledctl.RegControl, 0x00, "control"},
		{ledctl.RegStatus, 0x04, "status"},
		{ledctl.RegToggle, 0x08, "toggle"},
		{ledctl.RegIntStatus, 0x0c, "int-status"},
		{ledctl.RegIntEnable, 0x10, "int-enable"},
	}
	for _, p := range patterns {
		assert.Equal(t, p.offset, p.reg.Offset())
		assert.Equal(t, p.name, p.reg.String())
	}
	var zero ledctl.Reg
	assert.Equal(t, ledctl.RegControl, zero)
}

func TestWindow(t *testing.T) {
	s := ledsim.New()
	m, err := s.MapRegisters()
	assert.Nil(t, err)
	defer m.Close()
	w := ledctl.NewWindow(m)

	w.Write(ledctl.RegControl, ledctl.EnableBit)
	assert.Equal(t, ledctl.EnableBit, w.Read(ledctl.RegControl))
	w.Write(ledctl.RegIntEnable, ledctl.IntBit)
	assert.Equal(t, ledctl.IntBit, w.Read(ledctl.RegIntEnable))

	w.Write(ledctl.RegToggle, 1)
	assert.Zero(t, w.Read(ledctl.RegControl))
	assert.Zero(t, w.Read(ledctl.RegStatus))
	assert.Equal(t, ledctl.IntBit, w.Read(ledctl.RegIntStatus))

	// write-1-to-clear
	w.Write(ledctl.RegIntStatus, ledctl.IntBit)
	assert.Zero(t, w.Read(ledctl.RegIntStatus))
}
