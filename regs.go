// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package ledctl

import "fmt"

// Reg identifies one of the registers in the device register window.
//
// The only registers that exist are the five exported below. The offset is
// unexported so no other register can be constructed outside the package.
type Reg struct {
	offset uint32
}

// The device registers, 32 bits wide at a 4 byte stride.
var (
	RegControl   = Reg{0x00} // LED control (RW)
	RegStatus    = Reg{0x04} // LED status (R)
	RegToggle    = Reg{0x08} // write 1 to toggle the LED (W)
	RegIntStatus = Reg{0x0c} // interrupt status, write 1 to clear (RW)
	RegIntEnable = Reg{0x10} // interrupt enable (RW)
)

const (
	// EnableBit is the enable bit in RegControl.
	EnableBit uint32 = 1 << 0

	// IntBit is the device interrupt bit in RegIntStatus and RegIntEnable.
	IntBit uint32 = 1 << 0

	// WindowSize is the minimum size of the mapping backing a Window.
	WindowSize = 0x14
)

// Offset returns the byte offset of the register within the window.
func (r Reg) Offset() uint32 {
	return r.offset
}

func (r Reg) String() string {
	switch r {
	case RegControl:
		return "control"
	case RegStatus:
		return "status"
	case RegToggle:
		return "toggle"
	case RegIntStatus:
		return "int-status"
	case RegIntEnable:
		return "int-enable"
	}
	return fmt.Sprintf("reg(%#x)", r.offset)
}

// RegisterMap is a mapping of the device registers.
//
// Every read and write must be a real access to the underlying register, and
// accesses must not be reordered relative to each other.
type RegisterMap interface {
	ReadUint32(offset uint32) uint32
	WriteUint32(offset uint32, value uint32)

	// Close releases the mapping.
	Close() error
}

// Window provides typed access to the device registers.
type Window struct {
	m RegisterMap
}

// NewWindow returns a Window over the given mapping.
func NewWindow(m RegisterMap) *Window {
	return &Window{m: m}
}

// Read returns the current value of the register.
func (w *Window) Read(r Reg) uint32 {
	return w.m.ReadUint32(r.offset)
}

// Write writes the value to the register.
func (w *Window) Write(r Reg, value uint32) {
	w.m.WriteUint32(r.offset, value)
}
