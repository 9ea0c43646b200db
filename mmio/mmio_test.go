// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package mmio_test

import (
	"os"
	"path"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-ledctl"
	"github.com/warthog618/go-ledctl/mmio"
)

// mmio.Region must satisfy the register map required by ledctl.
var _ ledctl.RegisterMap = (*mmio.Region)(nil)

func TestFromBytes(t *testing.T) {
	mem := make([]uint32, 8)
	b := unsafeBytes(mem)
	r := mmio.FromBytes(b)
	assert.Equal(t, 32, r.Size())

	r.WriteUint32(0x08, 0xdeadbeef)
	assert.Equal(t, uint32(0xdeadbeef), mem[2])
	mem[4] = 0x1234
	assert.Equal(t, uint32(0x1234), r.ReadUint32(0x10))

	assert.Panics(t, func() { r.ReadUint32(0x20) })
	assert.Panics(t, func() { r.WriteUint32(0x02, 1) })

	assert.Nil(t, r.Close())
	assert.NotNil(t, r.Close())
	assert.Panics(t, func() { r.ReadUint32(0) })
}

func TestMap(t *testing.T) {
	p := path.Join(t.TempDir(), "regs")
	size := os.Getpagesize()
	err := os.WriteFile(p, make([]byte, size), 0600)
	require.Nil(t, err)

	r, err := mmio.Map(p, 0, size)
	require.Nil(t, err)
	w := ledctl.NewWindow(r)
	w.Write(ledctl.RegIntEnable, ledctl.IntBit)
	w.Write(ledctl.RegToggle, 1)
	assert.Equal(t, ledctl.IntBit, w.Read(ledctl.RegIntEnable))
	assert.Nil(t, r.Close())

	// written through to the file
	data, err := os.ReadFile(p)
	require.Nil(t, err)
	assert.Equal(t, byte(1), data[0x08])
	assert.Equal(t, byte(1), data[0x10])
}

func TestMapErrors(t *testing.T) {
	p := path.Join(t.TempDir(), "regs")
	size := os.Getpagesize()
	err := os.WriteFile(p, make([]byte, size), 0600)
	require.Nil(t, err)

	_, err = mmio.Map(p, 0, 0)
	assert.NotNil(t, err)
	_, err = mmio.Map(p, 4, size)
	assert.NotNil(t, err)
	_, err = mmio.Map(path.Join(t.TempDir(), "missing"), 0, size)
	assert.NotNil(t, err)
}

// unsafeBytes returns the memory backing the words, so the bytes are aligned.
func unsafeBytes(words []uint32) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*4)
}
