// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package uio

import (
	"os"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-ledctl"
	"golang.org/x/sys/unix"
)

// fakeUIO creates a sysfs and dev tree for a UIO device, backed by a regular
// file in place of the device node.
func fakeUIO(t *testing.T, num int, name string, size int) {
	t.Helper()
	root := t.TempDir()
	sysfsRoot = path.Join(root, "sys")
	devRoot = path.Join(root, "dev")
	t.Cleanup(func() {
		sysfsRoot = "/sys/class/uio"
		devRoot = "/dev"
	})
	uio := "uio" + string(rune('0'+num))
	mapPath := path.Join(sysfsRoot, uio, "maps", "map0")
	require.Nil(t, os.MkdirAll(mapPath, 0755))
	require.Nil(t, os.MkdirAll(devRoot, 0755))
	require.Nil(t, os.WriteFile(path.Join(sysfsRoot, uio, "name"), []byte(name+"\n"), 0644))
	require.Nil(t, os.WriteFile(path.Join(mapPath, "name"), []byte("regs\n"), 0644))
	require.Nil(t, os.WriteFile(path.Join(mapPath, "addr"), []byte("0x11000000\n"), 0644))
	require.Nil(t, os.WriteFile(path.Join(mapPath, "size"), []byte("0x1000\n"), 0644))
	require.Nil(t, os.WriteFile(path.Join(mapPath, "offset"), []byte("0x0\n"), 0644))
	require.Nil(t, os.WriteFile(path.Join(devRoot, uio), make([]byte, size), 0644))
}

func TestFind(t *testing.T) {
	fakeUIO(t, 3, "mtk-led", os.Getpagesize())

	n, err := Find("mtk-led")
	assert.Nil(t, err)
	assert.Equal(t, 3, n)

	n, err = Find("missing")
	assert.NotNil(t, err)
	assert.Equal(t, -1, n)
}

func TestOpen(t *testing.T) {
	fakeUIO(t, 2, "mtk-led", os.Getpagesize())

	d, err := Open("mtk-led")
	require.Nil(t, err)
	defer d.Close()
	assert.Equal(t, "mtk-led", d.Name)
	assert.Equal(t, 2, d.Num)
	assert.Equal(t, path.Join(devRoot, "uio2"), d.DevPath())
	irq, err := d.IRQ()
	assert.Nil(t, err)
	assert.Equal(t, 2, irq)

	m, err := d.Map(0)
	require.Nil(t, err)
	assert.Equal(t, Map{Name: "regs", Addr: 0x11000000, Size: 0x1000}, m)

	_, err = d.Map(1)
	assert.NotNil(t, err)

	_, err = OpenNum(7)
	assert.NotNil(t, err)
}

func TestMapRegisters(t *testing.T) {
	fakeUIO(t, 0, "mtk-led", os.Getpagesize())
	d, err := OpenNum(0)
	require.Nil(t, err)

	m, err := d.MapRegisters()
	require.Nil(t, err)
	w := ledctl.NewWindow(m)
	w.Write(ledctl.RegControl, ledctl.EnableBit)
	assert.Equal(t, ledctl.EnableBit, w.Read(ledctl.RegControl))
	assert.Nil(t, m.Close())
}

func TestRequestIRQWrongLine(t *testing.T) {
	fakeUIO(t, 0, "mtk-led", os.Getpagesize())
	d, err := OpenNum(0)
	require.Nil(t, err)

	h, err := d.RequestIRQ(4, "led", func() {})
	assert.NotNil(t, err)
	assert.Nil(t, h)
}

func TestIRQLoop(t *testing.T) {
	var p [2]int
	require.Nil(t, unix.Pipe2(p[:], unix.O_CLOEXEC))
	defer unix.Close(p[1])

	fired := make(chan struct{}, 4)
	l, err := newIRQLoop(p[0], func() { fired <- struct{}{} }, false)
	require.Nil(t, err)

	for i := 0; i < 3; i++ {
		_, err = unix.Write(p[1], []byte{1, 0, 0, 0})
		require.Nil(t, err)
		select {
		case <-fired:
		case <-time.After(time.Second):
			t.Fatal("interrupt not delivered")
		}
	}
	assert.False(t, l.closed())
	assert.Nil(t, l.Close())
	assert.True(t, l.closed())
	assert.NotNil(t, l.Close())
}
