// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package uio provides the resources of a device exposed to userspace by the
// Linux UIO framework.
//
// The register window is the first memory map of the UIO device, and the
// interrupt is delivered by reading the UIO device node.
//
// Accessing the UIO device typically requires root permissions.
package uio

import (
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/warthog618/go-ledctl"
	"github.com/warthog618/go-ledctl/mmio"
)

var (
	// sysfsRoot is the UIO class directory in sysfs.
	sysfsRoot = "/sys/class/uio"

	// devRoot is the directory containing the UIO device nodes.
	devRoot = "/dev"
)

// Map describes one of the memory maps of a UIO device.
type Map struct {
	// The name of the map, if any.
	Name string

	// The physical address of the map.
	Addr uint64

	// The size of the map in bytes.
	Size int

	// The offset of the registers within the first page of the map.
	Offset int
}

// Device is an opened UIO device.
type Device struct {
	// The name of the device, as reported by the UIO driver.
	Name string

	// The UIO device number, e.g. 0 for uio0.
	Num int

	// The path to the device node in /dev.
	devPath string

	// The path to the device in /sys/class/uio.
	sysfsPath string

	irq *irqLoop
}

// Find returns the number of the UIO device with the given name.
func Find(name string) (int, error) {
	entries, err := os.ReadDir(sysfsRoot)
	if err != nil {
		return -1, errors.Wrap(err, "uio not available")
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "uio") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(e.Name(), "uio"))
		if err != nil {
			continue
		}
		if v, err := readAttr(path.Join(sysfsRoot, e.Name()), "name"); err == nil && v == name {
			return n, nil
		}
	}
	return -1, errors.Errorf("can't find uio device '%s'", name)
}

// Open opens the UIO device with the given name.
func Open(name string) (*Device, error) {
	n, err := Find(name)
	if err != nil {
		return nil, err
	}
	return OpenNum(n)
}

// OpenNum opens the UIO device with the given number.
func OpenNum(n int) (*Device, error) {
	uio := fmt.Sprintf("uio%d", n)
	d := &Device{
		Num:       n,
		devPath:   path.Join(devRoot, uio),
		sysfsPath: path.Join(sysfsRoot, uio),
	}
	name, err := readAttr(d.sysfsPath, "name")
	if err != nil {
		return nil, errors.Wrapf(err, "uio device %d", n)
	}
	d.Name = name
	if _, err := os.Stat(d.devPath); err != nil {
		return nil, err
	}
	return d, nil
}

// DevPath returns the path to the UIO device node.
//
// e.g. "/dev/uio0"
func (d *Device) DevPath() string {
	return d.devPath
}

// Map returns the details of the memory map with the given index.
func (d *Device) Map(index int) (Map, error) {
	p := path.Join(d.sysfsPath, "maps", fmt.Sprintf("map%d", index))
	m := Map{}
	var err error
	if m.Name, err = readAttr(p, "name"); err != nil && !os.IsNotExist(errors.Cause(err)) {
		return m, err
	}
	if m.Addr, err = readUintAttr(p, "addr"); err != nil {
		return m, err
	}
	size, err := readUintAttr(p, "size")
	if err != nil {
		return m, err
	}
	m.Size = int(size)
	if offset, err := readUintAttr(p, "offset"); err == nil {
		m.Offset = int(offset)
	}
	return m, nil
}

type window struct {
	*mmio.Region
	offset uint32
}

func (w window) ReadUint32(offset uint32) uint32 {
	return w.Region.ReadUint32(w.offset + offset)
}

func (w window) WriteUint32(offset uint32, value uint32) {
	w.Region.WriteUint32(w.offset+offset, value)
}

// MapRegisters maps the device register window from the first memory map.
func (d *Device) MapRegisters() (ledctl.RegisterMap, error) {
	m, err := d.Map(0)
	if err != nil {
		return nil, err
	}
	if m.Size-m.Offset < ledctl.WindowSize {
		return nil, errors.Errorf("map0 size %#x too small for register window", m.Size)
	}
	// UIO selects map N using an mmap offset of N pages.
	r, err := mmio.Map(d.devPath, 0, m.Size)
	if err != nil {
		return nil, err
	}
	if m.Offset == 0 {
		return r, nil
	}
	return window{r, uint32(m.Offset)}, nil
}

// IRQ returns the interrupt line of the device, which is the UIO device
// number.
func (d *Device) IRQ() (int, error) {
	return d.Num, nil
}

// RequestIRQ starts delivering the device interrupt to the handler.
//
// The line must be the one returned by IRQ. Only one handler may be installed
// at a time.
func (d *Device) RequestIRQ(line int, name string, handler func()) (io.Closer, error) {
	if line != d.Num {
		return nil, errors.Errorf("uio%d has no irq %d", d.Num, line)
	}
	if d.irq != nil && !d.irq.closed() {
		return nil, errors.Errorf("irq %d busy", line)
	}
	l, err := openIRQ(d.devPath, handler)
	if err != nil {
		return nil, err
	}
	d.irq = l
	return l, nil
}

// Close releases the interrupt, if it is still installed.
func (d *Device) Close() error {
	if d.irq != nil && !d.irq.closed() {
		return d.irq.Close()
	}
	return nil
}

func readAttr(p, attr string) (string, error) {
	data, err := os.ReadFile(path.Join(p, attr))
	if err != nil {
		return "", errors.WithStack(err)
	}
	return strings.TrimSpace(string(data)), nil
}

func readUintAttr(p, attr string) (uint64, error) {
	v, err := readAttr(p, attr)
	if err != nil {
		return 0, err
	}
	// sysfs reports addresses and sizes in hex, e.g. 0x00001000
	n, err := strconv.ParseUint(v, 0, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "unexpected %s value: %s", attr, v)
	}
	return n, nil
}
