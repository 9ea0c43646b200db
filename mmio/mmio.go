// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package mmio provides access to memory-mapped device registers.
//
// A Region maps a range of a device file, such as /dev/uio0 or a PCI resource
// file in sysfs, and provides 32 bit register accesses that are neither cached
// nor reordered relative to each other.
package mmio

import (
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Region is a memory-mapped register range.
type Region struct {
	mem []byte

	// true if mem was mapped by Map and must be unmapped on Close.
	mapped bool
}

// Map maps size bytes of the file at path, starting at offset.
//
// The offset must be a multiple of the page size.
func Map(path string, offset int64, size int) (*Region, error) {
	if size <= 0 {
		return nil, errors.Errorf("invalid size %d", size)
	}
	if offset%int64(os.Getpagesize()) != 0 {
		return nil, errors.Errorf("offset %#x is not page aligned", offset)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	// the mapping outlives the file descriptor
	defer f.Close()
	mem, err := unix.Mmap(int(f.Fd()), offset, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap %s", path)
	}
	return &Region{mem: mem, mapped: true}, nil
}

// FromBytes returns a Region backed by the given memory.
//
// The memory must be 4 byte aligned. Closing the Region does not release the
// memory.
func FromBytes(mem []byte) *Region {
	return &Region{mem: mem[:len(mem):len(mem)]}
}

// Size returns the size of the region in bytes.
func (r *Region) Size() int {
	return len(r.mem)
}

func (r *Region) addr(offset uint32) *uint32 {
	if r.mem == nil {
		panic("mmio: access to closed region")
	}
	if offset%4 != 0 || int(offset)+4 > len(r.mem) {
		panic(errors.Errorf("mmio: offset %#x outside region of size %#x", offset, len(r.mem)))
	}
	return (*uint32)(unsafe.Pointer(&r.mem[offset]))
}

// ReadUint32 reads the 32 bit register at the offset.
func (r *Region) ReadUint32(offset uint32) uint32 {
	return atomic.LoadUint32(r.addr(offset))
}

// WriteUint32 writes the 32 bit register at the offset.
func (r *Region) WriteUint32(offset uint32, value uint32) {
	atomic.StoreUint32(r.addr(offset), value)
}

// Close unmaps the region.
//
// Further accesses to the region panic.
func (r *Region) Close() error {
	if r.mem == nil {
		return errors.New("region already closed")
	}
	mem := r.mem
	r.mem = nil
	if r.mapped {
		return unix.Munmap(mem)
	}
	return nil
}
