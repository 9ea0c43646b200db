// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package uio

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// irqLoop delivers the interrupts signalled on a UIO device node to a handler.
type irqLoop struct {
	fd      int
	stopfd  int
	handler func()

	// re-enable the interrupt after each event, as required by
	// uio_pdrv_genirq.
	reenable bool

	mu   sync.Mutex
	done chan struct{}
	shut bool
}

func openIRQ(devPath string, handler func()) (*irqLoop, error) {
	fd, err := unix.Open(devPath, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", devPath)
	}
	l, err := newIRQLoop(fd, handler, true)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return l, nil
}

func newIRQLoop(fd int, handler func(), reenable bool) (*irqLoop, error) {
	stopfd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, errors.Wrap(err, "eventfd")
	}
	l := &irqLoop{
		fd:       fd,
		stopfd:   stopfd,
		handler:  handler,
		reenable: reenable,
		done:     make(chan struct{}),
	}
	if err := l.enable(); err != nil {
		unix.Close(stopfd)
		return nil, err
	}
	go l.run()
	return l, nil
}

func (l *irqLoop) enable() error {
	if !l.reenable {
		return nil
	}
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], 1)
	if _, err := unix.Write(l.fd, buf[:]); err != nil {
		return errors.Wrap(err, "enable irq")
	}
	return nil
}

func (l *irqLoop) run() {
	defer close(l.done)
	fds := []unix.PollFd{
		{Fd: int32(l.fd), Events: unix.POLLIN},
		{Fd: int32(l.stopfd), Events: unix.POLLIN},
	}
	var buf [4]byte
	for {
		_, err := unix.Poll(fds, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if fds[1].Revents != 0 {
			return
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return
		}
		if fds[0].Revents&unix.POLLIN == 0 {
			continue
		}
		// the event count is not required, only that an interrupt occurred.
		n, err := unix.Read(l.fd, buf[:])
		if err != nil || n != len(buf) {
			return
		}
		l.handler()
		if l.enable() != nil {
			return
		}
	}
}

func (l *irqLoop) closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shut
}

// Close stops delivering interrupts and waits for any handler in progress to
// return.
func (l *irqLoop) Close() error {
	l.mu.Lock()
	if l.shut {
		l.mu.Unlock()
		return errors.New("irq already released")
	}
	l.shut = true
	l.mu.Unlock()
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	unix.Write(l.stopfd, buf[:])
	<-l.done
	unix.Close(l.stopfd)
	return unix.Close(l.fd)
}
