//go:build linux

package iocore

import (
	"sync"

	"golang.org/x/sys/unix"
)

// epollPoller implements poller on Linux using epoll, with an eventfd as
// the self-notification primitive: a single write unblocks a concurrent
// wait() even when no watched fd is ready.
type epollPoller struct {
	epfd     int
	eventfd  int
	mu       sync.Mutex // serializes epoll_ctl calls against close()
	closed   bool
}

func newPoller() (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, ErrPollerInit
	}
	efd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, ErrNotifyInit
	}
	p := &epollPoller{epfd: epfd, eventfd: efd}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, efd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(efd),
	}); err != nil {
		unix.Close(efd)
		unix.Close(epfd)
		return nil, ErrPollerInit
	}
	return p, nil
}

func toEpollEvents(mask EventMask) uint32 {
	var e uint32
	if mask&EventReadable != 0 {
		e |= unix.EPOLLIN
	}
	if mask&EventWritable != 0 {
		e |= unix.EPOLLOUT
	}
	// errors/hangups are always reported by epoll regardless of the
	// requested mask; EventError is never explicitly armed.
	return e
}

func fromEpollEvents(e uint32) EventMask {
	var m EventMask
	if e&unix.EPOLLIN != 0 {
		m |= EventReadable
	}
	if e&unix.EPOLLOUT != 0 {
		m |= EventWritable
	}
	if e&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		m |= EventError
	}
	return m
}

func (p *epollPoller) add(fd int, mask EventMask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrShuttingDown
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: toEpollEvents(mask),
		Fd:     int32(fd),
	})
}

func (p *epollPoller) modify(fd int, mask EventMask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrShuttingDown
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: toEpollEvents(mask),
		Fd:     int32(fd),
	})
}

func (p *epollPoller) remove(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) wait(timeoutMS int64) ([]pollEvent, error) {
	if timeoutMS > int64(^uint32(0)>>1) {
		timeoutMS = int64(^uint32(0) >> 1)
	}
	var raw [128]unix.EpollEvent
again:
	n, err := unix.EpollWait(p.epfd, raw[:], int(timeoutMS))
	if err == unix.EINTR {
		goto again
	}
	if err != nil {
		return nil, err
	}
	events := make([]pollEvent, 0, n)
	for i := 0; i < n; i++ {
		fd := int(raw[i].Fd)
		if fd == p.eventfd {
			p.drainNotify()
			continue
		}
		events = append(events, pollEvent{fd: fd, mask: fromEpollEvents(raw[i].Events)})
	}
	return events, nil
}

func (p *epollPoller) drainNotify() {
	var buf [8]byte
	for {
		_, err := unix.Read(p.eventfd, buf[:])
		if err != nil {
			return
		}
	}
}

func (p *epollPoller) wake() error {
	one := [8]byte{0, 0, 0, 0, 0, 0, 0, 1}
	_, err := unix.Write(p.eventfd, one[:])
	return err
}

func (p *epollPoller) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	unix.Close(p.eventfd)
	return unix.Close(p.epfd)
}
