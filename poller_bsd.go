//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package iocore

import (
	"sync"

	"golang.org/x/sys/unix"
)

// kqueuePoller implements poller on BSD-family kernels (including Darwin)
// using kqueue, with a classic self-pipe as the notify primitive: kqueue
// has no portable eventfd analogue across every *BSD the unix package
// supports, so a pipe plus EVFILT_READ stands in for it here instead of
// EVFILT_USER.
type kqueuePoller struct {
	kq           int
	notifyR      int
	notifyW      int
	mu           sync.Mutex
	armedRead    map[int]bool
	armedWrite   map[int]bool
	closed       bool
}

func newPoller() (poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, ErrPollerInit
	}
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		unix.Close(kq)
		return nil, ErrNotifyInit
	}
	unix.SetNonblock(fds[0], true)
	unix.SetNonblock(fds[1], true)
	p := &kqueuePoller{
		kq:         kq,
		notifyR:    fds[0],
		notifyW:    fds[1],
		armedRead:  make(map[int]bool),
		armedWrite: make(map[int]bool),
	}
	ev := unix.Kevent_t{}
	unix.SetKevent(&ev, p.notifyR, unix.EVFILT_READ, unix.EV_ADD|unix.EV_ENABLE)
	if _, err := unix.Kevent(kq, []unix.Kevent_t{ev}, nil, nil); err != nil {
		unix.Close(p.notifyR)
		unix.Close(p.notifyW)
		unix.Close(kq)
		return nil, ErrPollerInit
	}
	return p, nil
}

func (p *kqueuePoller) changeFilter(fd int, filter int16, enable bool) unix.Kevent_t {
	ev := unix.Kevent_t{}
	flags := uint16(unix.EV_ADD | unix.EV_ENABLE)
	if !enable {
		flags = unix.EV_DELETE
	}
	unix.SetKevent(&ev, fd, int(filter), int(flags))
	return ev
}

func (p *kqueuePoller) applyMask(fd int, mask EventMask) error {
	wantRead := mask&EventReadable != 0
	wantWrite := mask&EventWritable != 0
	var changes []unix.Kevent_t
	if wantRead != p.armedRead[fd] {
		changes = append(changes, p.changeFilter(fd, unix.EVFILT_READ, wantRead))
		p.armedRead[fd] = wantRead
	}
	if wantWrite != p.armedWrite[fd] {
		changes = append(changes, p.changeFilter(fd, unix.EVFILT_WRITE, wantWrite))
		p.armedWrite[fd] = wantWrite
	}
	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *kqueuePoller) add(fd int, mask EventMask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrShuttingDown
	}
	return p.applyMask(fd, mask)
}

func (p *kqueuePoller) modify(fd int, mask EventMask) error {
	return p.add(fd, mask)
}

func (p *kqueuePoller) remove(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	delete(p.armedRead, fd)
	delete(p.armedWrite, fd)
	var changes []unix.Kevent_t
	changes = append(changes, p.changeFilter(fd, unix.EVFILT_READ, false))
	changes = append(changes, p.changeFilter(fd, unix.EVFILT_WRITE, false))
	_, _ = unix.Kevent(p.kq, changes, nil, nil)
	return nil
}

func (p *kqueuePoller) wait(timeoutMS int64) ([]pollEvent, error) {
	var ts *unix.Timespec
	if timeoutMS >= 0 {
		t := unix.NsecToTimespec(timeoutMS * 1e6)
		ts = &t
	}
	raw := make([]unix.Kevent_t, 128)
again:
	n, err := unix.Kevent(p.kq, nil, raw, ts)
	if err == unix.EINTR {
		goto again
	}
	if err != nil {
		return nil, err
	}
	byFd := make(map[int]EventMask)
	for i := 0; i < n; i++ {
		fd := int(raw[i].Ident)
		if fd == p.notifyR {
			p.drainNotify()
			continue
		}
		switch raw[i].Filter {
		case unix.EVFILT_READ:
			byFd[fd] |= EventReadable
		case unix.EVFILT_WRITE:
			byFd[fd] |= EventWritable
		}
		if raw[i].Flags&unix.EV_ERROR != 0 {
			byFd[fd] |= EventError
		}
	}
	events := make([]pollEvent, 0, len(byFd))
	for fd, mask := range byFd {
		events = append(events, pollEvent{fd: fd, mask: mask})
	}
	return events, nil
}

func (p *kqueuePoller) drainNotify() {
	var buf [64]byte
	for {
		_, err := unix.Read(p.notifyR, buf[:])
		if err != nil {
			return
		}
	}
}

func (p *kqueuePoller) wake() error {
	_, err := unix.Write(p.notifyW, []byte{1})
	return err
}

func (p *kqueuePoller) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	unix.Close(p.notifyR)
	unix.Close(p.notifyW)
	return unix.Close(p.kq)
}
