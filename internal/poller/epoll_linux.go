// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

//go:build linux
// +build linux

package poller

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/waitpool/waitpool/log"
	"github.com/waitpool/waitpool/metrics"
)

const (
	rflags = unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLHUP | unix.EPOLLERR | unix.EPOLLPRI | unix.EPOLLET
	wflags = unix.EPOLLOUT | unix.EPOLLHUP | unix.EPOLLERR | unix.EPOLLET
)

func newPlatformBackend(maxEvents int) (Backend, error) {
	return newEpoll(maxEvents)
}

// epoll is the Linux event queue backend. It is edge-triggered: the kernel
// delivers a readiness notification exactly once per transition, and Stop is
// observed through a dedicated eventfd canary rather than a signal.
type epoll struct {
	epfd  int
	stopfd int
	events []unix.EpollEvent
	buf    [8]byte

	mu  sync.Mutex
	reg map[int]EventSet // fd -> registered interest, for ADD vs MOD
}

func newEpoll(maxEvents int) (*epoll, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	stopfd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, os.NewSyscallError("eventfd", err)
	}
	ep := &epoll{
		epfd:   epfd,
		stopfd: stopfd,
		events: make([]unix.EpollEvent, maxEvents),
		reg:    make(map[int]EventSet),
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, stopfd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(stopfd),
	}); err != nil {
		unix.Close(epfd)
		unix.Close(stopfd)
		return nil, os.NewSyscallError("epoll_ctl add stopfd", err)
	}
	return ep, nil
}

func (ep *epoll) Open() error { return nil }

func (ep *epoll) Close() error {
	if err := unix.Close(ep.stopfd); err != nil {
		return os.NewSyscallError("close", err)
	}
	if err := unix.Close(ep.epfd); err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}

// Stop signals the canary eventfd, which wakes GetNotifications.
func (ep *epoll) Stop() error {
	one := [8]byte{0, 0, 0, 0, 0, 0, 0, 1}
	for {
		_, err := unix.Write(ep.stopfd, one[:])
		if err == nil || err == unix.EAGAIN {
			// EAGAIN means the counter already holds a pending wakeup.
			return nil
		}
		if err != unix.EINTR {
			return os.NewSyscallError("write", err)
		}
	}
}

func (ep *epoll) AddEvents(fd int, events EventSet) error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	cur := ep.reg[fd]
	next := cur.Union(events)
	op := unix.EPOLL_CTL_MOD
	if cur.Empty() {
		op = unix.EPOLL_CTL_ADD
	}
	evt := &unix.EpollEvent{Fd: int32(fd), Events: epollFlagsFor(next)}
	if err := unix.EpollCtl(ep.epfd, op, fd, evt); err != nil {
		return errors.Wrap(os.NewSyscallError("epoll_ctl", err), "poller: add events")
	}
	ep.reg[fd] = next
	return nil
}

func (ep *epoll) RemoveEvents(fd int, events EventSet) error {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	cur, ok := ep.reg[fd]
	if !ok {
		return nil
	}
	next := cur.Without(events)
	if next.Empty() {
		delete(ep.reg, fd)
		if err := unix.EpollCtl(ep.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
			return errors.Wrap(os.NewSyscallError("epoll_ctl", err), "poller: remove events")
		}
		return nil
	}
	evt := &unix.EpollEvent{Fd: int32(fd), Events: epollFlagsFor(next)}
	if err := unix.EpollCtl(ep.epfd, unix.EPOLL_CTL_MOD, fd, evt); err != nil {
		return errors.Wrap(os.NewSyscallError("epoll_ctl", err), "poller: remove events")
	}
	ep.reg[fd] = next
	return nil
}

func epollFlagsFor(events EventSet) uint32 {
	var flags uint32
	if events.Has(EventRead) {
		flags |= rflags
	}
	if events.Has(EventWrite) {
		flags |= wflags
	}
	return flags
}

// GetNotifications blocks in epoll_wait and translates the batch into
// Notification values. The canary fd is filtered out and, if signalled,
// reported as ErrStopped.
func (ep *epoll) GetNotifications() ([]Notification, error) {
	for {
		n, err := unix.EpollWait(ep.epfd, ep.events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, os.NewSyscallError("epoll_wait", err)
		}
		metrics.Add(metrics.BackendWaitCalls, 1)
		metrics.Add(metrics.BackendEvents, uint64(n))
		var stopped bool
		out := make([]Notification, 0, n)
		for i := 0; i < n; i++ {
			raw := ep.events[i]
			fd := int(raw.Fd)
			if fd == ep.stopfd {
				unix.Read(ep.stopfd, ep.buf[:])
				stopped = true
				continue
			}
			notif := Notification{FD: fd}
			if raw.Events&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
				notif.EndOfFile = true
			}
			if raw.Events&unix.EPOLLERR != 0 {
				notif.Err = errors.New("epoll: EPOLLERR")
			}
			if raw.Events&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
				notif.Events |= EventRead
			}
			if raw.Events&unix.EPOLLOUT != 0 {
				notif.Events |= EventWrite
			}
			if notif.Events.Empty() && notif.Err == nil && !notif.EndOfFile {
				// Some edge-triggered paths can report an empty set; fall
				// back to the fd's full registration so waiters still wake.
				ep.mu.Lock()
				notif.Events = ep.reg[fd]
				ep.mu.Unlock()
			}
			out = append(out, notif)
		}
		if stopped {
			log.Debug("poller: epoll backend stopped")
			return nil, ErrStopped
		}
		if len(out) == 0 {
			continue
		}
		return out, nil
	}
}
