// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

//go:build freebsd || dragonfly || darwin || netbsd || openbsd
// +build freebsd dragonfly darwin netbsd openbsd

package poller

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/waitpool/waitpool/log"
	"github.com/waitpool/waitpool/metrics"
)

func newPlatformBackend(maxEvents int) (Backend, error) {
	return newKqueue(maxEvents)
}

// kqueue is the Darwin/BSD event queue backend. Stop is implemented with a
// canary EVFILT_USER event rather than a kernel fd, since kqueue has no
// direct equivalent of Linux's eventfd.
type kqueue struct {
	fd     int
	events []unix.Kevent_t

	mu  sync.Mutex
	reg map[int]EventSet
}

const stopIdent = 0

func newKqueue(maxEvents int) (*kqueue, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, os.NewSyscallError("kqueue", err)
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, unix.FD_CLOEXEC); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("fcntl", err)
	}
	if _, err := unix.Kevent(fd, []unix.Kevent_t{{
		Ident:  stopIdent,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}}, nil, nil); err != nil {
		unix.Close(fd)
		return nil, os.NewSyscallError("kevent add stop canary", err)
	}
	return &kqueue{
		fd:     fd,
		events: make([]unix.Kevent_t, maxEvents),
		reg:    make(map[int]EventSet),
	}, nil
}

func (k *kqueue) Open() error { return nil }

func (k *kqueue) Close() error {
	return os.NewSyscallError("close", unix.Close(k.fd))
}

// Stop triggers the EVFILT_USER canary, waking GetNotifications.
func (k *kqueue) Stop() error {
	_, err := unix.Kevent(k.fd, []unix.Kevent_t{{
		Ident:  stopIdent,
		Filter: unix.EVFILT_USER,
		Fflags: unix.NOTE_TRIGGER,
	}}, nil, nil)
	if err != nil && err != unix.EINTR {
		return os.NewSyscallError("kevent", err)
	}
	return nil
}

func (k *kqueue) AddEvents(fd int, events EventSet) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	cur := k.reg[fd]
	delta := events.Without(cur)
	if delta.Empty() {
		return nil
	}
	changes := kqueueChanges(fd, delta, unix.EV_ADD|unix.EV_CLEAR)
	if _, err := unix.Kevent(k.fd, changes, nil, nil); err != nil {
		return errors.Wrap(os.NewSyscallError("kevent", err), "poller: add events")
	}
	k.reg[fd] = cur.Union(events)
	return nil
}

func (k *kqueue) RemoveEvents(fd int, events EventSet) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	cur, ok := k.reg[fd]
	if !ok {
		return nil
	}
	toRemove := events.Intersect(cur)
	if toRemove.Empty() {
		return nil
	}
	changes := kqueueChanges(fd, toRemove, unix.EV_DELETE)
	// Best effort: the fd may already be gone from the kernel if it was
	// closed underneath us; ignore ENOENT/EBADF here.
	if _, err := unix.Kevent(k.fd, changes, nil, nil); err != nil &&
		err != unix.ENOENT && err != unix.EBADF {
		return errors.Wrap(os.NewSyscallError("kevent", err), "poller: remove events")
	}
	next := cur.Without(events)
	if next.Empty() {
		delete(k.reg, fd)
	} else {
		k.reg[fd] = next
	}
	return nil
}

func kqueueChanges(fd int, events EventSet, flags uint16) []unix.Kevent_t {
	var changes []unix.Kevent_t
	if events.Has(EventRead) {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events.Has(EventWrite) {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return changes
}

func (k *kqueue) GetNotifications() ([]Notification, error) {
	for {
		n, err := unix.Kevent(k.fd, nil, k.events, nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, os.NewSyscallError("kevent", err)
		}
		metrics.Add(metrics.BackendWaitCalls, 1)
		metrics.Add(metrics.BackendEvents, uint64(n))
		var stopped bool
		byFD := make(map[int]*Notification, n)
		order := make([]int, 0, n)
		for i := 0; i < n; i++ {
			ev := k.events[i]
			if ev.Filter == unix.EVFILT_USER && int(ev.Ident) == stopIdent {
				stopped = true
				continue
			}
			fd := int(ev.Ident)
			notif, ok := byFD[fd]
			if !ok {
				notif = &Notification{FD: fd}
				byFD[fd] = notif
				order = append(order, fd)
			}
			switch ev.Filter {
			case unix.EVFILT_READ:
				notif.Events |= EventRead
			case unix.EVFILT_WRITE:
				notif.Events |= EventWrite
			}
			if ev.Flags&unix.EV_EOF != 0 {
				notif.EndOfFile = true
			}
			if ev.Flags&unix.EV_ERROR != 0 {
				notif.Err = errors.New("kqueue: EV_ERROR")
			}
		}
		if stopped {
			log.Debug("poller: kqueue backend stopped")
			return nil, ErrStopped
		}
		if len(order) == 0 {
			continue
		}
		out := make([]Notification, 0, len(order))
		for _, fd := range order {
			out = append(out, *byFD[fd])
		}
		return out, nil
	}
}
