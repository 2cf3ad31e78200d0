// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

package poller

import (
	"os"
	"runtime"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sys/unix"

	"github.com/waitpool/waitpool/log"
	"github.com/waitpool/waitpool/metrics"
)

const (
	defaultPollInterval = 20 * time.Millisecond
	defaultLoopInterval = time.Millisecond
)

// poll is the portable fallback backend built on poll(2). It is used when
// the caller explicitly asks for Poll, and as the last resort on platforms
// with neither epoll nor kqueue. pollInterval bounds how long a single
// unix.Poll call blocks, so Stop is observed promptly without a dedicated
// wakeup fd; loopInterval is the cooperative yield taken between scans when
// no fd is currently registered.
type poll struct {
	maxEvents    int
	pollInterval time.Duration
	loopInterval time.Duration
	stop         atomic.Bool

	mu  sync.Mutex
	reg map[int]EventSet
}

func newPollBackend(maxEvents int, pollInterval, loopInterval time.Duration) Backend {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if loopInterval <= 0 {
		loopInterval = defaultLoopInterval
	}
	return &poll{
		maxEvents:    maxEvents,
		pollInterval: pollInterval,
		loopInterval: loopInterval,
		reg:          make(map[int]EventSet),
	}
}

func (p *poll) Open() error { return nil }

func (p *poll) Close() error { return nil }

// Stop sets a flag observed by the next GetNotifications wakeup, at most
// pollInterval later.
func (p *poll) Stop() error {
	p.stop.Store(true)
	return nil
}

func (p *poll) AddEvents(fd int, events EventSet) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reg[fd] = p.reg[fd].Union(events)
	return nil
}

func (p *poll) RemoveEvents(fd int, events EventSet) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, ok := p.reg[fd]
	if !ok {
		return nil
	}
	next := cur.Without(events)
	if next.Empty() {
		delete(p.reg, fd)
	} else {
		p.reg[fd] = next
	}
	return nil
}

func (p *poll) snapshot() []unix.PollFd {
	p.mu.Lock()
	defer p.mu.Unlock()
	fds := make([]unix.PollFd, 0, len(p.reg))
	for fd, events := range p.reg {
		var flags int16
		if events.Has(EventRead) {
			flags |= unix.POLLIN
		}
		if events.Has(EventWrite) {
			flags |= unix.POLLOUT
		}
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: flags})
	}
	return fds
}

// GetNotifications polls the current registration snapshot in short bursts,
// checking the stop flag between bursts. Unlike epoll/kqueue this backend is
// level-triggered: every still-ready fd is reported on every wakeup.
func (p *poll) GetNotifications() ([]Notification, error) {
	for {
		if p.stop.Load() {
			log.Debug("poller: poll backend stopped")
			return nil, ErrStopped
		}
		fds := p.snapshot()
		if len(fds) == 0 {
			runtime.Gosched()
			time.Sleep(p.loopInterval)
			continue
		}
		n, err := unix.Poll(fds, int(p.pollInterval/time.Millisecond))
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, os.NewSyscallError("poll", err)
		}
		metrics.Add(metrics.BackendWaitCalls, 1)
		if n == 0 {
			metrics.Add(metrics.BackendNoWaitCalls, 1)
			continue
		}
		metrics.Add(metrics.BackendEvents, uint64(n))
		out := make([]Notification, 0, n)
		for _, pfd := range fds {
			if pfd.Revents == 0 {
				continue
			}
			notif := Notification{FD: int(pfd.Fd)}
			if pfd.Revents&unix.POLLHUP != 0 {
				notif.EndOfFile = true
			}
			if pfd.Revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
				notif.Err = errSyscallPollError(pfd.Revents)
			}
			if pfd.Revents&(unix.POLLIN|unix.POLLPRI) != 0 {
				notif.Events |= EventRead
			}
			if pfd.Revents&unix.POLLOUT != 0 {
				notif.Events |= EventWrite
			}
			out = append(out, notif)
		}
		if len(out) == 0 {
			continue
		}
		return out, nil
	}
}

func errSyscallPollError(revents int16) error {
	if revents&unix.POLLNVAL != 0 {
		return os.ErrClosed
	}
	return unix.EIO
}
