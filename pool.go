// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

// Package waitpool implements a user-space readiness multiplexer: a pool
// that registers file descriptors with a kernel event queue (kqueue, epoll,
// or a portable poll loop) and turns their readiness into suspend/resume
// points for cooperative callers.
package waitpool

import (
	"context"
	"sync"

	"github.com/waitpool/waitpool/internal/poller"
	"github.com/waitpool/waitpool/log"
	"github.com/waitpool/waitpool/metrics"
)

// Pool owns one backend and the waiting table of suspended callers. The
// zero value is not usable; construct with New.
type Pool struct {
	opts options

	state   poolState
	backend poller.Backend

	mu      sync.Mutex
	waiting *waitingTable
	nextID  tokenID
}

// New constructs a Pool in the Uninitialized state. Call Prepare before Run.
func New(opts ...Option) *Pool {
	o := defaultOptions()
	for _, opt := range opts {
		opt.f(&o)
	}
	return &Pool{opts: o, waiting: newWaitingTable()}
}

// Prepare opens the backend and transitions Uninitialized/Stopped -> Ready.
// Re-preparing a stopped pool is permitted, letting a Pool be reused across
// Run calls.
func (p *Pool) Prepare() error {
	from := p.state.load()
	if from != Uninitialized && from != Stopped {
		return errInvalidState("prepare", from)
	}
	backend, err := poller.New(poller.Config{
		Kind:         p.opts.kind,
		MaxEvents:    p.opts.maxEvents,
		PollInterval: p.opts.pollInterval,
		LoopInterval: p.opts.loopInterval,
	})
	if err != nil {
		return newFailed("prepare", err)
	}
	if err := backend.Open(); err != nil {
		return newFailed("prepare", err)
	}
	p.backend = backend
	p.state.store(Ready)
	return nil
}

// Run drives the backend until it stops or fails, resuming suspended
// callers as readiness notifications arrive. It must be called at most
// once per Prepare. Run blocks until the backend reports ErrStopped or a
// fatal error; on return every outstanding token has been resumed.
func (p *Pool) Run() error {
	if !p.state.compareAndSwap(Ready, Running) {
		return errInvalidState("run", p.state.load())
	}
	var runErr error
	for {
		notifications, err := p.backend.GetNotifications()
		if err != nil {
			if err != poller.ErrStopped {
				runErr = newFailed("run", err)
			}
			break
		}
		p.dispatch(notifications)
	}
	p.state.store(Stopping)
	p.drainAll(ErrCancelled)
	p.state.store(Stopped)
	return runErr
}

// Stop asks a running pool to exit. It is safe to call from any goroutine
// and at most once per Run needs to take effect; extra calls are no-ops
// once the backend has already stopped.
func (p *Pool) Stop() error {
	if p.backend == nil {
		return nil
	}
	return p.backend.Stop()
}

// State reports the pool's current lifecycle state.
func (p *Pool) State() State { return p.state.load() }

// dispatch resumes every token whose wait intersects an arrived
// notification, one fd at a time, each under the same critical section so
// that concurrently-appended tokens never race with an in-flight resume.
func (p *Pool) dispatch(notifications []poller.Notification) {
	for _, n := range notifications {
		resumeErr := error(nil)
		if n.Err != nil {
			resumeErr = ErrDisconnected
		} else if n.EndOfFile {
			resumeErr = ErrDisconnected
		}
		p.mu.Lock()
		removed, resolved := p.waiting.resumeReady(n.FD, n.Events, resumeErr)
		p.mu.Unlock()
		if !removed.Empty() {
			if err := p.backend.RemoveEvents(n.FD, removed); err != nil {
				log.Warnf("waitpool: remove events for fd %d: %v", n.FD, err)
			}
		}
		metrics.Add(metrics.PoolResumes, uint64(resolved))
	}
}

// drainAll resolves every outstanding token with err. Called once the
// driver loop has exited, per the pool's termination contract.
func (p *Pool) drainAll(err error) {
	p.mu.Lock()
	p.waiting.drainAll(err)
	p.mu.Unlock()
}

// Suspend parks the calling goroutine until fd is ready for at least one of
// events, the pool stops, or ctx is cancelled. Only EventRead and
// EventWrite (or their union) are meaningful.
func (p *Pool) Suspend(ctx context.Context, fd int, events poller.EventSet) error {
	state := p.state.load()
	if state != Ready && state != Running {
		return ErrClosed
	}

	p.mu.Lock()
	if s := p.state.load(); s != Ready && s != Running {
		p.mu.Unlock()
		return ErrClosed
	}
	p.nextID++
	tok := newSuspensionToken(p.nextID, fd, events)
	delta := p.waiting.append(tok)
	p.mu.Unlock()

	if !delta.Empty() {
		if err := p.backend.AddEvents(fd, delta); err != nil {
			p.mu.Lock()
			p.waiting.remove(tok)
			p.mu.Unlock()
			return newFailed("suspend", err)
		}
	}
	metrics.Add(metrics.PoolSuspends, 1)

	select {
	case err := <-tok.done:
		return err
	case <-ctx.Done():
		p.cancel(tok)
		return ctx.Err()
	}
}

// cancel is invoked when a caller's context is cancelled while waiting on
// tok's channel (see Suspend). It removes the token from the table and
// shrinks the backend registration if that empties the fd's interest.
func (p *Pool) cancel(tok *suspensionToken) {
	p.mu.Lock()
	removed := p.waiting.remove(tok)
	p.mu.Unlock()
	if !removed.Empty() && p.backend != nil {
		if err := p.backend.RemoveEvents(tok.fd, removed); err != nil {
			log.Warnf("waitpool: remove events for fd %d: %v", tok.fd, err)
		}
	}
	metrics.Add(metrics.PoolCancellations, 1)
}
