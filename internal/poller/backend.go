// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

// Package poller implements the event queue backend: a variant over
// {kqueue, epoll, poll} that turns kernel readiness notifications into a
// uniform stream of Notification values. It knows nothing about suspension
// tokens or HTTP; waitpool.Pool is the layer that turns notifications into
// resumed callers.
package poller

import (
	"errors"
	"fmt"
	"time"
)

// ErrStopped is returned by GetNotifications after Stop has been called.
var ErrStopped = errors.New("poller: backend stopped")

// EventSet is a small set over {Read, Write}.
type EventSet uint8

// Event bits. Connection interest is EventRead|EventWrite.
const (
	EventRead EventSet = 1 << iota
	EventWrite
)

// String implements fmt.Stringer.
func (e EventSet) String() string {
	switch e {
	case 0:
		return "none"
	case EventRead:
		return "read"
	case EventWrite:
		return "write"
	case EventRead | EventWrite:
		return "read|write"
	default:
		return fmt.Sprintf("EventSet(%d)", uint8(e))
	}
}

// Union returns e|other.
func (e EventSet) Union(other EventSet) EventSet { return e | other }

// Intersect returns e&other.
func (e EventSet) Intersect(other EventSet) EventSet { return e & other }

// Without returns e with other's bits cleared.
func (e EventSet) Without(other EventSet) EventSet { return e &^ other }

// Has reports whether e contains every bit of other.
func (e EventSet) Has(other EventSet) bool { return e&other == other }

// Empty reports whether e has no bits set.
func (e EventSet) Empty() bool { return e == 0 }

// Notification is emitted by a Backend for one registered fd.
type Notification struct {
	FD        int
	Events    EventSet
	EndOfFile bool
	Err       error
}

// Kind selects a Backend implementation.
type Kind int

// Backend kinds. Auto picks kqueue on Darwin/BSD, epoll on Linux, poll
// elsewhere, matching the source's per-platform default.
const (
	Auto Kind = iota
	Poll
	EventQueue
)

// Backend is the event queue backend contract. GetNotifications is called by
// a single goroutine, the pool's driver task. AddEvents and RemoveEvents are
// also called from suspending callers' goroutines; each implementation
// guards its registration map with its own mutex. Stop is safe to call from
// any goroutine.
type Backend interface {
	// Open prepares the backend for use.
	Open() error
	// Close releases backend resources. Only valid after Stop or before Open.
	Close() error
	// Stop unblocks a concurrent GetNotifications call, causing it to return
	// ErrStopped. Safe to call from any goroutine, any number of times.
	Stop() error
	// AddEvents registers additional interest for fd. events must be
	// non-empty and disjoint from the fd's current registration.
	AddEvents(fd int, events EventSet) error
	// RemoveEvents de-registers interest for fd. events must be a subset of
	// the fd's current registration. If the resulting registration is
	// empty, the fd is fully removed from the backend.
	RemoveEvents(fd int, events EventSet) error
	// GetNotifications blocks until at least one readiness notification is
	// available, the backend is stopped, or an error occurs.
	GetNotifications() ([]Notification, error)
}

// Config bundles the tunables needed to construct a Backend. PollInterval
// and LoopInterval only affect the Poll backend.
type Config struct {
	Kind         Kind
	MaxEvents    int
	PollInterval time.Duration
	LoopInterval time.Duration
}

// New creates a Backend of the requested kind with the given tunables.
func New(cfg Config) (Backend, error) {
	maxEvents := cfg.MaxEvents
	if maxEvents <= 0 {
		maxEvents = defaultMaxEvents
	}
	switch cfg.Kind {
	case Poll:
		return newPollBackend(maxEvents, cfg.PollInterval, cfg.LoopInterval), nil
	case EventQueue:
		return newPlatformBackend(maxEvents)
	default:
		return newPlatformBackend(maxEvents)
	}
}

const defaultMaxEvents = 20
