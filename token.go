// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

package waitpool

import "github.com/waitpool/waitpool/internal/poller"

// tokenID is a unique identifier for one suspended caller. IDs are assigned
// by the pool and are only ever compared for equality, never ordered.
type tokenID uint64

// suspensionToken is a single waiter parked on a (fd, events) pair. done is
// a one-shot buffered channel so that the resuming goroutine never blocks
// on a caller that has already been cancelled.
type suspensionToken struct {
	id     tokenID
	fd     int
	events poller.EventSet
	done   chan error
}

func newSuspensionToken(id tokenID, fd int, events poller.EventSet) *suspensionToken {
	return &suspensionToken{id: id, fd: fd, events: events, done: make(chan error, 1)}
}

// resolve completes the token exactly once. Extra calls are no-ops because
// done is buffered with capacity one and nothing ever reads twice.
func (t *suspensionToken) resolve(err error) {
	select {
	case t.done <- err:
	default:
	}
}
