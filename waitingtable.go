// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

package waitpool

import "github.com/waitpool/waitpool/internal/poller"

// fdWaiters holds the tokens waiting on each event for one fd. Read and
// Write are tracked separately so a resume on one event does not disturb
// waiters on the other.
type fdWaiters struct {
	read  []*suspensionToken
	write []*suspensionToken
}

func (w *fdWaiters) registered() poller.EventSet {
	var set poller.EventSet
	if len(w.read) > 0 {
		set |= poller.EventRead
	}
	if len(w.write) > 0 {
		set |= poller.EventWrite
	}
	return set
}

func (w *fdWaiters) empty() bool { return len(w.read) == 0 && len(w.write) == 0 }

// waitingTable maps fd -> per-event waiter lists. Not safe for concurrent
// use; callers must hold Pool.mu.
type waitingTable struct {
	byFD map[int]*fdWaiters
}

func newWaitingTable() *waitingTable {
	return &waitingTable{byFD: make(map[int]*fdWaiters)}
}

// isEmpty reports whether no fd has a live waiter left.
func (t *waitingTable) isEmpty() bool {
	for _, w := range t.byFD {
		if !w.empty() {
			return false
		}
	}
	return true
}

// append registers tok under fd for every event in tok.events. It returns
// the delta of events that had zero waiters for fd immediately before this
// call: that delta is exactly what must be added to the backend.
func (t *waitingTable) append(tok *suspensionToken) poller.EventSet {
	w, ok := t.byFD[tok.fd]
	if !ok {
		w = &fdWaiters{}
		t.byFD[tok.fd] = w
	}
	before := w.registered()
	if tok.events.Has(poller.EventRead) {
		w.read = append(w.read, tok)
	}
	if tok.events.Has(poller.EventWrite) {
		w.write = append(w.write, tok)
	}
	after := w.registered()
	return after.Without(before)
}

// resumeReady resolves and removes every token waiting on events that
// intersect the notified set for fd, returning the delta of events that now
// have zero waiters (what must be removed from the backend) and the count of
// tokens resolved.
func (t *waitingTable) resumeReady(fd int, events poller.EventSet, err error) (poller.EventSet, int) {
	w, ok := t.byFD[fd]
	if !ok {
		return 0, 0
	}
	before := w.registered()
	resolved := 0
	if events.Has(poller.EventRead) {
		for _, tok := range w.read {
			tok.resolve(err)
		}
		resolved += len(w.read)
		w.read = nil
	}
	if events.Has(poller.EventWrite) {
		for _, tok := range w.write {
			tok.resolve(err)
		}
		resolved += len(w.write)
		w.write = nil
	}
	after := w.registered()
	if w.empty() {
		delete(t.byFD, fd)
	}
	return before.Without(after), resolved
}

// remove drops a single token (used on cancellation), returning the delta
// of events that now have zero waiters for its fd.
func (t *waitingTable) remove(tok *suspensionToken) poller.EventSet {
	w, ok := t.byFD[tok.fd]
	if !ok {
		return 0
	}
	before := w.registered()
	if tok.events.Has(poller.EventRead) {
		w.read = removeToken(w.read, tok)
	}
	if tok.events.Has(poller.EventWrite) {
		w.write = removeToken(w.write, tok)
	}
	after := w.registered()
	if w.empty() {
		delete(t.byFD, tok.fd)
	}
	return before.Without(after)
}

func removeToken(list []*suspensionToken, tok *suspensionToken) []*suspensionToken {
	for i, t := range list {
		if t == tok {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// drainAll resolves every remaining token across every fd with err and
// clears the table. Used when the pool's driver exits.
func (t *waitingTable) drainAll(err error) {
	for fd, w := range t.byFD {
		for _, tok := range w.read {
			tok.resolve(err)
		}
		for _, tok := range w.write {
			tok.resolve(err)
		}
		delete(t.byFD, fd)
	}
}
