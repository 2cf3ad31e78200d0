// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

package waitpool

import "go.uber.org/atomic"

// State is one point in the pool's lifecycle.
type State int32

// Pool states. prepare: Uninitialized -> Ready. run: Ready -> Running, then
// Running -> Stopping -> Stopped whether the backend was stopped or failed;
// Stopping lasts while the remaining tokens are drained. Re-Prepare after
// Stopped is permitted.
const (
	Uninitialized State = iota
	Ready
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// poolState is an atomic box around State, read from any goroutine and
// written only by Prepare/Run.
type poolState struct {
	v atomic.Int32
}

func (s *poolState) load() State { return State(s.v.Load()) }

func (s *poolState) store(next State) { s.v.Store(int32(next)) }

// compareAndSwap is used for the ready -> running transition
// that must not race against a concurrent second Run call.
func (s *poolState) compareAndSwap(from, to State) bool {
	return s.v.CompareAndSwap(int32(from), int32(to))
}
