// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

package waitpool

import (
	"time"

	"github.com/waitpool/waitpool/internal/poller"
)

type options struct {
	kind         poller.Kind
	maxEvents    int
	pollInterval time.Duration
	loopInterval time.Duration
}

func defaultOptions() options {
	return options{
		kind:         poller.Auto,
		maxEvents:    20,
		pollInterval: 20 * time.Millisecond,
		loopInterval: time.Millisecond,
	}
}

// Option configures a Pool at construction time.
type Option struct {
	f func(*options)
}

// WithAuto selects kqueue on Darwin/BSD, epoll on Linux, poll elsewhere.
// This is the default.
func WithAuto() Option {
	return Option{func(o *options) { o.kind = poller.Auto }}
}

// WithEventQueue forces the kernel-backed backend (kqueue or epoll).
func WithEventQueue() Option {
	return Option{func(o *options) { o.kind = poller.EventQueue }}
}

// WithPoll forces the portable poll(2) fallback backend.
func WithPoll() Option {
	return Option{func(o *options) { o.kind = poller.Poll }}
}

// WithMaxEvents sets the kernel notification batch size. Default 20.
func WithMaxEvents(n int) Option {
	return Option{func(o *options) { o.maxEvents = n }}
}

// WithPollInterval sets the poll fallback's inner poll(2) wait, the upper
// bound on how quickly Stop is observed by that backend.
func WithPollInterval(d time.Duration) Option {
	return Option{func(o *options) { o.pollInterval = d }}
}

// WithLoopInterval sets the poll fallback's outer cooperative-yield sleep
// when no fd is currently registered.
func WithLoopInterval(d time.Duration) Option {
	return Option{func(o *options) { o.loopInterval = d }}
}
