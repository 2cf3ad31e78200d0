// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

package httpserver

import (
	"time"

	"github.com/waitpool/waitpool"
)

type serverOptions struct {
	poolOpts    []waitpool.Option
	limits      Limits
	serverName  string
	stopTimeout time.Duration
}

func defaultServerOptions() serverOptions {
	return serverOptions{
		limits:      DefaultLimits,
		serverName:  "waitpool",
		stopTimeout: 5 * time.Second,
	}
}

// ServerOption configures a Server at construction time.
type ServerOption func(*serverOptions)

// WithPoolOptions forwards options to the underlying waitpool.Pool, e.g.
// waitpool.WithPoll() to force the portable backend.
func WithPoolOptions(opts ...waitpool.Option) ServerOption {
	return func(o *serverOptions) { o.poolOpts = append(o.poolOpts, opts...) }
}

// WithLimits overrides the codec's line/header/body size limits.
func WithLimits(limits Limits) ServerOption {
	return func(o *serverOptions) { o.limits = limits }
}

// WithServerName sets the Server response header; "" disables it.
func WithServerName(name string) ServerOption {
	return func(o *serverOptions) { o.serverName = name }
}

// WithStopTimeout sets the grace period Server.Stop waits for in-flight
// connections to finish before forcibly closing them.
func WithStopTimeout(d time.Duration) ServerOption {
	return func(o *serverOptions) { o.stopTimeout = d }
}
