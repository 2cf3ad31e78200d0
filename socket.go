// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

package waitpool

import (
	"context"
	"net"

	"golang.org/x/sys/unix"

	"github.com/waitpool/waitpool/internal/poller"
	"github.com/waitpool/waitpool/internal/safejob"
)

// Socket wraps one non-blocking file descriptor registered with a Pool.
// Read and Write never block in a syscall: on EAGAIN they park the calling
// goroutine in the owning Pool's Suspend until the fd becomes ready again.
type Socket struct {
	fd   int
	pool *Pool
	addr net.Addr

	closeOnce safejob.OnceJob
}

// NewSocket wraps fd, which must already be non-blocking, as a Socket
// registered with pool. addr is advisory and only used for diagnostics.
func NewSocket(pool *Pool, fd int, addr net.Addr) *Socket {
	return &Socket{fd: fd, pool: pool, addr: addr}
}

// FD returns the underlying file descriptor.
func (s *Socket) FD() int { return s.fd }

// Addr returns the peer/local address recorded at construction.
func (s *Socket) Addr() net.Addr { return s.addr }

// Read fills buf with at least one byte, suspending on the pool across
// EAGAIN. It returns (0, io.EOF-equivalent *SocketError) on peer close.
func (s *Socket) Read(ctx context.Context, buf []byte) (int, error) {
	for {
		n, err := unix.Read(s.fd, buf)
		switch {
		case n > 0:
			return n, nil
		case n == 0:
			return 0, ErrDisconnected
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			if suspendErr := s.pool.Suspend(ctx, s.fd, poller.EventRead); suspendErr != nil {
				return 0, suspendErr
			}
		case err == unix.EINTR:
			continue
		default:
			return 0, newFailed("read", err)
		}
	}
}

// Write drains buf entirely, suspending on the pool across EAGAIN.
func (s *Socket) Write(ctx context.Context, buf []byte) (int, error) {
	var total int
	for total < len(buf) {
		n, err := unix.Write(s.fd, buf[total:])
		switch {
		case n > 0:
			total += n
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			if suspendErr := s.pool.Suspend(ctx, s.fd, poller.EventWrite); suspendErr != nil {
				return total, suspendErr
			}
		case err == unix.EINTR:
			continue
		case err != nil:
			return total, newFailed("write", err)
		default:
			return total, ErrDisconnected
		}
	}
	return total, nil
}

// Close closes the underlying fd exactly once, regardless of how many
// times Close is called.
func (s *Socket) Close() error {
	if !s.closeOnce.Begin() {
		return nil
	}
	return unix.Close(s.fd)
}
