// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

package httpserver

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/waitpool/waitpool"
	"github.com/waitpool/waitpool/internal/poller"
	"github.com/waitpool/waitpool/log"
)

// Server ties a waitpool.Pool, a Listener, and a RouteTable into a running
// HTTP/1.1 service.
type Server struct {
	pool   *waitpool.Pool
	routes *RouteTable
	limits Limits

	serverName  string
	stopTimeout time.Duration

	mu         sync.Mutex
	listener   *waitpool.Listener
	listening  chan struct{}
	listenErr  error
	stopOnce   sync.Once
	stopSignal sync.Once
	stopping   chan struct{}

	wg        sync.WaitGroup
	connsMu   sync.Mutex
	conns     map[*waitpool.Socket]struct{}
	dateCache dateCache
}

// New constructs a Server. Routes may be appended at any time, including
// after Start, via AddRoute.
func New(opts ...ServerOption) *Server {
	o := defaultServerOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &Server{
		pool:        waitpool.New(o.poolOpts...),
		routes:      NewRouteTable(),
		limits:      o.limits,
		serverName:  o.serverName,
		stopTimeout: o.stopTimeout,
		listening:   make(chan struct{}),
		conns:       make(map[*waitpool.Socket]struct{}),
		stopping:    make(chan struct{}),
	}
	return s
}

// AddRoute appends a route to the server's table. Safe to call before or
// after Start.
func (s *Server) AddRoute(r *Route) { s.routes.AddRoute(r) }

// Start binds address, transitions into "listening", and runs the pool
// driver and accept loop concurrently. It blocks until ctx is cancelled,
// Stop has finished, or a fatal bind/accept error occurs; cancelling ctx
// closes every connection immediately.
func (s *Server) Start(ctx context.Context, network, address string) error {
	listener, err := waitpool.Listen(network, address)
	if err != nil {
		s.mu.Lock()
		s.listenErr = err
		s.mu.Unlock()
		close(s.listening)
		return err
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	if err := s.pool.Prepare(); err != nil {
		listener.Close()
		s.mu.Lock()
		s.listenErr = err
		s.mu.Unlock()
		close(s.listening)
		return err
	}

	close(s.listening)

	driverDone := make(chan error, 1)
	go func() { driverDone <- s.pool.Run() }()

	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		s.acceptLoop(ctx, listener)
	}()

	select {
	case <-ctx.Done():
		s.closeAllConns()
		listener.Close()
		s.stopPool()
		<-driverDone
		<-acceptDone
		return ctx.Err()
	case <-acceptDone:
		// The accept loop can exit either because ctx was cancelled (handled
		// above) or because Stop was called and closed the listener. In the
		// Stop case, Stop owns the grace period and will call stopPool once
		// it elapses or every in-flight connection finishes; stopping the
		// pool here too would cancel in-flight suspends immediately and
		// defeat that grace period. Only take responsibility for stopping
		// the pool ourselves when nothing else will (e.g. the listener
		// failed for an unrelated reason).
		select {
		case <-s.stopping:
		default:
			s.stopPool()
		}
		return <-driverDone
	}
}

// stopPool calls Pool.Stop at most once, regardless of how many of Start's
// exit paths and Stop race to invoke it.
func (s *Server) stopPool() {
	s.stopOnce.Do(func() { s.pool.Stop() })
}

// WaitUntilListening blocks until Start has entered the listening state (or
// failed to), returning the bind error if any.
func (s *Server) WaitUntilListening() error {
	<-s.listening
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listenErr
}

// Addr returns the bound local address. Only valid after WaitUntilListening
// returns nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop stops accepting new connections, lets in-flight connections finish
// their current request, then after timeout forcibly closes whatever
// remains. timeout <= 0 uses the Server's configured stopTimeout
// (WithStopTimeout, default 5s). It is typically called from a signal
// handler alongside cancelling the context passed to Start.
func (s *Server) Stop(timeout time.Duration) {
	if timeout <= 0 {
		timeout = s.stopTimeout
	}
	s.stopSignal.Do(func() { close(s.stopping) })

	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener != nil {
		listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		s.closeAllConns()
	}
	s.stopPool()
}

func (s *Server) acceptLoop(ctx context.Context, listener *waitpool.Listener) {
	for {
		connFD, addr, err := listener.Accept()
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			if suspendErr := s.pool.Suspend(ctx, listener.FD(), poller.EventRead); suspendErr != nil {
				return
			}
			continue
		}
		if err != nil {
			log.Warnf("httpserver: accept: %v", err)
			return
		}

		socket := waitpool.NewSocket(s.pool, connFD, addr)
		s.trackConn(socket)
		if dispatchErr := waitpool.Dispatch(func() {
			defer s.untrackConn(socket)
			serveConn(ctx, socket, s.routes, s.limits, s.dateCache.current, s.serverName)
		}); dispatchErr != nil {
			s.untrackConn(socket)
			socket.Close()
		}
	}
}

func (s *Server) trackConn(sock *waitpool.Socket) {
	s.connsMu.Lock()
	s.conns[sock] = struct{}{}
	s.connsMu.Unlock()
	s.wg.Add(1)
}

func (s *Server) untrackConn(sock *waitpool.Socket) {
	s.connsMu.Lock()
	delete(s.conns, sock)
	s.connsMu.Unlock()
	s.wg.Done()
}

func (s *Server) closeAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for sock := range s.conns {
		sock.Close()
	}
}
