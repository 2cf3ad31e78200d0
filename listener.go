// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

package waitpool

import (
	"net"
	"os"

	"golang.org/x/sys/unix"

	"github.com/waitpool/waitpool/internal/netutil"
)

// Listener is a non-blocking listening socket bound to one of the three
// supported address families: IPv4, IPv6, or UNIX-domain.
type Listener struct {
	fd      int
	addr    net.Addr
	unixPath string
}

// Listen creates, binds, and starts listening on addr. network is one of
// "tcp", "tcp4", "tcp6", or "unix". For inet sockets SO_REUSEADDR is set;
// for UNIX sockets a stale socket file at the same path is removed first.
func Listen(network, address string) (*Listener, error) {
	switch network {
	case "tcp", "tcp4", "tcp6":
		return listenTCP(network, address)
	case "unix":
		return listenUnix(address)
	default:
		return nil, &SocketError{Kind: UnsupportedAddress, Message: network}
	}
}

func listenTCP(network, address string) (*Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr(network, address)
	if err != nil {
		return nil, &SocketError{Kind: UnsupportedAddress, Message: err.Error()}
	}

	domain := unix.AF_INET
	sa, err := tcpAddrToSockaddr(tcpAddr, network)
	if err != nil {
		return nil, &SocketError{Kind: UnsupportedAddress, Message: err.Error()}
	}
	if _, ok := sa.(*unix.SockaddrInet6); ok {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, newFailed("listen", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, newFailed("listen", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, newFailed("listen", err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, newFailed("listen", err)
	}
	localSA, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, newFailed("listen", err)
	}
	return &Listener{fd: fd, addr: netutil.SockaddrToTCPOrUnixAddr(localSA)}, nil
}

func tcpAddrToSockaddr(addr *net.TCPAddr, network string) (unix.Sockaddr, error) {
	ip := addr.IP
	if ip == nil {
		if network == "tcp6" {
			ip = net.IPv6zero
		} else {
			ip = net.IPv4zero
		}
	}
	if ip4 := ip.To4(); ip4 != nil && network != "tcp6" {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return sa, nil
	}
	ip6 := ip.To16()
	if ip6 == nil {
		return nil, &SocketError{Kind: UnsupportedAddress, Message: addr.String()}
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], ip6)
	return sa, nil
}

func listenUnix(path string) (*Listener, error) {
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return nil, newFailed("listen", err)
		}
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, newFailed("listen", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return nil, newFailed("listen", err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, newFailed("listen", err)
	}
	return &Listener{fd: fd, addr: &net.UnixAddr{Name: path, Net: "unix"}, unixPath: path}, nil
}

// FD returns the listening socket's file descriptor.
func (l *Listener) FD() int { return l.fd }

// Addr returns the bound local address, with a concrete port assigned when
// the caller requested port 0.
func (l *Listener) Addr() net.Addr { return l.addr }

// Accept wraps accept4, returning a non-blocking, close-on-exec connected
// fd and its peer address. Returns unix.EAGAIN when no connection is
// pending; the caller is expected to suspend on the listener's fd and
// retry.
func (l *Listener) Accept() (int, net.Addr, error) {
	connFD, sa, err := netutil.Accept(l.fd)
	if err != nil {
		return -1, nil, err
	}
	return connFD, netutil.SockaddrToTCPOrUnixAddr(sa), nil
}

// Close closes the listening socket and, for UNIX-domain listeners,
// removes the socket file.
func (l *Listener) Close() error {
	err := unix.Close(l.fd)
	if l.unixPath != "" {
		os.Remove(l.unixPath)
	}
	return err
}
