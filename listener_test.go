// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.

package waitpool_test

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/waitpool/waitpool"
)

func TestListenTCPAssignsPortAndAccepts(t *testing.T) {
	l, err := waitpool.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	tcpAddr, ok := l.Addr().(*net.TCPAddr)
	require.True(t, ok)
	assert.NotZero(t, tcpAddr.Port)

	clientDone := make(chan error, 1)
	go func() {
		conn, dialErr := net.Dial("tcp", l.Addr().String())
		if dialErr == nil {
			conn.Close()
		}
		clientDone <- dialErr
	}()

	var connFD int
	for {
		connFD, _, err = l.Accept()
		if err == unix.EAGAIN {
			continue
		}
		break
	}
	require.NoError(t, err)
	defer unix.Close(connFD)

	require.NoError(t, <-clientDone)
}

func TestListenTCPAcceptReturnsEAGAINWhenIdle(t *testing.T) {
	l, err := waitpool.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	_, _, err = l.Accept()
	assert.Equal(t, unix.EAGAIN, err)
}

func TestListenUnixRemovesStaleSocketFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waitpool.sock")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))

	l, err := waitpool.Listen("unix", path)
	require.NoError(t, err)

	unixAddr, ok := l.Addr().(*net.UnixAddr)
	require.True(t, ok)
	assert.Equal(t, path, unixAddr.Name)

	require.NoError(t, l.Close())
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestListenRejectsUnsupportedNetwork(t *testing.T) {
	_, err := waitpool.Listen("udp", "127.0.0.1:0")
	assert.Error(t, err)
}
