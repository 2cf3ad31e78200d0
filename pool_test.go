// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.

package waitpool_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waitpool/waitpool"
	"github.com/waitpool/waitpool/internal/poller"
)

func TestPoolInvalidStateTransitions(t *testing.T) {
	p := waitpool.New(waitpool.WithPoll())
	assert.Error(t, p.Run())
	require.NoError(t, p.Prepare())
	assert.Error(t, p.Prepare())
}

func TestPoolSuspendResumesOnReadability(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	p := waitpool.New(waitpool.WithPoll(), waitpool.WithPollInterval(5*time.Millisecond))
	require.NoError(t, p.Prepare())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, p.Run())
	}()

	var suspendErr error
	done := make(chan struct{})
	go func() {
		suspendErr = p.Suspend(context.Background(), int(r.Fd()), poller.EventRead)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("suspend did not resume on readability")
	}
	assert.NoError(t, suspendErr)

	require.NoError(t, p.Stop())
	wg.Wait()
}

func TestPoolSuspendCancelledOnContext(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	p := waitpool.New(waitpool.WithPoll(), waitpool.WithPollInterval(5*time.Millisecond))
	require.NoError(t, p.Prepare())
	go p.Run()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Suspend(ctx, int(r.Fd()), poller.EventRead) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("suspend did not observe context cancellation")
	}
	require.NoError(t, p.Stop())
}

func TestPoolStopCancelsPendingSuspends(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	p := waitpool.New(waitpool.WithPoll(), waitpool.WithPollInterval(5*time.Millisecond))
	require.NoError(t, p.Prepare())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, p.Run())
	}()

	// Nothing is ever written, so this suspend stays pending until Stop
	// resolves it with ErrCancelled.
	done := make(chan error, 1)
	go func() { done <- p.Suspend(context.Background(), int(r.Fd()), poller.EventRead) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, p.Stop())
	wg.Wait()

	select {
	case err := <-done:
		assert.Equal(t, waitpool.ErrCancelled, err)
	case <-time.After(time.Second):
		t.Fatal("pending suspend was not resolved by pool stop")
	}
}

func TestPoolSuspendFailsWhenNotRunning(t *testing.T) {
	p := waitpool.New(waitpool.WithPoll())
	err := p.Suspend(context.Background(), 0, poller.EventRead)
	assert.Equal(t, waitpool.ErrClosed, err)
}
