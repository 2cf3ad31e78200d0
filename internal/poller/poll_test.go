// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.

package poller_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/waitpool/waitpool/internal/poller"
)

func TestPollBackendReportsReadable(t *testing.T) {
	r, w, err := os.Pipe()
	assert.NoError(t, err)
	defer r.Close()
	defer w.Close()

	b, err := poller.New(poller.Config{
		Kind:         poller.Poll,
		MaxEvents:    8,
		PollInterval: 5 * time.Millisecond,
		LoopInterval: time.Millisecond,
	})
	assert.NoError(t, err)
	assert.NoError(t, b.AddEvents(int(r.Fd()), poller.EventRead))

	_, err = w.Write([]byte("x"))
	assert.NoError(t, err)

	notifications, err := b.GetNotifications()
	assert.NoError(t, err)
	assert.NotEmpty(t, notifications)
	assert.Equal(t, int(r.Fd()), notifications[0].FD)
	assert.True(t, notifications[0].Events.Has(poller.EventRead))

	assert.NoError(t, b.RemoveEvents(int(r.Fd()), poller.EventRead))
	assert.NoError(t, b.Stop())
	_, err = b.GetNotifications()
	assert.Equal(t, poller.ErrStopped, err)
}
