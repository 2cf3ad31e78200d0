// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.

package waitpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/waitpool/waitpool/internal/poller"
)

func TestWaitingTableAppendDelta(t *testing.T) {
	wt := newWaitingTable()
	assert.True(t, wt.isEmpty())

	t1 := newSuspensionToken(1, 5, poller.EventRead)
	delta := wt.append(t1)
	assert.Equal(t, poller.EventRead, delta)
	assert.False(t, wt.isEmpty())

	t2 := newSuspensionToken(2, 5, poller.EventRead)
	delta = wt.append(t2)
	assert.True(t, delta.Empty(), "second read waiter on the same fd adds no new backend interest")

	t3 := newSuspensionToken(3, 5, poller.EventWrite)
	delta = wt.append(t3)
	assert.Equal(t, poller.EventWrite, delta)
}

func TestWaitingTableResumeReady(t *testing.T) {
	wt := newWaitingTable()
	t1 := newSuspensionToken(1, 5, poller.EventRead)
	t2 := newSuspensionToken(2, 5, poller.EventRead)
	wt.append(t1)
	wt.append(t2)

	removed, resolved := wt.resumeReady(5, poller.EventRead, nil)
	assert.Equal(t, poller.EventRead, removed, "last read waiter resumed empties the fd's read interest")
	assert.Equal(t, 2, resolved)
	assert.True(t, wt.isEmpty())

	assert.NoError(t, <-t1.done)
	assert.NoError(t, <-t2.done)
}

func TestWaitingTableRemovePartial(t *testing.T) {
	wt := newWaitingTable()
	t1 := newSuspensionToken(1, 5, poller.EventRead)
	t2 := newSuspensionToken(2, 5, poller.EventWrite)
	wt.append(t1)
	wt.append(t2)

	removed := wt.remove(t1)
	assert.Equal(t, poller.EventRead, removed)
	assert.False(t, wt.isEmpty())

	removed = wt.remove(t2)
	assert.Equal(t, poller.EventWrite, removed)
	assert.True(t, wt.isEmpty())
}

func TestWaitingTableDrainAll(t *testing.T) {
	wt := newWaitingTable()
	t1 := newSuspensionToken(1, 5, poller.EventRead)
	t2 := newSuspensionToken(2, 6, poller.EventWrite)
	wt.append(t1)
	wt.append(t2)

	wt.drainAll(ErrCancelled)
	assert.True(t, wt.isEmpty())
	assert.Equal(t, ErrCancelled, <-t1.done)
	assert.Equal(t, ErrCancelled, <-t2.done)
}
