// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.

package poller_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/waitpool/waitpool/internal/poller"
)

func TestEventSet(t *testing.T) {
	var e poller.EventSet
	assert.True(t, e.Empty())
	assert.Equal(t, "none", e.String())

	e = e.Union(poller.EventRead)
	assert.True(t, e.Has(poller.EventRead))
	assert.False(t, e.Has(poller.EventWrite))
	assert.Equal(t, "read", e.String())

	e = e.Union(poller.EventWrite)
	assert.Equal(t, "read|write", e.String())
	assert.True(t, e.Has(poller.EventRead|poller.EventWrite))

	e = e.Without(poller.EventRead)
	assert.Equal(t, "write", e.String())

	i := poller.EventRead.Intersect(poller.EventRead | poller.EventWrite)
	assert.Equal(t, poller.EventRead, i)
}

func TestNewAutoAndPoll(t *testing.T) {
	b, err := poller.New(poller.Config{Kind: poller.Poll, MaxEvents: 4})
	assert.NoError(t, err)
	assert.NoError(t, b.Open())
	assert.NoError(t, b.Stop())
	assert.NoError(t, b.Close())

	auto, err := poller.New(poller.Config{})
	assert.NoError(t, err)
	assert.NoError(t, auto.Open())
	assert.NoError(t, auto.Close())
}
