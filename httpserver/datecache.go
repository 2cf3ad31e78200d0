// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

package httpserver

import (
	"sync/atomic"
	"time"
)

// dateCache holds a pre-formatted RFC 1123 Date header value, refreshed
// once a second by a shared ticker rather than on every response.
type dateCache struct {
	value atomic.Value // string
	once  int32
}

func (d *dateCache) current() string {
	if atomic.CompareAndSwapInt32(&d.once, 0, 1) {
		d.value.Store(time.Now().UTC().Format(http1123))
		go d.refresh()
	}
	v, _ := d.value.Load().(string)
	if v == "" {
		return time.Now().UTC().Format(http1123)
	}
	return v
}

func (d *dateCache) refresh() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		d.value.Store(time.Now().UTC().Format(http1123))
	}
}

const http1123 = "Mon, 02 Jan 2006 15:04:05 GMT"
