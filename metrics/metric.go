//
//
// Tencent is pleased to support the open source community by making tRPC available.
//
// Copyright (C) 2023 THL A29 Limited, a Tencent company.
// All rights reserved.
//
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

// Package metrics provides runtime monitoring counters. The backend and pool
// counters are incremented by internal/poller and the root package. The
// connection, HTTP and WebSocket counters are declared and printed, but no
// code in this module increments them, so they stay at zero.
package metrics

import (
	"fmt"
	"time"

	"go.uber.org/atomic"
)

// All metrics definitions.
const (
	// Backend metrics.
	BackendWaitCalls = iota
	BackendNoWaitCalls
	BackendEvents

	// Pool metrics.
	PoolSuspends
	PoolResumes
	PoolCancellations

	// Connection metrics.
	ConnsAccepted
	ConnsClosed

	// HTTP metrics.
	HTTPRequestsHandled
	HTTPRequestsUnhandled
	HTTPResponsesWritten

	// WebSocket metrics.
	WSFramesRead
	WSFramesWritten

	Max
)

var counters [Max]atomic.Uint64

// Add adds delta to the named counter. Unknown names are silently ignored.
func Add(name int, delta uint64) {
	if name < 0 || name >= Max {
		return
	}
	counters[name].Add(delta)
}

// Get returns the current value of the named counter.
func Get(name int) uint64 {
	if name < 0 || name >= Max {
		return 0
	}
	return counters[name].Load()
}

// GetAll returns a snapshot of every counter.
func GetAll() [Max]uint64 {
	var m [Max]uint64
	for i := range counters {
		m[i] = counters[i].Load()
	}
	return m
}

// ShowMetricsOfPeriod blocks for d and then prints the delta of every
// counter observed over that period.
func ShowMetricsOfPeriod(d time.Duration) {
	old := GetAll()
	<-time.After(d)
	cur := GetAll()
	var m [Max]uint64
	for i := range counters {
		m[i] = cur[i] - old[i]
	}
	showAll(m)
}

// ShowMetrics prints the current value of every counter.
func ShowMetrics() {
	showAll(GetAll())
}

func showAll(m [Max]uint64) {
	fmt.Println("######### waitpool metrics (", time.Now().Format("2006-01-02 15:04:05"), ") ###########")
	fmt.Printf("%-50s: %d\n", "# backend - get_notifications calls", m[BackendWaitCalls])
	fmt.Printf("%-50s: %d\n", "# backend - non-blocking get_notifications calls", m[BackendNoWaitCalls])
	fmt.Printf("%-50s: %d\n", "# backend - total notified events", m[BackendEvents])
	fmt.Printf("%-50s: %d\n", "# pool - suspend calls", m[PoolSuspends])
	fmt.Printf("%-50s: %d\n", "# pool - tokens resumed by readiness", m[PoolResumes])
	fmt.Printf("%-50s: %d\n", "# pool - tokens resumed by cancellation", m[PoolCancellations])
	fmt.Printf("%-50s: %d\n", "# connections - accepted", m[ConnsAccepted])
	fmt.Printf("%-50s: %d\n", "# connections - closed", m[ConnsClosed])
	fmt.Printf("%-50s: %d\n", "# http - requests handled", m[HTTPRequestsHandled])
	fmt.Printf("%-50s: %d\n", "# http - requests unhandled (404)", m[HTTPRequestsUnhandled])
	fmt.Printf("%-50s: %d\n", "# http - responses written", m[HTTPResponsesWritten])
	fmt.Printf("%-50s: %d\n", "# websocket - frames read", m[WSFramesRead])
	fmt.Printf("%-50s: %d\n", "# websocket - frames written", m[WSFramesWritten])
	fmt.Printf("\n")
}
