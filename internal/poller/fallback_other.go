// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

//go:build !linux && !freebsd && !dragonfly && !darwin && !netbsd && !openbsd
// +build !linux,!freebsd,!dragonfly,!darwin,!netbsd,!openbsd

package poller

// newPlatformBackend falls back to poll(2) on platforms with neither epoll
// nor kqueue.
func newPlatformBackend(maxEvents int) (Backend, error) {
	return newPollBackend(maxEvents, 0, 0), nil
}
