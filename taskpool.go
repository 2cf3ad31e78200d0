// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

package waitpool

import "github.com/panjf2000/ants/v2"

var maxRoutines = 0 // meaning INT32_MAX.

var connPool, _ = ants.NewPoolWithFunc(maxRoutines, func(v any) {
	if task, ok := v.(func()); ok {
		task()
	}
})

// Dispatch hands task off to a pooled goroutine so that the accept loop or
// pool driver goroutine is never blocked running user handler code.
func Dispatch(task func()) error {
	return connPool.Invoke(task)
}
