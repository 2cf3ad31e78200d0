// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

package waitpool

import "fmt"

// Kind classifies a SocketError.
type Kind int

// Error kinds surfaced to callers. Blocked never escapes the socket
// wrapper; it is caught internally and converted into a suspend call.
const (
	Disconnected Kind = iota
	Cancelled
	UnsupportedAddress
	InvalidState
	Failed
)

func (k Kind) String() string {
	switch k {
	case Disconnected:
		return "disconnected"
	case Cancelled:
		return "cancelled"
	case UnsupportedAddress:
		return "unsupported address"
	case InvalidState:
		return "invalid state"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// SocketError wraps one of the Kind values above, with an optional errno
// and message for the Failed kind.
type SocketError struct {
	Kind    Kind
	Errno   error
	Message string
}

func (e *SocketError) Error() string {
	if e.Message != "" {
		return "waitpool: " + e.Kind.String() + ": " + e.Message
	}
	if e.Errno != nil {
		return "waitpool: " + e.Kind.String() + ": " + e.Errno.Error()
	}
	return "waitpool: " + e.Kind.String()
}

func (e *SocketError) Unwrap() error { return e.Errno }

// ErrCancelled is returned to a suspended caller when the pool stops or the
// caller's task is cancelled before readiness.
var ErrCancelled = &SocketError{Kind: Cancelled}

// ErrDisconnected is returned when a notification carries an error or
// end-of-file indication for the fd a caller was suspended on.
var ErrDisconnected = &SocketError{Kind: Disconnected}

// ErrClosed is returned by operations on a pool that is not ready to accept
// them (e.g. Suspend called while stopping or stopped).
var ErrClosed = &SocketError{Kind: InvalidState, Message: "pool is not running"}

// errInvalidState is returned by Run/Prepare state transition violations.
func errInvalidState(op string, from State) error {
	return &SocketError{Kind: InvalidState, Message: fmt.Sprintf("%s: invalid from state %s", op, from)}
}

func newFailed(op string, err error) error {
	return &SocketError{Kind: Failed, Errno: err, Message: op}
}
