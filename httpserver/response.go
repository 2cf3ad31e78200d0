// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

package httpserver

import (
	"io"

	"github.com/waitpool/waitpool/httpserver/ws"
)

// Response is what a Handler returns for a matched request. At most one of
// Body, Stream, or Upgrade should be set; none set serializes as an empty
// body.
type Response struct {
	Status  int
	Reason  string
	Headers Header
	Body    []byte

	// Stream, when non-nil, is read to exhaustion and framed with
	// Transfer-Encoding: chunked instead of a fixed Content-Length.
	Stream io.Reader

	// Upgrade, when non-nil, causes the connection loop to write a 101
	// response with the computed Sec-WebSocket-Accept and hand the
	// connection to a WebSocket framing session instead of writing Body.
	Upgrade ws.Handler
}

// NewResponse builds a 200 OK response with the given body and no extra
// headers; Content-Length and Date are added by the codec at write time.
func NewResponse(body []byte) *Response {
	return &Response{Status: 200, Body: body, Headers: Header{}}
}

// WithStatus sets the status code. Reason is left as it is; when it is
// empty, WriteResponse writes the standard phrase for the status.
func (r *Response) WithStatus(status int) *Response {
	r.Status = status
	return r
}

// WithHeader sets a response header.
func (r *Response) WithHeader(name, value string) *Response {
	if r.Headers == nil {
		r.Headers = Header{}
	}
	r.Headers.Set(name, value)
	return r
}

// statusText returns the standard reason phrase for common codes used by
// this package; callers may override via Response.Reason.
func statusText(status int) string {
	switch status {
	case 200:
		return "OK"
	case 101:
		return "Switching Protocols"
	case 400:
		return "Bad Request"
	case 404:
		return "Not Found"
	case 431:
		return "Request Header Fields Too Large"
	case 500:
		return "Internal Server Error"
	default:
		return "Unknown"
	}
}
