// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

package httpserver

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/waitpool/waitpool/httpserver/ws"
	"github.com/waitpool/waitpool/log"
)

// socketTransport is the minimal contract conn.go needs from the
// underlying connection: suspend-aware reads and writes bound to a fd.
type socketTransport interface {
	Read(ctx context.Context, buf []byte) (int, error)
	Write(ctx context.Context, buf []byte) (int, error)
	Close() error
}

// socketReader adapts socketTransport.Read to io.Reader for bufio.
type socketReader struct {
	ctx context.Context
	s   socketTransport
}

func (r *socketReader) Read(p []byte) (int, error) {
	n, err := r.s.Read(r.ctx, p)
	if err != nil {
		return n, io.EOF
	}
	return n, nil
}

// serveConn runs the request/response loop for one accepted connection
// until the peer closes, Connection: close is observed, or a parse/write
// error occurs. It never returns an error; all failures are logged and end
// the connection, per the recovery policy (pool driver errors are the only
// thing that tears down more than one connection).
func serveConn(ctx context.Context, s socketTransport, table *RouteTable, limits Limits, dateHeader func() string, serverName string) {
	defer s.Close()
	r := bufio.NewReader(&socketReader{ctx: ctx, s: s})

	for {
		req, err := ReadRequest(r, limits)
		if err != nil {
			if err != io.EOF {
				writeBadRequest(ctx, s)
			}
			return
		}

		resp, err := Match(table, req)
		if err != nil {
			log.Warnf("httpserver: handler error: %v", err)
			resp = &Response{Status: 500, Headers: Header{}}
		}

		if resp.Upgrade != nil && isUpgradeRequest(req) {
			if !writeUpgradeResponse(ctx, s, req, dateHeader(), serverName) {
				return
			}
			resp.Upgrade.Serve(ctx, ws.NewConn(ctx, s))
			return
		}

		var buf bytes.Buffer
		WriteResponse(&buf, resp, dateHeader(), serverName, strings.EqualFold(req.Method, "HEAD"))
		if _, err := s.Write(ctx, buf.Bytes()); err != nil {
			return
		}

		if !req.KeepAlive() || strings.EqualFold(resp.Headers.Get("Connection"), "close") {
			return
		}
	}
}

func writeBadRequest(ctx context.Context, s socketTransport) {
	resp := &Response{Status: 400, Headers: Header{"Connection": {"close"}}}
	var buf bytes.Buffer
	WriteResponse(&buf, resp, "", "", false)
	s.Write(ctx, buf.Bytes())
}

func isUpgradeRequest(req *Request) bool {
	return strings.EqualFold(req.Headers.Get("Upgrade"), "websocket") && req.Headers.Get("Sec-WebSocket-Key") != ""
}

func writeUpgradeResponse(ctx context.Context, s socketTransport, req *Request, date, serverName string) bool {
	accept := ws.AcceptKey(req.Headers.Get("Sec-WebSocket-Key"))
	resp := &Response{
		Status: 101,
		Headers: Header{
			"Upgrade":              {"websocket"},
			"Connection":           {"Upgrade"},
			"Sec-WebSocket-Accept": {accept},
		},
	}
	var buf bytes.Buffer
	WriteResponse(&buf, resp, date, serverName, false)
	_, err := s.Write(ctx, buf.Bytes())
	return err == nil
}
