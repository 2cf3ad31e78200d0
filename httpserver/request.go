// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

// Package httpserver implements an HTTP/1.1 connection loop, route matcher,
// and WebSocket upgrade on top of waitpool's suspend/resume sockets.
package httpserver

import (
	"net/textproto"
	"strings"
)

// QueryItem is one name/value pair from a request's query string, kept in
// the order it appeared on the wire.
type QueryItem struct {
	Name  string
	Value string
}

// Header is a case-insensitive header map, canonicalized the way
// net/textproto does for net/http compatibility.
type Header map[string][]string

// Get returns the first value for name, or "" if absent.
func (h Header) Get(name string) string {
	v := h[textproto.CanonicalMIMEHeaderKey(name)]
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// Set replaces all values for name with value.
func (h Header) Set(name, value string) {
	h[textproto.CanonicalMIMEHeaderKey(name)] = []string{value}
}

// Add appends value to name's existing values.
func (h Header) Add(name, value string) {
	key := textproto.CanonicalMIMEHeaderKey(name)
	h[key] = append(h[key], value)
}

// Has reports whether name is present at all.
func (h Header) Has(name string) bool {
	_, ok := h[textproto.CanonicalMIMEHeaderKey(name)]
	return ok
}

// Request is a parsed HTTP/1.1 request. Body has already been read in full
// by the time a Handler sees it; streaming bodies are a non-goal of the
// core codec.
type Request struct {
	Method  string
	Path    string
	Query   []QueryItem
	Headers Header
	Body    []byte

	// PathParams holds capture segment values, keyed by the route's
	// capture name, populated by the matcher.
	PathParams map[string]string
}

// QueryValue returns the first value for name and whether it was present.
func (r *Request) QueryValue(name string) (string, bool) {
	for _, q := range r.Query {
		if q.Name == name {
			return q.Value, true
		}
	}
	return "", false
}

// KeepAlive reports whether the connection should remain open after this
// request/response exchange completes, honoring an explicit
// Connection: close from the client.
func (r *Request) KeepAlive() bool {
	return !strings.EqualFold(r.Headers.Get("Connection"), "close")
}
