// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

package httpserver

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// RouteTable is an ordered, append-only list of routes matched in order.
// AddRoute copies the current slice, appends, and atomically swaps the
// pointer, so an in-flight request's Snapshot call always sees a
// consistent list even if a route is appended mid-request.
type RouteTable struct {
	routes atomic.Value // []*Route
	mu     sync.Mutex   // serializes writers; readers never block
}

// NewRouteTable constructs an empty table.
func NewRouteTable() *RouteTable {
	t := &RouteTable{}
	t.routes.Store([]*Route{})
	return t
}

// AddRoute appends a route. Safe to call concurrently with Match, including
// after the server has started serving requests.
func (t *RouteTable) AddRoute(r *Route) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur := t.routes.Load().([]*Route)
	next := make([]*Route, len(cur)+1)
	copy(next, cur)
	next[len(cur)] = r
	t.routes.Store(next)
}

// Snapshot returns the current route list. The returned slice is never
// mutated in place; callers may range over it freely.
func (t *RouteTable) Snapshot() []*Route {
	return t.routes.Load().([]*Route)
}

// Match finds the first route whose predicates hold for req and whose
// handler does not return Unhandled, returning its response. If nothing
// matches, or every matching handler declines, it returns a 404 response.
func Match(table *RouteTable, req *Request) (*Response, error) {
	for _, route := range table.Snapshot() {
		params, ok := route.matches(req)
		if !ok {
			continue
		}
		req.PathParams = params
		resp, err := route.Handle(req)
		if err == Unhandled {
			continue
		}
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
	return &Response{Status: 404, Headers: Header{}}, nil
}

func (r *Route) matches(req *Request) (map[string]string, bool) {
	method := req.Method
	if strings.EqualFold(method, "HEAD") {
		method = "GET" // HEAD routes identically to GET; conn.go suppresses the body on the wire.
	}
	if r.Method != "*" && !strings.EqualFold(r.Method, method) {
		return nil, false
	}
	params, ok := matchPath(r.Path, req.Path)
	if !ok {
		return nil, false
	}
	if !matchQuery(r.Query, req.Query) {
		return nil, false
	}
	if !matchHeaders(r.Header, req.Headers) {
		return nil, false
	}
	if r.Body != nil && !r.Body(req.Body) {
		return nil, false
	}
	return params, true
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func matchPath(pattern []Segment, path string) (map[string]string, bool) {
	parts := splitPath(path)
	params := map[string]string{}
	pi := 0
	for _, seg := range pattern {
		if seg.Kind == WildcardRest {
			return params, true // must be final by construction
		}
		if pi >= len(parts) {
			return nil, false
		}
		switch seg.Kind {
		case Literal:
			if parts[pi] != seg.Value {
				return nil, false
			}
		case WildcardOne:
			// matches anything
		case Capture:
			params[seg.Name] = parts[pi]
		}
		pi++
	}
	return params, pi == len(parts)
}

func matchQuery(predicates []QueryPredicate, query []QueryItem) bool {
	for _, pred := range predicates {
		value, ok := findQuery(query, pred.Name)
		if !ok {
			return false
		}
		if pred.Value != MatchesAny && string(pred.Value) != value {
			return false
		}
	}
	return true
}

func findQuery(query []QueryItem, name string) (string, bool) {
	for _, q := range query {
		if q.Name == name {
			return q.Value, true
		}
	}
	return "", false
}

func matchHeaders(predicates map[string]ValuePattern, headers Header) bool {
	for name, pattern := range predicates {
		if !headers.Has(name) {
			return false
		}
		if pattern != MatchesAny && headers.Get(name) != string(pattern) {
			return false
		}
	}
	return true
}

// ExtractInt converts a captured path parameter to int, returning
// Unhandled on failure so the matcher tries the next route.
func ExtractInt(req *Request, name string) (int, error) {
	v, ok := req.PathParams[name]
	if !ok {
		return 0, Unhandled
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, Unhandled
	}
	return n, nil
}

// ExtractString returns a captured path parameter as-is, Unhandled if
// absent.
func ExtractString(req *Request, name string) (string, error) {
	v, ok := req.PathParams[name]
	if !ok {
		return "", Unhandled
	}
	return v, nil
}
