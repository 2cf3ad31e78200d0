// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

package httpserver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/waitpool/waitpool/httpserver"
)

func okHandler(body string) httpserver.Handler {
	return httpserver.HandlerFunc(func(req *httpserver.Request) (*httpserver.Response, error) {
		return httpserver.NewResponse([]byte(body)), nil
	})
}

func TestMatchWildcardOneSegment(t *testing.T) {
	table := httpserver.NewRouteTable()
	table.AddRoute(httpserver.NewRoute("GET", "/hello/*/world", okHandler("hi")))

	req := &httpserver.Request{Method: "GET", Path: "/hello/fish/world", Headers: httpserver.Header{}}
	resp, err := httpserver.Match(table, req)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(resp.Body))

	req2 := &httpserver.Request{Method: "GET", Path: "/hello/fish/sea", Headers: httpserver.Header{}}
	resp2, err := httpserver.Match(table, req2)
	require.NoError(t, err)
	assert.Equal(t, 404, resp2.Status)
}

func TestMatchQueryPredicateWildcard(t *testing.T) {
	table := httpserver.NewRouteTable()
	table.AddRoute(httpserver.NewRoute("GET", "/hello", okHandler("hi")).WithQuery("time", httpserver.MatchesAny))

	req := &httpserver.Request{Method: "GET", Path: "/hello",
		Query: []httpserver.QueryItem{{Name: "time", Value: "morning"}}, Headers: httpserver.Header{}}
	resp, err := httpserver.Match(table, req)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(resp.Body))

	req2 := &httpserver.Request{Method: "GET", Path: "/hello",
		Query: []httpserver.QueryItem{{Name: "count", Value: "1"}, {Name: "time", Value: "morning"}}, Headers: httpserver.Header{}}
	resp2, err := httpserver.Match(table, req2)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(resp2.Body))

	req3 := &httpserver.Request{Method: "GET", Path: "/hello", Headers: httpserver.Header{}}
	resp3, err := httpserver.Match(table, req3)
	require.NoError(t, err)
	assert.Equal(t, 404, resp3.Status)
}

func TestMatchTrailingWildcardRest(t *testing.T) {
	table := httpserver.NewRouteTable()
	table.AddRoute(httpserver.NewRoute("GET", "/hello/*", okHandler("hi")))

	req := &httpserver.Request{Method: "GET", Path: "/hello/a/b/c", Headers: httpserver.Header{}}
	resp, err := httpserver.Match(table, req)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(resp.Body))
}

func TestMatchHeadRoutesAsGet(t *testing.T) {
	table := httpserver.NewRouteTable()
	table.AddRoute(httpserver.NewRoute("GET", "/hello", okHandler("hi")))

	req := &httpserver.Request{Method: "HEAD", Path: "/hello", Headers: httpserver.Header{}}
	resp, err := httpserver.Match(table, req)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(resp.Body))
}

func TestMatchUnhandledTriesNextRoute(t *testing.T) {
	declining := httpserver.HandlerFunc(func(req *httpserver.Request) (*httpserver.Response, error) {
		return nil, httpserver.Unhandled
	})
	table := httpserver.NewRouteTable()
	table.AddRoute(httpserver.NewRoute("GET", "/hello", declining))
	table.AddRoute(httpserver.NewRoute("GET", "/hello", okHandler("second")))

	req := &httpserver.Request{Method: "GET", Path: "/hello", Headers: httpserver.Header{}}
	resp, err := httpserver.Match(table, req)
	require.NoError(t, err)
	assert.Equal(t, "second", string(resp.Body))
}

func TestMatchEmptyTableIs404(t *testing.T) {
	table := httpserver.NewRouteTable()
	req := &httpserver.Request{Method: "GET", Path: "/", Headers: httpserver.Header{}}
	resp, err := httpserver.Match(table, req)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.Status)
}

func TestMatchCapture(t *testing.T) {
	table := httpserver.NewRouteTable()
	table.AddRoute(httpserver.NewRoute("GET", "/users/:id", httpserver.HandlerFunc(func(req *httpserver.Request) (*httpserver.Response, error) {
		id, err := httpserver.ExtractString(req, "id")
		if err != nil {
			return nil, err
		}
		return httpserver.NewResponse([]byte(id)), nil
	})))

	req := &httpserver.Request{Method: "GET", Path: "/users/42", Headers: httpserver.Header{}}
	resp, err := httpserver.Match(table, req)
	require.NoError(t, err)
	assert.Equal(t, "42", string(resp.Body))
}
