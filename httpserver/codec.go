// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

package httpserver

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
)

// ErrProtocol marks malformed HTTP framing: the connection is closed after
// a best-effort 400 response, per the codec's error handling design.
var ErrProtocol = errors.New("httpserver: protocol error")

// Limits bounds the codec's resource consumption while parsing a request.
// Exceeding any of these aborts the request with a 400 response (or closes
// the connection if no response can yet be framed).
type Limits struct {
	MaxLineLength int
	MaxHeaderBytes int
	MaxBodyBytes  int
}

// DefaultLimits mirrors common production defaults: generous enough for
// normal traffic, small enough to bound a single slow client.
var DefaultLimits = Limits{
	MaxLineLength:  8 * 1024,
	MaxHeaderBytes: 64 * 1024,
	MaxBodyBytes:   8 * 1024 * 1024,
}

// ReadRequest parses one HTTP/1.1 request from r. It is the only place the
// codec touches bufio; all suspend-on-would-block handling happens below r,
// inside the Socket that backs it (see conn.go).
func ReadRequest(r *bufio.Reader, limits Limits) (*Request, error) {
	line, err := readLimitedLine(r, limits.MaxLineLength)
	if err != nil {
		return nil, err
	}
	method, target, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}

	path, query, err := parseTarget(target)
	if err != nil {
		return nil, err
	}

	headers, err := readHeaders(r, limits)
	if err != nil {
		return nil, err
	}

	body, err := readBody(r, headers, limits)
	if err != nil {
		return nil, err
	}

	return &Request{Method: method, Path: path, Query: query, Headers: headers, Body: body}, nil
}

func readLimitedLine(r *bufio.Reader, maxLen int) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	if maxLen > 0 && len(line) > maxLen {
		return "", ErrProtocol
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func parseRequestLine(line string) (method, target string, err error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return "", "", ErrProtocol
	}
	if !strings.HasPrefix(parts[2], "HTTP/1.") {
		return "", "", ErrProtocol
	}
	return parts[0], parts[1], nil
}

func parseTarget(target string) (path string, query []QueryItem, err error) {
	u, err := url.ParseRequestURI(target)
	if err != nil {
		return "", nil, ErrProtocol
	}
	rawQuery := u.RawQuery
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, "=")
		name, _ = url.QueryUnescape(name)
		value, _ = url.QueryUnescape(value)
		query = append(query, QueryItem{Name: name, Value: value})
	}
	return u.Path, query, nil
}

func readHeaders(r *bufio.Reader, limits Limits) (Header, error) {
	headers := Header{}
	total := 0
	for {
		line, err := readLimitedLine(r, limits.MaxLineLength)
		if err != nil {
			return nil, err
		}
		if line == "" {
			break
		}
		total += len(line)
		if limits.MaxHeaderBytes > 0 && total > limits.MaxHeaderBytes {
			return nil, ErrProtocol
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, ErrProtocol
		}
		name = textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		headers.Add(name, value)
	}
	return headers, nil
}

func readBody(r *bufio.Reader, headers Header, limits Limits) ([]byte, error) {
	hasCL := headers.Has("Content-Length")
	hasTE := strings.EqualFold(headers.Get("Transfer-Encoding"), "chunked")
	switch {
	case hasCL && hasTE:
		// RFC 7230 §3.3.3: a message with both is ambiguous and must be
		// rejected.
		return nil, ErrProtocol
	case hasTE:
		return readChunkedBody(r, limits)
	case hasCL:
		n, err := strconv.Atoi(headers.Get("Content-Length"))
		if err != nil || n < 0 {
			return nil, ErrProtocol
		}
		if limits.MaxBodyBytes > 0 && n > limits.MaxBodyBytes {
			return nil, ErrProtocol
		}
		buf := make([]byte, n)
		if _, err := readFull(r, buf); err != nil {
			return nil, err
		}
		return buf, nil
	default:
		return nil, nil
	}
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteResponse serializes resp onto buf. date is pre-formatted to avoid
// every response paying for a fresh time.Now().Format call. suppressBody
// omits the body bytes while still writing Content-Length/Transfer-Encoding,
// per RFC 7231 §4.3.2: a HEAD response carries the headers GET would send
// but none of the entity.
func WriteResponse(buf *bytes.Buffer, resp *Response, date, serverName string, suppressBody bool) {
	reason := resp.Reason
	if reason == "" {
		reason = statusText(resp.Status)
	}
	buf.WriteString("HTTP/1.1 ")
	buf.WriteString(strconv.Itoa(resp.Status))
	buf.WriteByte(' ')
	buf.WriteString(reason)
	buf.WriteString("\r\n")

	buf.WriteString("Date: ")
	buf.WriteString(date)
	buf.WriteString("\r\n")
	if serverName != "" {
		buf.WriteString("Server: ")
		buf.WriteString(serverName)
		buf.WriteString("\r\n")
	}
	for name, values := range resp.Headers {
		for _, v := range values {
			buf.WriteString(name)
			buf.WriteString(": ")
			buf.WriteString(v)
			buf.WriteString("\r\n")
		}
	}

	if resp.Stream != nil {
		if !resp.Headers.Has("Transfer-Encoding") {
			buf.WriteString("Transfer-Encoding: chunked\r\n")
		}
		buf.WriteString("\r\n")
		data, _ := io.ReadAll(resp.Stream)
		if !suppressBody {
			writeChunkedBody(buf, data)
		}
		return
	}

	if resp.Status != 101 && !resp.Headers.Has("Content-Length") {
		buf.WriteString("Content-Length: ")
		buf.WriteString(strconv.Itoa(len(resp.Body)))
		buf.WriteString("\r\n")
	}
	buf.WriteString("\r\n")
	if !suppressBody {
		buf.Write(resp.Body)
	}
}
