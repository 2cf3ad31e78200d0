// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

package httpserver

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
)

// readChunkedBody reads a Transfer-Encoding: chunked body: a sequence of
// hex chunk-size lines each followed by that many bytes and a trailing
// CRLF, terminated by a zero-size chunk. Trailers, if any, are discarded.
func readChunkedBody(r *bufio.Reader, limits Limits) ([]byte, error) {
	var body bytes.Buffer
	for {
		sizeLine, err := readLimitedLine(r, limits.MaxLineLength)
		if err != nil {
			return nil, err
		}
		sizeLine, _, _ = strings.Cut(sizeLine, ";") // chunk extensions are ignored
		size, err := strconv.ParseInt(strings.TrimSpace(sizeLine), 16, 64)
		if err != nil || size < 0 {
			return nil, ErrProtocol
		}
		if size == 0 {
			break
		}
		if limits.MaxBodyBytes > 0 && body.Len()+int(size) > limits.MaxBodyBytes {
			return nil, ErrProtocol
		}
		chunk := make([]byte, size)
		if _, err := readFull(r, chunk); err != nil {
			return nil, err
		}
		body.Write(chunk)
		if _, err := readLimitedLine(r, limits.MaxLineLength); err != nil { // trailing CRLF
			return nil, err
		}
	}
	// Discard trailers up to the terminating empty line.
	for {
		line, err := readLimitedLine(r, limits.MaxLineLength)
		if err != nil {
			return nil, err
		}
		if line == "" {
			break
		}
	}
	return body.Bytes(), nil
}

// writeChunkedBody frames data as a single chunk followed by the
// terminating zero-size chunk, used when WriteResponse streams a body.
func writeChunkedBody(buf *bytes.Buffer, data []byte) {
	if len(data) > 0 {
		buf.WriteString(strconv.FormatInt(int64(len(data)), 16))
		buf.WriteString("\r\n")
		buf.Write(data)
		buf.WriteString("\r\n")
	}
	buf.WriteString("0\r\n\r\n")
}
