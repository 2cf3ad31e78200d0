// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.

package ws_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waitpool/waitpool/httpserver/ws"
)

// fakeTransport is an in-memory ws.Transport: reads come from a fixed byte
// buffer, writes accumulate for inspection.
type fakeTransport struct {
	in  *bytes.Reader
	out bytes.Buffer
}

func (f *fakeTransport) Read(_ context.Context, buf []byte) (int, error) {
	n, err := f.in.Read(buf)
	if err == io.EOF {
		return n, io.EOF
	}
	return n, err
}

func (f *fakeTransport) Write(_ context.Context, buf []byte) (int, error) {
	return f.out.Write(buf)
}

func TestConnReceiveAssemblesTextMessage(t *testing.T) {
	frame := ws.WriteFrame(true, ws.OpText, []byte("hello"))
	transport := &fakeTransport{in: bytes.NewReader(frame)}
	conn := ws.NewConn(context.Background(), transport)

	msg, err := conn.Receive()
	require.NoError(t, err)
	assert.Equal(t, ws.OpText, msg.Opcode)
	assert.Equal(t, "hello", string(msg.Payload))
}

func TestConnReceiveReassemblesContinuationFrames(t *testing.T) {
	var raw []byte
	raw = append(raw, ws.WriteFrame(false, ws.OpText, []byte("hel"))...)
	raw = append(raw, ws.WriteFrame(true, ws.OpContinuation, []byte("lo"))...)
	transport := &fakeTransport{in: bytes.NewReader(raw)}
	conn := ws.NewConn(context.Background(), transport)

	msg, err := conn.Receive()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(msg.Payload))
}

func TestConnReceiveAutoRepliesPing(t *testing.T) {
	var raw []byte
	raw = append(raw, ws.WriteFrame(true, ws.OpPing, []byte("p"))...)
	raw = append(raw, ws.WriteFrame(true, ws.OpText, []byte("after"))...)
	transport := &fakeTransport{in: bytes.NewReader(raw)}
	conn := ws.NewConn(context.Background(), transport)

	msg, err := conn.Receive()
	require.NoError(t, err)
	assert.Equal(t, "after", string(msg.Payload))

	replied, err := ws.ReadFrame(func(p []byte) error {
		_, rerr := transport.out.Read(p)
		return rerr
	})
	require.NoError(t, err)
	assert.Equal(t, ws.OpPong, replied.Opcode)
	assert.Equal(t, "p", string(replied.Payload))
}

func TestConnReceiveReturnsEOFAfterCloseHandshake(t *testing.T) {
	closeFrame := ws.CloseFrame(1000, "")
	transport := &fakeTransport{in: bytes.NewReader(closeFrame)}
	conn := ws.NewConn(context.Background(), transport)

	_, err := conn.Receive()
	assert.Equal(t, io.EOF, err)

	replied, err := ws.ReadFrame(func(p []byte) error {
		_, rerr := transport.out.Read(p)
		return rerr
	})
	require.NoError(t, err)
	assert.Equal(t, ws.OpClose, replied.Opcode)
}

func TestConnSendWritesUnmaskedFrame(t *testing.T) {
	transport := &fakeTransport{in: bytes.NewReader(nil)}
	conn := ws.NewConn(context.Background(), transport)

	require.NoError(t, conn.Send(ws.OpText, []byte("hi")))

	got, err := ws.ReadFrame(func(p []byte) error {
		_, rerr := transport.out.Read(p)
		return rerr
	})
	require.NoError(t, err)
	assert.Equal(t, ws.OpText, got.Opcode)
	assert.Equal(t, "hi", string(got.Payload))
	assert.False(t, got.Masked)
}
