// Tencent is pleased to support the open source community by making tRPC available.
// Copyright (C) 2023 THL A29 Limited, a Tencent company. All rights reserved.
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tnet source code is licensed under the Apache 2.0 License,
// A copy of the Apache 2.0 License can be found in the LICENSE file.

package ws

import (
	"bufio"
	"context"
	"io"

	"github.com/waitpool/waitpool/log"
)

// Message is one complete, reassembled inbound or outbound WebSocket
// message: either OpText or OpBinary, continuation frames already merged.
type Message struct {
	Opcode  Opcode
	Payload []byte
}

// Transport is the minimal byte-level contract a Conn needs from its
// underlying socket: suspend-aware reads and writes. waitpool.Socket
// satisfies this.
type Transport interface {
	Read(ctx context.Context, buf []byte) (int, error)
	Write(ctx context.Context, buf []byte) (int, error)
}

// Conn is one upgraded WebSocket connection. It surfaces inbound messages
// through Receive and accepts outbound messages through Send, performing
// the close handshake on either side's initiative.
type Conn struct {
	t      Transport
	ctx    context.Context
	reader *bufio.Reader
	closed bool
}

// NewConn wraps an already-upgraded transport for framing.
func NewConn(ctx context.Context, t Transport) *Conn {
	return &Conn{t: t, ctx: ctx, reader: bufio.NewReaderSize(&connReader{ctx: ctx, t: t}, 4096)}
}

// connReader adapts Transport's suspend-aware Read to io.Reader so it can
// sit behind a bufio.Reader.
type connReader struct {
	ctx context.Context
	t   Transport
}

func (r *connReader) Read(p []byte) (int, error) {
	n, err := r.t.Read(r.ctx, p)
	if err != nil {
		return n, io.EOF
	}
	return n, nil
}

func (c *Conn) readExact(buf []byte) error {
	_, err := io.ReadFull(c.reader, buf)
	return err
}

// Receive blocks for the next complete message, reassembling continuation
// frames and transparently answering ping/pong control frames. It returns
// io.EOF once a close frame has been received and acknowledged.
func (c *Conn) Receive() (Message, error) {
	var assembled []byte
	var msgOpcode Opcode
	for {
		f, err := ReadFrame(c.readExact)
		if err != nil {
			return Message{}, err
		}
		switch f.Opcode {
		case OpPing:
			if _, werr := c.t.Write(c.ctx, WriteFrame(true, OpPong, f.Payload)); werr != nil {
				return Message{}, werr
			}
			continue
		case OpPong:
			continue
		case OpClose:
			c.replyClose(f.Payload)
			return Message{}, io.EOF
		case OpContinuation:
			assembled = append(assembled, f.Payload...)
		default:
			msgOpcode = f.Opcode
			assembled = append(assembled[:0], f.Payload...)
		}
		if f.Fin {
			return Message{Opcode: msgOpcode, Payload: assembled}, nil
		}
	}
}

// Send writes one unfragmented data frame. The server never masks outbound
// frames, per RFC 6455 §5.1.
func (c *Conn) Send(opcode Opcode, payload []byte) error {
	_, err := c.t.Write(c.ctx, WriteFrame(true, opcode, payload))
	return err
}

// replyClose answers a peer-initiated close with a matching close frame.
func (c *Conn) replyClose(peerPayload []byte) {
	if c.closed {
		return
	}
	c.closed = true
	code := uint16(1000)
	if len(peerPayload) >= 2 {
		code = uint16(peerPayload[0])<<8 | uint16(peerPayload[1])
	}
	if _, err := c.t.Write(c.ctx, CloseFrame(code, "")); err != nil {
		log.Debugf("ws: close reply write failed: %v", err)
	}
}

// Close initiates the close handshake from the server side.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	_, err := c.t.Write(c.ctx, CloseFrame(1000, ""))
	return err
}

// Handler is user code invoked once a connection has upgraded to
// WebSocket framing.
type Handler interface {
	Serve(ctx context.Context, conn *Conn)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, conn *Conn)

// Serve implements Handler.
func (f HandlerFunc) Serve(ctx context.Context, conn *Conn) { f(ctx, conn) }
