// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

// Package ctxwebsocket provides context-aware I/O functions on WebSockets,
// used to stream change notifications to watching clients.
package ctxwebsocket

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// interruptible runs f, calling interrupt if ctx is done before f returns.
// interrupt should make f return promptly, typically by moving a deadline
// into the past.
func interruptible(ctx context.Context, op string, interrupt func(), f func() error) error {
	ctxDone := ctx.Done()
	if ctxDone == nil {
		return f()
	}
	select {
	case <-ctxDone:
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	finished := make(chan struct{})
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-finished:
		case <-ctxDone:
			interrupt()
		}
	}()
	err := f()
	close(finished)
	<-watchDone
	return err
}

func interruptWrite(conn *websocket.Conn) func() {
	return func() {
		// XXX This is racy because gorilla unconditionally calls
		// SetWriteDeadline at the start of every write.
		conn.UnderlyingConn().SetWriteDeadline(time.Now())
	}
}

// ReadMessage reads the next message from the connection.
func ReadMessage(ctx context.Context, conn *websocket.Conn) (messageType int, p []byte, err error) {
	err = interruptible(ctx, "read websocket message",
		func() { conn.SetReadDeadline(time.Now()) },
		func() error {
			var err error
			messageType, p, err = conn.ReadMessage()
			return err
		})
	return messageType, p, err
}

// WriteMessage writes a message to the connection.
func WriteMessage(ctx context.Context, conn *websocket.Conn, messageType int, data []byte) error {
	return interruptible(ctx, "write websocket message", interruptWrite(conn), func() error {
		return conn.WriteMessage(messageType, data)
	})
}

// WriteJSON writes the JSON encoding of v as a text message.
func WriteJSON(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("write websocket message: %w", err)
	}
	return WriteMessage(ctx, conn, websocket.TextMessage, data)
}

// Ping writes a ping message to the connection. It is safe to call concurrently
// with WriteMessage on the same connection.
func Ping(ctx context.Context, conn *websocket.Conn, data []byte) error {
	return interruptible(ctx, "ping websocket", interruptWrite(conn), func() error {
		return conn.WriteControl(websocket.PingMessage, data, time.Time{})
	})
}

// Close sends a close message with the given code and reason. It does not
// close the underlying connection.
func Close(ctx context.Context, conn *websocket.Conn, code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, reason)
	return interruptible(ctx, "close websocket", interruptWrite(conn), func() error {
		return conn.WriteControl(websocket.CloseMessage, msg, time.Time{})
	})
}
