// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

package iniserve

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nbcin/polder/ctxwebsocket"
	"github.com/nbcin/polder/iniwatch"
	"github.com/nbcin/polder/requestid"
	"zombiezen.com/go/log"
)

// A Change is a message sent to watchers when the file changes.
type Change struct {
	Path   string    `json:"path"`
	Op     string    `json:"op"`
	Exists bool      `json:"exists"`
	Time   time.Time `json:"time"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// watch streams a Change message for every debounced change to the file
// until the client disconnects.
func (h *Handler) watch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	events, err := iniwatch.Watch(ctx, h.Path, h.debounce())
	if err != nil {
		writeError(w, r, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		log.Debugf(ctx, "Upgrading watch request: %v", err)
		return
	}
	defer conn.Close()
	id := requestid.ContextID(ctx)
	log.Infof(ctx, "Watcher %s connected", id)
	defer log.Infof(ctx, "Watcher %s disconnected", id)

	// Clients are not expected to send anything, but reading is required to
	// process control frames and notice when the client closes.
	go func() {
		defer cancel()
		for {
			if _, _, err := ctxwebsocket.ReadMessage(ctx, conn); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(h.pingInterval())
	defer ping.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				closeCtx, closeCancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
				ctxwebsocket.Close(closeCtx, conn, websocket.CloseGoingAway, "")
				closeCancel()
				return
			}
			change := Change{
				Path:   ev.Path,
				Op:     ev.Op.String(),
				Exists: ev.Exists,
				Time:   ev.Time.UTC(),
			}
			if err := ctxwebsocket.WriteJSON(ctx, conn, change); err != nil {
				log.Debugf(ctx, "Watcher %s: %v", id, err)
				return
			}
		case <-ping.C:
			if err := ctxwebsocket.Ping(ctx, conn, nil); err != nil {
				log.Debugf(ctx, "Watcher %s: %v", id, err)
				return
			}
		}
	}
}
