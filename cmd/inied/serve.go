// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nbcin/polder/envvar"
	"github.com/nbcin/polder/iniserve"
	"github.com/nbcin/polder/iniwatch"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"zombiezen.com/go/log"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve FILE",
		Short: "Serve a file over HTTP",
		Long: "Serve FILE over HTTP. Properties are read and written with JSON requests\n" +
			"under /sections, and changes are streamed over a WebSocket at /watch.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.options()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			l, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			srv := &http.Server{
				Handler: &iniserve.Handler{
					Path:        args[0],
					Options:     opts,
					Lock:        a.lock,
					LockTimeout: a.lockTimeout,
				},
				ReadHeaderTimeout: 10 * time.Second,
			}
			return serve(ctx, srv, l)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", envvar.Get("INIED_ADDR", "localhost:8080"), "`address` to listen on")
	return cmd
}

// serve runs srv on l until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, l net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		log.Infof(ctx, "Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		log.Infof(ctx, "Listening on http://%s", l.Addr())
		return srv.Serve(l)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type watchLine struct {
	Op     string    `json:"op"`
	Exists bool      `json:"exists"`
	Time   time.Time `json:"time"`
}

func newWatchCmd(a *app) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch FILE",
		Short: "Report every change to a file",
		Long: "Report every change to FILE until interrupted. When standard output is not a\n" +
			"terminal, each change is printed as a line of JSON.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			events, err := iniwatch.Watch(ctx, args[0], debounce)
			if err != nil {
				return err
			}
			tty := a.isTerminal()
			enc := json.NewEncoder(a.out)
			for ev := range events {
				if tty {
					state := "removed"
					if ev.Exists {
						state = "exists"
					}
					fmt.Fprintf(a.out, "%s %s %s (%s)\n", ev.Time.Format(time.TimeOnly), ev.Op, args[0], state)
					continue
				}
				if err := enc.Encode(watchLine{Op: ev.Op.String(), Exists: ev.Exists, Time: ev.Time.UTC()}); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", iniserve.DefaultDebounce, "coalesce changes closer together than `duration`")
	return cmd
}
