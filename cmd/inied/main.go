// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

// inied reads and edits INI files in place, keeping comments, spacing, and
// ordering intact.
//
//	inied get app.ini net port
//	inied set app.ini net port 8080
//	inied rm app.ini net port
//	inied serve --addr localhost:8080 app.ini
//	inied watch app.ini
//
// Defaults for the global flags can be set with the INIED_DELIMITER,
// INIED_COMMENT, INIED_STRICT, INIED_LOCK_TIMEOUT, and INIED_ADDR
// environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := newRootCmd(os.Stdout, os.Stderr)
	err := root.ExecuteContext(ctx)
	cancel()
	if errors.Is(err, errFalse) {
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "inied:", err)
		os.Exit(1)
	}
}
