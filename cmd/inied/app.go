// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/nbcin/polder/envvar"
	"github.com/nbcin/polder/filelock"
	"github.com/nbcin/polder/ini"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
	"zombiezen.com/go/log"
)

// errFalse is returned by predicates that evaluate to false. It sets the
// exit status without printing anything.
var errFalse = errors.New("false")

// app holds the global flags and output streams shared by all commands.
type app struct {
	out    io.Writer
	errOut io.Writer

	delimiter   charValue
	comment     charValue
	strict      bool
	lock        bool
	lockTimeout time.Duration
	verbose     bool
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{
		out:       out,
		errOut:    errOut,
		delimiter: charValue(envvar.Char("INIED_DELIMITER", ini.DefaultDialect.Delimiter)),
		comment:   charValue(envvar.Char("INIED_COMMENT", ini.DefaultDialect.Comment)),
	}
	root := &cobra.Command{
		Use:           "inied",
		Short:         "Edit INI files in place",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.installLogger()
			_, err := a.options()
			return err
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.Var(&a.delimiter, "delimiter", "key-value delimiter")
	flags.Var(&a.comment, "comment", "comment character")
	flags.BoolVar(&a.strict, "strict", envvar.Bool("INIED_STRICT", false), "fail on malformed lines")
	flags.BoolVar(&a.lock, "lock", false, "hold an advisory lock on FILE.lock while editing")
	flags.DurationVar(&a.lockTimeout, "lock-timeout", envvar.Duration("INIED_LOCK_TIMEOUT", 5*time.Second), "how long to wait for the lock")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log debugging information")

	root.AddCommand(
		newGetCmd(a),
		newSetCmd(a),
		newExistsCmd(a),
		newRmCmd(a),
		newRenameSectionCmd(a),
		newRenameKeyCmd(a),
		newSectionsCmd(a),
		newKeysCmd(a),
		newDumpCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
	)
	return root
}

// options returns the ini options selected by the global flags.
func (a *app) options() (*ini.Options, error) {
	d := ini.Dialect{
		Delimiter:  byte(a.delimiter),
		Comment:    byte(a.comment),
		Terminator: ini.DefaultDialect.Terminator,
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("dialect: %w", err)
	}
	return &ini.Options{Dialect: d, Strict: a.strict}, nil
}

// mutate runs f, holding the file's lock if --lock was given.
func (a *app) mutate(ctx context.Context, path string, f func(ctx context.Context, opts *ini.Options) error) error {
	opts, err := a.options()
	if err != nil {
		return err
	}
	if a.lock {
		lockCtx, cancel := context.WithTimeout(ctx, a.lockTimeout)
		l, err := filelock.Acquire(lockCtx, path)
		cancel()
		if err != nil {
			return err
		}
		defer func() {
			if err := l.Release(); err != nil {
				log.Warnf(ctx, "%v", err)
			}
		}()
	}
	return f(ctx, opts)
}

// isTerminal reports whether standard output is a terminal.
func (a *app) isTerminal() bool {
	f, ok := a.out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// charValue is a flag holding a single byte.
type charValue byte

var _ pflag.Value = (*charValue)(nil)

func (c *charValue) Set(s string) error {
	b, ok := envvar.ParseChar(s)
	if !ok {
		return fmt.Errorf("%q is not a single character", s)
	}
	*c = charValue(b)
	return nil
}

func (c *charValue) String() string {
	return string(rune(*c))
}

func (c *charValue) Type() string {
	return "char"
}

func (a *app) installLogger() {
	level := log.Warn
	if a.verbose {
		level = log.Debug
	}
	log.SetDefault(&lineLogger{w: a.errOut, min: level})
}

// lineLogger writes log entries at or above a minimum level, one per line.
type lineLogger struct {
	mu  sync.Mutex
	w   io.Writer
	min log.Level
}

func (l *lineLogger) LogEnabled(entry log.Entry) bool {
	return entry.Level >= l.min
}

func (l *lineLogger) Log(ctx context.Context, entry log.Entry) {
	if !l.LogEnabled(entry) {
		return
	}
	prefix := "inied: "
	switch {
	case entry.Level >= log.Error:
		prefix += "error: "
	case entry.Level >= log.Warn:
		prefix += "warning: "
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, prefix+entry.Msg)
}
