// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

package ini

import (
	"bufio"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"zombiezen.com/go/log"
)

// renameFile replaces the destination with the source in a single step.
// Tests swap it out to simulate failures at the last moment.
var renameFile = os.Rename

// newFilePerm is the permission given to files created by Write.
const newFilePerm fs.FileMode = 0o644

// An edit is the line policy the rewrite engine applies for one operation.
// Nil handlers keep the line verbatim.
type edit struct {
	op      string
	section string
	// key is the property the edit targets inside the section. Empty for
	// section-level edits.
	key string

	// targetHeader handles the first header of the target section.
	targetHeader func(p *pass, l *Line) error
	// otherHeader handles every header that is not the target header.
	otherHeader func(p *pass, l *Line) error
	// targetKey handles the first property with the target key inside the
	// target section.
	targetKey func(p *pass, l *Line) error
	// sectionLine handles every other line inside the target section.
	sectionLine func(p *pass, l *Line) error
	// sectionEnd is called when the target section ends, either at the next
	// header (before that header is handled) or at the end of the file.
	sectionEnd func(p *pass, atEOF bool)
	// finish is called once the whole file has been read. Returning an error
	// abandons the rewrite.
	finish func(p *pass) error
	// create, if not empty, is the content of the file written when the
	// source does not exist. Otherwise a missing source is an error.
	create string
}

// A pass is the state of a single rewrite over a file.
type pass struct {
	op   string
	path string
	d    Dialect
	w    *bufio.Writer

	// blanks holds blank lines that have been read but not yet written, so
	// that inserted lines land before a run of trailing blank lines.
	blanks []string
	// eol is the line ending used for inserted lines. It follows the last
	// terminated line read so that CRLF files stay CRLF.
	eol string
	// partial is true if the last written line lacks a terminator.
	partial   bool
	written   bool
	lastBlank bool
	changed   bool

	sectionFound bool
	keyFound     bool
}

func (p *pass) write(s string) {
	if p.partial {
		p.w.WriteString(p.eol)
	}
	p.w.WriteString(s)
	p.partial = !strings.HasSuffix(s, string(p.d.Terminator))
	p.written = true
	p.lastBlank = strings.TrimSpace(s) == ""
}

func (p *pass) flushBlanks() {
	for _, b := range p.blanks {
		p.write(b)
	}
	p.blanks = p.blanks[:0]
}

// keep copies a line to the output unchanged. Blank lines are held back
// until the next line is written.
func (p *pass) keep(l *Line) {
	if l.Kind == Blank {
		p.blanks = append(p.blanks, l.Raw)
		return
	}
	p.flushBlanks()
	p.write(l.Raw)
}

// drop omits a line from the output.
func (p *pass) drop(l *Line) {
	p.changed = true
}

// replace writes raw, which must carry its own line ending, in place of a line.
func (p *pass) replace(l *Line, raw string) {
	if raw == l.Raw {
		p.keep(l)
		return
	}
	p.flushBlanks()
	p.write(raw)
	p.changed = true
}

// insert writes a new line ahead of any held-back blank lines.
func (p *pass) insert(text string) {
	p.write(text + p.eol)
	p.changed = true
}

// discardBlanks drops held-back blank lines.
func (p *pass) discardBlanks() {
	if len(p.blanks) > 0 {
		p.blanks = p.blanks[:0]
		p.changed = true
	}
}

func (p *pass) fail(name string, kind error) error {
	return &Error{Op: p.op, Path: p.path, Name: name, Kind: kind}
}

type mutState int

const (
	beforeSection mutState = iota
	inSection
	afterSection
)

func call(h func(p *pass, l *Line) error, p *pass, l *Line) error {
	if h == nil {
		p.keep(l)
		return nil
	}
	return h(p, l)
}

// run streams src through the edit into w. It reports whether the output
// differs from the input.
func (ed *edit) run(ctx context.Context, path string, src io.Reader, w *bufio.Writer, opts *Options) (changed bool, err error) {
	d := opts.dialect()
	p := &pass{
		op:   ed.op,
		path: path,
		d:    d,
		w:    w,
		eol:  string(d.Terminator),
	}
	lr := newLineReader(src, d.Terminator)
	state := beforeSection
	for {
		if err := ctx.Err(); err != nil {
			return false, &Error{Op: ed.op, Path: path, Err: err}
		}
		raw, err := lr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return false, &Error{Op: ed.op, Path: path, Kind: ErrCannotOpenSource, Err: err}
		}
		if strings.HasSuffix(raw, "\r"+string(d.Terminator)) {
			p.eol = "\r" + string(d.Terminator)
		} else if strings.HasSuffix(raw, string(d.Terminator)) {
			p.eol = string(d.Terminator)
		}
		l := Classify(raw, d)
		if l.Kind == Malformed && opts.strict() {
			return false, &Error{Op: ed.op, Path: path, Line: lr.lineno, Kind: ErrMalformed}
		}

		switch {
		case l.Kind == SectionHeader && state == beforeSection && l.Name == ed.section:
			state = inSection
			p.sectionFound = true
			err = call(ed.targetHeader, p, &l)
		case l.Kind == SectionHeader:
			if state == inSection {
				state = afterSection
				if ed.sectionEnd != nil {
					ed.sectionEnd(p, false)
				}
			}
			err = call(ed.otherHeader, p, &l)
		case state == inSection && ed.key != "" && !p.keyFound && l.Kind == KeyValue && l.Key == ed.key:
			p.keyFound = true
			err = call(ed.targetKey, p, &l)
		case state == inSection:
			err = call(ed.sectionLine, p, &l)
		default:
			p.keep(&l)
		}
		if err != nil {
			return false, err
		}
	}
	if state == inSection && ed.sectionEnd != nil {
		ed.sectionEnd(p, true)
	}
	if ed.finish != nil {
		if err := ed.finish(p); err != nil {
			return false, err
		}
	}
	p.flushBlanks()
	return p.changed, nil
}

// rewrite applies an edit to the file at path. The original file is
// replaced only if the edit succeeds and changes something; on any failure
// it is left untouched and the temporary file is removed.
func rewrite(ctx context.Context, path string, opts *Options, ed *edit) error {
	if err := checkDialect(ed.op, path, opts); err != nil {
		return err
	}
	// Edit through symlinks rather than replacing them.
	target := path
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		target = resolved
	}
	src, err := os.Open(target)
	if errors.Is(err, fs.ErrNotExist) && ed.create != "" {
		return replaceFile(ctx, ed.op, path, target, newFilePerm, func(w *bufio.Writer) (bool, error) {
			w.WriteString(ed.create)
			return true, nil
		})
	}
	if err != nil {
		return &Error{Op: ed.op, Path: path, Kind: ErrCannotOpenSource, Err: err}
	}
	defer src.Close() // Read-only; close errors irrelevant.
	info, err := src.Stat()
	if err != nil {
		return &Error{Op: ed.op, Path: path, Kind: ErrCannotOpenSource, Err: err}
	}
	return replaceFile(ctx, ed.op, path, target, info.Mode().Perm(), func(w *bufio.Writer) (bool, error) {
		return ed.run(ctx, path, src, w, opts)
	})
}

// replaceFile writes a temporary file next to target using fill, then
// renames it over target. If fill reports no change, the temporary file is
// discarded and target is not touched. path is the name given by the caller
// and is used in errors and logs.
func replaceFile(ctx context.Context, op, path, target string, perm fs.FileMode, fill func(w *bufio.Writer) (bool, error)) (err error) {
	dir, base := filepath.Split(target)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp*")
	if err != nil {
		return &Error{Op: op, Path: path, Kind: ErrCannotCreateTemp, Err: err}
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		tmp.Close() // May already be closed.
		if rmErr := os.Remove(tmp.Name()); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			log.Warnf(ctx, "Removing temporary file %s: %v", tmp.Name(), rmErr)
		}
	}()

	w := bufio.NewWriter(tmp)
	changed, err := fill(w)
	if err != nil {
		return err
	}
	if !changed {
		log.Debugf(ctx, "%s %s: file unchanged", op, path)
		return nil
	}
	if err := w.Flush(); err != nil {
		return &Error{Op: op, Path: path, Err: err}
	}
	if err := tmp.Chmod(perm); err != nil {
		return &Error{Op: op, Path: path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return &Error{Op: op, Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &Error{Op: op, Path: path, Err: err}
	}
	if err := renameFile(tmp.Name(), target); err != nil {
		return &Error{Op: op, Path: path, Err: err}
	}
	committed = true
	log.Debugf(ctx, "%s %s: file rewritten", op, path)
	return nil
}
