// Copyright 2020 YourBase Inc.
// SPDX-License-Identifier: BSD-3-Clause

//go:build !unix

package filelock

import (
	"errors"
	"os"
)

func tryLock(f *os.File) error {
	return errors.ErrUnsupported
}

func unlock(f *os.File) error {
	return errors.ErrUnsupported
}
