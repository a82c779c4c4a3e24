// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// newLogger returns a tint logger on f, colored when f is a terminal.
func newLogger(f *os.File, level slog.Level) *slog.Logger {
	color := isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	var w io.Writer = f
	if color {
		w = colorable.NewColorable(f)
	}
	return newLoggerTo(w, level, !color)
}

func newLoggerTo(w io.Writer, level slog.Level, noColor bool) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.StampMilli,
		NoColor:    noColor,
	}))
}
