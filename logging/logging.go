// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package logging sets up the engine's structured logger, replacing the
// teacher's bare log.SetFlags(log.LstdFlags|log.Lshortfile) and
// "-log <file>" output redirection (server/main.go, client/main.go) with
// a logrus.Logger an operator can still point at a file, but that every
// other package consumes via *logrus.Entry fields instead of formatted
// strings.
package logging

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Options configures New the way the teacher's "-log"/"-quiet" flags
// configure its log.SetOutput call.
type Options struct {
	// File redirects output to a path, opened for append (existing
	// content kept) like the teacher's os.O_RDWR|os.O_CREATE|os.O_APPEND.
	// Empty means stderr.
	File string
	// Quiet raises the level to Warn, mirroring the teacher's "quiet"
	// flag suppressing routine connection-established/closed logging.
	Quiet bool
	// Fields are always attached (e.g. "domain", "participant") so every
	// line from this process can be grep'd apart from another
	// participant sharing the same terminal.
	Fields logrus.Fields
}

// New builds the root *logrus.Entry every package derives its own
// WithField entries from.
func New(opts Options) (*logrus.Entry, io.Closer, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level := logrus.InfoLevel
	if opts.Quiet {
		level = logrus.WarnLevel
	}
	logger.SetLevel(level)

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "logging: open %s", opts.File)
		}
		logger.SetOutput(f)
		closer = f
	}

	entry := logrus.NewEntry(logger)
	if len(opts.Fields) > 0 {
		entry = entry.WithFields(opts.Fields)
	}
	return entry, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
