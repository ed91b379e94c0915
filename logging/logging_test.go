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

package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewDefaultsToInfoLevel(t *testing.T) {
	entry, closer, err := New(Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer closer.Close()
	if entry.Logger.GetLevel() != logrus.InfoLevel {
		t.Errorf("level = %v, want Info", entry.Logger.GetLevel())
	}
}

func TestNewQuietRaisesLevel(t *testing.T) {
	entry, closer, err := New(Options{Quiet: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer closer.Close()
	if entry.Logger.GetLevel() != logrus.WarnLevel {
		t.Errorf("level = %v, want Warn", entry.Logger.GetLevel())
	}
}

func TestNewFileRedirectsOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rtps.log")
	entry, closer, err := New(Options{File: path})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	entry.Info("hello")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file failed: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected log file to contain output")
	}
}

func TestNewAttachesFields(t *testing.T) {
	entry, closer, err := New(Options{Fields: logrus.Fields{"domain": 0}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer closer.Close()
	if _, ok := entry.Data["domain"]; !ok {
		t.Error("expected domain field to be attached")
	}
}
