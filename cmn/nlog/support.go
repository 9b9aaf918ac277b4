/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

// fixed is a pre-allocated, reused write buffer: nlog avoids the allocator on
// the hot logging path by rotating a small set of these between "being
// written into" and "being flushed to disk".
type fixed struct {
	buf  []byte
	woff int
}

func (f *fixed) reset()          { f.woff = 0 }
func (f *fixed) length() int     { return f.woff }
func (f *fixed) size() int       { return len(f.buf) }
func (f *fixed) avail() int      { return len(f.buf) - f.woff }
func (f *fixed) eol()            { f.writeByte('\n') }
func (f *fixed) writeByte(b byte) {
	if f.woff < len(f.buf) {
		f.buf[f.woff] = b
		f.woff++
	}
}

func (f *fixed) writeString(s string) { f.Write([]byte(s)) }

func (f *fixed) Write(p []byte) (int, error) {
	n := copy(f.buf[f.woff:], p)
	f.woff += n
	return n, nil
}

func (f *fixed) flush(w *os.File) (int, error) {
	n, err := w.Write(f.buf[:f.woff])
	return n, err
}

var (
	toStderr     bool
	alsoToStderr bool

	logDir  string
	aisrole string
	title   string

	host string
	pid  int

	nlogs         [3]*nlog
	onceInitFiles sync.Once

	pool sync.Pool

	redactFnames = map[string]struct{}{}

	sevText = [3]string{"INFO", "WARNING", "ERROR"}
)

func init() {
	host, _ = os.Hostname()
	pid = os.Getpid()
}

func sname() string {
	s := aisrole
	if s == "" {
		s = "pd3"
	}
	return s
}

func initFiles() {
	nlogs[sevInfo] = newNlog(sevInfo)
	nlogs[sevErr] = newNlog(sevErr)

	for _, sev := range []severity{sevInfo, sevErr} {
		f, _, err := fcreate(sevText[sev], time.Now())
		if err != nil {
			nlogs[sev].erred.Store(true)
			continue
		}
		nlogs[sev].file = f
	}
}

// fcreate creates (or opens for appending) the log file for the given
// severity, points a stable "current" symlink at it, and returns the file
// along with the symlink's path.
func fcreate(tag string, now time.Time) (*os.File, string, error) {
	dir := logDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", err
	}
	name, link := logfname(tag, now)
	full := filepath.Join(dir, name)
	f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, "", err
	}
	linkFull := filepath.Join(dir, link)
	os.Remove(linkFull)
	os.Symlink(name, linkFull)
	return f, linkFull, nil
}

func assert(cond bool) {
	if !cond {
		panic("nlog: assertion failed")
	}
}
