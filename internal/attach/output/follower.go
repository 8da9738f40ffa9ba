// Package output provides tailing of job output files that are written by a
// remote job and may not exist yet.
package output

import (
	"bytes"
	"os"
)

// readBufferSize is the temporary buffer size for reading from the file.
const readBufferSize = 4096

// Follower yields the lines appended to a file since the previous call to
// Next. It never reads the file before it exists, and once opened the file is
// never reopened. Not safe for concurrent use; each stream has its own
// Follower.
type Follower struct {
	path   string
	file   *os.File
	closed bool

	// pending holds a trailing fragment of a line whose newline hasn't been
	// written yet.
	pending []byte
	buf     []byte
}

// NewFollower creates a Follower for path. The file is opened lazily by Next.
func NewFollower(path string) *Follower {
	return &Follower{
		path: path,
		buf:  make([]byte, readBufferSize),
	}
}

// Next returns the complete lines appended since the previous call, without
// their line endings. It returns an empty batch while the file doesn't exist
// or nothing new has been written. Next doesn't block or sleep; callers pace
// calls themselves.
//
// Read errors are not returned. The remote job owns the file, so a file that
// disappears or fails to read simply yields whatever was read.
func (f *Follower) Next() []string {
	if f.closed {
		return nil
	}

	if f.file == nil && !f.open() {
		return nil
	}

	for {
		n, err := f.file.Read(f.buf)
		f.pending = append(f.pending, f.buf[:n]...)

		// Usually io.EOF: everything written so far has been read.
		if err != nil || n == 0 {
			break
		}
	}

	return f.lines()
}

// Flush returns a trailing line fragment that was never terminated by a
// newline, if any. It doesn't read from the file.
func (f *Follower) Flush() []string {
	if len(f.pending) == 0 {
		return nil
	}

	line := string(bytes.TrimSuffix(f.pending, []byte("\r")))
	f.pending = nil

	return []string{line}
}

// Opened reports whether the file has been found and opened.
func (f *Follower) Opened() bool {
	return f.file != nil
}

// Close closes the file if it was opened. Next returns no lines after Close.
func (f *Follower) Close() error {
	f.closed = true

	if f.file == nil {
		return nil
	}

	err := f.file.Close()
	f.file = nil

	return err
}

func (f *Follower) open() bool {
	file, err := os.Open(f.path)
	if err != nil {
		return false
	}

	f.file = file

	return true
}

func (f *Follower) lines() []string {
	var lines []string

	for {
		i := bytes.IndexByte(f.pending, '\n')
		if i < 0 {
			break
		}

		lines = append(lines, string(bytes.TrimSuffix(f.pending[:i], []byte("\r"))))
		f.pending = f.pending[i+1:]
	}

	if len(f.pending) == 0 {
		f.pending = nil
	}

	return lines
}
