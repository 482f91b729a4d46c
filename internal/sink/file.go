// Package sink persists transferred bytes to the local file system.
package sink

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"github.com/alanbriolat/resumable-download/generic"
)

const DefaultBufferSize = 32 * 1024

// Files opens output files on the local file system. The zero value is ready to use.
type Files struct {
	// BufferSize is the write buffer size of each File; 0 means DefaultBufferSize, negative means unbuffered.
	BufferSize int
}

// ExistingLength returns the size of the file at path, or None if there is no such regular file.
func (f Files) ExistingLength(path string) generic.Option[int64] {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return generic.None[int64]()
	}
	return generic.Some(info.Size())
}

// Open opens path for writing, appending to existing content if append is set and truncating it otherwise. Missing
// parent directories are created.
func (f Files) Open(path string, append bool) (*File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0775); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	flags := os.O_CREATE | os.O_WRONLY
	if append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, err
	}
	s := &File{file: file}
	switch {
	case f.BufferSize == 0:
		s.w = bufio.NewWriterSize(file, DefaultBufferSize)
	case f.BufferSize > 0:
		s.w = bufio.NewWriterSize(file, f.BufferSize)
	}
	return s, nil
}

var ErrClosed = errors.New("sink closed")

// File is an open output file.
type File struct {
	file   *os.File
	w      *bufio.Writer // nil if unbuffered
	closed bool
}

func (s *File) Name() string {
	return s.file.Name()
}

func (s *File) Write(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if s.w == nil {
		return s.file.Write(p)
	}
	return s.w.Write(p)
}

// Flush pushes any buffered bytes to the operating system.
func (s *File) Flush() error {
	if s.closed {
		return ErrClosed
	}
	if s.w == nil {
		return nil
	}
	return s.w.Flush()
}

// Close flushes and closes the file; it is safe to call more than once.
func (s *File) Close() error {
	if s.closed {
		return nil
	}
	var result error
	if err := s.Flush(); err != nil {
		result = multierror.Append(result, fmt.Errorf("flush: %w", err))
	}
	s.closed = true
	if err := s.file.Close(); err != nil && !errors.Is(err, fs.ErrClosed) {
		result = multierror.Append(result, fmt.Errorf("close: %w", err))
	}
	return result
}
