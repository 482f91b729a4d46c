package session

import (
	"io"

	"github.com/alanbriolat/resumable-download/generic"
	"github.com/alanbriolat/resumable-download/internal/sink"
)

// Sink is where the worker writes the transfer's data.
type Sink interface {
	io.Writer
	Flush() error
	Close() error
}

type Storage interface {
	// ExistingLength is the size of whatever is already at path, if anything.
	ExistingLength(path string) generic.Option[int64]
	// Open opens path for writing, appending to existing content or truncating it.
	Open(path string, append bool) (Sink, error)
}

// FileStorage is the default Storage, on the local file system.
type FileStorage struct {
	sink.Files
}

var _ Storage = FileStorage{}

func (s FileStorage) Open(path string, append bool) (Sink, error) {
	f, err := s.Files.Open(path, append)
	if err != nil {
		return nil, err
	}
	return f, nil
}
